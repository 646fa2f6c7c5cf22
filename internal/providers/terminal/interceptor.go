package terminal

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/GriffinCanCode/shellbridge/internal/providers/proxy"
	"go.uber.org/zap"
)

// Input control bytes
const (
	keyInterrupt = 0x03
	keyBackspace = 0x08
	keyKillLine  = 0x15
	keyEscape    = 0x1b
	keyDelete    = 0x7f
	keyReturn    = '\r'
	keyNewline   = '\n'
	keyBell      = 0x07
)

// Bracketed paste delimiters
var (
	pasteStart = []byte("\x1b[200~")
	pasteEnd   = []byte("\x1b[201~")
)

// DefaultPromptIndicator is shown after proxy output
const DefaultPromptIndicator = "$ "

// CommandRunner runs a completed proxy line on behalf of a session.
// *Coordinator satisfies it.
type CommandRunner interface {
	Execute(ctx context.Context, sessionID, command string, onCancel func()) (*Result, error)
}

// maxEscapeLen ends a sequence that never produces its final byte
const maxEscapeLen = 64

type escState int

const (
	escNone escState = iota
	escStart
	escCSI
	escSS3
	escOSC
	escOSCEnd
)

// Interceptor sits between a terminal's keystrokes and the shell. Keys are
// forwarded as typed while a copy of the current line is kept; when Enter
// completes a proxy command the shell's line is erased and the command runs
// through the runner instead.
type Interceptor struct {
	sessionID string
	shell     io.Writer
	term      io.Writer
	runner    CommandRunner
	prompt    string
	timeout   time.Duration
	logger    *zap.Logger

	mu      sync.Mutex
	pending []rune
	skipLF  bool
	esc     escState
	seq     []byte

	termMu   sync.Mutex
	inflight sync.WaitGroup
}

// InterceptorOption configures an Interceptor
type InterceptorOption func(*Interceptor)

// WithPromptIndicator sets the text written after proxy output
func WithPromptIndicator(prompt string) InterceptorOption {
	return func(i *Interceptor) { i.prompt = prompt }
}

// WithProxyTimeout bounds each proxy run; zero means no bound
func WithProxyTimeout(d time.Duration) InterceptorOption {
	return func(i *Interceptor) { i.timeout = d }
}

// WithInterceptorLogger sets the logger
func WithInterceptorLogger(logger *zap.Logger) InterceptorOption {
	return func(i *Interceptor) { i.logger = logger }
}

// NewInterceptor creates an interceptor for sessionID writing keystrokes to
// shell and proxy output to term
func NewInterceptor(sessionID string, shell, term io.Writer, runner CommandRunner, opts ...InterceptorOption) *Interceptor {
	i := &Interceptor{
		sessionID: sessionID,
		shell:     shell,
		term:      term,
		runner:    runner,
		prompt:    DefaultPromptIndicator,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// HandleInput processes one chunk of terminal input. Proxy commands run in
// the background; ctx bounds them.
func (i *Interceptor) HandleInput(ctx context.Context, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	var out bytes.Buffer
	for len(data) > 0 {
		if i.esc != escNone {
			b := data[0]
			data = data[1:]
			if i.escape(b) {
				i.flushEscape(&out)
			}
			continue
		}

		r, size := utf8.DecodeRune(data)
		b := data[0]
		chunk := data[:size]
		data = data[size:]

		if b == keyNewline && i.skipLF {
			i.skipLF = false
			continue
		}
		i.skipLF = false

		switch {
		case b == keyEscape:
			i.esc = escStart
			i.seq = append(i.seq[:0], b)
		case b == keyReturn || b == keyNewline:
			line := string(i.pending)
			i.pending = i.pending[:0]

			kind, _ := proxy.Classify(line)
			if !kind.IsProxy() {
				out.Write(chunk)
				continue
			}

			// flush what the shell should already have, then erase the line
			out.Write(bytes.Repeat([]byte{keyDelete}, utf8.RuneCountInString(line)))
			if err := i.forward(out.Bytes()); err != nil {
				return err
			}
			out.Reset()
			i.skipLF = b == keyReturn
			i.runProxy(ctx, line)
		case b == keyInterrupt, b == keyKillLine:
			i.pending = i.pending[:0]
			out.Write(chunk)
		case b == keyBackspace || b == keyDelete:
			if n := len(i.pending); n > 0 {
				i.pending = i.pending[:n-1]
			}
			out.Write(chunk)
		case r == utf8.RuneError && size == 1:
			out.Write(chunk)
		case b < 0x20:
			out.Write(chunk)
		default:
			i.pending = append(i.pending, r)
			out.Write(chunk)
		}
	}

	// a lone ESC at the end of a read is the Escape key itself
	if i.esc == escStart {
		i.flushEscape(&out)
	}
	return i.forward(out.Bytes())
}

// escape feeds one byte of an escape sequence and reports whether the
// sequence is complete
func (i *Interceptor) escape(b byte) bool {
	i.seq = append(i.seq, b)
	if len(i.seq) >= maxEscapeLen {
		return true
	}
	switch i.esc {
	case escStart:
		switch b {
		case '[':
			i.esc = escCSI
		case 'O':
			i.esc = escSS3
		case ']':
			i.esc = escOSC
		default:
			return true
		}
		return false
	case escCSI:
		return b >= 0x40 && b <= 0x7e
	case escSS3:
		return true
	case escOSC:
		switch b {
		case keyBell:
			return true
		case keyEscape:
			i.esc = escOSCEnd
		}
		return false
	case escOSCEnd:
		return true
	}
	return true
}

// flushEscape writes the buffered sequence through. Paste delimiters are
// dropped so pasted text reaches the shell as typed keys and the line
// tracking above applies to it.
func (i *Interceptor) flushEscape(out *bytes.Buffer) {
	if !bytes.Equal(i.seq, pasteStart) && !bytes.Equal(i.seq, pasteEnd) {
		out.Write(i.seq)
	}
	i.seq = i.seq[:0]
	i.esc = escNone
}

func (i *Interceptor) forward(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	_, err := i.shell.Write(p)
	return err
}

func (i *Interceptor) runProxy(ctx context.Context, line string) {
	i.inflight.Add(1)
	go func() {
		defer i.inflight.Done()

		runCtx := ctx
		if i.timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, i.timeout)
			defer cancel()
		}

		res, err := i.runner.Execute(runCtx, i.sessionID, line, nil)
		if err != nil {
			i.logger.Warn("Proxy command failed",
				zap.String("session_id", i.sessionID),
				zap.String("command", line),
				zap.Error(err))
			i.writeTerm("\r\n\x1b[31mError: " + err.Error() + "\x1b[0m\r\n" + i.prompt)
			return
		}

		var sb strings.Builder
		sb.WriteString("\r\n")
		if res.Output != "" {
			sb.WriteString(toCRLF(res.Output))
			sb.WriteString("\r\n")
		}
		sb.WriteString(i.prompt)
		i.writeTerm(sb.String())
	}()
}

func (i *Interceptor) writeTerm(s string) {
	i.termMu.Lock()
	defer i.termMu.Unlock()

	if _, err := io.WriteString(i.term, s); err != nil {
		i.logger.Debug("Terminal write failed", zap.Error(err))
	}
}

// Pending returns the line typed since the last Enter or Ctrl+C
func (i *Interceptor) Pending() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return string(i.pending)
}

// Reset clears the pending line, e.g. when the terminal detaches
func (i *Interceptor) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.pending = i.pending[:0]
	i.skipLF = false
	i.esc = escNone
	i.seq = i.seq[:0]
}

// Wait blocks until background proxy runs have written their output
func (i *Interceptor) Wait() {
	i.inflight.Wait()
}

func toCRLF(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}
