package terminal

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/shellbridge/internal/providers/proxy"
	"github.com/GriffinCanCode/shellbridge/internal/shell/marker"
	"github.com/stretchr/testify/require"
)

const fakePrompt = "$ "

func exitMarker(code int) string {
	return string(marker.Encode(marker.Marker{Kind: marker.KindExit, Code: code}))
}

var (
	interactiveMarker = string(marker.Encode(marker.Marker{Kind: marker.KindInteractive}))
	promptMarker      = string(marker.Encode(marker.Marker{Kind: marker.KindPrompt}))
)

// fakeMode selects how a fake shell starts
type fakeMode int

const (
	fakeNormal fakeMode = iota
	// writes some output then exits without becoming interactive
	fakeDiesEarly
	// never writes anything
	fakeSilent
)

// fakeShell is an in-memory shell speaking the marker protocol. It echoes
// keys and understands a few commands:
//
//	sleep       runs until interrupted
//	fail        prints "boom" and exits 2
//	echo X      prints X
//	expo        prints an exp:// URL split over three writes
//	exit        ends the shell
type fakeShell struct {
	mode fakeMode

	out    *io.PipeWriter
	reader *io.PipeReader
	in     chan []byte
	exited chan struct{}

	killOnce sync.Once

	mu      sync.Mutex
	writes  []string
	running bool
	resized []Size
	line    []byte
}

func newFakeShell(mode fakeMode) *fakeShell {
	r, w := io.Pipe()
	f := &fakeShell{
		mode:   mode,
		out:    w,
		reader: r,
		in:     make(chan []byte, 64),
		exited: make(chan struct{}),
	}
	go f.run()
	return f
}

func (f *fakeShell) run() {
	switch f.mode {
	case fakeDiesEarly:
		f.emit("bash: startup failed\r\n")
		f.kill()
		return
	case fakeSilent:
		<-f.exited
		return
	}

	f.emit("Welcome\r\n" + interactiveMarker + exitMarker(0) + promptMarker + fakePrompt)
	for {
		select {
		case <-f.exited:
			return
		case p := <-f.in:
			for _, b := range p {
				f.key(b)
			}
		}
	}
}

func (f *fakeShell) emit(s string) {
	_, _ = f.out.Write([]byte(s))
}

func (f *fakeShell) promptWith(code int) {
	f.emit(exitMarker(code) + promptMarker + fakePrompt)
}

func (f *fakeShell) key(b byte) {
	f.mu.Lock()
	running := f.running
	f.mu.Unlock()

	switch {
	case b == keyInterrupt:
		f.mu.Lock()
		f.running = false
		f.line = nil
		f.mu.Unlock()
		f.emit("^C\r\n")
		f.promptWith(130)
	case running:
		// a foreground job ignores everything but ^C
	case b == keyReturn || b == keyNewline:
		f.mu.Lock()
		line := string(f.line)
		f.line = nil
		f.mu.Unlock()
		f.emit("\r\n")
		f.exec(line)
	case b == keyDelete || b == keyBackspace:
		f.mu.Lock()
		if n := len(f.line); n > 0 {
			f.line = f.line[:n-1]
		}
		f.mu.Unlock()
		f.emit("\b \b")
	default:
		f.mu.Lock()
		f.line = append(f.line, b)
		f.mu.Unlock()
		f.emit(string([]byte{b}))
	}
}

func (f *fakeShell) exec(line string) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		f.promptWith(0)
	case line == "sleep":
		f.mu.Lock()
		f.running = true
		f.mu.Unlock()
	case line == "fail":
		f.emit("boom\r\n")
		f.promptWith(2)
	case line == "expo":
		f.emit("Metro waiting on exp://19")
		f.emit("2.168.1.5:80")
		f.emit("81 ready\r\n")
		f.promptWith(0)
	case line == "exit":
		f.kill()
	case strings.HasPrefix(line, "echo "):
		f.emit(strings.TrimPrefix(line, "echo ") + "\r\n")
		f.promptWith(0)
	default:
		f.emit(line + ": command not found\r\n")
		f.promptWith(127)
	}
}

func (f *fakeShell) kill() {
	f.killOnce.Do(func() {
		close(f.exited)
		_ = f.out.Close()
	})
}

// Running reports whether a sleep is in the foreground
func (f *fakeShell) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

// Writes returns every chunk written to the shell, in order
func (f *fakeShell) Writes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

// Process

func (f *fakeShell) Read(p []byte) (int, error) { return f.reader.Read(p) }

func (f *fakeShell) Write(p []byte) (int, error) {
	select {
	case <-f.exited:
		return 0, io.ErrClosedPipe
	default:
	}

	b := append([]byte(nil), p...)
	f.mu.Lock()
	f.writes = append(f.writes, string(b))
	f.mu.Unlock()

	select {
	case f.in <- b:
		return len(p), nil
	case <-f.exited:
		return 0, io.ErrClosedPipe
	}
}

func (f *fakeShell) Resize(size Size) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resized = append(f.resized, size)
	return nil
}

func (f *fakeShell) Wait() error {
	<-f.exited
	return nil
}

func (f *fakeShell) Kill() error {
	f.kill()
	return nil
}

func (f *fakeShell) Pid() int { return 4242 }

func (f *fakeShell) Close() error {
	f.kill()
	return f.reader.Close()
}

// fakeLauncher hands out fake shells and remembers them
type fakeLauncher struct {
	mode fakeMode
	err  error

	mu     sync.Mutex
	specs  []LaunchSpec
	shells []*fakeShell
}

func (l *fakeLauncher) Launch(ctx context.Context, spec LaunchSpec) (Process, error) {
	if l.err != nil {
		return nil, l.err
	}
	shell := newFakeShell(l.mode)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.specs = append(l.specs, spec)
	l.shells = append(l.shells, shell)
	return shell, nil
}

func (l *fakeLauncher) last(t *testing.T) *fakeShell {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	require.NotEmpty(t, l.shells, "no shell launched")
	return l.shells[len(l.shells)-1]
}

// fakeExecutor stands in for the proxy
type fakeExecutor struct {
	mu    sync.Mutex
	calls []proxy.Command
	fn    func(ctx context.Context, cmd proxy.Command) (*proxy.Outcome, error)
}

func (e *fakeExecutor) Execute(ctx context.Context, cmd proxy.Command) (*proxy.Outcome, error) {
	e.mu.Lock()
	e.calls = append(e.calls, cmd)
	e.mu.Unlock()

	if e.fn != nil {
		return e.fn(ctx, cmd)
	}
	return &proxy.Outcome{Output: "proxied " + cmd.Line()}, nil
}

func (e *fakeExecutor) Calls() []proxy.Command {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]proxy.Command(nil), e.calls...)
}

var errFakeUpstream = errors.New("upstream down")

// syncBuffer is a goroutine-safe bytes.Buffer
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
