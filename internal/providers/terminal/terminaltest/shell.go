// Package terminaltest provides an in-memory shell that speaks the marker
// protocol, for testing packages built on terminal sessions.
package terminaltest

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/GriffinCanCode/shellbridge/internal/providers/terminal"
	"github.com/GriffinCanCode/shellbridge/internal/shell/marker"
)

// Prompt is the prompt text the fake shell prints
const Prompt = "$ "

// Banner is printed once before the shell becomes interactive
const Banner = "Welcome\r\n"

// Shell is a fake interactive shell. It echoes keys and understands:
//
//	echo X      prints X, exit 0
//	fail        prints "boom", exit 2
//	sleep       runs until ^C
//	exit        ends the shell
//
// Anything else prints "command not found" and exits 127.
type Shell struct {
	out    *io.PipeWriter
	reader *io.PipeReader
	in     chan []byte
	exited chan struct{}
	once   sync.Once

	mu      sync.Mutex
	writes  []string
	sizes   []terminal.Size
	line    []byte
	running bool
}

// NewShell starts a fake shell
func NewShell() *Shell {
	r, w := io.Pipe()
	s := &Shell{
		out:    w,
		reader: r,
		in:     make(chan []byte, 64),
		exited: make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Shell) run() {
	s.emit(Banner + encode(marker.Marker{Kind: marker.KindInteractive}))
	s.prompt(0)
	for {
		select {
		case <-s.exited:
			return
		case p := <-s.in:
			for _, b := range p {
				s.key(b)
			}
		}
	}
}

func encode(m marker.Marker) string { return string(marker.Encode(m)) }

func (s *Shell) emit(text string) {
	_, _ = s.out.Write([]byte(text))
}

func (s *Shell) prompt(code int) {
	s.emit(encode(marker.Marker{Kind: marker.KindExit, Code: code}) +
		encode(marker.Marker{Kind: marker.KindPrompt}) + Prompt)
}

func (s *Shell) key(b byte) {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	switch {
	case b == 0x03:
		s.mu.Lock()
		s.running = false
		s.line = nil
		s.mu.Unlock()
		s.emit("^C\r\n")
		s.prompt(130)
	case running:
	case b == '\r' || b == '\n':
		s.mu.Lock()
		line := strings.TrimSpace(string(s.line))
		s.line = nil
		s.mu.Unlock()
		s.emit("\r\n")
		s.exec(line)
	case b == 0x7f || b == 0x08:
		s.mu.Lock()
		if n := len(s.line); n > 0 {
			s.line = s.line[:n-1]
		}
		s.mu.Unlock()
		s.emit("\b \b")
	default:
		s.mu.Lock()
		s.line = append(s.line, b)
		s.mu.Unlock()
		s.emit(string([]byte{b}))
	}
}

func (s *Shell) exec(line string) {
	switch {
	case line == "":
		s.prompt(0)
	case line == "sleep":
		s.mu.Lock()
		s.running = true
		s.mu.Unlock()
	case line == "fail":
		s.emit("boom\r\n")
		s.prompt(2)
	case line == "exit":
		s.kill()
	case strings.HasPrefix(line, "echo "):
		s.emit(strings.TrimPrefix(line, "echo ") + "\r\n")
		s.prompt(0)
	default:
		s.emit(line + ": command not found\r\n")
		s.prompt(127)
	}
}

func (s *Shell) kill() {
	s.once.Do(func() {
		close(s.exited)
		_ = s.out.Close()
	})
}

// Writes returns every chunk written to the shell, in order
func (s *Shell) Writes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.writes...)
}

// Sizes returns every size the shell was resized to
func (s *Shell) Sizes() []terminal.Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]terminal.Size(nil), s.sizes...)
}

// Running reports whether a sleep is in the foreground
func (s *Shell) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Shell) Read(p []byte) (int, error) { return s.reader.Read(p) }

func (s *Shell) Write(p []byte) (int, error) {
	select {
	case <-s.exited:
		return 0, io.ErrClosedPipe
	default:
	}

	b := append([]byte(nil), p...)
	s.mu.Lock()
	s.writes = append(s.writes, string(b))
	s.mu.Unlock()

	select {
	case s.in <- b:
		return len(p), nil
	case <-s.exited:
		return 0, io.ErrClosedPipe
	}
}

func (s *Shell) Resize(size terminal.Size) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sizes = append(s.sizes, size)
	return nil
}

func (s *Shell) Wait() error {
	<-s.exited
	return nil
}

func (s *Shell) Kill() error {
	s.kill()
	return nil
}

func (s *Shell) Pid() int { return 4242 }

func (s *Shell) Close() error {
	s.kill()
	return s.reader.Close()
}

// Launcher hands out fake shells and remembers them
type Launcher struct {
	// Err, when set, fails every launch
	Err error

	mu     sync.Mutex
	specs  []terminal.LaunchSpec
	shells []*Shell
}

// Launch implements terminal.Launcher
func (l *Launcher) Launch(ctx context.Context, spec terminal.LaunchSpec) (terminal.Process, error) {
	if l.Err != nil {
		return nil, l.Err
	}
	shell := NewShell()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.specs = append(l.specs, spec)
	l.shells = append(l.shells, shell)
	return shell, nil
}

// Last returns the most recently launched shell, or nil
func (l *Launcher) Last() *Shell {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.shells) == 0 {
		return nil
	}
	return l.shells[len(l.shells)-1]
}

// Specs returns every launch spec seen
func (l *Launcher) Specs() []terminal.LaunchSpec {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]terminal.LaunchSpec(nil), l.specs...)
}
