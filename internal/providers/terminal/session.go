package terminal

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/GriffinCanCode/shellbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/shellbridge/internal/shell/marker"
	"github.com/GriffinCanCode/shellbridge/internal/shell/stream"
	"go.uber.org/zap"
)

// Subscriber budgets
const (
	DefaultRenderBufferBytes  = 1 << 20
	DefaultCaptureBufferBytes = 4 << 20
	DefaultWatchBufferBytes   = 64 << 10
	DefaultScrollbackBytes    = 256 << 10
)

// SessionConfig configures one shell session
type SessionConfig struct {
	Launch             LaunchSpec
	RenderBufferBytes  int
	CaptureBufferBytes int
	WatchBufferBytes   int
	ScrollbackBytes    int
}

func (c *SessionConfig) applyDefaults() {
	if c.RenderBufferBytes <= 0 {
		c.RenderBufferBytes = DefaultRenderBufferBytes
	}
	if c.CaptureBufferBytes <= 0 {
		c.CaptureBufferBytes = DefaultCaptureBufferBytes
	}
	if c.WatchBufferBytes <= 0 {
		c.WatchBufferBytes = DefaultWatchBufferBytes
	}
	if c.ScrollbackBytes <= 0 {
		c.ScrollbackBytes = DefaultScrollbackBytes
	}
	if c.Launch.Size.Cols == 0 {
		c.Launch.Size.Cols = 80
	}
	if c.Launch.Size.Rows == 0 {
		c.Launch.Size.Rows = 24
	}
}

// Session is one shell process shared by a terminal view, the execution
// coordinator and a URL watcher. Each consumer reads its own subscription
// of the output, so a slow one never stalls the others.
type Session struct {
	ID string

	cfg      SessionConfig
	launcher Launcher
	clock    Clock
	metrics  *monitoring.Metrics
	logger   *zap.Logger

	mu        sync.RWMutex
	state     State
	size      Size
	startedAt time.Time
	proc      Process

	writeMu sync.Mutex

	tee     *stream.Broadcaster
	render  *stream.Subscription
	capture *stream.Subscription
	watch   *stream.Subscription
	parser  *marker.Parser

	sinkMu     sync.Mutex
	sink       io.Writer
	scrollback *Buffer

	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}
}

// NewSession creates an uninitialized session; Init starts the shell
func NewSession(id string, cfg SessionConfig, launcher Launcher, clock Clock, metrics *monitoring.Metrics, logger *zap.Logger) *Session {
	cfg.applyDefaults()
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		ID:         id,
		cfg:        cfg,
		launcher:   launcher,
		clock:      clock,
		metrics:    metrics,
		logger:     logger.With(zap.String("session_id", id)),
		size:       cfg.Launch.Size,
		scrollback: NewBuffer(cfg.ScrollbackBytes),
		done:       make(chan struct{}),
	}
}

// Init spawns the shell and blocks until it reports interactive. On any
// failure the session is closed and never becomes ready.
func (s *Session) Init(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateUninitialized {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("session %s already %s", s.ID, state)
	}
	s.state = StateWaitingInteractive
	s.mu.Unlock()

	proc, err := s.launcher.Launch(ctx, s.cfg.Launch)
	if err != nil {
		s.logger.Error("Failed to spawn shell", zap.Error(err))
		s.Close()
		return fmt.Errorf("spawn shell: %w", err)
	}

	tee := stream.NewBroadcaster(proc, s.logger, stream.WithDropFunc(s.metrics.AddStreamDrops))
	render := tee.Subscribe("render", s.cfg.RenderBufferBytes)
	capture := tee.Subscribe("capture", s.cfg.CaptureBufferBytes)
	watch := tee.Subscribe("watch", s.cfg.WatchBufferBytes)

	s.mu.Lock()
	s.proc = proc
	s.tee = tee
	s.render = render
	s.capture = capture
	s.watch = watch
	s.parser = marker.NewParser(capture)
	s.startedAt = s.clock.Now()
	s.mu.Unlock()

	tee.Start()
	go s.monitor()

	startup := marker.NewParser(render)
	res, err := startup.AwaitMarker(ctx, marker.KindInteractive)
	if err != nil {
		s.Close()
		return fmt.Errorf("waiting for interactive shell: %w", err)
	}
	if res.Degraded {
		s.logger.Warn("Shell output ended before it became interactive")
		s.Close()
		return fmt.Errorf("shell exited during startup: %w", ErrNotReady)
	}

	s.display([]byte(res.Output))
	s.display(startup.Buffered())

	pumpCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		cancel()
		return ErrSessionClosed
	}
	s.state = StateReady
	s.cancel = cancel
	s.mu.Unlock()

	go s.pumpRender(pumpCtx)

	s.logger.Info("Shell session ready", zap.Int("pid", proc.Pid()))
	return nil
}

// monitor closes the session when the process exits
func (s *Session) monitor() {
	err := s.proc.Wait()
	s.logger.Debug("Shell process exited", zap.Error(err))
	// let the broadcaster hand out the last chunks before the pty goes away
	select {
	case <-s.tee.Done():
	case <-time.After(time.Second):
	}
	s.Close()
}

func (s *Session) pumpRender(ctx context.Context) {
	for {
		chunk, err := s.render.Next(ctx)
		if err != nil {
			return
		}
		s.display(chunk)
	}
}

// display shows bytes on the attached terminal and keeps them for replay
func (s *Session) display(p []byte) {
	if len(p) == 0 {
		return
	}
	s.sinkMu.Lock()
	defer s.sinkMu.Unlock()

	_, _ = s.scrollback.Write(p)
	if s.sink == nil {
		return
	}
	if _, err := s.sink.Write(p); err != nil {
		s.logger.Debug("Terminal sink write failed, detaching", zap.Error(err))
		s.sink = nil
	}
}

// Write sends input to the shell verbatim
func (s *Session) Write(p []byte) (int, error) {
	s.mu.RLock()
	state, proc := s.state, s.proc
	s.mu.RUnlock()

	switch state {
	case StateReady:
	case StateClosed:
		return 0, ErrSessionClosed
	default:
		return 0, ErrNotReady
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return proc.Write(p)
}

// Terminal returns a writer that shows bytes on the attached terminal
// without sending them to the shell
func (s *Session) Terminal() io.Writer {
	return terminalWriter{s}
}

type terminalWriter struct{ s *Session }

func (w terminalWriter) Write(p []byte) (int, error) {
	b := make([]byte, len(p))
	copy(b, p)
	w.s.display(b)
	return len(p), nil
}

// Attach routes rendered output to w and returns the scrollback so the
// caller can repaint. A previously attached writer is replaced.
func (s *Session) Attach(w io.Writer) []byte {
	s.sinkMu.Lock()
	defer s.sinkMu.Unlock()

	s.sink = w
	return s.scrollback.Snapshot()
}

// Detach stops routing output to w if it is still the attached writer
func (s *Session) Detach(w io.Writer) {
	s.sinkMu.Lock()
	defer s.sinkMu.Unlock()

	if s.sink == w {
		s.sink = nil
	}
}

// Scrollback returns the most recent rendered output
func (s *Session) Scrollback() []byte {
	return s.scrollback.Snapshot()
}

// Resize forwards a new size to the terminal
func (s *Session) Resize(size Size) error {
	if size.Cols == 0 || size.Rows == 0 {
		return fmt.Errorf("invalid size %dx%d", size.Cols, size.Rows)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return ErrSessionClosed
	}
	s.size = size
	if s.proc == nil {
		return nil
	}
	return s.proc.Resize(size)
}

// AwaitMarker waits for a marker on the capture copy of the output
func (s *Session) AwaitMarker(ctx context.Context, kind marker.Kind) (marker.Result, error) {
	s.mu.RLock()
	parser := s.parser
	s.mu.RUnlock()

	if parser == nil {
		return marker.Result{Degraded: true}, ErrNotReady
	}
	return parser.AwaitMarker(ctx, kind)
}

// DrainCapture discards unread capture output and returns its size
func (s *Session) DrainCapture() int {
	s.mu.RLock()
	capture, parser := s.capture, s.parser
	s.mu.RUnlock()

	if capture == nil {
		return 0
	}
	n := capture.Drain()
	parser.Reset()
	return n
}

// Watch returns the subscription reserved for the URL watcher
func (s *Session) Watch() *stream.Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.watch
}

// State returns the readiness state
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Done is closed when the session has been closed
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Info returns a snapshot of the session
func (s *Session) Info() SessionInfo {
	s.mu.RLock()
	info := SessionInfo{
		ID:         s.ID,
		Shell:      s.cfg.Launch.Shell,
		WorkingDir: s.cfg.Launch.WorkingDir,
		Cols:       s.size.Cols,
		Rows:       s.size.Rows,
		State:      s.state.String(),
		StartedAt:  s.startedAt,
		Active:     s.state == StateReady,
	}
	if s.proc != nil {
		info.Pid = s.proc.Pid()
	}
	for _, sub := range []*stream.Subscription{s.render, s.capture, s.watch} {
		if sub != nil {
			info.Dropped += sub.Dropped()
		}
	}
	s.mu.RUnlock()

	s.sinkMu.Lock()
	info.Attached = s.sink != nil
	s.sinkMu.Unlock()
	return info
}

// Close kills the shell and releases the terminal. Safe to call repeatedly.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosed
		proc, tee, cancel := s.proc, s.tee, s.cancel
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if proc != nil {
			if err := proc.Kill(); err != nil {
				s.logger.Debug("Kill failed", zap.Error(err))
			}
			_ = proc.Close()
		}
		if tee != nil {
			tee.Close()
		}

		s.sinkMu.Lock()
		s.sink = nil
		s.sinkMu.Unlock()

		close(s.done)
		s.logger.Info("Shell session closed")
	})
}
