package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/shellbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/shellbridge/internal/providers/proxy"
	"github.com/GriffinCanCode/shellbridge/internal/shared/id"
	"github.com/GriffinCanCode/shellbridge/internal/shell/marker"
	"github.com/GriffinCanCode/shellbridge/internal/shell/sanitize"
	"go.uber.org/zap"
)

// Channel is the part of a session the coordinator drives
type Channel interface {
	io.Writer
	AwaitMarker(ctx context.Context, kind marker.Kind) (marker.Result, error)
	DrainCapture() int
}

// ChannelLookup resolves session ids
type ChannelLookup interface {
	Channel(sessionID string) (Channel, error)
}

// Result is the outcome of one coordinated execution
type Result struct {
	ExecutionID string        `json:"execution_id"`
	SessionID   string        `json:"session_id"`
	Command     string        `json:"command"`
	Output      string        `json:"output"`
	ExitCode    int           `json:"exit_code"`
	Proxy       bool          `json:"proxy"`
	Degraded    bool          `json:"degraded"`
	Duration    time.Duration `json:"duration"`
}

// ExecutionInfo describes the execution currently active in a session
type ExecutionInfo struct {
	ExecutionID string    `json:"execution_id"`
	SessionID   string    `json:"session_id"`
	Command     string    `json:"command"`
	StartedAt   time.Time `json:"started_at"`
}

type executionState struct {
	info ExecutionInfo
	done chan struct{}

	cancelOnce sync.Once
	cancelFn   func()
}

func (e *executionState) stop() {
	e.cancelOnce.Do(e.cancelFn)
}

// Coordinator runs commands against sessions, one at a time per session.
// A new request cancels the active one and waits for it to settle first.
type Coordinator struct {
	sessions ChannelLookup
	executor proxy.Executor
	clock    Clock
	timeout  time.Duration
	metrics  *monitoring.Metrics
	logger   *zap.Logger

	mu     sync.Mutex
	active map[string]*executionState
}

// CoordinatorConfig holds optional coordinator settings
type CoordinatorConfig struct {
	// Timeout bounds each native execution; zero waits for the marker forever
	Timeout time.Duration
	Clock   Clock
	Metrics *monitoring.Metrics
	Logger  *zap.Logger
}

// NewCoordinator creates a coordinator over sessions and a proxy executor
func NewCoordinator(sessions ChannelLookup, executor proxy.Executor, cfg CoordinatorConfig) *Coordinator {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Coordinator{
		sessions: sessions,
		executor: executor,
		clock:    cfg.Clock,
		timeout:  cfg.Timeout,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		active:   make(map[string]*executionState),
	}
}

// Execute runs command in the session. onCancel, if set, is called when a
// later request supersedes this one. A nonzero exit code is a result, not
// an error. A superseded or expired execution returns its partial result
// together with ErrExecutionCanceled or marker.ErrTimeout.
func (c *Coordinator) Execute(ctx context.Context, sessionID, command string, onCancel func()) (*Result, error) {
	ch, err := c.sessions.Channel(sessionID)
	if err != nil {
		return nil, err
	}

	kind, cmd := proxy.Classify(command)

	execCtx, cancelExec := context.WithCancel(ctx)
	defer cancelExec()
	if c.timeout > 0 && !kind.IsProxy() {
		var cancelTimeout context.CancelFunc
		execCtx, cancelTimeout = context.WithTimeout(execCtx, c.timeout)
		defer cancelTimeout()
	}

	state := &executionState{
		info: ExecutionInfo{
			ExecutionID: id.NewExecutionID().String(),
			SessionID:   sessionID,
			Command:     command,
			StartedAt:   c.clock.Now(),
		},
		done: make(chan struct{}),
		cancelFn: func() {
			cancelExec()
			if onCancel != nil {
				onCancel()
			}
		},
	}

	if err := c.install(ctx, state); err != nil {
		return nil, err
	}
	defer c.settle(state)

	logger := c.logger.With(
		zap.String("session_id", sessionID),
		zap.String("execution_id", state.info.ExecutionID))

	timer := monitoring.NewTimer(c.metrics, kind.String())
	var res *Result
	if kind.IsProxy() {
		res = c.runProxy(execCtx, cmd, logger)
		err = execCtx.Err()
	} else {
		res, err = c.runNative(execCtx, ch, command, logger)
	}

	if res != nil {
		res.ExecutionID = state.info.ExecutionID
		res.SessionID = sessionID
		res.Command = command
		res.Duration = c.clock.Now().Sub(state.info.StartedAt)
	}

	switch {
	case err == nil:
		timer.Stop(outcomeLabel(res))
		return res, nil
	case errors.Is(err, marker.ErrTimeout):
		timer.Stop("timeout")
		logger.Warn("Execution timed out", zap.Duration("timeout", c.timeout))
		return res, err
	case errors.Is(err, context.Canceled) && ctx.Err() == nil:
		timer.Stop("canceled")
		logger.Info("Execution superseded")
		return res, ErrExecutionCanceled
	default:
		timer.Stop("error")
		return res, err
	}
}

// install waits until no execution is active for the session, then
// registers state. Each superseded execution is canceled exactly once.
func (c *Coordinator) install(ctx context.Context, state *executionState) error {
	sessionID := state.info.SessionID
	for {
		c.mu.Lock()
		prev, ok := c.active[sessionID]
		if !ok {
			c.active[sessionID] = state
			c.mu.Unlock()
			return nil
		}
		c.mu.Unlock()

		prev.stop()
		select {
		case <-prev.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Coordinator) settle(state *executionState) {
	c.mu.Lock()
	if c.active[state.info.SessionID] == state {
		delete(c.active, state.info.SessionID)
	}
	c.mu.Unlock()
	close(state.done)
}

func (c *Coordinator) runProxy(ctx context.Context, cmd proxy.Command, logger *zap.Logger) *Result {
	outcome, err := c.executor.Execute(ctx, cmd)
	if err != nil {
		logger.Warn("Proxy command failed", zap.String("command", cmd.Command), zap.Error(err))
		return &Result{Output: "Error: " + err.Error(), ExitCode: 1, Proxy: true}
	}
	return &Result{
		Output:   sanitize.Sanitize(outcome.Output),
		ExitCode: outcome.ExitCode,
		Proxy:    true,
	}
}

// runNative interrupts whatever the shell is doing, waits for a fresh
// prompt, then types the command and collects output up to its exit marker
func (c *Coordinator) runNative(ctx context.Context, ch Channel, command string, logger *zap.Logger) (*Result, error) {
	ch.DrainCapture()

	if _, err := ch.Write([]byte{keyInterrupt}); err != nil {
		return nil, fmt.Errorf("interrupt shell: %w", err)
	}

	ready, err := ch.AwaitMarker(ctx, marker.KindPrompt)
	if err != nil {
		return &Result{Degraded: true, ExitCode: ready.ExitCode}, err
	}
	if ready.Degraded {
		logger.Warn("Shell output ended while waiting for a prompt")
		return &Result{Degraded: true, ExitCode: ready.ExitCode, Output: sanitize.Sanitize(ready.Output)}, nil
	}

	if _, err := ch.Write([]byte(command + "\n")); err != nil {
		return nil, fmt.Errorf("write command: %w", err)
	}

	res, err := ch.AwaitMarker(ctx, marker.KindExit)
	out := &Result{
		Output:   stripEcho(sanitize.Sanitize(res.Output), command),
		ExitCode: res.ExitCode,
		Degraded: res.Degraded,
	}
	if err == nil && res.Degraded {
		logger.Warn("Shell output ended before the exit marker", zap.Int("exit_code", res.ExitCode))
	}
	return out, err
}

// stripEcho drops the shell's echo of the typed command, which arrives
// behind the prompt on the first captured line
func stripEcho(output, command string) string {
	command = strings.TrimSpace(command)
	if command == "" {
		return output
	}
	first, rest, _ := strings.Cut(output, "\n")
	if strings.HasSuffix(strings.TrimSpace(first), command) {
		return rest
	}
	return output
}

func outcomeLabel(res *Result) string {
	switch {
	case res.Degraded:
		return "degraded"
	case res.ExitCode != 0:
		return "nonzero"
	default:
		return "ok"
	}
}

// Cancel cancels the active execution of a session, if any
func (c *Coordinator) Cancel(sessionID string) bool {
	c.mu.Lock()
	state, ok := c.active[sessionID]
	c.mu.Unlock()

	if ok {
		state.stop()
	}
	return ok
}

// Active reports the execution currently running in a session
func (c *Coordinator) Active(sessionID string) (ExecutionInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.active[sessionID]
	if !ok {
		return ExecutionInfo{}, false
	}
	return state.info, true
}
