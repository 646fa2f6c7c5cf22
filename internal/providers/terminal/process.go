package terminal

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/creack/pty"
	"go.uber.org/zap"
)

// Size is a terminal size in character cells
type Size struct {
	Cols uint16 `json:"cols"`
	Rows uint16 `json:"rows"`
}

// Process is a running shell attached to a terminal
type Process interface {
	io.ReadWriteCloser
	Resize(size Size) error
	// Wait blocks until the process exits; safe to call more than once
	Wait() error
	Kill() error
	Pid() int
}

// LaunchSpec describes the shell to start
type LaunchSpec struct {
	Shell      string
	Args       []string
	WorkingDir string
	Env        map[string]string
	Size       Size
}

// Launcher starts shell processes with the marker protocol enabled
type Launcher interface {
	Launch(ctx context.Context, spec LaunchSpec) (Process, error)
}

// bashRC makes bash emit the marker protocol: an exit and a prompt marker
// before every prompt, and one interactive marker once startup is done
const bashRC = `__shellbridge_markers() {
  local code=$?
  printf '\033]654;exit=%d:%d\007\033]654;prompt\007' "$code" "$$"
}
PROMPT_COMMAND=__shellbridge_markers
PS1='\w \$ '
printf '\033]654;interactive\007'
`

const zshRC = `precmd() {
  local code=$?
  printf '\033]654;exit=%d:%d\007\033]654;prompt\007' "$code" "$$"
}
PS1='%~ %# '
printf '\033]654;interactive\007'
`

// PTYLauncher starts shells on a pseudo-terminal. bash and zsh get a
// generated startup file that emits markers; any other shell is expected to
// speak the protocol itself when given spec.Args.
type PTYLauncher struct {
	logger *zap.Logger
}

// NewPTYLauncher creates a launcher
func NewPTYLauncher(logger *zap.Logger) *PTYLauncher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PTYLauncher{logger: logger}
}

// Launch starts the shell described by spec
func (l *PTYLauncher) Launch(ctx context.Context, spec LaunchSpec) (Process, error) {
	if spec.Shell == "" {
		return nil, fmt.Errorf("no shell configured")
	}

	rcDir, err := os.MkdirTemp("", "shellbridge-rc-")
	if err != nil {
		return nil, fmt.Errorf("failed to create rc dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(rcDir) }

	args, env, err := markerArgs(spec, rcDir)
	if err != nil {
		cleanup()
		return nil, err
	}

	cmd := exec.Command(spec.Shell, args...)
	cmd.Dir = spec.WorkingDir
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")
	cmd.Env = append(cmd.Env, env...)
	for key, value := range spec.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, value))
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: spec.Size.Rows, Cols: spec.Size.Cols})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to start PTY: %w", err)
	}

	l.logger.Debug("Shell started",
		zap.String("shell", spec.Shell),
		zap.Strings("args", args),
		zap.Int("pid", cmd.Process.Pid))

	return &ptyProcess{cmd: cmd, ptmx: ptmx, cleanup: cleanup}, nil
}

// markerArgs returns the arguments and extra environment that turn on the
// marker protocol for the shell in spec
func markerArgs(spec LaunchSpec, rcDir string) ([]string, []string, error) {
	switch filepath.Base(spec.Shell) {
	case "bash":
		rc := filepath.Join(rcDir, "bashrc")
		if err := os.WriteFile(rc, []byte(bashRC), 0o600); err != nil {
			return nil, nil, fmt.Errorf("failed to write rcfile: %w", err)
		}
		args := append([]string{"--noprofile", "--rcfile", rc, "-i"}, spec.Args...)
		return args, nil, nil
	case "zsh":
		if err := os.WriteFile(filepath.Join(rcDir, ".zshrc"), []byte(zshRC), 0o600); err != nil {
			return nil, nil, fmt.Errorf("failed to write zshrc: %w", err)
		}
		args := append([]string{"-i"}, spec.Args...)
		return args, []string{"ZDOTDIR=" + rcDir}, nil
	default:
		return spec.Args, nil, nil
	}
}

type ptyProcess struct {
	cmd     *exec.Cmd
	ptmx    *os.File
	cleanup func()

	waitOnce  sync.Once
	waitErr   error
	closeOnce sync.Once
}

func (p *ptyProcess) Read(b []byte) (int, error)  { return p.ptmx.Read(b) }
func (p *ptyProcess) Write(b []byte) (int, error) { return p.ptmx.Write(b) }

func (p *ptyProcess) Resize(size Size) error {
	return pty.Setsize(p.ptmx, &pty.Winsize{Rows: size.Rows, Cols: size.Cols})
}

func (p *ptyProcess) Wait() error {
	p.waitOnce.Do(func() {
		p.waitErr = p.cmd.Wait()
	})
	return p.waitErr
}

func (p *ptyProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

func (p *ptyProcess) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *ptyProcess) Close() error {
	var err error
	p.closeOnce.Do(func() {
		err = p.ptmx.Close()
		p.cleanup()
	})
	return err
}
