package terminal

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"sync"

	"github.com/GriffinCanCode/shellbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/shellbridge/internal/shared/id"
	"go.uber.org/zap"
)

// ManagerConfig holds defaults applied to every new session
type ManagerConfig struct {
	Session        SessionConfig
	URLPattern     *regexp.Regexp
	URLBufferBytes int
	Clock          Clock
	Metrics        *monitoring.Metrics
	Logger         *zap.Logger
}

// CreateOptions overrides defaults for one session
type CreateOptions struct {
	Shell      string
	Args       []string
	WorkingDir string
	Size       Size
	Env        map[string]string
}

// Manager owns the live sessions and the shared URL slot
type Manager struct {
	sessions sync.Map // map[string]*Session
	launcher Launcher
	cfg      ManagerConfig
	urls     *DetectedURL
	logger   *zap.Logger
}

// NewManager creates a session manager
func NewManager(launcher Launcher, cfg ManagerConfig) *Manager {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Manager{
		launcher: launcher,
		cfg:      cfg,
		urls:     NewDetectedURL(cfg.Clock),
		logger:   cfg.Logger,
	}
}

// CreateSession starts a shell and returns once it is interactive
func (m *Manager) CreateSession(ctx context.Context, opts CreateOptions) (*Session, error) {
	cfg := m.cfg.Session
	spec := cfg.Launch
	if opts.Shell != "" {
		spec.Shell = opts.Shell
		spec.Args = nil
	}
	if opts.Args != nil {
		spec.Args = opts.Args
	}
	if opts.WorkingDir != "" {
		spec.WorkingDir = opts.WorkingDir
	}
	if opts.Size.Cols > 0 && opts.Size.Rows > 0 {
		spec.Size = opts.Size
	}
	if len(opts.Env) > 0 {
		env := make(map[string]string, len(spec.Env)+len(opts.Env))
		for k, v := range spec.Env {
			env[k] = v
		}
		for k, v := range opts.Env {
			env[k] = v
		}
		spec.Env = env
	}
	applyShellDefaults(&spec)
	cfg.Launch = spec

	sessionID := id.NewSessionID().String()
	session := NewSession(sessionID, cfg, m.launcher, m.cfg.Clock, m.cfg.Metrics, m.logger)
	if err := session.Init(ctx); err != nil {
		return nil, err
	}

	m.sessions.Store(sessionID, session)
	m.cfg.Metrics.SessionStarted()

	watchCtx, stopWatch := context.WithCancel(context.Background())
	watcher := NewURLWatcher(session.Watch(), m.urls, WatcherConfig{
		Pattern:   m.cfg.URLPattern,
		MaxBytes:  m.cfg.URLBufferBytes,
		SessionID: sessionID,
		Metrics:   m.cfg.Metrics,
		Logger:    m.logger,
	})
	go watcher.Run(watchCtx)
	go m.monitor(session, stopWatch)

	return session, nil
}

func applyShellDefaults(spec *LaunchSpec) {
	if spec.Shell == "" {
		spec.Shell = os.Getenv("SHELL")
		if spec.Shell == "" {
			spec.Shell = "/bin/bash"
		}
	}
	if spec.WorkingDir == "" {
		spec.WorkingDir = os.Getenv("HOME")
		if spec.WorkingDir == "" {
			spec.WorkingDir = os.TempDir()
		}
	}
}

// monitor forgets a session once it closes
func (m *Manager) monitor(session *Session, stopWatch context.CancelFunc) {
	<-session.Done()
	stopWatch()
	m.sessions.Delete(session.ID)
	m.cfg.Metrics.SessionEnded()
}

// Get returns a live session
func (m *Manager) Get(sessionID string) (*Session, error) {
	value, ok := m.sessions.Load(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return value.(*Session), nil
}

// Channel implements ChannelLookup
func (m *Manager) Channel(sessionID string) (Channel, error) {
	return m.Get(sessionID)
}

// Write sends raw input to a session
func (m *Manager) Write(sessionID string, input []byte) error {
	session, err := m.Get(sessionID)
	if err != nil {
		return err
	}
	_, err = session.Write(input)
	return err
}

// Resize changes terminal dimensions
func (m *Manager) Resize(sessionID string, size Size) error {
	session, err := m.Get(sessionID)
	if err != nil {
		return err
	}
	return session.Resize(size)
}

// Kill terminates a session
func (m *Manager) Kill(sessionID string) error {
	session, err := m.Get(sessionID)
	if err != nil {
		return err
	}
	session.Close()
	m.sessions.Delete(sessionID)
	return nil
}

// ListSessions returns all live sessions, oldest first
func (m *Manager) ListSessions() []SessionInfo {
	sessions := []SessionInfo{}
	m.sessions.Range(func(_, value interface{}) bool {
		sessions = append(sessions, value.(*Session).Info())
		return true
	})
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ID < sessions[j].ID
	})
	return sessions
}

// GetSession retrieves session info
func (m *Manager) GetSession(sessionID string) (*SessionInfo, error) {
	session, err := m.Get(sessionID)
	if err != nil {
		return nil, err
	}
	info := session.Info()
	return &info, nil
}

// DetectedURL returns the slot shared by all watchers
func (m *Manager) DetectedURL() *DetectedURL {
	return m.urls
}

// Shutdown closes every session
func (m *Manager) Shutdown() {
	m.sessions.Range(func(key, value interface{}) bool {
		value.(*Session).Close()
		m.sessions.Delete(key)
		return true
	})
}
