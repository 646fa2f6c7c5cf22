package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/shellbridge/internal/api/middleware"
	handlers "github.com/GriffinCanCode/shellbridge/internal/http"
	"github.com/GriffinCanCode/shellbridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/shellbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/shellbridge/internal/logging"
	"github.com/GriffinCanCode/shellbridge/internal/providers/proxy"
	"github.com/GriffinCanCode/shellbridge/internal/providers/terminal"
	"github.com/GriffinCanCode/shellbridge/internal/service"
	"github.com/GriffinCanCode/shellbridge/internal/ws"
)

// Deps overrides components NewServer would otherwise build
type Deps struct {
	// Launcher starts shells; defaults to a PTY launcher
	Launcher terminal.Launcher
	// Registry collects metrics; defaults to a fresh registry with the Go
	// and process collectors
	Registry *prometheus.Registry
	Logger   *logging.Logger
}

// Server wraps the HTTP server and dependencies
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	sessions   *terminal.Manager
	registry   *service.Registry
	logger     *logging.Logger
	config     *config.Config
	metrics    *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		var err error
		logger, err = logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	logger.Info("Initializing shell bridge",
		zap.String("addr", cfg.Address()),
		zap.String("shell", cfg.Shell.Path),
		zap.Duration("exec_timeout", cfg.Exec.Timeout),
		zap.Bool("remote_proxy", cfg.Proxy.BaseURL != ""),
	)

	// Initialize metrics first (needed by other components)
	reg := deps.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	metrics := monitoring.NewMetrics(reg)

	urlPattern, err := terminal.CompileURLPattern(cfg.Watcher.URLPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid url pattern: %w", err)
	}

	launcher := deps.Launcher
	if launcher == nil {
		launcher = terminal.NewPTYLauncher(logger.Component("pty"))
	}

	sessions := terminal.NewManager(launcher, terminal.ManagerConfig{
		Session: terminal.SessionConfig{
			Launch: terminal.LaunchSpec{
				Shell:      cfg.Shell.Path,
				Args:       cfg.Shell.Args,
				WorkingDir: cfg.Shell.WorkingDir,
				Size:       terminal.Size{Cols: cfg.Shell.Cols, Rows: cfg.Shell.Rows},
			},
		},
		URLPattern:     urlPattern,
		URLBufferBytes: cfg.Watcher.URLBufferBytes,
		Metrics:        metrics,
		Logger:         logger.Component("sessions"),
	})

	runner, executor := buildProxy(cfg.Proxy, logger)

	coordinator := terminal.NewCoordinator(sessions, executor, terminal.CoordinatorConfig{
		Timeout: cfg.Exec.Timeout,
		Metrics: metrics,
		Logger:  logger.Component("coordinator"),
	})

	// Register service providers
	serviceRegistry := service.NewRegistry()
	registerProviders(serviceRegistry, logger, terminal.NewProvider(sessions, coordinator), proxy.NewProvider(executor))

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog(logger.Component("http")))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		limits := middleware.DefaultRateLimitConfig()
		limits.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		limits.Burst = cfg.RateLimit.Burst
		limits.SkipPaths = append(limits.SkipPaths, "/terminal")
		router.Use(middleware.RateLimit(limits))
	}

	// Register routes
	handlers.NewHandlers(sessions, coordinator, serviceRegistry, runner, metrics, logger.Component("api")).Register(router)

	wsHandler := ws.NewHandler(sessions, coordinator, ws.Config{
		ProxyTimeout: cfg.Proxy.Timeout,
		Metrics:      metrics,
		Logger:       logger.Component("ws"),
	})
	router.GET("/terminal", wsHandler.HandleConnection)

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	logger.Info("Server initialized successfully")

	return &Server{
		router: router,
		httpServer: &http.Server{
			Addr:              cfg.Address(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		sessions: sessions,
		registry: serviceRegistry,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}, nil
}

// buildProxy returns the runner serving /api/proxy and the executor used for
// intercepted commands: a remote client when a base URL is configured,
// otherwise the runner in-process.
func buildProxy(cfg config.ProxyConfig, logger *logging.Logger) (*proxy.Runner, proxy.Executor) {
	clientCfg := proxy.DefaultClientConfig()
	clientCfg.Timeout = cfg.Timeout
	clientCfg.Retries = cfg.Retries
	clientCfg.RequestsPerSecond = cfg.RequestsPerSecond

	runner := proxy.NewRunner(clientCfg, logger.Component("proxy-runner"))
	if cfg.BaseURL == "" {
		return runner, proxy.NewLocalExecutor(runner)
	}

	clientCfg.BaseURL = cfg.BaseURL
	return runner, proxy.NewClient(clientCfg, logger.Component("proxy-client"))
}

func registerProviders(registry *service.Registry, logger *logging.Logger, providers ...service.Provider) {
	for _, p := range providers {
		def := p.Definition()
		if err := registry.Register(p); err != nil {
			logger.Warn("Failed to register provider", zap.String("service", def.ID), zap.Error(err))
			continue
		}
		logger.Debug("Registered provider", zap.String("service", def.ID), zap.Int("tools", len(def.Tools)))
	}

	stats := registry.Stats()
	logger.Info("Service providers registered",
		zap.Any("services", stats["total_services"]),
		zap.Any("tools", stats["total_tools"]),
	)
}

// Handler exposes the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Sessions returns the session manager
func (s *Server) Sessions() *terminal.Manager {
	return s.sessions
}

// Run starts the HTTP server and blocks until it stops. A graceful Shutdown
// is not an error.
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, kills every session and flushes the
// logger
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		s.logger.Error("HTTP shutdown incomplete", zap.Error(err))
	}
	s.sessions.Shutdown()
	s.logger.Info("Sessions closed")

	s.logger.Close()
	return err
}
