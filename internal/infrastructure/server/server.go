package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	api "github.com/GriffinCanCode/AgentOS/termsync/internal/api/http"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/api/ws"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/infrastructure/interpreter"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/infrastructure/tempfs"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/launcher"
	systemProvider "github.com/GriffinCanCode/AgentOS/termsync/internal/providers/system"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/providers/terminal"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/service"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router    *gin.Engine
	http      *http.Server
	terminals *terminal.Provider
	registry  *service.Registry
	tracer    *tracing.Tracer
	logger    *logging.Logger
	config    *config.Config
	metrics   *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return New(cfg, logger)
}

// New creates a server that logs through logger
func New(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	logger.Info("Initializing termsync server",
		zap.String("addr", cfg.Address()),
		zap.Duration("poll_interval", cfg.Sync.PollInterval),
		zap.Bool("notify", cfg.Sync.Notify),
	)

	// Metrics go to a private registry so several servers can coexist in tests
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(promRegistry)
	tracer := tracing.New("termsync", logger.Component("tracing"))

	syncCfg := cfg.SyncRunner()
	if syncCfg.HelperScript == "" {
		path, err := launcher.Install(launcher.DefaultDir())
		if err != nil {
			tracer.Close()
			return nil, err
		}
		syncCfg.HelperScript = path
	}
	logger.Info("Helper launcher ready", zap.String("path", syncCfg.HelperScript))

	signals, err := tempfs.New(cfg.Sync.SignalDir)
	if err != nil {
		tracer.Close()
		return nil, err
	}
	if cfg.Sync.SweepAge > 0 {
		removed, err := signals.Sweep(time.Now().Add(-cfg.Sync.SweepAge))
		if err != nil {
			logger.Warn("Failed to sweep signal files", zap.Error(err))
		} else if removed > 0 {
			logger.Info("Removed stale signal files", zap.Int("count", removed), zap.String("dir", signals.Root()))
		}
	}

	resolver := interpreter.New(cfg.Sync.Interpreter, cfg.Sync.InterpreterCandidates, logger.Component("interpreter"))

	spawnLogger := logger.Component("terminal")
	spawn := resilience.New("pty", resilience.Settings{
		OnStateChange: func(name string, from, to resilience.State) {
			spawnLogger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})

	manager := terminal.NewManager(cfg.TerminalDefaults(), logger.Component("terminal")).
		WithObserver(metrics).
		WithBreaker(spawn)
	terminals := terminal.NewProvider(manager, signals, resolver, syncCfg).
		WithLogger(logger.Component("terminal")).
		WithMetrics(metrics).
		WithTracer(tracer)

	registry := service.NewRegistry(logger.Component("registry"), metrics)
	for _, provider := range []service.Provider{
		terminals,
		systemProvider.NewProvider(syncCfg.HelperScript, resolver, signals, metrics),
	} {
		if err := registry.Register(provider); err != nil {
			logger.Warn("Failed to register provider", zap.Error(err))
		}
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	routes := api.RouteConfig{RateLimitEnabled: cfg.RateLimit.Enabled}
	if cfg.RateLimit.Enabled {
		routes.RateLimit = middleware.DefaultRateLimitConfig()
		routes.RateLimit.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		routes.RateLimit.Burst = cfg.RateLimit.Burst
		logger.Info("Per-session rate limiting enabled",
			zap.Float64("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
	}

	handlers := api.NewHandlers(terminals, registry, metrics, logger.Component("http"))
	stream := ws.NewHandler(manager, metrics, logger.Component("ws"))
	api.Routes(router, handlers, stream.Stream, routes)

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})))

	logger.Info("Server initialized successfully")

	return &Server{
		router: router,
		http: &http.Server{
			Addr:              cfg.Address(),
			Handler:           compress(router),
			ReadHeaderTimeout: 10 * time.Second,
		},
		terminals: terminals,
		registry:  registry,
		tracer:    tracer,
		logger:    logger,
		config:    cfg,
		metrics:   metrics,
	}, nil
}

// compress gzips responses except WebSocket upgrades, which need the raw
// connection
func compress(next http.Handler) http.Handler {
	gz := gzhttp.GzipHandler(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) {
			next.ServeHTTP(w, r)
			return
		}
		gz.ServeHTTP(w, r)
	})
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Terminals returns the terminal provider
func (s *Server) Terminals() *terminal.Provider {
	return s.terminals
}

// Run starts the HTTP server and blocks until it is shut down
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close stops accepting requests, kills every terminal session and flushes
// the logger. Requests waiting on commands are released by the session kill.
func (s *Server) Close(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	s.terminals.Close()
	err := s.http.Shutdown(ctx)
	if err != nil {
		s.logger.Error("Failed to shut down HTTP server", zap.Error(err))
	}

	s.tracer.Close()
	_ = s.logger.Sync()

	if err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
