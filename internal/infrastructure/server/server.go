package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"

	apihttp "github.com/GriffinCanCode/observable/internal/api/http"
	"github.com/GriffinCanCode/observable/internal/api/middleware"
	"github.com/GriffinCanCode/observable/internal/api/ws"
	"github.com/GriffinCanCode/observable/internal/domain/archive"
	"github.com/GriffinCanCode/observable/internal/domain/managed"
	"github.com/GriffinCanCode/observable/internal/domain/objects"
	"github.com/GriffinCanCode/observable/internal/domain/topic"
	"github.com/GriffinCanCode/observable/internal/infrastructure/config"
	"github.com/GriffinCanCode/observable/internal/infrastructure/logging"
	"github.com/GriffinCanCode/observable/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/observable/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/observable/internal/sink/webhook"
)

const readHeaderTimeout = 10 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	http     *http.Server
	registry *managed.Context
	store    archive.Store
	archiver *archive.Archiver
	hub      *topic.Hub
	webhooks *webhook.Registry
	objects  *objects.Manager
	tracer   *tracing.Tracer
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics

	closeOnce sync.Once
}

// NewServer creates a new server instance. A nil logger is built from
// cfg.Logging.
func NewServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		var err error
		logger, err = logging.New(logging.FromLevel(cfg.Logging.Level, cfg.Logging.Development))
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	logger.Info("Initializing observable server",
		zap.String("port", cfg.Server.Port),
		zap.String("archive_backend", cfg.Archive.Backend),
		zap.String("archive_codec", cfg.Archive.Codec),
	)

	// Metrics first, everything else reports into them
	metrics := monitoring.NewMetrics()
	tracer := tracing.New("observable", logger)

	store, err := archive.Open(archive.Options{
		Backend:  cfg.Archive.Backend,
		Path:     cfg.Archive.Path,
		Codec:    cfg.Archive.Codec,
		Compress: cfg.Archive.Compress,
	})
	if err != nil {
		tracer.Close()
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	logger.Info("Archive opened", zap.String("path", cfg.Archive.Path))

	registry := managed.NewContext().WithLogger(logger).WithMetrics(metrics)
	archiver := archive.NewArchiver(store).WithLogger(logger).WithMetrics(metrics)
	hub := topic.NewHub(topic.Options{
		StatsWindow: cfg.Topics.StatsWindow,
		EvalTimeout: cfg.Topics.EvalTimeout,
	}).WithLogger(logger).WithMetrics(metrics)

	defaults := webhook.DefaultConfig()
	defaults.Timeout = cfg.Webhook.Timeout
	defaults.Retries = cfg.Webhook.Retries
	defaults.QueueSize = cfg.Webhook.QueueSize
	defaults.RequestsPerSecond = cfg.Webhook.RequestsPerSecond
	webhooks := webhook.NewRegistry(hub, defaults, logger, metrics)

	objectManager := objects.NewManager(registry, archiver, hub).WithLogger(logger)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	// Topic names contain slashes and travel escaped in a single segment
	router.UseRawPath = true
	router.UnescapePathValues = true

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig().WithOrigins(cfg.CORS.Origins)))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
			IdleTTL:           cfg.RateLimit.IdleTTL,
		}))
	}

	handlers := apihttp.NewHandlers(objectManager, hub, webhooks, metrics)
	handlers.Register(router)

	wsHandler := ws.NewHandler(hub, logger, metrics)
	router.GET("/stream", wsHandler.HandleConnection)

	logger.Info("Server initialized successfully")

	return &Server{
		router:   router,
		http:     &http.Server{Handler: router, ReadHeaderTimeout: readHeaderTimeout},
		registry: registry,
		store:    store,
		archiver: archiver,
		hub:      hub,
		webhooks: webhooks,
		objects:  objectManager,
		tracer:   tracer,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}, nil
}

// Router exposes the gin engine, mainly for tests
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run listens on the configured address and serves until Shutdown
func (s *Server) Run() error {
	addr := net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln, at most MaxConnections at a time
func (s *Server) Serve(ln net.Listener) error {
	if limit := s.config.Server.MaxConnections; limit > 0 {
		ln = netutil.LimitListener(ln, limit)
	}

	s.logger.Info("Starting HTTP server",
		zap.String("addr", ln.Addr().String()),
		zap.Int("max_connections", s.config.Server.MaxConnections),
	)

	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones until ctx
// expires, then tears the domain down. Webhooks drain before the hub
// closes so queued messages still go out.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		s.logger.Info("Shutting down server...")

		if e := s.http.Shutdown(ctx); e != nil {
			s.logger.Error("HTTP shutdown incomplete", zap.Error(e))
			err = fmt.Errorf("failed to shut down http server: %w", e)
		}

		s.webhooks.Close()
		s.objects.Close()
		s.archiver.Close()
		if e := s.store.Close(); e != nil {
			s.logger.Error("Failed to close archive", zap.Error(e))
			err = errors.Join(err, fmt.Errorf("failed to close archive: %w", e))
		}
		s.hub.Close()
		s.tracer.Close()

		s.logger.Info("Server stopped", zap.Int("managed_objects", s.registry.Stats().Registered))
		_ = s.logger.Sync()
	})
	return err
}
