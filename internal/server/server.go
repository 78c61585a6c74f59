package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/marketscript/backend/internal/api/http"
	"github.com/marketscript/backend/internal/api/middleware"
	"github.com/marketscript/backend/internal/capabilities"
	"github.com/marketscript/backend/internal/infrastructure/config"
	"github.com/marketscript/backend/internal/infrastructure/logging"
	"github.com/marketscript/backend/internal/infrastructure/monitoring"
	"github.com/marketscript/backend/internal/providers/marketdata"
	"github.com/marketscript/backend/internal/sandbox"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	router   *gin.Engine
	http     *http.Server
	executor *sandbox.Executor
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
}

// New assembles the service from configuration.
func New(cfg *config.Config) (*Server, error) {
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger = logging.NewDefault()
	}

	logger.Info("Initializing marketscript server",
		zap.String("port", cfg.Server.Port),
		zap.String("provider_mode", cfg.Provider.Mode),
		zap.Int("sandbox_memory_mb", cfg.Sandbox.MemoryLimitMB),
		zap.Int("sandbox_timeout_ms", cfg.Sandbox.TimeoutMS),
	)

	metrics := monitoring.NewMetrics(nil)

	provider, err := newProvider(cfg, metrics, logger)
	if err != nil {
		return nil, err
	}

	surface := capabilities.NewSurface(provider,
		capabilities.WithRecorder(metrics),
		capabilities.WithLogger(logger),
	)

	executor := sandbox.NewExecutor(surface,
		sandbox.Limits{
			MemoryLimitMB: cfg.Sandbox.MemoryLimitMB,
			Timeout:       cfg.Sandbox.Timeout(),
		},
		sandbox.WithExecutorLogger(logger),
		sandbox.WithExecutorRecorder(metrics),
		sandbox.WithMaxConcurrent(cfg.Sandbox.MaxConcurrent),
	)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	router.Use(monitoring.Middleware(metrics))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(executor, cfg.Sandbox, logger)
	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.POST("/execute", handlers.Execute)

	return &Server{
		router:   router,
		executor: executor,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}, nil
}

// newProvider selects the market data backend from configuration.
func newProvider(cfg *config.Config, metrics *monitoring.Metrics, logger *logging.Logger) (marketdata.Provider, error) {
	switch cfg.Provider.Mode {
	case "http":
		return marketdata.NewClient(marketdata.ClientConfig{
			BaseURL: cfg.Provider.BaseURL,
			APIKey:  cfg.Provider.APIKey,
		}, metrics, logger), nil
	case "static":
		if cfg.Provider.CatalogPath != "" {
			return marketdata.NewStaticFromFile(cfg.Provider.CatalogPath)
		}
		return marketdata.NewStatic(marketdata.DefaultCatalog()), nil
	default:
		return nil, fmt.Errorf("unknown provider mode %q", cfg.Provider.Mode)
	}
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Server listening", zap.String("addr", addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down")
	defer func() {
		_ = s.logger.Sync()
	}()
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
