package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"

	"findecoder/internal/analysis"
	"findecoder/internal/config"
	apierrors "findecoder/internal/errors"
	"findecoder/internal/infrastructure"
	"findecoder/internal/ingest"
	custommw "findecoder/internal/middleware"
	"findecoder/internal/prompt"
	"findecoder/internal/report"
	"findecoder/internal/services"
	handlers "findecoder/internal/transport/http"
	ws "findecoder/internal/websocket"
)

// Version is the build version, overridable at link time.
var Version = "dev"

// Application is the composition root: configuration, observability, the
// decode pipeline and the HTTP server, wired once at startup.
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	Router        *chi.Mux
	Server        *http.Server
	Hub           *ws.Hub
	Store         *report.Store
	DecodeService *services.DecodeService
	HealthService *services.HealthService
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.PipelineMetrics

	upgrader websocket.Upgrader
}

// unconfiguredAnalyzer stands in when no API key is set. Every decode is
// assembled degraded rather than refused.
type unconfiguredAnalyzer struct{}

func (unconfiguredAnalyzer) Analyze(ctx context.Context, prompt string) (string, error) {
	return "", fmt.Errorf("analysis client not configured")
}

// NewApplication builds the application from environment configuration.
func NewApplication(ctx context.Context) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("application starting",
		slog.String("version", Version),
		slog.Int("port", cfg.Server.Port))

	providers, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	metrics, err := infrastructure.CreatePipelineMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}

	hub := ws.NewHub(logger)
	store := report.NewStore(cfg.Analysis.ReportTTL, logger)

	// The key is read from the environment and handed to the SDK; it is
	// never logged and never written anywhere.
	var analyzer services.Analyzer
	var healthAnalyzer services.Analyzer
	if cfg.Analysis.APIKey != "" {
		generator, err := analysis.NewGeminiGenerator(ctx, cfg.Analysis.APIKey, cfg.Analysis.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to create analysis generator: %w", err)
		}
		client := analysis.NewClient(
			generator,
			cfg.Analysis.MaxRetries,
			cfg.Analysis.RetryBaseDelay,
			cfg.Analysis.RequestTimeout(),
			logger,
		)
		client.OnRetry(metrics.RecordAnalysisRetry)
		analyzer = client
		healthAnalyzer = client
	} else {
		logger.Warn("no analysis API key configured, reports will be degraded")
		analyzer = unconfiguredAnalyzer{}
	}

	decodeService := services.NewDecodeService(
		ingest.NewIngestor(cfg.Upload.MaxUploadSize, logger),
		prompt.NewBuilder(cfg.Upload.MaxPromptRows),
		analyzer,
		report.NewAssembler(logger),
		store,
		hub,
		metrics,
		logger,
	)
	healthService := services.NewHealthService(Version, hub, healthAnalyzer, logger)

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		Hub:           hub,
		Store:         store,
		DecodeService: decodeService,
		HealthService: healthService,
		OTelProviders: providers,
		Metrics:       metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.Security.AllowedOrigins),
		},
	}

	app.Router = app.setupRouter()
	app.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        app.Router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	return app, nil
}

// setupRouter assembles the middleware chain and mounts all routes.
func (a *Application) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	errorHandler := apierrors.NewErrorHandler(a.Logger, false)
	validator := custommw.NewValidationMiddleware(a.Logger, errorHandler)
	otelMW := custommw.NewOTelMiddleware(a.OTelProviders, a.Metrics)

	r.Use(custommw.RequestID)
	r.Use(custommw.RealIP)
	r.Use(otelMW.Handler)
	r.Use(custommw.StructuredLogger(a.Logger))
	r.Use(apierrors.RecoveryMiddleware(errorHandler))
	r.Use(custommw.Timeout(a.Config.Server.WriteTimeout, a.Logger))
	r.Use(custommw.SecurityHeaders)
	r.Use(custommw.Compress(5))

	if a.Config.Security.EnableCORS {
		r.Use(custommw.CORS(custommw.CORSConfig{
			AllowedOrigins: a.Config.Security.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			MaxAge:         300,
		}))
	}
	if a.Config.Security.RateLimit.Enabled {
		limiter := custommw.NewRateLimiter(
			a.Config.Security.RateLimit.RPS,
			a.Config.Security.RateLimit.Burst,
			a.Logger,
		)
		r.Use(limiter.Handler)
	}

	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	r.Method(http.MethodGet, "/metrics", a.OTelProviders.PrometheusHTTP)

	r.Group(func(r chi.Router) {
		r.Use(custommw.WebSocketTraceMiddleware(a.Logger))
		r.Get("/ws", a.handleWebSocket)
	})

	decodeHandler := handlers.NewDecodeHandler(
		a.DecodeService,
		a.Store,
		validator,
		errorHandler,
		a.Config.Upload.MaxUploadSize,
		a.Logger,
	)
	healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Mount("/", decodeHandler.Routes())
		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/health/ready", healthHandler.ReadinessCheck)
		r.Get("/health/live", healthHandler.LivenessCheck)
		r.Get("/version", healthHandler.Version)
	})

	return r
}

// handleWebSocket upgrades the connection and hands it to the hub.
func (a *Application) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.WarnContext(r.Context(), "websocket upgrade failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()))
		return
	}
	ws.ServeWS(a.Hub, conn, a.Logger)
}

// Run starts the hub, the report janitor and the HTTP server, then blocks
// until the context is cancelled or a termination signal arrives.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.Hub.Start()
	a.Store.StartJanitor(ctx, a.Config.Analysis.ReportTTL/2)

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("http server listening", slog.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	return a.Shutdown()
}

// Shutdown drains the HTTP server and stops the hub and telemetry.
func (a *Application) Shutdown() error {
	a.Logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	var firstErr error
	if err := a.Server.Shutdown(ctx); err != nil {
		firstErr = fmt.Errorf("http server shutdown: %w", err)
	}
	a.Hub.Stop()
	if err := a.OTelProviders.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("telemetry shutdown: %w", err)
	}

	a.Logger.Info("shutdown complete")
	if err := infrastructure.CloseLogFile(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("log file close: %w", err)
	}
	return firstErr
}

// originChecker allows requests without an Origin header plus the
// configured origins.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}
