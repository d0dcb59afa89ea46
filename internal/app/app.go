// Package app assembles the application: configuration, logging,
// telemetry, storage, services, and the HTTP router.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"equiviz/internal/config"
	"equiviz/internal/dataprocessing"
	apierrors "equiviz/internal/errors"
	"equiviz/internal/infrastructure"
	customMiddleware "equiviz/internal/middleware"
	"equiviz/internal/report"
	"equiviz/internal/services"
	"equiviz/internal/store"
	handlers "equiviz/internal/transport/http"
)

const serviceName = "equiviz"

// Application is the assembled service container.
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	DB            *sql.DB
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders

	AuthService    *services.AuthService
	DatasetService *services.DatasetService
	HealthService  *services.HealthService
}

// NewApplication loads configuration and wires every component.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return NewApplicationWithConfig(cfg)
}

// NewApplicationWithConfig wires the application around an existing
// configuration. Used by tests to inject temp paths.
func NewApplicationWithConfig(cfg *config.Config) (*Application, error) {
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	logger.Info("application starting",
		slog.String("service", serviceName),
		slog.String("version", services.Version),
		slog.Int("port", cfg.Server.Port))

	otelProviders, err := infrastructure.NewOTelProviders(context.Background(), serviceName, services.Version, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("initialize services: %w", err)
	}
	if err := app.setupRouter(); err != nil {
		return nil, fmt.Errorf("setup router: %w", err)
	}
	app.createServer()

	return app, nil
}

func (a *Application) initializeServices() error {
	if dir := filepath.Dir(a.Config.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := store.Open(a.Config.Database.Path, a.Logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	a.DB = db

	users := store.NewUserStore(db, a.Logger)
	datasets := store.NewDatasetStore(db, a.Logger, a.Config.Datasets.Keep)

	a.AuthService = services.NewAuthService(users, a.Config.Auth.JWTSecret, a.Config.Auth.TokenTTL, a.Logger)
	a.DatasetService = services.NewDatasetService(
		dataprocessing.NewIngestor(a.Logger),
		dataprocessing.NewSummarizer(a.Logger),
		datasets,
		report.NewRenderer(a.Logger),
		a.Logger,
	)
	a.HealthService = services.NewHealthService(db, a.Logger)

	return nil
}

func (a *Application) setupRouter() error {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders)
	if err != nil {
		return fmt.Errorf("create telemetry middleware: %w", err)
	}

	errorHandler := apierrors.NewErrorHandler(a.Logger)
	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	// Health and metrics stay outside the API middleware group so
	// probes bypass rate limiting.
	healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
	r.Get("/healthz", healthHandler.Liveness)
	r.Get("/readyz", healthHandler.Readiness)
	r.Handle("/metrics", handlers.MetricsHandler(a.OTelProviders.Registry))

	r.Route("/api", func(r chi.Router) {
		r.Use(otelMiddleware.Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))
		r.Use(customMiddleware.SecurityHeaders)
		r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
			AllowedOrigins:   a.Config.Security.AllowedOrigins,
			AllowCredentials: true,
		}))
		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}
		r.Use(render.SetContentType(render.ContentTypeJSON))

		authHandler := handlers.NewAuthHandler(a.AuthService, a.Logger, errorHandler)
		r.Mount("/auth", authHandler.Routes())

		// Dataset routes require a valid token.
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Authenticator(a.AuthService, a.Logger))

			datasetHandler := handlers.NewDatasetHandler(
				a.DatasetService,
				a.Logger,
				errorHandler,
				otelMiddleware.Metrics(),
				a.Config.Upload.MaxBytes,
			)
			r.Mount("/", datasetHandler.Routes())
		})
	})

	a.Router = r
	return nil
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Start begins serving. cancel is invoked if the listener fails so the
// caller's wait unblocks.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "server listening",
		slog.String("addr", a.Server.Addr),
		slog.String("database", a.Config.Database.Path))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.ErrorContext(ctx, "database close error", slog.String("error", err.Error()))
		}
	}

	if err := infrastructure.CloseLogFile(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}

	a.Logger.InfoContext(ctx, "shutdown complete")
	return nil
}

// Run runs the application until interrupted.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case sig := <-sigChan:
		a.Logger.InfoContext(ctx, "received signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
	}

	return a.Stop(context.Background())
}
