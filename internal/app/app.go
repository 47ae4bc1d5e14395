// Package app assembles the service: configuration, logging, storage, the
// report pipeline, HTTP transport, websocket hub and the scheduler.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"emspulse/internal/config"
	apierrors "emspulse/internal/errors"
	"emspulse/internal/infrastructure"
	customMiddleware "emspulse/internal/middleware"
	"emspulse/internal/report"
	"emspulse/internal/scheduler"
	"emspulse/internal/services"
	"emspulse/internal/store"
	"emspulse/internal/timeseries"
	handlers "emspulse/internal/transport/http"
	ws "emspulse/internal/websocket"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Application is the assembled service container.
type Application struct {
	Config *config.Config
	Logger *slog.Logger
	Router *chi.Mux
	Server *http.Server

	Store         *store.Store
	Hub           *ws.Hub
	ReportService *services.ReportService
	DataService   *services.DataService
	Scheduler     *scheduler.Scheduler
}

// NewApplication loads configuration and wires every component.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return NewApplicationWithConfig(cfg)
}

// NewApplicationWithConfig wires the application from an explicit
// configuration, used by tests.
func NewApplicationWithConfig(cfg *config.Config) (*Application, error) {
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	logger.Info("application starting",
		slog.String("version", Version),
		slog.Int("port", cfg.Server.Port))

	st, err := store.Open(store.Options{
		Path:         cfg.Database.Path,
		BusyTimeout:  cfg.Database.BusyTimeout,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		Migrate:      cfg.Database.MigrateOnStart,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	hub := ws.NewHub(logger, ws.Config{
		ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: cfg.WebSocket.WriteBufferSize,
		PingPeriod:      cfg.WebSocket.PingPeriod,
		PongWait:        cfg.WebSocket.PongWait,
	})

	renderer := report.NewRenderer(report.Layout{
		RowsPerPage: cfg.Report.RowsPerPage,
		Heading:     cfg.Report.Heading,
		Address:     cfg.Report.Address,
	}, logger)

	mergeOpts := timeseries.MergeOptions{
		GridMinutes: cfg.Report.GridMinutes,
		DenseGrid:   cfg.Report.DenseGrid,
	}

	reportService := services.NewReportService(st, renderer, hub, mergeOpts, logger)
	dataService := services.NewDataService(st, logger)

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		Store:         st,
		Hub:           hub,
		ReportService: reportService,
		DataService:   dataService,
		Scheduler:     scheduler.New(reportService, cfg.Scheduler, logger),
	}
	app.setupRouter()

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

// setupRouter configures the HTTP router with all routes.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(a.Logger))
	r.Use(customMiddleware.StripSlashes)
	r.Use(customMiddleware.SecurityHeaders)

	if a.Config.Security.EnableCORS {
		r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
			AllowedOrigins: a.Config.Security.AllowedOrigins,
			ExposedHeaders: []string{"X-Report-ID", "Content-Disposition"},
			Logger:         a.Logger,
		}))
	}
	if a.Config.Security.RateLimit.Enabled {
		r.Use(customMiddleware.NewRateLimiter(
			a.Config.Security.RateLimit.RPS,
			a.Config.Security.RateLimit.Burst,
			a.Logger,
		).Handler)
	}

	errorHandler := apierrors.NewErrorHandler(a.Logger, a.Config.Logging.Development)
	validation := customMiddleware.NewValidationMiddleware(a.Logger, errorHandler)

	reportHandler := handlers.NewReportHandler(a.ReportService, a.DataService, a.Logger, errorHandler, validation)
	dataHandler := handlers.NewDataHandler(a.DataService, a.Logger, errorHandler, validation)
	healthHandler := handlers.NewHealthHandler(a.Store, Version, a.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.Logger))

		r.Mount("/health", healthHandler.Routes())
		r.Mount("/reports", reportHandler.Routes())
		r.Mount("/data", dataHandler.Routes())
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", a.Hub.ServeHTTP)

	a.Router = r
}

// Run starts the server, websocket hub and scheduler, and blocks until the
// context is canceled or SIGINT/SIGTERM arrives.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.Hub.Start()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info("http server listening", slog.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.Scheduler.Run(ctx)
	})

	g.Go(func() error {
		<-ctx.Done()
		return a.shutdown()
	})

	return g.Wait()
}

func (a *Application) shutdown() error {
	a.Logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error("server shutdown failed", slog.String("error", err.Error()))
	}

	a.Hub.Stop()

	if err := a.Store.Close(); err != nil {
		a.Logger.Error("store close failed", slog.String("error", err.Error()))
	}
	if err := infrastructure.CloseLogSink(); err != nil {
		fmt.Fprintf(os.Stderr, "close log sink: %v\n", err)
	}

	a.Logger.Info("shutdown complete")
	return nil
}

// WaitUntilReady polls the health endpoint until the server answers, used
// by tests.
func (a *Application) WaitUntilReady(ctx context.Context) error {
	url := fmt.Sprintf("http://localhost:%d/api/health/live", a.Config.Server.Port)
	ticker := time.NewTicker(25 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				continue
			}
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
	}
}
