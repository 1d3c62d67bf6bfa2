package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	tthttp "github.com/lexhq/tasktrack/internal/adapter/http"
	ttnats "github.com/lexhq/tasktrack/internal/adapter/nats"
	ttotel "github.com/lexhq/tasktrack/internal/adapter/otel"
	"github.com/lexhq/tasktrack/internal/adapter/ristretto"
	_ "github.com/lexhq/tasktrack/internal/adapter/slack" // registers the slack notifier
	"github.com/lexhq/tasktrack/internal/adapter/toast"
	"github.com/lexhq/tasktrack/internal/adapter/ws"
	"github.com/lexhq/tasktrack/internal/config"
	"github.com/lexhq/tasktrack/internal/logger"
	"github.com/lexhq/tasktrack/internal/port/notifier"
	"github.com/lexhq/tasktrack/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCloser.Close()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"nats", cfg.NATS.URL != "",
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---
	otelShutdown, err := ttotel.Setup(ctx, cfg.Logging.Service, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = otelShutdown(shutdownCtx)
	}()

	metrics, err := ttotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---
	tombstones, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer tombstones.Close()

	hub := ws.NewHub()

	// --- Services ---
	tracker := service.NewTracker(hub, tombstones)
	presence := service.NewPresence()
	resolver := service.NewNavigationResolver()

	notifiers := []notifier.Notifier{toast.NewNotifier(hub)}
	if cfg.Notify.SlackWebhookURL != "" {
		slackNotifier, err := notifier.New("slack", map[string]string{
			"webhook_url": cfg.Notify.SlackWebhookURL,
		})
		if err != nil {
			return fmt.Errorf("slack notifier: %w", err)
		}
		notifiers = append(notifiers, slackNotifier)
	}
	slog.Info("notifiers configured", "count", len(notifiers), "available", notifier.Available())

	presenter := service.NewPresenter(tracker, presence, resolver, notifiers, service.PresenterOptions{
		MaxConcurrentSends: cfg.Notify.MaxConcurrentSends,
		BreakerMaxFailures: cfg.Breaker.MaxFailures,
		BreakerTimeout:     cfg.Breaker.Cooldown,
		SendTimeout:        cfg.Notify.SendTimeout,
		Metrics:            metrics,
	})
	stopPresenter := presenter.Start()
	defer stopPresenter()

	// Optional watchdog for tasks whose producer never reports back.
	if cfg.Watchdog.MaxTaskAge > 0 {
		stopWatchdog := tracker.StartWatchdog(ctx, cfg.Watchdog.SweepInterval, cfg.Watchdog.MaxTaskAge)
		defer stopWatchdog()
		slog.Info("watchdog enabled", "max_task_age", cfg.Watchdog.MaxTaskAge)
	}

	// Optional NATS bridge for out-of-process producers.
	var natsConnected bool
	if cfg.NATS.URL != "" {
		queue, err := ttnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = queue.Close() }()

		bridge := service.NewQueueBridge(tracker, queue)
		stopBridge, err := bridge.Start(ctx)
		if err != nil {
			return fmt.Errorf("queue bridge: %w", err)
		}
		defer stopBridge()
		natsConnected = true
	}

	// --- HTTP ---
	handlers := &tthttp.Handlers{
		Tracker:   tracker,
		Presenter: presenter,
		Presence:  presence,
		Resolver:  resolver,
		Metrics:   metrics,
	}

	r := chi.NewRouter()
	r.Use(tthttp.CORS(cfg.Server.CORSOrigin))
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(tthttp.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(ttotel.HTTPMiddleware("tasktrack"))

	r.Get("/health", healthHandler(natsConnected))
	r.Get("/ws", hub.HandleWS)
	tthttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// healthHandler reports service health and which optional collaborators are up.
func healthHandler(natsConnected bool) http.HandlerFunc {
	type healthStatus struct {
		Status string `json:"status"`
		NATS   bool   `json:"nats"`
	}

	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(healthStatus{Status: "ok", NATS: natsConnected})
	}
}
