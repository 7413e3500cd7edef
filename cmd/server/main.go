package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rollcall/internal/config"
	"rollcall/internal/database"
	"rollcall/internal/handlers"
	"rollcall/internal/identity"
	"rollcall/internal/logging"
	"rollcall/internal/metrics"
	"rollcall/internal/repository"
	"rollcall/internal/scheduler"
	"rollcall/internal/security"
	"rollcall/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database with config (supports sqlite, postgres, mysql)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("Database connection established", "type", cfg.DatabaseType)

	if err := db.RunMigrations(ctx); err != nil {
		return err
	}
	slog.Info("Migrations completed successfully")

	location := cfg.Location()
	store := repository.NewStore(db)

	emailService, err := service.NewEmailService(ctx, cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.AppBaseURL, cfg.EmailDebug)
	if err != nil {
		return err
	}

	// Initialize services
	accessService := service.NewAccessService(store)
	groupService := service.NewGroupService(db, location)
	activityService := service.NewActivityService(db, location)
	eventService := service.NewEventService(db, location)
	userService := service.NewUserService(store, emailService)

	verifier, err := identity.NewVerifier(cfg.IdentityJWTSecret, cfg.IdentityJWTPublicKey, cfg.IdentityIssuer)
	if err != nil {
		return err
	}
	webhook, err := identity.NewWebhookVerifier(cfg.WebhookSecret)
	if err != nil {
		return err
	}
	if !webhook.Enabled() {
		slog.Warn("WEBHOOK_SECRET not set, user sync accepts unsigned deliveries")
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	// RATE_LIMIT_REQUESTS=0 turns rate limiting off; bot filtering stays on.
	var limiter *security.RateLimiter
	if cfg.RateLimitRequests > 0 {
		limiter = security.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
		go limiter.Run(ctx, time.Hour)
	}
	gate := security.NewGate(limiter)
	if m != nil {
		gate.OnBlock = m.RecordBlocked
	}

	sched, err := scheduler.New(cfg.AdvanceSchedule, location, eventService)
	if err != nil {
		return err
	}
	if m != nil {
		sched.OnAdvance = m.RecordAdvanced
	}
	// Catch up once at startup; later runs follow the schedule.
	if n, err := sched.RunOnce(ctx); err != nil {
		slog.Error("Initial event advancement failed", "error", err)
	} else if n > 0 {
		slog.Info("Advanced events at startup", "created", n)
	}
	sched.Start()

	// Initialize handlers
	handler := handlers.Routes(handlers.Handlers{
		Middleware: handlers.NewMiddleware(verifier, accessService),
		Groups:     handlers.NewGroupHandler(groupService),
		Activities: handlers.NewActivityHandler(activityService),
		Events:     handlers.NewEventHandler(eventService, m),
		Users:      handlers.NewUserHandler(userService, webhook),
		Health:     handlers.NewHealthHandler(db),
	}, gate, m)

	// Start server
	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sched.Stop(shutdownCtx)
	return server.Shutdown(shutdownCtx)
}
