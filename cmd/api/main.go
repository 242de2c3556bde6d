package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fieldops_backend/internal/ai"
	"fieldops_backend/internal/alerts"
	"fieldops_backend/internal/assignment"
	"fieldops_backend/internal/conversation"
	"fieldops_backend/internal/cron"
	"fieldops_backend/internal/geo"
	apphttp "fieldops_backend/internal/http"
	"fieldops_backend/internal/leads"
	leadrepo "fieldops_backend/internal/leads/repository"
	"fieldops_backend/internal/outreach"
	"fieldops_backend/internal/reps"
	"fieldops_backend/internal/sms"
	"fieldops_backend/internal/voice"
	"fieldops_backend/internal/webhook"
	"fieldops_backend/migrations"
	"fieldops_backend/platform/config"
	"fieldops_backend/platform/db"
	"fieldops_backend/platform/events"
	"fieldops_backend/platform/logger"
	"fieldops_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Provider Clients
	// ========================================================================

	smsClient := sms.NewClient(cfg, log)
	if smsClient == nil {
		log.Warn("SMS_PROVIDER_URL not configured; outbound sms disabled")
	}

	voiceClient := voice.NewClient(cfg, log)
	if voiceClient == nil {
		log.Warn("VOICE_PROVIDER_URL not configured; outbound calls disabled")
	}

	aiClient, err := ai.NewGeminiClient(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize AI client", "error", err)
		panic("failed to initialize AI client: " + err.Error())
	}

	geocoder := geo.NewGeocoder(cfg, log)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	leadRepo := leadrepo.New(pool)
	repRepo := reps.New(pool)
	convRepo := conversation.NewRepository(pool)

	assignSvc := assignment.NewService(leadRepo, repRepo, geocoder, eventBus, log)
	convSvc := conversation.NewService(convRepo, leadRepo, aiClient, smsClient, eventBus, log)
	outreachSvc := outreach.NewService(leadRepo, convRepo, smsClient, voiceClient, eventBus, cfg, log)

	// Alert emails on exhausted outreach (no-op when disabled)
	alerts.NewNotifier(cfg, log).Subscribe(eventBus)

	leadsModule := leads.NewModule(leadRepo, assignSvc, convRepo, convSvc, eventBus, val, log)
	webhookModule := webhook.NewModule(leadRepo, convSvc, cfg, eventBus, val, log)
	cronModule := cron.NewModule(outreachSvc, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			leadsModule,
			webhookModule,
			cronModule,
		},
	}

	engine := apphttp.NewRouter(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
