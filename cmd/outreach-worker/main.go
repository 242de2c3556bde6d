package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fieldops_backend/internal/alerts"
	"fieldops_backend/internal/conversation"
	leadrepo "fieldops_backend/internal/leads/repository"
	"fieldops_backend/internal/outreach"
	"fieldops_backend/internal/scheduler"
	"fieldops_backend/internal/sms"
	"fieldops_backend/internal/voice"
	"fieldops_backend/platform/config"
	"fieldops_backend/platform/db"
	"fieldops_backend/platform/events"
	"fieldops_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting outreach worker", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	eventBus := events.NewInMemoryBus(log)

	smsClient := sms.NewClient(cfg, log)
	if smsClient == nil {
		log.Warn("SMS_PROVIDER_URL not configured; outbound sms disabled")
	}

	voiceClient := voice.NewClient(cfg, log)
	if voiceClient == nil {
		log.Warn("VOICE_PROVIDER_URL not configured; outbound calls disabled")
	}

	leadRepo := leadrepo.New(pool)
	convRepo := conversation.NewRepository(pool)
	outreachSvc := outreach.NewService(leadRepo, convRepo, smsClient, voiceClient, eventBus, cfg, log)

	alerts.NewNotifier(cfg, log).Subscribe(eventBus)

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	dispatcher := scheduler.NewDispatcher(client, cfg, cfg, log)
	go dispatcher.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, outreachSvc, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
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
