package scheduler

import (
	"context"
	"fmt"

	"fieldops_backend/internal/leads/domain"
	"fieldops_backend/internal/outreach"
	"fieldops_backend/platform/config"
	"fieldops_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// OutreachRunner runs one due-outreach batch. Satisfied by outreach.Service.
type OutreachRunner interface {
	RunDueOutreach(ctx context.Context, channel domain.Channel, limit int) (outreach.BatchResult, error)
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	runner OutreachRunner
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, runner OutreachRunner, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		runner: runner,
		log:    log,
	}

	mux.HandleFunc(TaskOutreachSMSDue, w.handleOutreachDue(domain.ChannelSMS))
	mux.HandleFunc(TaskOutreachVoiceDue, w.handleOutreachDue(domain.ChannelCall))

	return w, nil
}

func (w *Worker) handleOutreachDue(channel domain.Channel) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		payload, err := ParseOutreachDuePayload(task)
		if err != nil {
			return err
		}

		result, err := w.runner.RunDueOutreach(ctx, channel, payload.BatchSize)
		if err != nil {
			w.log.Error("outreach batch task failed", "channel", channel, "error", err)
			return err
		}

		w.log.Info("outreach batch task complete",
			"channel", channel,
			"due", result.Due,
			"sent", result.Sent,
			"failed", result.Failed,
		)
		return nil
	}
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
