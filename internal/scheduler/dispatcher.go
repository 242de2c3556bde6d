package scheduler

import (
	"context"
	"time"

	"fieldops_backend/platform/config"
	"fieldops_backend/platform/logger"
)

const defaultOutreachInterval = 5 * time.Minute

// Dispatcher enqueues outreach batch triggers on a fixed interval. It is the
// in-process alternative to an external cron hitting the trigger endpoints.
type Dispatcher struct {
	client    *Client
	log       *logger.Logger
	interval  time.Duration
	batchSize int
}

func NewDispatcher(client *Client, cfg config.SchedulerConfig, outreachCfg config.OutreachConfig, log *logger.Logger) *Dispatcher {
	interval := cfg.GetOutreachInterval()
	if interval <= 0 {
		interval = defaultOutreachInterval
	}

	return &Dispatcher{
		client:    client,
		log:       log,
		interval:  interval,
		batchSize: outreachCfg.GetOutreachBatchSize(),
	}
}

func (d *Dispatcher) Run(ctx context.Context) {
	if d == nil || d.client == nil {
		return
	}

	d.enqueue(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.enqueue(ctx)
		}
	}
}

func (d *Dispatcher) enqueue(ctx context.Context) {
	payload := OutreachDuePayload{BatchSize: d.batchSize}

	if err := d.client.EnqueueOutreachSMSDue(ctx, payload); err != nil {
		d.log.Error("enqueue sms outreach trigger failed", "error", err)
	}
	if err := d.client.EnqueueOutreachVoiceDue(ctx, payload); err != nil {
		d.log.Error("enqueue voice outreach trigger failed", "error", err)
	}
}
