// Package alerts sends operator emails for events that need a human:
// currently, leads whose outreach attempts are exhausted on a channel.
package alerts

import (
	"context"
	"fmt"
	"time"

	"fieldops_backend/internal/events"
	"fieldops_backend/platform/config"
	"fieldops_backend/platform/logger"

	gomail "github.com/wneessen/go-mail"
)

// Notifier delivers alert emails over the configured SMTP server.
type Notifier struct {
	cfg config.AlertConfig
	log *logger.Logger
}

// NewNotifier returns nil when alerts are disabled; a nil Notifier
// subscribes to nothing.
func NewNotifier(cfg config.AlertConfig, log *logger.Logger) *Notifier {
	if !cfg.GetAlertsEnabled() {
		return nil
	}
	return &Notifier{cfg: cfg, log: log}
}

// Subscribe wires the notifier onto the event bus.
func (n *Notifier) Subscribe(bus events.Bus) {
	if n == nil || bus == nil {
		return
	}
	bus.Subscribe("outreach.exhausted", events.HandlerFunc(n.handleExhausted))
}

func (n *Notifier) handleExhausted(ctx context.Context, event events.Event) error {
	exhausted, ok := event.(events.OutreachExhausted)
	if !ok {
		return nil
	}

	subject := fmt.Sprintf("Outreach exhausted: lead %s (%s)", exhausted.LeadID, exhausted.Channel)
	body := fmt.Sprintf(
		"Automated outreach for lead %s has used all attempts on the %s channel (last outcome: %s).\n\nThe lead will receive no further automated contact. Manual follow-up is needed.\n",
		exhausted.LeadID, exhausted.Channel, exhausted.Reason,
	)

	if err := n.send(ctx, subject, body); err != nil {
		n.log.Error("alert email delivery failed", "leadId", exhausted.LeadID, "error", err)
		return err
	}

	n.log.Info("alert email sent", "leadId", exhausted.LeadID, "channel", exhausted.Channel)
	return nil
}

func (n *Notifier) send(ctx context.Context, subject, body string) error {
	msg := gomail.NewMsg()
	if err := msg.From(n.cfg.GetAlertFromAddress()); err != nil {
		return fmt.Errorf("alert from: %w", err)
	}
	if err := msg.To(n.cfg.GetAlertToAddress()); err != nil {
		return fmt.Errorf("alert to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	opts := []gomail.Option{
		gomail.WithPort(n.cfg.GetSMTPPort()),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15 * time.Second),
	}
	if n.cfg.GetSMTPUsername() != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(n.cfg.GetSMTPUsername()),
			gomail.WithPassword(n.cfg.GetSMTPPassword()),
		)
	}

	client, err := gomail.NewClient(n.cfg.GetSMTPHost(), opts...)
	if err != nil {
		return fmt.Errorf("alert smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("alert smtp send: %w", err)
	}
	return nil
}
