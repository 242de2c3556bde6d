// Package voice provides the outbound call provider client.
package voice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fieldops_backend/platform/config"
	"fieldops_backend/platform/logger"
	"fieldops_backend/platform/phone"

	"github.com/go-resty/resty/v2"
)

// Call is the provider's view of a placed outbound call.
type Call struct {
	CallID string `json:"callId"`
	Status string `json:"status"`
}

type createCallRequest struct {
	To          string            `json:"to"`
	DisplayName string            `json:"displayName"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Client talks to the voice provider.
type Client struct {
	http        *resty.Client
	displayName string
	log         *logger.Logger
}

// NewClient creates the voice provider client. Returns nil when no provider
// URL is configured.
func NewClient(cfg config.VoiceConfig, log *logger.Logger) *Client {
	if cfg.GetVoiceProviderURL() == "" {
		return nil
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.GetVoiceProviderURL(), "/")).
		SetTimeout(15 * time.Second).
		SetHeader("Content-Type", "application/json")

	if cfg.GetVoiceProviderKey() != "" {
		client.SetAuthToken(cfg.GetVoiceProviderKey())
	}

	return &Client{
		http:        client,
		displayName: cfg.GetVoiceDisplayName(),
		log:         log,
	}
}

// CreateOutboundCall places one outbound call to the lead.
func (c *Client) CreateOutboundCall(ctx context.Context, toNumber string, metadata map[string]string) (Call, error) {
	if c == nil {
		return Call{}, fmt.Errorf("voice provider not configured")
	}

	var result Call
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(createCallRequest{
			To:          phone.NormalizeE164(toNumber),
			DisplayName: c.displayName,
			Metadata:    metadata,
		}).
		SetResult(&result).
		Post("/calls")
	if err != nil {
		return Call{}, fmt.Errorf("voice request failed: %w", err)
	}

	if resp.IsError() {
		return Call{}, fmt.Errorf("voice provider returned %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	c.log.Info("outbound call created", "to", phone.NormalizeE164(toNumber), "callId", result.CallID)
	return result, nil
}
