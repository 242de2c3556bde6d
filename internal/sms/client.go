// Package sms provides the outbound SMS provider client. The provider's
// wire protocol is opaque: send a message, get back a provider message id.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fieldops_backend/platform/config"
	"fieldops_backend/platform/logger"
	"fieldops_backend/platform/phone"
)

// Client talks to the SMS gateway. A nil client (missing provider URL)
// fails sends with a configuration error rather than silently dropping them.
type Client struct {
	baseURL string
	apiKey  string
	from    string
	http    *http.Client
	log     *logger.Logger
}

type sendRequest struct {
	To   string `json:"to"`
	From string `json:"from"`
	Body string `json:"body"`
}

type sendResponse struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
}

// NewClient creates the SMS provider client. Returns nil when no provider
// URL is configured.
func NewClient(cfg config.SMSConfig, log *logger.Logger) *Client {
	if cfg.GetSMSProviderURL() == "" {
		return nil
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.GetSMSProviderURL(), "/"),
		apiKey:  cfg.GetSMSProviderKey(),
		from:    cfg.GetSMSFromNumber(),
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log,
	}
}

// Send delivers one message and returns the provider message id.
func (c *Client) Send(ctx context.Context, toNumber string, body string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("sms provider not configured")
	}

	payload := sendRequest{
		To:   phone.NormalizeE164(toNumber),
		From: c.from,
		Body: body,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal sms payload: %w", err)
	}

	url := fmt.Sprintf("%s/messages", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(data))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("sms request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("sms provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var result sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode sms response: %w", err)
	}

	c.log.Info("sms sent", "to", payload.To, "providerMessageId", result.MessageID)
	return result.MessageID, nil
}
