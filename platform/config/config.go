// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// CronConfig provides the shared secret for batch trigger endpoints.
// An empty secret means the endpoints must refuse all requests (fail closed).
type CronConfig interface {
	GetCronSecret() string
}

// WebhookConfig provides the signing secret for the lead-gen webhook.
type WebhookConfig interface {
	GetLeadWebhookSecret() string
}

// SMSConfig provides settings for the SMS provider client.
type SMSConfig interface {
	GetSMSProviderURL() string
	GetSMSProviderKey() string
	GetSMSFromNumber() string
}

// VoiceConfig provides settings for the voice provider client.
type VoiceConfig interface {
	GetVoiceProviderURL() string
	GetVoiceProviderKey() string
	GetVoiceDisplayName() string
}

// AIConfig provides settings for the AI text-generation capability.
type AIConfig interface {
	GetGeminiAPIKey() string
	GetGeminiModel() string
	GetAITimeout() time.Duration
}

// GeocodingConfig provides settings for the external geocoding fallback.
type GeocodingConfig interface {
	GetGeocodingAPIKey() string
}

// OutreachConfig provides tuning knobs for the outreach batch scheduler.
type OutreachConfig interface {
	GetOutreachBatchSize() int
	GetOutreachWorkers() int
	GetSendTimeout() time.Duration
}

// SchedulerConfig provides settings for the asynq scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetOutreachInterval() time.Duration
}

// AlertConfig provides settings for ops alert emails.
type AlertConfig interface {
	GetAlertsEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetAlertFromAddress() string
	GetAlertToAddress() string
}

// =============================================================================
// Config
// =============================================================================

// Config holds all application configuration loaded from the environment.
type Config struct {
	Env      string
	HTTPAddr string

	DatabaseURL string

	JWTAccessSecret string

	CORSAllowAll   bool
	CORSOrigins    []string
	CORSAllowCreds bool

	CronSecret        string
	LeadWebhookSecret string

	SMSProviderURL string
	SMSProviderKey string
	SMSFromNumber  string

	VoiceProviderURL string
	VoiceProviderKey string
	VoiceDisplayName string

	GeminiAPIKey string
	GeminiModel  string
	AITimeout    time.Duration

	GeocodingAPIKey string

	OutreachBatchSize int
	OutreachWorkers   int
	SendTimeout       time.Duration

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int
	OutreachInterval time.Duration

	AlertsEnabled    bool
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	AlertFromAddress string
	AlertToAddress   string
}

// Load reads configuration from the environment (and an optional .env file).
// Missing secrets for enabled features fail loud here rather than silently
// degrading security checks at request time.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	alertsEnabled := strings.EqualFold(getEnv("ALERTS_ENABLED", "false"), "true")

	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		JWTAccessSecret: getEnv("JWT_ACCESS_SECRET", ""),

		CORSAllowAll:   corsAllowAll,
		CORSOrigins:    corsOrigins,
		CORSAllowCreds: strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),

		CronSecret:        getEnv("CRON_SECRET", ""),
		LeadWebhookSecret: getEnv("LEAD_WEBHOOK_SECRET", ""),

		SMSProviderURL: getEnv("SMS_PROVIDER_URL", ""),
		SMSProviderKey: getEnv("SMS_PROVIDER_KEY", ""),
		SMSFromNumber:  getEnv("SMS_FROM_NUMBER", ""),

		VoiceProviderURL: getEnv("VOICE_PROVIDER_URL", ""),
		VoiceProviderKey: getEnv("VOICE_PROVIDER_KEY", ""),
		VoiceDisplayName: getEnv("VOICE_DISPLAY_NAME", "FieldOps"),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		AITimeout:    mustDuration(getEnv("AI_TIMEOUT", "30s")),

		GeocodingAPIKey: getEnv("GEOCODING_API_KEY", ""),

		OutreachBatchSize: getIntEnv("OUTREACH_BATCH_SIZE", 25),
		OutreachWorkers:   getIntEnv("OUTREACH_WORKERS", 4),
		SendTimeout:       mustDuration(getEnv("SEND_TIMEOUT", "15s")),

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "outreach"),
		AsynqConcurrency: getIntEnv("ASYNQ_CONCURRENCY", 10),
		OutreachInterval: mustDuration(getEnv("OUTREACH_INTERVAL", "5m")),

		AlertsEnabled:    alertsEnabled,
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         getIntEnv("SMTP_PORT", 587),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		AlertFromAddress: getEnv("ALERT_FROM_ADDRESS", ""),
		AlertToAddress:   getEnv("ALERT_TO_ADDRESS", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.AlertsEnabled && (cfg.SMTPHost == "" || cfg.AlertFromAddress == "" || cfg.AlertToAddress == "") {
		return nil, fmt.Errorf("SMTP_HOST, ALERT_FROM_ADDRESS and ALERT_TO_ADDRESS are required when ALERTS_ENABLED is true")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

// Interface implementations.

func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

func (c *Config) GetCronSecret() string        { return c.CronSecret }
func (c *Config) GetLeadWebhookSecret() string { return c.LeadWebhookSecret }

func (c *Config) GetSMSProviderURL() string { return c.SMSProviderURL }
func (c *Config) GetSMSProviderKey() string { return c.SMSProviderKey }
func (c *Config) GetSMSFromNumber() string  { return c.SMSFromNumber }

func (c *Config) GetVoiceProviderURL() string { return c.VoiceProviderURL }
func (c *Config) GetVoiceProviderKey() string { return c.VoiceProviderKey }
func (c *Config) GetVoiceDisplayName() string { return c.VoiceDisplayName }

func (c *Config) GetGeminiAPIKey() string     { return c.GeminiAPIKey }
func (c *Config) GetGeminiModel() string      { return c.GeminiModel }
func (c *Config) GetAITimeout() time.Duration { return c.AITimeout }

func (c *Config) GetGeocodingAPIKey() string { return c.GeocodingAPIKey }

func (c *Config) GetOutreachBatchSize() int     { return c.OutreachBatchSize }
func (c *Config) GetOutreachWorkers() int       { return c.OutreachWorkers }
func (c *Config) GetSendTimeout() time.Duration { return c.SendTimeout }

func (c *Config) GetRedisURL() string                { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool          { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string          { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int           { return c.AsynqConcurrency }
func (c *Config) GetOutreachInterval() time.Duration { return c.OutreachInterval }

func (c *Config) GetAlertsEnabled() bool      { return c.AlertsEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetAlertFromAddress() string { return c.AlertFromAddress }
func (c *Config) GetAlertToAddress() string   { return c.AlertToAddress }

// Helpers.

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
