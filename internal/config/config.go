// Package config provides centralized configuration management for the tours BFF.
// It loads configuration from environment variables (optionally seeded from a
// .env file) and CLI flag values, validates required fields, and provides
// sensible defaults.
//
// CLI flags control which collaborators are mocked (--no-email, --no-bot-check, --test).
// Environment variables provide secrets and transport configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"

	"github.com/bsltours/tours-bff/internal/logutil"
	"github.com/bsltours/tours-bff/internal/ratelimit"
)

// Supported EMAIL_PROVIDER values.
const (
	ProviderSendGrid = "sendgrid"
	ProviderPostmark = "postmark"
	ProviderResend   = "resend"
	ProviderSES      = "ses"
	ProviderMock     = "mock"
)

const (
	defaultTurnstileVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"
	defaultSendGridBaseURL    = "https://api.sendgrid.com"
	defaultPostmarkBaseURL    = "https://api.postmarkapp.com"
	defaultSESRegion          = "us-east-1"
	defaultMockNotifyEmail    = "inquiries@example.com"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	ListenAddr         string
	LogFormat          string
	CORSAllowedOrigins []string
	MaxBodyBytes       int64

	// Mock flags (controlled by CLI flags, not env vars)
	NoEmail    bool // If true, use the in-memory mock provider (--no-email)
	NoBotCheck bool // If true, accept any non-empty bot-check token (--no-bot-check)

	Email     Email
	Turnstile Turnstile
	Inquiry   Inquiry

	// Rate limiting
	RateLimitConfig ratelimit.Config
}

// Sender is a default From identity.
type Sender struct {
	FromEmail string
	FromName  string
}

// Email configures the outbound email transport.
type Email struct {
	Provider string

	SendGrid SendGrid
	Postmark Postmark
	Resend   Resend
	SES      SES

	// Default is the EmailService-level sender used when a caller supplies none.
	Default Sender

	TemplatesFile                 string
	SendTimeout                   time.Duration
	ContactConfirmationTemplateID string

	// MockOutboxDir, when set, receives one JSON file per mock send.
	MockOutboxDir string
}

type SendGrid struct {
	APIKey  string
	BaseURL string
	Sender
}

type Postmark struct {
	ServerToken string
	BaseURL     string
	Sender
}

type Resend struct {
	APIKey string
	Sender
}

type SES struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	Sender
}

// Turnstile configures the bot-check verifier.
type Turnstile struct {
	SecretKey string
	VerifyURL string
	Timeout   time.Duration
}

// Inquiry configures where inquiry notifications go.
type Inquiry struct {
	NotifyEmail         string
	NotifyName          string
	AutoReplyTemplateID string
}

// Flags holds CLI flag values that affect configuration.
type Flags struct {
	NoEmail    bool
	NoBotCheck bool
	Test       bool // Shorthand for --no-email --no-bot-check
	Addr       string
	EnvFile    string
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// LoadDotEnv seeds the process environment from path when the file exists.
// Variables already present in the environment win.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// LoadConfig loads configuration from environment variables and CLI flag values.
func LoadConfig(flags Flags) (*Config, error) {
	if err := LoadDotEnv(flags.EnvFile); err != nil {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg := &Config{}

	// CLI flag values
	cfg.NoEmail = flags.NoEmail || flags.Test
	cfg.NoBotCheck = flags.NoBotCheck || flags.Test

	// Server settings
	cfg.ListenAddr = getEnvOrDefault("LISTEN_ADDR", ":8080")
	if flags.Addr != "" {
		cfg.ListenAddr = flags.Addr
	}
	cfg.LogFormat = strings.ToLower(getEnvOrDefault("LOG_FORMAT", "json"))
	cfg.CORSAllowedOrigins = splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*"))
	cfg.MaxBodyBytes = int64(parseIntOrDefault("MAX_BODY_BYTES", 64<<10))

	// Email transport
	cfg.Email.Provider = strings.ToLower(getEnvOrDefault("EMAIL_PROVIDER", ""))
	if cfg.NoEmail {
		cfg.Email.Provider = ProviderMock
	}
	cfg.Email.SendGrid = SendGrid{
		APIKey:  getEnvOrDefault("SENDGRID_API_KEY", ""),
		BaseURL: getEnvOrDefault("SENDGRID_BASE_URL", defaultSendGridBaseURL),
		Sender:  senderFromEnv("SENDGRID"),
	}
	cfg.Email.Postmark = Postmark{
		ServerToken: getEnvOrDefault("POSTMARK_SERVER_TOKEN", ""),
		BaseURL:     getEnvOrDefault("POSTMARK_BASE_URL", defaultPostmarkBaseURL),
		Sender:      senderFromEnv("POSTMARK"),
	}
	cfg.Email.Resend = Resend{
		APIKey: getEnvOrDefault("RESEND_API_KEY", ""),
		Sender: senderFromEnv("RESEND"),
	}
	cfg.Email.SES = SES{
		Region:          getEnvOrDefault("SES_REGION", defaultSESRegion),
		AccessKeyID:     getEnvOrDefault("SES_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnvOrDefault("SES_SECRET_ACCESS_KEY", ""),
		Endpoint:        getEnvOrDefault("SES_ENDPOINT", ""),
		Sender:          senderFromEnv("SES"),
	}
	cfg.Email.Default = senderFromEnv("EMAIL_DEFAULT")
	cfg.Email.TemplatesFile = getEnvOrDefault("EMAIL_TEMPLATES_FILE", "")
	cfg.Email.SendTimeout = parseDurationOrDefault("EMAIL_SEND_TIMEOUT", 15*time.Second)
	cfg.Email.ContactConfirmationTemplateID = getEnvOrDefault("CONTACT_CONFIRMATION_TEMPLATE_ID", "")
	cfg.Email.MockOutboxDir = getEnvOrDefault("MOCK_EMAIL_OUTBOX_DIR", "")

	// Bot check
	cfg.Turnstile = Turnstile{
		SecretKey: getEnvOrDefault("TURNSTILE_SECRET_KEY", ""),
		VerifyURL: getEnvOrDefault("TURNSTILE_VERIFY_URL", defaultTurnstileVerifyURL),
		Timeout:   parseDurationOrDefault("TURNSTILE_TIMEOUT", 10*time.Second),
	}

	// Inquiry routing
	cfg.Inquiry = Inquiry{
		NotifyEmail:         getEnvOrDefault("INQUIRY_NOTIFY_EMAIL", ""),
		NotifyName:          getEnvOrDefault("INQUIRY_NOTIFY_NAME", ""),
		AutoReplyTemplateID: getEnvOrDefault("INQUIRY_AUTO_REPLY_TEMPLATE_ID", ""),
	}
	if cfg.NoEmail && cfg.Inquiry.NotifyEmail == "" {
		cfg.Inquiry.NotifyEmail = defaultMockNotifyEmail
	}

	// Rate limiting
	cfg.RateLimitConfig = ratelimit.Config{
		RPS:             parseFloat64OrDefault("RATE_LIMIT_RPS", ratelimit.DefaultConfig.RPS),
		Burst:           parseIntOrDefault("RATE_LIMIT_BURST", ratelimit.DefaultConfig.Burst),
		CleanupInterval: parseDurationOrDefault("RATE_LIMIT_CLEANUP_INTERVAL", ratelimit.DefaultConfig.CleanupInterval),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ActiveSender returns the default sender of the selected provider, with
// empty fields filled from the global EMAIL_DEFAULT_FROM_* values.
func (e Email) ActiveSender() Sender {
	var s Sender
	switch e.Provider {
	case ProviderSendGrid:
		s = e.SendGrid.Sender
	case ProviderPostmark:
		s = e.Postmark.Sender
	case ProviderResend:
		s = e.Resend.Sender
	case ProviderSES:
		s = e.SES.Sender
	}
	// A provider-specific name never pairs with the global address.
	if s.FromEmail == "" {
		s.FromName = ""
	}
	if err := mergo.Merge(&s, e.Default); err != nil {
		return e.Default
	}
	return s
}

// Validate checks that all required configuration is present and valid.
// When mocks are NOT active for a collaborator, its secrets are required.
func (c *Config) Validate() error {
	var errs []string

	switch c.Email.Provider {
	case ProviderMock:
		if !c.NoEmail {
			errs = append(errs, "EMAIL_PROVIDER=mock is only available with --no-email")
		}
	case ProviderSendGrid:
		if c.Email.SendGrid.APIKey == "" {
			errs = append(errs, "SENDGRID_API_KEY is required when EMAIL_PROVIDER=sendgrid")
		}
	case ProviderPostmark:
		if c.Email.Postmark.ServerToken == "" {
			errs = append(errs, "POSTMARK_SERVER_TOKEN is required when EMAIL_PROVIDER=postmark")
		}
	case ProviderResend:
		if c.Email.Resend.APIKey == "" {
			errs = append(errs, "RESEND_API_KEY is required when EMAIL_PROVIDER=resend")
		}
	case ProviderSES:
		if c.Email.SES.Region == "" {
			errs = append(errs, "SES_REGION is required when EMAIL_PROVIDER=ses")
		}
		if (c.Email.SES.AccessKeyID == "") != (c.Email.SES.SecretAccessKey == "") {
			errs = append(errs, "SES_ACCESS_KEY_ID and SES_SECRET_ACCESS_KEY must be set together")
		}
	case "":
		errs = append(errs, "EMAIL_PROVIDER is required (sendgrid, postmark, resend, ses) or use --no-email")
	default:
		errs = append(errs, fmt.Sprintf("EMAIL_PROVIDER %q is not supported (sendgrid, postmark, resend, ses)", c.Email.Provider))
	}

	if !c.NoEmail && c.Email.Provider != "" && c.Email.ActiveSender().FromEmail == "" {
		errs = append(errs, "a sender address is required: set the provider FROM_EMAIL or EMAIL_DEFAULT_FROM_EMAIL")
	}
	if c.Email.SendTimeout <= 0 {
		errs = append(errs, "EMAIL_SEND_TIMEOUT must be positive")
	}

	if c.Inquiry.NotifyEmail == "" {
		errs = append(errs, "INQUIRY_NOTIFY_EMAIL is required")
	} else if !strings.Contains(c.Inquiry.NotifyEmail, "@") {
		errs = append(errs, "INQUIRY_NOTIFY_EMAIL must be an email address")
	}

	if !c.NoBotCheck && c.Turnstile.SecretKey == "" {
		errs = append(errs, "TURNSTILE_SECRET_KEY is required (set env var or use --no-bot-check)")
	}
	if c.Turnstile.Timeout <= 0 {
		errs = append(errs, "TURNSTILE_TIMEOUT must be positive")
	}

	if c.MaxBodyBytes <= 0 {
		errs = append(errs, "MAX_BODY_BYTES must be positive")
	}

	// Validate rate limit config
	if c.RateLimitConfig.RPS <= 0 {
		errs = append(errs, "RATE_LIMIT_RPS must be positive")
	}
	if c.RateLimitConfig.Burst <= 0 {
		errs = append(errs, "RATE_LIMIT_BURST must be positive")
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}

	return nil
}

// IsDevelopment returns true if any mock collaborators are enabled.
func (c *Config) IsDevelopment() bool {
	return c.NoEmail || c.NoBotCheck
}

// PrintStartupSummary prints a human-readable summary of the configuration to stderr.
func (c *Config) PrintStartupSummary() {
	fmt.Fprintln(os.Stderr, "")
	if c.IsDevelopment() {
		fmt.Fprintln(os.Stderr, "tours-bff starting (development mode)...")
	} else {
		fmt.Fprintln(os.Stderr, "tours-bff starting...")
	}

	// Email
	if c.NoEmail {
		fmt.Fprintln(os.Stderr, "  Email:     Mock outbox (--no-email)")
	} else {
		fmt.Fprintf(os.Stderr, "  Email:     %s (from: %s)\n", c.Email.Provider, c.Email.ActiveSender().FromEmail)
	}
	fmt.Fprintf(os.Stderr, "  Notify:    %s\n", logutil.RedactEmail(c.Inquiry.NotifyEmail))
	if c.Inquiry.AutoReplyTemplateID == "" {
		fmt.Fprintln(os.Stderr, "  AutoReply: disabled (INQUIRY_AUTO_REPLY_TEMPLATE_ID unset)")
	} else {
		fmt.Fprintf(os.Stderr, "  AutoReply: template %s\n", c.Inquiry.AutoReplyTemplateID)
	}

	// Bot check
	if c.NoBotCheck {
		fmt.Fprintln(os.Stderr, "  BotCheck:  Accept-all (--no-bot-check)")
	} else {
		fmt.Fprintln(os.Stderr, "  BotCheck:  Turnstile")
	}

	fmt.Fprintf(os.Stderr, "  Listen:    %s\n", c.ListenAddr)
	fmt.Fprintf(os.Stderr, "  CORS:      %s\n", strings.Join(c.CORSAllowedOrigins, ", "))
	fmt.Fprintln(os.Stderr, "")
}

// Helper functions for parsing environment variables

func senderFromEnv(prefix string) Sender {
	return Sender{
		FromEmail: getEnvOrDefault(prefix+"_FROM_EMAIL", ""),
		FromName:  getEnvOrDefault(prefix+"_FROM_NAME", ""),
	}
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func parseIntOrDefault(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseFloat64OrDefault(key string, defaultValue float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
