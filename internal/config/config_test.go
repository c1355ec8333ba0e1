package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/bsltours/tours-bff/internal/ratelimit"
)

func validTestConfig() Config {
	return Config{
		ListenAddr:         ":8080",
		CORSAllowedOrigins: []string{"*"},
		MaxBodyBytes:       64 << 10,
		NoEmail:            true,
		NoBotCheck:         true,
		Email: Email{
			Provider:    ProviderMock,
			SendTimeout: 15 * time.Second,
		},
		Turnstile: Turnstile{Timeout: 10 * time.Second},
		Inquiry:   Inquiry{NotifyEmail: "ops@example.com"},
		RateLimitConfig: ratelimit.Config{
			RPS:             1,
			Burst:           5,
			CleanupInterval: time.Hour,
		},
	}
}

func TestValidate_TestModeMinimalConfigPasses(t *testing.T) {
	t.Parallel()
	cfg := validTestConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid test-mode config, got error: %v", err)
	}
}

func TestValidate_RequiresSecretsWhenNotMocked(t *testing.T) {
	t.Parallel()
	cfg := validTestConfig()
	cfg.NoEmail = false
	cfg.NoBotCheck = false
	cfg.Email.Provider = ""
	cfg.Inquiry.NotifyEmail = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error when real collaborators are enabled without secrets")
	}
	msg := err.Error()
	for _, expected := range []string{
		"EMAIL_PROVIDER",
		"TURNSTILE_SECRET_KEY",
		"INQUIRY_NOTIFY_EMAIL",
	} {
		if !strings.Contains(msg, expected) {
			t.Fatalf("expected validation error to mention %q, got: %v", expected, err)
		}
	}
}

func TestValidate_ProviderSecrets(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		ProviderSendGrid: "SENDGRID_API_KEY",
		ProviderPostmark: "POSTMARK_SERVER_TOKEN",
		ProviderResend:   "RESEND_API_KEY",
		"mailgun":        "not supported",
	}
	for provider, want := range cases {
		cfg := validTestConfig()
		cfg.NoEmail = false
		cfg.Email.Provider = provider
		cfg.Email.Default = Sender{FromEmail: "hello@example.com"}

		err := cfg.Validate()
		require.Error(t, err, provider)
		require.Contains(t, err.Error(), want, provider)
	}
}

func TestValidate_RequiresResolvableSender(t *testing.T) {
	t.Parallel()
	cfg := validTestConfig()
	cfg.NoEmail = false
	cfg.Email.Provider = ProviderPostmark
	cfg.Email.Postmark.ServerToken = "server-token"

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "EMAIL_DEFAULT_FROM_EMAIL")

	cfg.Email.Default = Sender{FromEmail: "tours@example.com", FromName: "Tours"}
	require.NoError(t, cfg.Validate())
}

func TestActiveSender_FallsBackToGlobalDefault(t *testing.T) {
	t.Parallel()
	e := Email{
		Provider: ProviderSendGrid,
		SendGrid: SendGrid{Sender: Sender{FromEmail: "sg@example.com"}},
		Default:  Sender{FromEmail: "default@example.com", FromName: "Default Tours"},
	}
	got := e.ActiveSender()
	require.Equal(t, "sg@example.com", got.FromEmail)
	require.Equal(t, "Default Tours", got.FromName)

	e.SendGrid.Sender = Sender{FromName: "Orphan Name"}
	got = e.ActiveSender()
	require.Equal(t, Sender{FromEmail: "default@example.com", FromName: "Default Tours"}, got)
}

func testValidate_RejectsNonPositiveRateLimits(t *rapid.T) {
	cfg := validTestConfig()
	cfg.RateLimitConfig.RPS = rapid.Float64Range(-100, 0).Draw(t, "rps")
	cfg.RateLimitConfig.Burst = rapid.IntRange(-100, 0).Draw(t, "burst")

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for non-positive rate limits")
	}
	msg := err.Error()
	for _, token := range []string{"RATE_LIMIT_RPS", "RATE_LIMIT_BURST"} {
		if !strings.Contains(msg, token) {
			t.Fatalf("expected error mentioning %q, got: %v", token, err)
		}
	}
}

func TestValidate_RejectsNonPositiveRateLimits(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testValidate_RejectsNonPositiveRateLimits)
}

// clearConfigEnv blanks every variable LoadConfig reads.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LISTEN_ADDR", "LOG_FORMAT", "CORS_ALLOWED_ORIGINS", "MAX_BODY_BYTES",
		"EMAIL_PROVIDER", "EMAIL_DEFAULT_FROM_EMAIL", "EMAIL_DEFAULT_FROM_NAME", "EMAIL_TEMPLATES_FILE",
		"EMAIL_SEND_TIMEOUT", "CONTACT_CONFIRMATION_TEMPLATE_ID", "MOCK_EMAIL_OUTBOX_DIR",
		"SENDGRID_API_KEY", "SENDGRID_BASE_URL", "POSTMARK_SERVER_TOKEN", "POSTMARK_BASE_URL",
		"RESEND_API_KEY", "SES_REGION", "SES_ACCESS_KEY_ID", "SES_SECRET_ACCESS_KEY", "SES_ENDPOINT",
		"INQUIRY_NOTIFY_EMAIL", "INQUIRY_NOTIFY_NAME", "INQUIRY_AUTO_REPLY_TEMPLATE_ID",
		"TURNSTILE_SECRET_KEY", "TURNSTILE_VERIFY_URL", "TURNSTILE_TIMEOUT",
		"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "RATE_LIMIT_CLEANUP_INTERVAL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig_TestFlagEnablesMocks(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://tours.example.com, https://admin.example.com")

	cfg, err := LoadConfig(Flags{Test: true, Addr: ":9999", EnvFile: filepath.Join(t.TempDir(), "missing.env")})
	require.NoError(t, err)
	require.True(t, cfg.NoEmail)
	require.True(t, cfg.NoBotCheck)
	require.Equal(t, ProviderMock, cfg.Email.Provider)
	require.Equal(t, ":9999", cfg.ListenAddr)
	require.Equal(t, defaultMockNotifyEmail, cfg.Inquiry.NotifyEmail)
	require.Equal(t, []string{"https://tours.example.com", "https://admin.example.com"}, cfg.CORSAllowedOrigins)
}

func TestLoadConfig_ReadsEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("CFG_TEST_DOTENV_VALUE=from-file\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("CFG_TEST_DOTENV_VALUE") })

	require.NoError(t, LoadDotEnv(envFile))
	require.Equal(t, "from-file", os.Getenv("CFG_TEST_DOTENV_VALUE"))
}

func TestHelperParsers_DefaultOnBadInput(t *testing.T) {
	t.Setenv("CFG_TEST_INT", "not-an-int")
	t.Setenv("CFG_TEST_FLOAT", "not-a-float")
	t.Setenv("CFG_TEST_DUR", "not-a-duration")
	if got := parseIntOrDefault("CFG_TEST_INT", 7); got != 7 {
		t.Fatalf("parseIntOrDefault fallback mismatch: got=%d want=7", got)
	}
	if got := parseFloat64OrDefault("CFG_TEST_FLOAT", 3.5); got != 3.5 {
		t.Fatalf("parseFloat64OrDefault fallback mismatch: got=%v want=3.5", got)
	}
	if got := parseDurationOrDefault("CFG_TEST_DUR", 2*time.Minute); got != 2*time.Minute {
		t.Fatalf("parseDurationOrDefault fallback mismatch: got=%v want=%v", got, 2*time.Minute)
	}
}

func TestGetEnvOrDefault_TrimsWhitespace(t *testing.T) {
	t.Setenv("CFG_TEST_STR", "   value   ")
	if got := getEnvOrDefault("CFG_TEST_STR", "fallback"); got != "value" {
		t.Fatalf("getEnvOrDefault trim mismatch: got=%q want=%q", got, "value")
	}
}
