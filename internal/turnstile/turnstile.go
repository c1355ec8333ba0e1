// Package turnstile verifies Cloudflare Turnstile bot-check tokens.
package turnstile

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bsltours/tours-bff/internal/obs"
)

// DefaultVerifyURL is Cloudflare's siteverify endpoint.
const DefaultVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

const maxResponseBytes = 64 << 10

// ErrMissingSecret is returned by NewVerifier when no secret key is configured.
var ErrMissingSecret = errors.New("turnstile: secret key is required")

// Config configures a Verifier.
type Config struct {
	SecretKey  string
	VerifyURL  string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Verifier checks tokens against the siteverify endpoint. It is a pure
// predicate: one attempt, no retries, every failure is false.
type Verifier struct {
	secret    string
	verifyURL string
	client    *http.Client
	log       *slog.Logger
}

// siteverifyResponse is the subset of the siteverify reply we read.
// Field matching is case-insensitive.
type siteverifyResponse struct {
	Success     bool     `json:"success"`
	ChallengeTS string   `json:"challenge_ts"`
	Hostname    string   `json:"hostname"`
	ErrorCodes  []string `json:"error-codes"`
	Action      string   `json:"action"`
}

// NewVerifier creates a Verifier.
func NewVerifier(cfg Config) (*Verifier, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, ErrMissingSecret
	}
	verifyURL := cfg.VerifyURL
	if verifyURL == "" {
		verifyURL = DefaultVerifyURL
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Verifier{
		secret:    cfg.SecretKey,
		verifyURL: verifyURL,
		client:    client,
		log:       obs.Pkg("turnstile"),
	}, nil
}

// Verify reports whether token is valid. An empty token is rejected without
// a network call. remoteIP is forwarded when non-empty.
func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) bool {
	log := obs.From(ctx).With("pkg", "turnstile")
	if strings.TrimSpace(token) == "" {
		log.Warn("turnstile_rejected", "reason", "empty_token")
		return false
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		log.Error("turnstile_request_build_failed", "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		log.Error("turnstile_request_failed", "error", err, "token_len", len(token))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn("turnstile_rejected", "reason", "http_status", "status", resp.StatusCode)
		return false
	}

	var out siteverifyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		log.Error("turnstile_decode_failed", "error", err)
		return false
	}
	if !out.Success {
		log.Warn("turnstile_rejected", "reason", "upstream", "error_codes", out.ErrorCodes, "token_len", len(token))
		return false
	}
	log.Info("turnstile_verified", "hostname", out.Hostname)
	return true
}

// AcceptAll accepts any non-empty token. It backs --no-bot-check.
type AcceptAll struct{}

// Verify reports whether token is non-empty.
func (AcceptAll) Verify(_ context.Context, token, _ string) bool {
	return strings.TrimSpace(token) != ""
}
