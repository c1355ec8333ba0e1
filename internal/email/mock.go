package email

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/bsltours/tours-bff/internal/obs"
)

// SentEmail is a message captured by MockProvider.
type SentEmail struct {
	Kind         string // "plain" or "templated"
	From         Address
	To           []Address
	Cc           []Address
	Bcc          []Address
	Subject      string
	TextContent  string
	HTMLContent  string
	TemplateID   string
	TemplateData map[string]any
}

// MockProvider captures messages instead of sending them. It backs
// --no-email and the tests. Templated sends are rendered from the catalog
// when the template id is known so the outbox shows what a guest would see.
type MockProvider struct {
	mu        sync.Mutex
	Emails    []SentEmail
	from      Address
	catalog   *TemplateCatalog
	outboxDir string
	seq       uint64
	log       *slog.Logger

	// FailOn, when set, makes matching sends fail with a 503 result.
	FailOn func(SentEmail) bool
	// PanicOn, when set, makes matching sends panic inside the transport.
	PanicOn func(SentEmail) bool
}

// NewMockProvider creates a mock provider. outboxDir may be empty to keep
// messages in memory only.
func NewMockProvider(from Address, outboxDir string) *MockProvider {
	if outboxDir != "" {
		if err := os.MkdirAll(outboxDir, 0o755); err != nil {
			obs.Pkg("email.mock").Warn("failed to create outbox dir", "dir", outboxDir, "error", err)
			outboxDir = ""
		}
	}
	return &MockProvider{
		Emails:    make([]SentEmail, 0),
		from:      from,
		catalog:   DefaultCatalog(),
		outboxDir: outboxDir,
		log:       obs.Pkg("email.mock"),
	}
}

func (m *MockProvider) Name() string { return "mock" }

// SendEmail captures a plain message.
func (m *MockProvider) SendEmail(ctx context.Context, msg *Message) Result {
	return guard(m.log, m.Name(), func() Result {
		from, err := resolveFrom(msg.From, m.from)
		if err != nil {
			return failedWith("Exception occurred while sending email", err)
		}
		if err := checkRecipients(msg.To); err != nil {
			return failedWith("Exception occurred while sending email", err)
		}
		return m.capture(SentEmail{
			Kind:        "plain",
			From:        from,
			To:          msg.To,
			Cc:          msg.Cc,
			Bcc:         msg.Bcc,
			Subject:     msg.Subject,
			TextContent: msg.TextContent,
			HTMLContent: msg.HTMLContent,
		}, "Email sent successfully")
	})
}

// SendTemplatedEmail captures a templated message.
func (m *MockProvider) SendTemplatedEmail(ctx context.Context, msg *TemplatedMessage) Result {
	return guard(m.log, m.Name(), func() Result {
		from, err := resolveFrom(msg.From, m.from)
		if err != nil {
			return failedWith("Exception occurred while sending templated email", err)
		}
		if err := checkRecipients(msg.To); err != nil {
			return failedWith("Exception occurred while sending templated email", err)
		}
		sent := SentEmail{
			Kind:         "templated",
			From:         from,
			To:           msg.To,
			TemplateID:   msg.TemplateID,
			TemplateData: msg.TemplateData,
		}
		if m.catalog.Has(msg.TemplateID) {
			if rendered, err := m.catalog.Render(msg.TemplateID, msg.TemplateData); err == nil {
				sent.Subject = rendered.Subject
				sent.HTMLContent = rendered.HTML
				sent.TextContent = rendered.Text
			}
		}
		return m.capture(sent, "Templated email sent successfully")
	})
}

func (m *MockProvider) capture(sent SentEmail, okMsg string) Result {
	if m.PanicOn != nil && m.PanicOn(sent) {
		panic("mock transport panic")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Emails = append(m.Emails, sent)

	if m.FailOn != nil && m.FailOn(sent) {
		return Failed("Failed to send email", "mock failure", http.StatusServiceUnavailable)
	}

	m.log.Info("mock email captured",
		"kind", sent.Kind, "to", joinAddresses(sent.To), "subject", sent.Subject, "template_id", sent.TemplateID)
	if err := m.writeOutboxEvent(sent); err != nil {
		m.log.Warn("failed to write outbox event", "error", err)
	}
	return Succeeded(okMsg, http.StatusOK)
}

// LastEmail returns the most recently captured email.
// Returns zero value if no emails have been captured.
func (m *MockProvider) LastEmail() SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Emails) == 0 {
		return SentEmail{}
	}
	return m.Emails[len(m.Emails)-1]
}

// Sent returns a copy of every captured email.
func (m *MockProvider) Sent() []SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentEmail(nil), m.Emails...)
}

// Count returns the number of captured send attempts, failed ones included.
func (m *MockProvider) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Emails)
}

type outboxEmailEvent struct {
	Sequence       uint64         `json:"sequence"`
	Kind           string         `json:"kind"`
	From           string         `json:"from"`
	To             string         `json:"to"`
	Subject        string         `json:"subject,omitempty"`
	TemplateID     string         `json:"template_id,omitempty"`
	TemplateData   map[string]any `json:"template_data,omitempty"`
	HTML           string         `json:"html,omitempty"`
	Text           string         `json:"text,omitempty"`
	SentAtUnixNano int64          `json:"sent_at_unix_nano"`
}

// writeOutboxEvent persists one JSON file per capture. Caller holds m.mu.
func (m *MockProvider) writeOutboxEvent(sent SentEmail) error {
	if m.outboxDir == "" {
		return nil
	}

	m.seq++
	event := outboxEmailEvent{
		Sequence:       m.seq,
		Kind:           sent.Kind,
		From:           sent.From.String(),
		To:             joinAddresses(sent.To),
		Subject:        sent.Subject,
		TemplateID:     sent.TemplateID,
		TemplateData:   sent.TemplateData,
		HTML:           sent.HTMLContent,
		Text:           sent.TextContent,
		SentAtUnixNano: time.Now().UnixNano(),
	}

	recipient := ""
	if len(sent.To) > 0 {
		recipient = sent.To[0].Email
	}
	fileName := fmt.Sprintf(
		"%020d-%020d-%s-%s.json",
		event.Sequence,
		event.SentAtUnixNano,
		sanitizeOutboxComponent(sent.Kind),
		sanitizeOutboxComponent(recipient),
	)
	finalPath := filepath.Join(m.outboxDir, fileName)
	tempPath := finalPath + ".tmp"

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal outbox event: %w", err)
	}
	if err := os.WriteFile(tempPath, payload, 0o644); err != nil {
		return fmt.Errorf("write outbox temp file: %w", err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("rename outbox file: %w", err)
	}
	return nil
}

var outboxSanitizePattern = regexp.MustCompile(`[^a-zA-Z0-9._@-]+`)

func sanitizeOutboxComponent(input string) string {
	safe := strings.TrimSpace(input)
	if safe == "" {
		return "unknown"
	}
	return outboxSanitizePattern.ReplaceAllString(safe, "_")
}
