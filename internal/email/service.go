package email

import (
	"context"
	"log/slog"
	"time"

	"github.com/bsltours/tours-bff/internal/logutil"
	"github.com/bsltours/tours-bff/internal/obs"
)

// ServiceOptions configures the transport-agnostic Service.
type ServiceOptions struct {
	DefaultFromEmail              string
	DefaultFromName               string
	ContactConfirmationTemplateID string
	// SendTimeout bounds each provider call. Zero means no extra deadline.
	SendTimeout time.Duration
}

// SendRequest is a single-recipient plain send.
type SendRequest struct {
	To          string
	ToName      string
	Subject     string
	TextContent string
	HTMLContent string
	FromEmail   string
	FromName    string
}

// TemplatedSendRequest is a single-recipient templated send.
type TemplatedSendRequest struct {
	To           string
	ToName       string
	TemplateID   string
	TemplateData map[string]any
	FromEmail    string
	FromName     string
}

// Service is the high-level email facade. It supplies the default sender,
// bounds each call with SendTimeout and emits one log event per send.
type Service struct {
	provider Provider
	opts     ServiceOptions
	log      *slog.Logger
}

// NewService wraps the active provider.
func NewService(provider Provider, opts ServiceOptions) *Service {
	return &Service{
		provider: provider,
		opts:     opts,
		log:      obs.Pkg("email"),
	}
}

// ProviderName returns the active transport name.
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

// SendEmail builds a one-recipient Message and delegates to the provider.
func (s *Service) SendEmail(ctx context.Context, req SendRequest) Result {
	msg := &Message{
		From:        s.sender(req.FromEmail, req.FromName),
		To:          []Address{{Email: req.To, Name: req.ToName}},
		Subject:     req.Subject,
		TextContent: req.TextContent,
		HTMLContent: req.HTMLContent,
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	res := guard(s.log, s.provider.Name(), func() Result { return s.provider.SendEmail(ctx, msg) })
	s.logResult(ctx, res, start, req.To, "")
	return res
}

// SendTemplatedEmail builds a one-recipient TemplatedMessage and delegates to the provider.
func (s *Service) SendTemplatedEmail(ctx context.Context, req TemplatedSendRequest) Result {
	data := req.TemplateData
	if data == nil {
		data = map[string]any{}
	}
	msg := &TemplatedMessage{
		From:         s.sender(req.FromEmail, req.FromName),
		To:           []Address{{Email: req.To, Name: req.ToName}},
		TemplateID:   req.TemplateID,
		TemplateData: data,
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	res := guard(s.log, s.provider.Name(), func() Result { return s.provider.SendTemplatedEmail(ctx, msg) })
	s.logResult(ctx, res, start, req.To, req.TemplateID,
		slog.Any("template_keys", logutil.SafeKeys(data)))
	return res
}

// SendContactConfirmation sends the preconfigured confirmation template.
// A missing template id is a configuration fault and returns an error
// without touching the provider.
func (s *Service) SendContactConfirmation(ctx context.Context, to, userName string) (Result, error) {
	if s.opts.ContactConfirmationTemplateID == "" {
		return Result{}, ErrConfirmationTemplateMissing
	}
	return s.SendTemplatedEmail(ctx, TemplatedSendRequest{
		To:           to,
		TemplateID:   s.opts.ContactConfirmationTemplateID,
		TemplateData: map[string]any{"userName": userName},
	}), nil
}

// sender resolves the From identity. A nil result lets the provider default apply.
func (s *Service) sender(fromEmail, fromName string) *Address {
	email := fromEmail
	if email == "" {
		email = s.opts.DefaultFromEmail
	}
	if email == "" {
		return nil
	}
	name := fromName
	if name == "" {
		name = s.opts.DefaultFromName
	}
	return &Address{Email: email, Name: name}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.SendTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.SendTimeout)
}

func (s *Service) logResult(ctx context.Context, res Result, start time.Time, to, templateID string, extra ...any) {
	attrs := []any{
		"provider", s.provider.Name(),
		"to", logutil.RedactEmail(to),
		"status_code", res.StatusCode,
		"dur_ms", time.Since(start).Milliseconds(),
	}
	if templateID != "" {
		attrs = append(attrs, "template_id", templateID)
	}
	attrs = append(attrs, extra...)

	log := obs.From(ctx).With("pkg", "email")
	if res.Success {
		log.Info("email_sent", attrs...)
		return
	}
	attrs = append(attrs, "message", res.Message, "error_detail", logutil.TruncateForLog(res.ErrorDetail, 512))
	log.Warn("email_send_failed", attrs...)
}
