package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/resend/resend-go/v3"

	"github.com/bsltours/tours-bff/internal/obs"
)

// ResendConfig configures the Resend transport.
type ResendConfig struct {
	APIKey     string
	BaseURL    string // optional override, mainly for tests
	From       Address
	HTTPClient *http.Client
	Catalog    *TemplateCatalog
}

// ResendProvider sends through the Resend API. Resend has no server-side
// template ids, so templated sends are rendered from the local catalog.
type ResendProvider struct {
	client  *resend.Client
	from    Address
	catalog *TemplateCatalog
	log     *slog.Logger
}

// NewResendProvider creates a Resend transport.
func NewResendProvider(cfg ResendConfig) (*ResendProvider, error) {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	client := resend.NewCustomClient(httpClient, cfg.APIKey)
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("resend base url: %w", err)
		}
		client.BaseURL = u
	}
	catalog := cfg.Catalog
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &ResendProvider{
		client:  client,
		from:    cfg.From,
		catalog: catalog,
		log:     obs.Pkg("email.resend"),
	}, nil
}

func (r *ResendProvider) Name() string { return "resend" }

// SendEmail sends a plain message.
func (r *ResendProvider) SendEmail(ctx context.Context, msg *Message) Result {
	return guard(r.log, r.Name(), func() Result {
		from, err := resolveFrom(msg.From, r.from)
		if err != nil {
			return failedWith("Exception occurred while sending email", err)
		}
		if err := checkRecipients(msg.To); err != nil {
			return failedWith("Exception occurred while sending email", err)
		}
		return r.send(ctx, &resend.SendEmailRequest{
			From:    from.String(),
			To:      formattedAddresses(msg.To),
			Cc:      formattedAddresses(msg.Cc),
			Bcc:     formattedAddresses(msg.Bcc),
			Subject: msg.Subject,
			Html:    msg.HTMLContent,
			Text:    msg.TextContent,
		}, "Email sent successfully")
	})
}

// SendTemplatedEmail renders TemplateID from the catalog and sends the result.
func (r *ResendProvider) SendTemplatedEmail(ctx context.Context, msg *TemplatedMessage) Result {
	return guard(r.log, r.Name(), func() Result {
		from, err := resolveFrom(msg.From, r.from)
		if err != nil {
			return failedWith("Exception occurred while sending templated email", err)
		}
		if err := checkRecipients(msg.To); err != nil {
			return failedWith("Exception occurred while sending templated email", err)
		}
		rendered, err := r.catalog.Render(msg.TemplateID, msg.TemplateData)
		if err != nil {
			return failedWith("Exception occurred while sending templated email", err)
		}
		return r.send(ctx, &resend.SendEmailRequest{
			From:    from.String(),
			To:      formattedAddresses(msg.To),
			Subject: rendered.Subject,
			Html:    rendered.HTML,
			Text:    rendered.Text,
		}, "Templated email sent successfully")
	})
}

func (r *ResendProvider) send(ctx context.Context, params *resend.SendEmailRequest, okMsg string) Result {
	sent, err := r.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		r.log.Error("resend request failed", "error", err)
		return Failed("Exception occurred while sending email", err.Error(), 0)
	}
	res := Succeeded(okMsg, http.StatusOK)
	if sent != nil && sent.Id != "" {
		r.log.Debug("resend accepted message", "message_id", sent.Id)
	}
	return res
}
