package email

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/bsltours/tours-bff/internal/obs"
)

const sendGridSendPath = "/v3/mail/send"

// SendGridConfig configures the SendGrid v3 transport.
type SendGridConfig struct {
	APIKey  string
	BaseURL string // e.g. https://api.sendgrid.com
	From    Address
}

// SendGridProvider sends through the SendGrid v3 mail/send API. All To, Cc
// and Bcc entries travel in a single personalization.
type SendGridProvider struct {
	apiKey string
	host   string
	from   Address
	log    *slog.Logger
}

// NewSendGridProvider creates a SendGrid transport.
func NewSendGridProvider(cfg SendGridConfig) *SendGridProvider {
	host := strings.TrimRight(cfg.BaseURL, "/")
	if host == "" {
		host = "https://api.sendgrid.com"
	}
	return &SendGridProvider{
		apiKey: cfg.APIKey,
		host:   host,
		from:   cfg.From,
		log:    obs.Pkg("email.sendgrid"),
	}
}

func (p *SendGridProvider) Name() string { return "sendgrid" }

// SendEmail sends a plain message.
func (p *SendGridProvider) SendEmail(ctx context.Context, msg *Message) Result {
	return guard(p.log, p.Name(), func() Result {
		from, err := resolveFrom(msg.From, p.from)
		if err != nil {
			return failedWith("Exception occurred while sending email", err)
		}
		if err := checkRecipients(msg.To); err != nil {
			return failedWith("Exception occurred while sending email", err)
		}

		m := mail.NewV3Mail()
		m.SetFrom(mail.NewEmail(from.Name, from.Email))
		m.Subject = msg.Subject

		pers := mail.NewPersonalization()
		pers.AddTos(sendGridEmails(msg.To)...)
		if len(msg.Cc) > 0 {
			pers.AddCCs(sendGridEmails(msg.Cc)...)
		}
		if len(msg.Bcc) > 0 {
			pers.AddBCCs(sendGridEmails(msg.Bcc)...)
		}
		m.AddPersonalizations(pers)

		// SendGrid requires text/plain to precede text/html.
		if strings.TrimSpace(msg.TextContent) != "" {
			m.AddContent(mail.NewContent("text/plain", msg.TextContent))
		}
		if strings.TrimSpace(msg.HTMLContent) != "" {
			m.AddContent(mail.NewContent("text/html", msg.HTMLContent))
		}

		return p.send(ctx, m, "Email sent successfully", "Failed to send email")
	})
}

// SendTemplatedEmail sends a dynamic template. Template ids are opaque strings.
func (p *SendGridProvider) SendTemplatedEmail(ctx context.Context, msg *TemplatedMessage) Result {
	return guard(p.log, p.Name(), func() Result {
		from, err := resolveFrom(msg.From, p.from)
		if err != nil {
			return failedWith("Exception occurred while sending templated email", err)
		}
		if err := checkRecipients(msg.To); err != nil {
			return failedWith("Exception occurred while sending templated email", err)
		}
		if strings.TrimSpace(msg.TemplateID) == "" {
			return failedWith("Exception occurred while sending templated email", ErrInvalidTemplateID)
		}

		m := mail.NewV3Mail()
		m.SetFrom(mail.NewEmail(from.Name, from.Email))
		m.SetTemplateID(msg.TemplateID)

		pers := mail.NewPersonalization()
		pers.AddTos(sendGridEmails(msg.To)...)
		for k, v := range msg.TemplateData {
			pers.SetDynamicTemplateData(k, v)
		}
		m.AddPersonalizations(pers)

		return p.send(ctx, m, "Templated email sent successfully", "Failed to send templated email")
	})
}

func (p *SendGridProvider) send(ctx context.Context, m *mail.SGMailV3, okMsg, failMsg string) Result {
	req := sendgrid.GetRequest(p.apiKey, sendGridSendPath, p.host)
	req.Method = rest.Post
	req.Body = mail.GetRequestBody(m)

	resp, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		p.log.Error("sendgrid request failed", "error", err)
		return Failed("Exception occurred while sending email", err.Error(), 0)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Succeeded(okMsg, resp.StatusCode)
	}
	p.log.Error("sendgrid rejected message", "status_code", resp.StatusCode)
	return Failed(failMsg, resp.Body, resp.StatusCode)
}

func sendGridEmails(addrs []Address) []*mail.Email {
	out := make([]*mail.Email, 0, len(addrs))
	for _, a := range addrs {
		if a.Email == "" {
			continue
		}
		out = append(out, mail.NewEmail(a.Name, a.Email))
	}
	return out
}
