package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/mrz1836/postmark"

	"github.com/bsltours/tours-bff/internal/obs"
)

// PostmarkConfig configures the Postmark transport.
type PostmarkConfig struct {
	ServerToken string
	BaseURL     string // e.g. https://api.postmarkapp.com
	From        Address
	HTTPClient  *http.Client
}

// PostmarkProvider sends through the Postmark single-message API. Only the
// first To entry is used; extra recipients are logged and dropped.
type PostmarkProvider struct {
	client *postmark.Client
	from   Address
	log    *slog.Logger
}

// NewPostmarkProvider creates a Postmark transport.
func NewPostmarkProvider(cfg PostmarkConfig) *PostmarkProvider {
	client := postmark.NewClient(cfg.ServerToken, "")
	if base := strings.TrimRight(cfg.BaseURL, "/"); base != "" {
		client.BaseURL = base
	}
	if cfg.HTTPClient != nil {
		client.HTTPClient = cfg.HTTPClient
	}
	return &PostmarkProvider{
		client: client,
		from:   cfg.From,
		log:    obs.Pkg("email.postmark"),
	}
}

func (p *PostmarkProvider) Name() string { return "postmark" }

// SendEmail sends a plain message.
func (p *PostmarkProvider) SendEmail(ctx context.Context, msg *Message) Result {
	return guard(p.log, p.Name(), func() Result {
		from, err := resolveFrom(msg.From, p.from)
		if err != nil {
			return failedWith("Exception occurred while sending email", err)
		}
		to, err := p.primaryRecipient(msg.To, "standard")
		if err != nil {
			return failedWith("Exception occurred while sending email", err)
		}

		resp, err := p.client.SendEmail(ctx, postmark.Email{
			From:     from.String(),
			To:       to.String(),
			Cc:       joinAddresses(msg.Cc),
			Bcc:      joinAddresses(msg.Bcc),
			Subject:  msg.Subject,
			TextBody: msg.TextContent,
			HTMLBody: msg.HTMLContent,
		})
		return p.result(resp, err, "Email sent successfully", "Failed to send email")
	})
}

// SendTemplatedEmail sends a server-side template. Postmark template ids are
// numeric; anything else fails before a request is made.
func (p *PostmarkProvider) SendTemplatedEmail(ctx context.Context, msg *TemplatedMessage) Result {
	return guard(p.log, p.Name(), func() Result {
		from, err := resolveFrom(msg.From, p.from)
		if err != nil {
			return failedWith("Exception occurred while sending templated email", err)
		}
		to, err := p.primaryRecipient(msg.To, "templated")
		if err != nil {
			return failedWith("Exception occurred while sending templated email", err)
		}
		templateID, err := strconv.ParseInt(strings.TrimSpace(msg.TemplateID), 10, 64)
		if err != nil {
			return failedWith("Exception occurred while sending templated email",
				fmt.Errorf("%w: postmark template id %q must be numeric", ErrInvalidTemplateID, msg.TemplateID))
		}

		resp, err := p.client.SendTemplatedEmail(ctx, postmark.TemplatedEmail{
			TemplateID:    templateID,
			TemplateModel: msg.TemplateData,
			From:          from.String(),
			To:            to.String(),
		})
		return p.result(resp, err, "Templated email sent successfully", "Failed to send templated email")
	})
}

func (p *PostmarkProvider) primaryRecipient(to []Address, kind string) (Address, error) {
	if err := checkRecipients(to); err != nil {
		return Address{}, err
	}
	valid := make([]Address, 0, len(to))
	for _, a := range to {
		if strings.TrimSpace(a.Email) != "" {
			valid = append(valid, a)
		}
	}
	if len(valid) > 1 {
		p.log.Warn("postmark send supports a single recipient; sending to the first only",
			"kind", kind, "dropped", len(valid)-1)
	}
	return valid[0], nil
}

func (p *PostmarkProvider) result(resp postmark.EmailResponse, err error, okMsg, failMsg string) Result {
	if resp.ErrorCode != 0 {
		p.log.Error("postmark rejected message", "error_code", resp.ErrorCode, "message", resp.Message)
		return Failed(failMsg+": "+resp.Message, fmt.Sprintf("Error Code: %d", resp.ErrorCode), int(resp.ErrorCode))
	}
	if err != nil {
		p.log.Error("postmark request failed", "error", err)
		return Failed("Exception occurred while sending email", err.Error(), 0)
	}
	return Succeeded(okMsg, http.StatusOK)
}
