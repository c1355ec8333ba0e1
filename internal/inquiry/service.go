package inquiry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsltours/tours-bff/internal/email"
	"github.com/bsltours/tours-bff/internal/errs"
	"github.com/bsltours/tours-bff/internal/logutil"
	"github.com/bsltours/tours-bff/internal/obs"
)

// RejectedTokenMessage is the user-facing bot-check failure message.
const RejectedTokenMessage = "Invalid security token. Please refresh the page and try again."

// Verifier checks bot-check tokens.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) bool
}

// Mailer is the subset of email.Service the workflows use.
type Mailer interface {
	SendEmail(ctx context.Context, req email.SendRequest) email.Result
	SendTemplatedEmail(ctx context.Context, req email.TemplatedSendRequest) email.Result
	SendContactConfirmation(ctx context.Context, to, userName string) (email.Result, error)
}

// Options configures a Service.
type Options struct {
	NotifyEmail string
	NotifyName  string
	// AutoReplyTemplateID enables the guest auto-reply when set.
	AutoReplyTemplateID string
	// Now defaults to time.Now.
	Now func() time.Time
}

// RejectedError carries the diagnostics of a failed bot check.
type RejectedError struct {
	TokenLength int
	ClientIP    string
	Timestamp   time.Time
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("bot check rejected (token length %d)", e.TokenLength)
}

// Outcome describes an accepted submission. The send results are
// informational; acceptance never depends on them.
type Outcome struct {
	Kind         Kind
	Message      string
	Notification Notification
	Notify       email.Result
	// AutoReply is nil when no auto-reply was attempted.
	AutoReply *email.Result
}

// Service runs the inquiry workflow: validate, verify, render, notify the
// operator, then notify the submitter. The two sends are isolated from each
// other and from the caller's response.
type Service struct {
	mailer   Mailer
	verifier Verifier
	opts     Options
}

// NewService creates the inquiry workflow.
func NewService(mailer Mailer, verifier Verifier, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		mailer:   mailer,
		verifier: verifier,
		opts:     opts,
	}
}

var successMessages = map[Kind]string{
	KindLegacy:        "Inquiry submitted successfully",
	KindDynamic:       "Dynamic inquiry submitted successfully",
	KindComprehensive: "Comprehensive inquiry submitted successfully",
}

// Submit processes one inquiry. It returns an errs.InvalidArgument error
// wrapping ValidationErrors for a malformed payload and an
// errs.VerificationFailed error wrapping *RejectedError when the bot check
// fails. In both cases no email is sent.
func (s *Service) Submit(ctx context.Context, p Payload, clientIP string) (*Outcome, error) {
	log := obs.From(ctx).With("pkg", "inquiry", "kind", string(p.Kind()))
	now := s.opts.Now()

	if verrs := p.Validate(); verrs != nil {
		log.Info("inquiry_invalid", "fields", len(verrs))
		return nil, errs.Wrap(errs.InvalidArgument, "validation failed", verrs)
	}

	if token := p.BotCheckToken(); token != "" {
		if !s.verifier.Verify(ctx, token, clientIP) {
			log.Warn("inquiry_rejected", "token_len", len(token))
			return nil, errs.Wrap(errs.VerificationFailed, RejectedTokenMessage, &RejectedError{
				TokenLength: len(token),
				ClientIP:    clientIP,
				Timestamp:   now.UTC(),
			})
		}
	}

	out := &Outcome{Kind: p.Kind(), Message: successMessages[p.Kind()]}

	out.Notify = s.isolate(log, "notify_operator", func() email.Result {
		out.Notification = p.Render(now)
		return s.mailer.SendEmail(ctx, email.SendRequest{
			To:          s.opts.NotifyEmail,
			ToName:      s.opts.NotifyName,
			Subject:     out.Notification.Subject,
			HTMLContent: out.Notification.HTMLBody,
			TextContent: out.Notification.TextBody,
		})
	})

	if s.opts.AutoReplyTemplateID == "" {
		log.Info("auto_reply_skipped", "reason", "template_not_configured")
	} else {
		guestEmail, guestName := p.Submitter()
		res := s.isolate(log, "notify_submitter", func() email.Result {
			return s.mailer.SendTemplatedEmail(ctx, email.TemplatedSendRequest{
				To:           guestEmail,
				ToName:       guestName,
				TemplateID:   s.opts.AutoReplyTemplateID,
				TemplateData: p.AutoReplyData(now),
			})
		})
		out.AutoReply = &res
	}

	log.Info("inquiry_completed",
		"notify_ok", out.Notify.Success,
		"auto_reply_ok", out.AutoReply != nil && out.AutoReply.Success,
		"submitter", logutil.RedactEmail(submitterEmail(p)),
	)
	return out, nil
}

// SubmitContact processes a generic contact form: notify the operator, then
// send the contact confirmation. A missing confirmation template is an
// errs.Misconfigured error.
func (s *Service) SubmitContact(ctx context.Context, form *ContactForm) (*Outcome, error) {
	log := obs.From(ctx).With("pkg", "inquiry", "kind", string(KindContact))

	if verrs := form.Validate(); verrs != nil {
		log.Info("contact_invalid", "fields", len(verrs))
		return nil, errs.Wrap(errs.InvalidArgument, "validation failed", verrs)
	}

	out := &Outcome{Kind: KindContact}
	out.Notify = s.isolate(log, "notify_operator", func() email.Result {
		out.Notification = form.Render()
		return s.mailer.SendEmail(ctx, email.SendRequest{
			To:          s.opts.NotifyEmail,
			ToName:      s.opts.NotifyName,
			Subject:     out.Notification.Subject,
			HTMLContent: out.Notification.HTMLBody,
			TextContent: out.Notification.TextBody,
		})
	})

	res, err := s.mailer.SendContactConfirmation(ctx, form.Email, form.UserName())
	if err != nil {
		log.Error("contact_confirmation_misconfigured", "error", err)
		return nil, errs.Wrap(errs.Misconfigured, "contact confirmation is not configured", err)
	}
	out.AutoReply = &res

	log.Info("contact_completed",
		"form_type", form.FormType,
		"notify_ok", out.Notify.Success,
		"confirmation_ok", res.Success,
	)
	return out, nil
}

// isolate runs one send step and converts a panic into a failed result so
// the next step still runs.
func (s *Service) isolate(log *slog.Logger, step string, fn func() email.Result) (res email.Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("inquiry_step_panic", "step", step, "panic", fmt.Sprint(r))
			res = email.Failed("Exception occurred while sending email", fmt.Sprint(r), 0)
		}
	}()
	res = fn()
	if !res.Success {
		log.Warn("inquiry_step_failed", "step", step, "message", res.Message, "status_code", res.StatusCode)
	}
	return res
}

func submitterEmail(p Payload) string {
	addr, _ := p.Submitter()
	return addr
}
