// Package email sends transactional mail through exactly one configured
// transport. Every send returns a Result; transport failures never surface
// as Go errors or panics past a Provider.
package email

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNoSender means neither the message nor the provider supplied a From address.
	ErrNoSender = errors.New("email: no from address specified")
	// ErrNoRecipients means a message reached a provider with an empty To list.
	ErrNoRecipients = errors.New("email: at least one recipient is required")
	// ErrConfirmationTemplateMissing means CONTACT_CONFIRMATION_TEMPLATE_ID is unset.
	ErrConfirmationTemplateMissing = errors.New("email: contact confirmation template id is not configured")
	// ErrInvalidTemplateID means the template id has the wrong shape for the transport.
	ErrInvalidTemplateID = errors.New("email: invalid template id")
)

// Address is a mailbox with an optional display name.
type Address struct {
	Email string
	Name  string
}

// String returns "Name <email>" when a name is present, else the bare email.
func (a Address) String() string {
	if strings.TrimSpace(a.Name) == "" {
		return a.Email
	}
	return a.Name + " <" + a.Email + ">"
}

// Message is a plain send with client-supplied content.
type Message struct {
	From        *Address
	To          []Address
	Cc          []Address
	Bcc         []Address
	Subject     string
	TextContent string
	HTMLContent string
}

// TemplatedMessage is a send whose body the transport renders from TemplateID.
type TemplatedMessage struct {
	From         *Address
	To           []Address
	TemplateID   string
	TemplateData map[string]any
}

// Result is the outcome of one send attempt.
type Result struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	ErrorDetail string `json:"errorDetail,omitempty"`
	StatusCode  int    `json:"statusCode,omitempty"`

	// Err is the local cause for failures detected before any network call.
	Err error `json:"-"`
}

// Succeeded builds a successful Result.
func Succeeded(message string, statusCode int) Result {
	return Result{Success: true, Message: message, StatusCode: statusCode}
}

// Failed builds a failed Result.
func Failed(message, detail string, statusCode int) Result {
	return Result{Message: message, ErrorDetail: detail, StatusCode: statusCode}
}

func failedWith(message string, err error) Result {
	return Result{Message: message, ErrorDetail: err.Error(), Err: err}
}

// Provider is one concrete email transport. Implementations must be safe for
// concurrent use; one instance serves every request in the process.
type Provider interface {
	Name() string
	SendEmail(ctx context.Context, msg *Message) Result
	SendTemplatedEmail(ctx context.Context, msg *TemplatedMessage) Result
}
