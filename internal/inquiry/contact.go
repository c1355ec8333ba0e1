package inquiry

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// ContactPlainText strips every tag from markup and decodes the entities
// the sanitizer leaves behind.
func ContactPlainText(markup string) string {
	return html.UnescapeString(strictPolicy.Sanitize(markup))
}

// Render builds the operator notification for a contact form submission.
func (f *ContactForm) Render() Notification {
	var b htmlBody
	b.field("Form Type", f.FormType)
	b.field("Email", f.Email)
	if strings.TrimSpace(f.Name) != "" {
		b.field("Name", f.Name)
	}
	for _, field := range f.Fields {
		b.field(field.Key, field.Value)
	}

	markup := b.String()
	return Notification{
		Subject:  "New Form Submission: " + f.FormType,
		HTMLBody: markup,
		TextBody: ContactPlainText(markup),
	}
}

// UserName is the name used in the confirmation email.
func (f *ContactForm) UserName() string {
	return orDefault(f.Name, f.Email)
}
