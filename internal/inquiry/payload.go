// Package inquiry turns visitor inquiry payloads into operator notifications
// and guest auto-replies, and dispatches them with independent failure
// isolation between the two sends.
package inquiry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Kind identifies a payload variant.
type Kind string

const (
	KindLegacy        Kind = "legacy"
	KindDynamic       Kind = "dynamic"
	KindComprehensive Kind = "comprehensive"
	KindContact       Kind = "contact"
)

// Payload is one of the inquiry variants accepted by Service.Submit.
type Payload interface {
	Kind() Kind
	Validate() ValidationErrors
	// BotCheckToken returns the client-supplied bot-check token, if any.
	BotCheckToken() string
	// Submitter returns the guest's email and display name.
	Submitter() (email, name string)
	// Render builds the operator notification. now is used when the payload
	// carries no submission time.
	Render(now time.Time) Notification
	// AutoReplyData builds the merge fields for the guest auto-reply.
	AutoReplyData(now time.Time) map[string]any
}

// LegacyInquiry is the original fixed-field inquiry form.
type LegacyInquiry struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Message         string `json:"message"`
	TourInterest    string `json:"tourInterest"`
	TravelDate      Date   `json:"travelDate"`
	TravelPartySize *int   `json:"travelPartySize"`
}

// DynamicInquiry is a free-form inquiry with arbitrary extra fields.
type DynamicInquiry struct {
	InquiryType      string `json:"inquiryType"`
	Email            string `json:"email"`
	Name             string `json:"name"`
	Message          string `json:"message"`
	Phone            string `json:"phone"`
	TourInterest     string `json:"tourInterest"`
	TravelDate       Date   `json:"travelDate"`
	TravelPartySize  *int   `json:"travelPartySize"`
	AdditionalFields Fields `json:"additionalFields"`
}

// ComprehensiveInquiry is the structured inquiry with travel planning and
// attribution data.
type ComprehensiveInquiry struct {
	FirstName      string          `json:"firstName"`
	LastName       string          `json:"lastName"`
	Email          string          `json:"email"`
	Phone          string          `json:"phone"`
	InquiryType    string          `json:"inquiryType"`
	SubjectName    string          `json:"subjectName"`
	SubjectID      *int            `json:"subjectId"`
	TravelPlanning *TravelPlanning `json:"travelPlanning"`
	Message        string          `json:"message"`
	HearAboutUs    string          `json:"hearAboutUs"`
	Subscribed     bool            `json:"subscribed"`
	SubmittedAt    Date            `json:"submittedAt"`
	UserAgent      string          `json:"userAgent"`
	Referrer       string          `json:"referrer"`
	IPAddress      string          `json:"ipAddress"`
	FormSource     string          `json:"formSource"`
	TurnstileToken string          `json:"turnstileToken"`
}

// TravelPlanning is the travel block of a comprehensive inquiry.
type TravelPlanning struct {
	FlexibleDates bool   `json:"flexibleDates"`
	TravelMonth   string `json:"travelMonth"`
	TravelDates   string `json:"travelDates"`
	Adults        *int   `json:"adults"`
	Children      int    `json:"children"`
}

// TravelTimeframe is the human-readable travel window.
func (tp TravelPlanning) TravelTimeframe() string {
	if tp.FlexibleDates {
		return orDefault(tp.TravelDates, "Flexible dates")
	}
	return orDefault(tp.TravelMonth, "Specific dates")
}

// AdultCount returns adults, or zero when absent.
func (tp TravelPlanning) AdultCount() int {
	if tp.Adults == nil {
		return 0
	}
	return *tp.Adults
}

// TotalTravelers is adults plus children.
func (tp TravelPlanning) TotalTravelers() int {
	return tp.AdultCount() + tp.Children
}

// ContactForm is the generic site form posted to /api/contact/send.
type ContactForm struct {
	FormType string `json:"formType"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Fields   Fields `json:"fields"`
}

// Field is one key/value pair of a free-form field map.
type Field struct {
	Key   string
	Value string
}

// Fields is a string map that keeps the order keys were submitted in.
type Fields []Field

// Get returns the value for key.
func (f Fields) Get(key string) (string, bool) {
	for _, field := range f {
		if field.Key == key {
			return field.Value, true
		}
	}
	return "", false
}

// UnmarshalJSON decodes a JSON object in document order. Scalar values are
// kept as their literal text; a repeated key replaces the earlier value in place.
func (f *Fields) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*f = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("fields: expected object")
	}

	out := Fields{}
	index := map[string]int{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		value, err := scalarText(raw)
		if err != nil {
			return fmt.Errorf("fields: %q: %w", key, err)
		}

		if i, seen := index[key]; seen {
			out[i].Value = value
			continue
		}
		index[key] = len(out)
		out = append(out, Field{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*f = out
	return nil
}

// MarshalJSON encodes the fields as an object in submission order.
func (f Fields) MarshalJSON() ([]byte, error) {
	if f == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(field.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(field.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func scalarText(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{', '[':
		return "", fmt.Errorf("value must be a string")
	default:
		return string(trimmed), nil
	}
}

// Date accepts "2006-01-02", RFC 3339 and zone-less "2006-01-02T15:04:05"
// timestamps. A JSON null or empty string leaves it unset.
type Date struct {
	time.Time
	set bool
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
}

// NewDate returns a set Date.
func NewDate(t time.Time) Date {
	return Date{Time: t, set: true}
}

// IsSet reports whether the payload carried a value.
func (d Date) IsSet() bool {
	return d.set
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*d = Date{}
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			*d = Date{Time: t, set: true}
			return nil
		}
	}
	return fmt.Errorf("invalid date %q", s)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if !d.set {
		return []byte("null"), nil
	}
	return json.Marshal(d.Time.Format(time.RFC3339))
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
