package inquiry

import (
	"net/mail"
	"sort"
	"strings"
)

// ValidationErrors maps a JSON field path to its problems.
type ValidationErrors map[string][]string

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v))
	for field := range v {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// Add records a problem for field.
func (v ValidationErrors) Add(field, problem string) {
	v[field] = append(v[field], problem)
}

// OrNil returns nil when there are no problems.
func (v ValidationErrors) OrNil() ValidationErrors {
	if len(v) == 0 {
		return nil
	}
	return v
}

func (v ValidationErrors) required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		v.Add(field, "The "+field+" field is required.")
		return false
	}
	return true
}

func (v ValidationErrors) email(field, value string) {
	if !v.required(field, value) {
		return
	}
	if !ValidEmail(value) {
		v.Add(field, "The "+field+" field is not a valid e-mail address.")
	}
}

// ValidEmail reports whether s is a bare RFC 5322 address with no display name.
func ValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	return addr.Address == s && addr.Name == ""
}

func (p *LegacyInquiry) Validate() ValidationErrors {
	v := ValidationErrors{}
	v.required("name", p.Name)
	v.email("email", p.Email)
	v.required("message", p.Message)
	if !p.TravelDate.IsSet() {
		v.Add("travelDate", "The travelDate field is required.")
	}
	switch {
	case p.TravelPartySize == nil:
		v.Add("travelPartySize", "The travelPartySize field is required.")
	case *p.TravelPartySize < 0:
		v.Add("travelPartySize", "The travelPartySize field must not be negative.")
	}
	return v.OrNil()
}

func (p *DynamicInquiry) Validate() ValidationErrors {
	v := ValidationErrors{}
	v.required("inquiryType", p.InquiryType)
	v.email("email", p.Email)
	if p.TravelPartySize != nil && *p.TravelPartySize < 0 {
		v.Add("travelPartySize", "The travelPartySize field must not be negative.")
	}
	return v.OrNil()
}

func (p *ComprehensiveInquiry) Validate() ValidationErrors {
	v := ValidationErrors{}
	v.required("firstName", p.FirstName)
	v.required("lastName", p.LastName)
	v.email("email", p.Email)
	v.required("inquiryType", p.InquiryType)
	v.required("message", p.Message)

	switch {
	case p.TravelPlanning == nil:
		v.Add("travelPlanning", "The travelPlanning field is required.")
	default:
		tp := p.TravelPlanning
		switch {
		case tp.Adults == nil:
			v.Add("travelPlanning.adults", "The adults field is required.")
		case *tp.Adults < 0:
			v.Add("travelPlanning.adults", "The adults field must not be negative.")
		}
		if tp.Children < 0 {
			v.Add("travelPlanning.children", "The children field must not be negative.")
		}
	}
	return v.OrNil()
}

// Validate checks the contact form's required fields.
func (f *ContactForm) Validate() ValidationErrors {
	v := ValidationErrors{}
	v.required("formType", f.FormType)
	v.email("email", f.Email)
	return v.OrNil()
}
