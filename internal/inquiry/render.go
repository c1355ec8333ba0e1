package inquiry

import (
	"strconv"
	"strings"
	"time"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02 15:04:05"
	longDateLayout  = "January 02, 2006"
)

// Notification is the rendered operator email.
type Notification struct {
	Subject  string
	HTMLBody string
	TextBody string
}

var plainTextReplacer = strings.NewReplacer(
	"<h2>", "",
	"</h2>", "\n",
	"<h3>", "",
	"</h3>", "\n",
	"<p>", "",
	"</p>", "\n",
	"<strong>", "",
	"</strong>", "",
)

// ToPlainText strips the fixed tag set used by the notification renderers.
// Any other markup is left as is.
func ToPlainText(html string) string {
	return plainTextReplacer.Replace(html)
}

type htmlBody struct {
	strings.Builder
}

func (b *htmlBody) heading(text string) {
	b.WriteString("<h2>" + text + "</h2>")
}

func (b *htmlBody) section(text string) {
	b.WriteString("<h3>" + text + "</h3>")
}

func (b *htmlBody) field(label, value string) {
	b.WriteString("<p><strong>" + label + ":</strong> " + value + "</p>")
}

func (b *htmlBody) notification(subject string) Notification {
	html := b.String()
	return Notification{Subject: subject, HTMLBody: html, TextBody: ToPlainText(html)}
}

func submittedStamp(t time.Time) string {
	return t.UTC().Format(timestampLayout) + " UTC"
}

func fromLine(name, email string) string {
	if strings.TrimSpace(name) == "" {
		return email
	}
	return name + " (" + email + ")"
}

func optionalInt(n *int, fallback string) string {
	if n == nil {
		return fallback
	}
	return strconv.Itoa(*n)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func (p *LegacyInquiry) Kind() Kind            { return KindLegacy }
func (p *LegacyInquiry) BotCheckToken() string { return "" }

func (p *LegacyInquiry) Submitter() (string, string) {
	return p.Email, p.Name
}

func (p *LegacyInquiry) Render(now time.Time) Notification {
	var b htmlBody
	b.heading("New Legacy Inquiry")
	b.field("From", fromLine(p.Name, p.Email))
	b.field("Phone", orDefault(p.Phone, "Not provided"))
	b.field("Message", p.Message)
	b.field("Tour Interest", orDefault(p.TourInterest, "Not specified"))
	b.field("Travel Date", p.TravelDate.Format(dateLayout))
	b.field("Party Size", optionalInt(p.TravelPartySize, "Not specified"))
	b.field("Submitted", submittedStamp(now))
	return b.notification("New Inquiry from " + orDefault(p.Name, p.Email))
}

func (p *LegacyInquiry) AutoReplyData(now time.Time) map[string]any {
	travelDates := "Dates not specified"
	if p.TravelDate.IsSet() {
		travelDates = p.TravelDate.Format(dateLayout)
	}
	return autoReplyData(autoReplyFields{
		guestName:   p.Name,
		tourName:    p.TourInterest,
		travelDates: travelDates,
		adults:      optionalCount(p.TravelPartySize),
		message:     p.Message,
		email:       p.Email,
		phone:       p.Phone,
		submitted:   now,
	})
}

func (p *DynamicInquiry) Kind() Kind            { return KindDynamic }
func (p *DynamicInquiry) BotCheckToken() string { return "" }

func (p *DynamicInquiry) Submitter() (string, string) {
	return p.Email, p.Name
}

func (p *DynamicInquiry) Render(now time.Time) Notification {
	travelDate := "Not specified"
	if p.TravelDate.IsSet() {
		travelDate = p.TravelDate.Format(dateLayout)
	}

	var b htmlBody
	b.heading(strings.TrimSpace("New " + p.InquiryType + " Inquiry"))
	b.field("From", fromLine(p.Name, p.Email))
	b.field("Phone", orDefault(p.Phone, "Not provided"))
	b.field("Message", orDefault(p.Message, "Not provided"))
	b.field("Tour Interest", orDefault(p.TourInterest, "Not specified"))
	b.field("Travel Date", travelDate)
	b.field("Party Size", optionalInt(p.TravelPartySize, "Not specified"))
	if len(p.AdditionalFields) > 0 {
		b.section("Additional Information:")
		for _, f := range p.AdditionalFields {
			b.field(f.Key, f.Value)
		}
	}
	b.field("Submitted", submittedStamp(now))

	subject := "New Inquiry from "
	if t := strings.TrimSpace(p.InquiryType); t != "" {
		subject = "New " + t + " Inquiry from "
	}
	return b.notification(subject + orDefault(p.Name, p.Email))
}

func (p *DynamicInquiry) AutoReplyData(now time.Time) map[string]any {
	travelDates := "Dates not specified"
	if p.TravelDate.IsSet() {
		travelDates = p.TravelDate.Format(dateLayout)
	}
	return autoReplyData(autoReplyFields{
		guestName:   p.Name,
		tourName:    p.TourInterest,
		travelDates: travelDates,
		adults:      optionalCount(p.TravelPartySize),
		message:     p.Message,
		email:       p.Email,
		phone:       p.Phone,
		submitted:   now,
	})
}

func (p *ComprehensiveInquiry) Kind() Kind            { return KindComprehensive }
func (p *ComprehensiveInquiry) BotCheckToken() string { return p.TurnstileToken }

func (p *ComprehensiveInquiry) Submitter() (string, string) {
	return p.Email, p.FullName()
}

// FullName is the trimmed "first last" display name.
func (p *ComprehensiveInquiry) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

func (p *ComprehensiveInquiry) submitted(now time.Time) time.Time {
	if p.SubmittedAt.IsSet() {
		return p.SubmittedAt.Time
	}
	return now
}

func (p *ComprehensiveInquiry) travel() TravelPlanning {
	if p.TravelPlanning == nil {
		return TravelPlanning{}
	}
	return *p.TravelPlanning
}

func (p *ComprehensiveInquiry) Render(now time.Time) Notification {
	tp := p.travel()

	var b htmlBody
	b.heading("New " + p.InquiryType + " Inquiry")
	b.field("From", fromLine(p.FullName(), p.Email))
	b.field("Phone", orDefault(p.Phone, "Not provided"))
	b.field("Subject", orDefault(p.SubjectName, "General Inquiry"))
	b.field("Message", p.Message)

	b.section("Travel Planning Details")
	b.field("Travel Dates", tp.TravelTimeframe())
	b.field("Total Travelers", strconv.Itoa(tp.TotalTravelers())+
		" ("+strconv.Itoa(tp.AdultCount())+" adults, "+strconv.Itoa(tp.Children)+" children)")
	b.field("Flexible Dates", yesNo(tp.FlexibleDates))

	b.section("Additional Information")
	b.field("How they heard about us", orDefault(p.HearAboutUs, "Not specified"))
	b.field("Newsletter subscription", yesNo(p.Subscribed))

	b.section("Technical Details")
	b.field("Form Source", orDefault(p.FormSource, "Not specified"))
	b.field("IP Address", orDefault(p.IPAddress, "Not captured"))
	b.field("User Agent", orDefault(p.UserAgent, "Not captured"))
	b.field("Referrer", orDefault(p.Referrer, "Direct"))
	b.field("Submitted", submittedStamp(p.submitted(now)))

	return b.notification("New " + p.InquiryType + " Inquiry from " + p.FullName())
}

func (p *ComprehensiveInquiry) AutoReplyData(now time.Time) map[string]any {
	tp := p.travel()
	data := autoReplyData(autoReplyFields{
		guestName:   p.FirstName,
		tourName:    p.SubjectName,
		travelDates: orDefault(tp.TravelDates, "Dates not specified"),
		adults:      tp.AdultCount(),
		children:    tp.Children,
		message:     p.Message,
		email:       p.Email,
		phone:       p.Phone,
		hearAboutUs: p.HearAboutUs,
		submitted:   p.submitted(now),
	})
	data["name"] = orDefault(p.FullName(), "Valued Customer")
	return data
}

type autoReplyFields struct {
	guestName   string
	tourName    string
	travelDates string
	adults      int
	children    int
	message     string
	email       string
	phone       string
	hearAboutUs string
	submitted   time.Time
}

func optionalCount(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}

// autoReplyData builds the merge fields shared by every auto-reply template.
func autoReplyData(f autoReplyFields) map[string]any {
	guest := orDefault(f.guestName, "Valued Customer")
	return map[string]any{
		"guestName":      guest,
		"name":           guest,
		"tourName":       orDefault(f.tourName, "Your Sri Lanka trip"),
		"travelDates":    f.travelDates,
		"adults":         f.adults,
		"children":       f.children,
		"enquiryMessage": f.message,
		"guestEmail":     f.email,
		"guestPhone":     f.phone,
		"hearAboutUs":    orDefault(f.hearAboutUs, "Not specified"),
		"submitted_date": f.submitted.UTC().Format(longDateLayout),
	}
}
