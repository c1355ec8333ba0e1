package email

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// =============================================================================
// SendGrid
// =============================================================================

func TestSendGridProvider_SendsAllRecipients(t *testing.T) {
	t.Parallel()
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		assert.Equal(t, "Bearer sg-key", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	p := NewSendGridProvider(SendGridConfig{APIKey: "sg-key", BaseURL: srv.URL, From: Address{Email: "tours@example.com", Name: "Tours"}})
	res := p.SendEmail(context.Background(), &Message{
		To:          []Address{{Email: "a@example.com"}, {Email: "b@example.com", Name: "Bee"}},
		Cc:          []Address{{Email: "c@example.com"}},
		Subject:     "Hello",
		TextContent: "Hi",
		HTMLContent: "<p>Hi</p>",
	})
	require.True(t, res.Success, res.ErrorDetail)
	require.Equal(t, http.StatusAccepted, res.StatusCode)

	pers := body["personalizations"].([]any)[0].(map[string]any)
	require.Len(t, pers["to"], 2)
	require.Len(t, pers["cc"], 1)
	content := body["content"].([]any)
	require.Equal(t, "text/plain", content[0].(map[string]any)["type"])
	require.Equal(t, "text/html", content[1].(map[string]any)["type"])
	require.Equal(t, "tours@example.com", body["from"].(map[string]any)["email"])
}

func TestSendGridProvider_TemplatedSendCarriesData(t *testing.T) {
	t.Parallel()
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	p := NewSendGridProvider(SendGridConfig{APIKey: "k", BaseURL: srv.URL, From: Address{Email: "tours@example.com"}})
	res := p.SendTemplatedEmail(context.Background(), &TemplatedMessage{
		To:           []Address{{Email: "guest@example.com"}},
		TemplateID:   "d-abc123",
		TemplateData: map[string]any{"guestName": "Jane"},
	})
	require.True(t, res.Success, res.ErrorDetail)
	require.Equal(t, "d-abc123", body["template_id"])
	pers := body["personalizations"].([]any)[0].(map[string]any)
	require.Equal(t, "Jane", pers["dynamic_template_data"].(map[string]any)["guestName"])
}

func TestSendGridProvider_RejectionBecomesFailure(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad from"}]}`))
	}))
	defer srv.Close()

	p := NewSendGridProvider(SendGridConfig{APIKey: "k", BaseURL: srv.URL, From: Address{Email: "tours@example.com"}})
	res := p.SendEmail(context.Background(), &Message{To: []Address{{Email: "a@example.com"}}, Subject: "s", TextContent: "t"})
	require.False(t, res.Success)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	require.Contains(t, res.ErrorDetail, "bad from")
}

func TestSendGridProvider_UnreachableBecomesFailure(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	p := NewSendGridProvider(SendGridConfig{APIKey: "k", BaseURL: srv.URL, From: Address{Email: "tours@example.com"}})
	res := p.SendEmail(context.Background(), &Message{To: []Address{{Email: "a@example.com"}}, Subject: "s", TextContent: "t"})
	require.False(t, res.Success)
	require.NotEmpty(t, res.ErrorDetail)
}

// =============================================================================
// Postmark
// =============================================================================

func testPostmark_NonNumericTemplateNeverCallsNetwork(t *rapid.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	templateID := rapid.StringMatching(`[a-z][a-z0-9-]{0,20}`).Draw(t, "template_id")
	p := NewPostmarkProvider(PostmarkConfig{ServerToken: "pm", BaseURL: srv.URL, From: Address{Email: "tours@example.com"}})
	res := p.SendTemplatedEmail(context.Background(), &TemplatedMessage{
		To:         []Address{{Email: "guest@example.com"}},
		TemplateID: templateID,
	})
	if res.Success {
		t.Fatalf("non-numeric template id %q should fail", templateID)
	}
	if !errors.Is(res.Err, ErrInvalidTemplateID) {
		t.Fatalf("expected ErrInvalidTemplateID, got %v", res.Err)
	}
	if hits.Load() != 0 {
		t.Fatalf("expected no network call, got %d", hits.Load())
	}
}

func TestPostmark_NonNumericTemplateNeverCallsNetwork(t *testing.T) {
	rapid.Check(t, testPostmark_NonNumericTemplateNeverCallsNetwork)
}

func TestPostmarkProvider_SendsToFirstRecipientOnly(t *testing.T) {
	t.Parallel()
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/email", r.URL.Path)
		assert.Equal(t, "pm-token", r.Header.Get("X-Postmark-Server-Token"))
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"To":"a@example.com","MessageID":"m-1","ErrorCode":0,"Message":"OK"}`))
	}))
	defer srv.Close()

	p := NewPostmarkProvider(PostmarkConfig{ServerToken: "pm-token", BaseURL: srv.URL, From: Address{Email: "tours@example.com", Name: "Tours"}})
	res := p.SendEmail(context.Background(), &Message{
		To:          []Address{{Email: "a@example.com", Name: "Ann"}, {Email: "b@example.com"}},
		Cc:          []Address{{Email: "c@example.com", Name: "Cee"}, {Email: "d@example.com"}},
		Subject:     "Hello",
		HTMLContent: "<p>Hi</p>",
	})
	require.True(t, res.Success, res.ErrorDetail)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "Ann <a@example.com>", body["To"])
	require.Equal(t, "Tours <tours@example.com>", body["From"])
	require.Equal(t, "Cee <c@example.com>, d@example.com", body["Cc"])
}

func TestPostmarkProvider_NumericTemplateSends(t *testing.T) {
	t.Parallel()
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/email/withTemplate", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"To":"guest@example.com","MessageID":"m-2","ErrorCode":0,"Message":"OK"}`))
	}))
	defer srv.Close()

	p := NewPostmarkProvider(PostmarkConfig{ServerToken: "pm", BaseURL: srv.URL, From: Address{Email: "tours@example.com"}})
	res := p.SendTemplatedEmail(context.Background(), &TemplatedMessage{
		To:           []Address{{Email: "guest@example.com"}},
		TemplateID:   "123456",
		TemplateData: map[string]any{"guestName": "Jane"},
	})
	require.True(t, res.Success, res.ErrorDetail)
	require.EqualValues(t, 123456, body["TemplateId"])
	require.Equal(t, "Jane", body["TemplateModel"].(map[string]any)["guestName"])
}

func TestPostmarkProvider_APIErrorBecomesFailure(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"ErrorCode":300,"Message":"Invalid email request"}`))
	}))
	defer srv.Close()

	p := NewPostmarkProvider(PostmarkConfig{ServerToken: "pm", BaseURL: srv.URL, From: Address{Email: "tours@example.com"}})
	res := p.SendEmail(context.Background(), &Message{To: []Address{{Email: "a@example.com"}}, Subject: "s"})
	require.False(t, res.Success)
}

func TestPostmarkProvider_ErrorCodeIsStatusCode(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ErrorCode":406,"Message":"Inactive recipient"}`))
	}))
	defer srv.Close()

	p := NewPostmarkProvider(PostmarkConfig{ServerToken: "pm", BaseURL: srv.URL, From: Address{Email: "tours@example.com"}})
	res := p.SendEmail(context.Background(), &Message{To: []Address{{Email: "a@example.com"}}, Subject: "s"})
	require.False(t, res.Success)
	require.Equal(t, 406, res.StatusCode)
	require.Equal(t, "Error Code: 406", res.ErrorDetail)
}

func TestPostmarkProvider_SkipsBlankRecipients(t *testing.T) {
	t.Parallel()
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"To":"b@example.com","MessageID":"m-3","ErrorCode":0,"Message":"OK"}`))
	}))
	defer srv.Close()

	p := NewPostmarkProvider(PostmarkConfig{ServerToken: "pm", BaseURL: srv.URL, From: Address{Email: "tours@example.com"}})
	res := p.SendEmail(context.Background(), &Message{
		To:      []Address{{Email: "   "}, {Email: "b@example.com"}},
		Subject: "s",
	})
	require.True(t, res.Success, res.ErrorDetail)
	require.Equal(t, "b@example.com", body["To"])
}

func TestPostmarkProvider_EmptyRecipientsFailLocally(t *testing.T) {
	t.Parallel()
	p := NewPostmarkProvider(PostmarkConfig{ServerToken: "pm", BaseURL: "http://127.0.0.1:1", From: Address{Email: "tours@example.com"}})
	res := p.SendEmail(context.Background(), &Message{Subject: "s"})
	require.False(t, res.Success)
	require.ErrorIs(t, res.Err, ErrNoRecipients)
}

// =============================================================================
// Resend
// =============================================================================

func TestResendProvider_TemplatedSendRendersCatalog(t *testing.T) {
	t.Parallel()
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"re_123"}`))
	}))
	defer srv.Close()

	p, err := NewResendProvider(ResendConfig{APIKey: "re-key", BaseURL: srv.URL + "/", From: Address{Email: "tours@example.com"}})
	require.NoError(t, err)

	res := p.SendTemplatedEmail(context.Background(), &TemplatedMessage{
		To:           []Address{{Email: "guest@example.com"}},
		TemplateID:   TemplateContactConfirmation,
		TemplateData: map[string]any{"userName": "Ravi"},
	})
	require.True(t, res.Success, res.ErrorDetail)
	require.Equal(t, "Thanks for getting in touch, Ravi", body["subject"])
	require.Contains(t, body["html"], "Ravi")
}

func TestResendProvider_UnknownTemplateFailsLocally(t *testing.T) {
	t.Parallel()
	p, err := NewResendProvider(ResendConfig{APIKey: "re-key", BaseURL: "http://127.0.0.1:1/", From: Address{Email: "tours@example.com"}})
	require.NoError(t, err)

	res := p.SendTemplatedEmail(context.Background(), &TemplatedMessage{
		To:         []Address{{Email: "guest@example.com"}},
		TemplateID: "no-such-template",
	})
	require.False(t, res.Success)
	require.ErrorIs(t, res.Err, ErrInvalidTemplateID)
}

// =============================================================================
// SES
// =============================================================================

type fakeSES struct {
	inputs []*sesv2.SendEmailInput
	err    error
}

func (f *fakeSES) SendEmail(ctx context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("ses-1")}, nil
}

func TestSESProvider_PlainAndTemplated(t *testing.T) {
	t.Parallel()
	fake := &fakeSES{}
	p := newSESProvider(fake, Address{Email: "tours@example.com", Name: "Tours"})

	res := p.SendEmail(context.Background(), &Message{
		To:          []Address{{Email: "a@example.com"}},
		Bcc:         []Address{{Email: "audit@example.com"}},
		Subject:     "Hello",
		HTMLContent: "<p>Hi</p>",
	})
	require.True(t, res.Success)
	in := fake.inputs[0]
	require.Equal(t, "Tours <tours@example.com>", aws.ToString(in.FromEmailAddress))
	require.Equal(t, []string{"audit@example.com"}, in.Destination.BccAddresses)
	require.Equal(t, "<p>Hi</p>", aws.ToString(in.Content.Simple.Body.Html.Data))
	require.Nil(t, in.Content.Simple.Body.Text)

	res = p.SendTemplatedEmail(context.Background(), &TemplatedMessage{
		To:           []Address{{Email: "guest@example.com"}},
		TemplateID:   "InquiryAutoReply",
		TemplateData: map[string]any{"adults": 2},
	})
	require.True(t, res.Success)
	tpl := fake.inputs[1].Content.Template
	require.Equal(t, "InquiryAutoReply", aws.ToString(tpl.TemplateName))
	require.JSONEq(t, `{"adults":2}`, aws.ToString(tpl.TemplateData))
}

func TestSESProvider_ErrorBecomesFailure(t *testing.T) {
	t.Parallel()
	p := newSESProvider(&fakeSES{err: errors.New("throttled")}, Address{Email: "tours@example.com"})
	res := p.SendEmail(context.Background(), &Message{To: []Address{{Email: "a@example.com"}}, Subject: "s"})
	require.False(t, res.Success)
	require.Contains(t, res.ErrorDetail, "throttled")
}
