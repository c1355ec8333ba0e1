package email

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/bsltours/tours-bff/internal/obs"
)

// SESConfig configures the AWS SES v2 transport.
type SESConfig struct {
	Region          string
	AccessKeyID     string // optional; default credential chain when empty
	SecretAccessKey string
	Endpoint        string // optional, e.g. a local SES emulator
	From            Address
}

// sesAPI is the slice of the SES v2 client this package uses.
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESProvider sends through AWS SES v2. Templated sends use SES stored
// templates, with TemplateID as the template name.
type SESProvider struct {
	client sesAPI
	from   Address
	log    *slog.Logger
}

// NewSESProvider loads AWS configuration and creates an SES transport.
func NewSESProvider(ctx context.Context, cfg SESConfig) (*SESProvider, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := sesv2.NewFromConfig(awsCfg, func(o *sesv2.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newSESProvider(client, cfg.From), nil
}

func newSESProvider(client sesAPI, from Address) *SESProvider {
	return &SESProvider{
		client: client,
		from:   from,
		log:    obs.Pkg("email.ses"),
	}
}

func (s *SESProvider) Name() string { return "ses" }

// SendEmail sends a plain message.
func (s *SESProvider) SendEmail(ctx context.Context, msg *Message) Result {
	return guard(s.log, s.Name(), func() Result {
		from, err := resolveFrom(msg.From, s.from)
		if err != nil {
			return failedWith("Exception occurred while sending email", err)
		}
		if err := checkRecipients(msg.To); err != nil {
			return failedWith("Exception occurred while sending email", err)
		}

		body := &types.Body{}
		if msg.HTMLContent != "" {
			body.Html = &types.Content{Data: aws.String(msg.HTMLContent), Charset: aws.String("UTF-8")}
		}
		if msg.TextContent != "" {
			body.Text = &types.Content{Data: aws.String(msg.TextContent), Charset: aws.String("UTF-8")}
		}

		return s.send(ctx, &sesv2.SendEmailInput{
			FromEmailAddress: aws.String(from.String()),
			Destination: &types.Destination{
				ToAddresses:  formattedAddresses(msg.To),
				CcAddresses:  formattedAddresses(msg.Cc),
				BccAddresses: formattedAddresses(msg.Bcc),
			},
			Content: &types.EmailContent{
				Simple: &types.Message{
					Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
					Body:    body,
				},
			},
		}, "Email sent successfully", "Failed to send email")
	})
}

// SendTemplatedEmail sends an SES stored template with TemplateData as JSON.
func (s *SESProvider) SendTemplatedEmail(ctx context.Context, msg *TemplatedMessage) Result {
	return guard(s.log, s.Name(), func() Result {
		from, err := resolveFrom(msg.From, s.from)
		if err != nil {
			return failedWith("Exception occurred while sending templated email", err)
		}
		if err := checkRecipients(msg.To); err != nil {
			return failedWith("Exception occurred while sending templated email", err)
		}
		if msg.TemplateID == "" {
			return failedWith("Exception occurred while sending templated email", ErrInvalidTemplateID)
		}
		data, err := json.Marshal(msg.TemplateData)
		if err != nil {
			return failedWith("Exception occurred while sending templated email", err)
		}

		return s.send(ctx, &sesv2.SendEmailInput{
			FromEmailAddress: aws.String(from.String()),
			Destination:      &types.Destination{ToAddresses: formattedAddresses(msg.To)},
			Content: &types.EmailContent{
				Template: &types.Template{
					TemplateName: aws.String(msg.TemplateID),
					TemplateData: aws.String(string(data)),
				},
			},
		}, "Templated email sent successfully", "Failed to send templated email")
	})
}

func (s *SESProvider) send(ctx context.Context, input *sesv2.SendEmailInput, okMsg, failMsg string) Result {
	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		status := 0
		var respErr *awshttp.ResponseError
		if errors.As(err, &respErr) {
			status = respErr.HTTPStatusCode()
		}
		s.log.Error("ses send failed", "status_code", status, "error", err)
		return Failed(failMsg, err.Error(), status)
	}
	if out != nil && out.MessageId != nil {
		s.log.Debug("ses accepted message", "message_id", aws.ToString(out.MessageId))
	}
	return Succeeded(okMsg, http.StatusOK)
}
