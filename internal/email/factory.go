package email

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bsltours/tours-bff/internal/config"
)

// NewProvider builds the single transport selected by cfg.Provider. The
// choice is made once at startup.
func NewProvider(ctx context.Context, cfg config.Email) (Provider, error) {
	sender := cfg.ActiveSender()
	from := Address{Email: sender.FromEmail, Name: sender.FromName}
	httpClient := &http.Client{Timeout: cfg.SendTimeout}

	switch cfg.Provider {
	case config.ProviderSendGrid:
		return NewSendGridProvider(SendGridConfig{
			APIKey:  cfg.SendGrid.APIKey,
			BaseURL: cfg.SendGrid.BaseURL,
			From:    from,
		}), nil
	case config.ProviderPostmark:
		return NewPostmarkProvider(PostmarkConfig{
			ServerToken: cfg.Postmark.ServerToken,
			BaseURL:     cfg.Postmark.BaseURL,
			From:        from,
			HTTPClient:  httpClient,
		}), nil
	case config.ProviderResend:
		catalog, err := LoadCatalog(cfg.TemplatesFile)
		if err != nil {
			return nil, err
		}
		return NewResendProvider(ResendConfig{
			APIKey:     cfg.Resend.APIKey,
			From:       from,
			HTTPClient: httpClient,
			Catalog:    catalog,
		})
	case config.ProviderSES:
		return NewSESProvider(ctx, SESConfig{
			Region:          cfg.SES.Region,
			AccessKeyID:     cfg.SES.AccessKeyID,
			SecretAccessKey: cfg.SES.SecretAccessKey,
			Endpoint:        cfg.SES.Endpoint,
			From:            from,
		})
	case config.ProviderMock:
		mock := NewMockProvider(mockSender(from, cfg.Default), cfg.MockOutboxDir)
		if cfg.TemplatesFile != "" {
			catalog, err := LoadCatalog(cfg.TemplatesFile)
			if err != nil {
				return nil, err
			}
			mock.catalog = catalog
		}
		return mock, nil
	default:
		return nil, fmt.Errorf("unsupported email provider %q", cfg.Provider)
	}
}

func mockSender(from Address, def config.Sender) Address {
	if from.Email != "" {
		return from
	}
	if def.FromEmail != "" {
		return Address{Email: def.FromEmail, Name: def.FromName}
	}
	return Address{Email: "noreply@localhost", Name: "Tours BFF (mock)"}
}
