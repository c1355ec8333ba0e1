// Tours BFF - inquiry and contact-form email relay
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bsltours/tours-bff/internal/api"
	"github.com/bsltours/tours-bff/internal/config"
	"github.com/bsltours/tours-bff/internal/email"
	"github.com/bsltours/tours-bff/internal/inquiry"
	"github.com/bsltours/tours-bff/internal/obs"
	"github.com/bsltours/tours-bff/internal/ratelimit"
	"github.com/bsltours/tours-bff/internal/turnstile"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &config.Flags{}

	root := &cobra.Command{
		Use:   "tours-bff",
		Short: "Relay tour inquiries and contact forms as email",
		Long: `tours-bff accepts inquiry and contact-form submissions from the tours
site, verifies bot-check tokens and dispatches operator notifications and
guest auto-replies through the configured email provider.

Example:
  tours-bff                          # serve with settings from the environment
  tours-bff --test                   # serve with a mock outbox and no bot check
  tours-bff check-config             # validate configuration and exit
  tours-bff send-test --to me@x.com  # send one test email`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *flags)
		},
	}

	pf := root.PersistentFlags()
	pf.BoolVar(&flags.NoEmail, "no-email", false, "capture emails in a mock outbox instead of sending")
	pf.BoolVar(&flags.NoBotCheck, "no-bot-check", false, "accept any non-empty bot-check token")
	pf.BoolVar(&flags.Test, "test", false, "shorthand for --no-email --no-bot-check")
	pf.StringVar(&flags.Addr, "addr", "", "listen address (overrides LISTEN_ADDR)")
	pf.StringVar(&flags.EnvFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP server (default)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd.Context(), *flags)
			},
		},
		newCheckConfigCmd(flags),
		newSendTestCmd(flags),
	)
	return root
}

func newCheckConfigCmd(flags *config.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate configuration and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*flags)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return err
			}
			cfg.PrintStartupSummary()
			fmt.Fprintln(cmd.OutOrStdout(), "configuration OK")
			return nil
		},
	}
}

func newSendTestCmd(flags *config.Flags) *cobra.Command {
	var to, templateID string
	cmd := &cobra.Command{
		Use:   "send-test",
		Short: "Send one test email through the configured provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*flags)
			if err != nil {
				return err
			}
			obs.Init(cfg.LogFormat)

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			var res email.Result
			if templateID != "" {
				res = a.mailer.SendTemplatedEmail(cmd.Context(), email.TemplatedSendRequest{
					To:           to,
					TemplateID:   templateID,
					TemplateData: map[string]any{"userName": "Test", "guestName": "Test", "tourName": "Test tour"},
				})
			} else {
				res = a.mailer.SendEmail(cmd.Context(), email.SendRequest{
					To:          to,
					Subject:     "tours-bff test email",
					HTMLContent: "<p>This is a test email from tours-bff.</p>",
					TextContent: "This is a test email from tours-bff.\n",
				})
			}

			fmt.Fprintf(cmd.OutOrStdout(), "provider=%s success=%t status=%d message=%q\n",
				a.mailer.ProviderName(), res.Success, res.StatusCode, res.Message)
			if !res.Success {
				return fmt.Errorf("test send failed: %s", res.ErrorDetail)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "recipient address")
	cmd.Flags().StringVar(&templateID, "template", "", "send this template instead of a plain message")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

// app is the wired service graph shared by serve and send-test.
type app struct {
	cfg       *config.Config
	provider  email.Provider
	mailer    *email.Service
	inquiries *inquiry.Service
	limiter   *ratelimit.RateLimiter
	handler   http.Handler
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	provider, err := email.NewProvider(ctx, cfg.Email)
	if err != nil {
		return nil, fmt.Errorf("email provider: %w", err)
	}
	mailer := email.NewService(provider, email.ServiceOptions{
		DefaultFromEmail:              cfg.Email.Default.FromEmail,
		DefaultFromName:               cfg.Email.Default.FromName,
		ContactConfirmationTemplateID: cfg.Email.ContactConfirmationTemplateID,
		SendTimeout:                   cfg.Email.SendTimeout,
	})

	var verifier inquiry.Verifier = turnstile.AcceptAll{}
	if !cfg.NoBotCheck {
		v, err := turnstile.NewVerifier(turnstile.Config{
			SecretKey: cfg.Turnstile.SecretKey,
			VerifyURL: cfg.Turnstile.VerifyURL,
			Timeout:   cfg.Turnstile.Timeout,
		})
		if err != nil {
			return nil, err
		}
		verifier = v
	}

	inquiries := inquiry.NewService(mailer, verifier, inquiry.Options{
		NotifyEmail:         cfg.Inquiry.NotifyEmail,
		NotifyName:          cfg.Inquiry.NotifyName,
		AutoReplyTemplateID: cfg.Inquiry.AutoReplyTemplateID,
	})

	limiter := ratelimit.NewRateLimiter(cfg.RateLimitConfig)
	handler := api.NewRouter(
		api.NewHandler(inquiries, mailer.ProviderName(), cfg.MaxBodyBytes),
		api.RouterOptions{CORSAllowedOrigins: cfg.CORSAllowedOrigins, Limiter: limiter},
	)

	return &app{
		cfg:       cfg,
		provider:  provider,
		mailer:    mailer,
		inquiries: inquiries,
		limiter:   limiter,
		handler:   handler,
	}, nil
}

// Close stops background workers.
func (a *app) Close() {
	a.limiter.Stop()
}

func runServe(ctx context.Context, flags config.Flags) error {
	cfg, err := config.LoadConfig(flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	obs.Init(cfg.LogFormat)
	cfg.PrintStartupSummary()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	log := obs.Pkg("server")
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server_listening", "addr", cfg.ListenAddr, "provider", a.mailer.ProviderName())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("server_shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
