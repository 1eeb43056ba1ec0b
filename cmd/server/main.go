package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	emailPkg "nammabody/internal/adapters/email"
	web "nammabody/internal/adapters/http"
	"nammabody/internal/adapters/http/perf"
	"nammabody/internal/application/orchestrators"
	"nammabody/internal/config"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("ignoring .env: %v", err)
	}

	cfg, err := config.Load(os.Getenv)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	slog.SetDefault(newLogger(cfg.Server))

	// Performance instrumentation: wrap the sender with timing, create collector
	collector := perf.NewCollector(perf.DefaultRingSize)
	sender := newSender(cfg, collector)

	srv := web.NewMux(web.Deps{
		Relay: orchestrators.RelayContactDeps{
			Sender:       sender,
			Recipient:    cfg.Mail.To,
			FromAddress:  cfg.Mail.From,
			SiteName:     cfg.Relay.SiteName,
			AcceptLegacy: cfg.Relay.AcceptLegacy,
		},
		Collector:   collector,
		CORSOrigin:  cfg.Server.CORSAllowOrigin,
		RateLimit:   cfg.Server.RateLimitPerMinute,
		TrustProxy:  cfg.Server.TrustProxy,
		SlowRequest: cfg.Server.SlowRequest,
		ExposePerf:  !cfg.Server.Production(),
	})
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server_starting",
			"version", version,
			"addr", cfg.Server.Addr,
			"env", cfg.Server.Env,
			"transport", cfg.Mail.Transport,
			"legacy_envelope", cfg.Relay.AcceptLegacy)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server_failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		slog.Info("server_stopping")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("server_shutdown_failed", "error", err)
		}
	}
}

// newLogger returns a text logger in development and a JSON logger in production.
func newLogger(s config.ServerConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: s.LogLevel}
	if s.Production() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// newSender picks the mail transport. It returns nil when mail is not
// configured, which the relay reports as unconfigured per request.
func newSender(cfg config.Config, collector *perf.Collector) emailPkg.Sender {
	m := cfg.Mail
	if !m.MailReady() {
		slog.Warn("mail_unconfigured",
			"transport", m.Transport,
			"has_from", m.From != "",
			"has_to", m.To != "",
			"production", cfg.Server.Production())
		return nil
	}

	switch m.Transport {
	case config.TransportResend:
		return emailPkg.NewTimedSender(emailPkg.NewResendSender(m.ResendAPIKey, m.From), "resend", collector)
	case config.TransportSMTP:
		return emailPkg.NewTimedSender(emailPkg.NewSMTPSender(emailPkg.SMTPConfig{
			Host:     m.SMTPHost,
			Port:     m.SMTPPort,
			Secure:   m.SMTPSecure,
			Username: m.Username,
			Password: m.Password,
			From:     m.From,
		}), "smtp", collector)
	default:
		slog.Info("mail_noop", "reason", "set RESEND_API_KEY or EMAIL_USER/EMAIL_PASS for real delivery")
		return emailPkg.NewTimedSender(emailPkg.NewNoopSender(), "noop", collector)
	}
}
