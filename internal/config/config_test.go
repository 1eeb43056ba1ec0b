package config

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

// TestLoad_Defaults verifies an empty environment yields a usable but unconfigured relay.
func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(envMap(nil))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Config{
		Server: ServerConfig{
			Addr:               DefaultAddr,
			Env:                "development",
			LogLevel:           slog.LevelInfo,
			CORSAllowOrigin:    "*",
			RateLimitPerMinute: DefaultRateLimitPerMinute,
			SlowRequest:        DefaultSlowRequest,
		},
		Relay: RelayConfig{SiteName: "Namma Body"},
		Mail:  MailConfig{SMTPHost: "smtp.gmail.com", SMTPPort: 587},
		Client: ClientConfig{
			Timeout: DefaultContactTimeout,
		},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if cfg.Mail.MailReady() {
		t.Error("mail should not be ready without credentials")
	}
}

// TestLoad_SMTPFromUser verifies EMAIL_USER fills sender and recipient and selects SMTP.
func TestLoad_SMTPFromUser(t *testing.T) {
	cfg, err := Load(envMap(map[string]string{
		"EMAIL_USER":    "coach@nammabody.com",
		"EMAIL_PASS":    "app-password",
		"EMAIL_SERVICE": "gmail",
		"SMTP_HOST":     "mail.example.com",
	}))
	if err != nil {
		t.Fatal(err)
	}
	m := cfg.Mail
	if m.Transport != TransportSMTP {
		t.Errorf("Transport = %q, want smtp", m.Transport)
	}
	if m.From != "coach@nammabody.com" || m.To != "coach@nammabody.com" {
		t.Errorf("From/To = %q/%q", m.From, m.To)
	}
	if m.SMTPHost != "smtp.gmail.com" {
		t.Errorf("gmail preset should override host, got %q", m.SMTPHost)
	}
	if !m.MailReady() {
		t.Error("mail should be ready")
	}
}

// TestLoad_SecurePortDefault verifies implicit TLS defaults to port 465.
func TestLoad_SecurePortDefault(t *testing.T) {
	cfg, err := Load(envMap(map[string]string{"SMTP_SECURE": "true"}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Mail.SMTPPort != 465 {
		t.Errorf("SMTPPort = %d, want 465", cfg.Mail.SMTPPort)
	}
	cfg, _ = Load(envMap(map[string]string{"SMTP_SECURE": "true", "SMTP_PORT": "2465"}))
	if cfg.Mail.SMTPPort != 2465 {
		t.Errorf("explicit SMTPPort = %d, want 2465", cfg.Mail.SMTPPort)
	}
}

// TestLoad_ResendInferred verifies an API key selects Resend.
func TestLoad_ResendInferred(t *testing.T) {
	cfg, err := Load(envMap(map[string]string{
		"RESEND_API_KEY": "re_123",
		"EMAIL_FROM":     "hello@nammabody.com",
		"EMAIL_TO":       "owner@nammabody.com",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Mail.Transport != TransportResend || !cfg.Mail.MailReady() {
		t.Errorf("mail = %+v", cfg.Mail)
	}
}

// TestLoad_ExplicitTransportWithoutCredentials verifies absent credentials are not a load error.
func TestLoad_ExplicitTransportWithoutCredentials(t *testing.T) {
	cfg, err := Load(envMap(map[string]string{"MAIL_TRANSPORT": "SMTP"}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Mail.Transport != TransportSMTP || cfg.Mail.MailReady() {
		t.Errorf("mail = %+v", cfg.Mail)
	}
}

// TestLoad_ContactEndpointFallback verifies the build-time variable name is honoured.
func TestLoad_ContactEndpointFallback(t *testing.T) {
	cfg, _ := Load(envMap(map[string]string{"VITE_CONTACT_ENDPOINT": "https://nammabody.com/.netlify/functions/send-email"}))
	if cfg.Client.Endpoint != "https://nammabody.com/.netlify/functions/send-email" {
		t.Errorf("Endpoint = %q", cfg.Client.Endpoint)
	}
	cfg, _ = Load(envMap(map[string]string{"CONTACT_ENDPOINT": "http://localhost:8080/api/contact", "VITE_CONTACT_ENDPOINT": "ignored"}))
	if cfg.Client.Endpoint != "http://localhost:8080/api/contact" {
		t.Errorf("Endpoint = %q", cfg.Client.Endpoint)
	}
}

// TestLoad_Overrides verifies parsed numeric, boolean and duration values.
func TestLoad_Overrides(t *testing.T) {
	cfg, err := Load(envMap(map[string]string{
		"APP_ENV":               "production",
		"LOG_LEVEL":             "debug",
		"RATE_LIMIT_PER_MINUTE": "0",
		"SLOW_REQUEST_MS":       "500",
		"RELAY_ACCEPT_LEGACY":   "true",
		"CONTACT_TIMEOUT":       "3s",
		"SITE_NAME":             "Namma Body Studio",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Server.Production() || cfg.Server.LogLevel != slog.LevelDebug {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Server.RateLimitPerMinute != 0 || cfg.Server.SlowRequest != 500*time.Millisecond {
		t.Errorf("server = %+v", cfg.Server)
	}
	if !cfg.Relay.AcceptLegacy || cfg.Relay.SiteName != "Namma Body Studio" {
		t.Errorf("relay = %+v", cfg.Relay)
	}
	if cfg.Client.Timeout != 3*time.Second {
		t.Errorf("timeout = %v", cfg.Client.Timeout)
	}
}

// TestLoad_InvalidValues verifies malformed values are reported together.
func TestLoad_InvalidValues(t *testing.T) {
	_, err := Load(envMap(map[string]string{
		"SMTP_PORT":       "abc",
		"SMTP_SECURE":     "maybe",
		"CONTACT_TIMEOUT": "soon",
		"MAIL_TRANSPORT":  "pigeon",
		"LOG_LEVEL":       "loud",
	}))
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
	for _, key := range []string{"SMTP_PORT", "SMTP_SECURE", "CONTACT_TIMEOUT", "MAIL_TRANSPORT", "LOG_LEVEL"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error does not mention %s: %v", key, err)
		}
	}
}
