// Package config loads process configuration once at startup.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Mail transports.
const (
	TransportResend = "resend"
	TransportSMTP   = "smtp"
	TransportNoop   = "noop"
)

// Defaults.
const (
	DefaultAddr               = ":8080"
	DefaultSiteName           = "Namma Body"
	DefaultCORSOrigin         = "*"
	DefaultRateLimitPerMinute = 10
	DefaultSlowRequest        = 200 * time.Millisecond
	DefaultSMTPHost           = "smtp.gmail.com"
	DefaultSMTPPort           = 587
	DefaultSMTPSecurePort     = 465
	DefaultContactTimeout     = 15 * time.Second
)

// ErrInvalid is wrapped by every load error.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete process configuration.
type Config struct {
	Server ServerConfig
	Relay  RelayConfig
	Mail   MailConfig
	Client ClientConfig
}

// ServerConfig configures the HTTP listener and middleware.
type ServerConfig struct {
	Addr               string
	Env                string
	LogLevel           slog.Level
	CORSAllowOrigin    string
	RateLimitPerMinute int  // 0 disables rate limiting
	TrustProxy         bool // honour X-Forwarded-For when keying the rate limit
	SlowRequest        time.Duration
}

// Production reports whether the process runs in production.
func (s ServerConfig) Production() bool {
	return s.Env == "production"
}

// RelayConfig configures request handling in the backend relay.
type RelayConfig struct {
	AcceptLegacy bool
	SiteName     string
}

// MailConfig configures the outbound mail transport.
type MailConfig struct {
	Transport    string // resend, smtp, noop, or "" when nothing is configured
	ResendAPIKey string
	SMTPHost     string
	SMTPPort     int
	SMTPSecure   bool
	Username     string
	Password     string
	From         string // sender address
	To           string // recipient address
}

// ClientConfig configures the client side of the contact pipeline.
type ClientConfig struct {
	Endpoint string
	Timeout  time.Duration
}

// Load reads configuration through getenv.
// PRE: getenv is non-nil (os.Getenv in production)
// POST: Returns a complete Config; malformed values wrap ErrInvalid, absent
// credentials do not
func Load(getenv func(string) string) (Config, error) {
	env := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	var cfg Config
	var errs []error

	cfg.Server = ServerConfig{
		Addr:            env("APP_ADDR", DefaultAddr),
		Env:             env("APP_ENV", "development"),
		CORSAllowOrigin: env("CORS_ALLOW_ORIGIN", DefaultCORSOrigin),
	}
	if err := cfg.Server.LogLevel.UnmarshalText([]byte(env("LOG_LEVEL", "info"))); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	cfg.Server.TrustProxy = parseBool(env("TRUST_PROXY", ""), false, "TRUST_PROXY", &errs)
	cfg.Server.RateLimitPerMinute = parseInt(env("RATE_LIMIT_PER_MINUTE", ""), DefaultRateLimitPerMinute, "RATE_LIMIT_PER_MINUTE", &errs)
	slowMs := parseInt(env("SLOW_REQUEST_MS", ""), int(DefaultSlowRequest/time.Millisecond), "SLOW_REQUEST_MS", &errs)
	cfg.Server.SlowRequest = time.Duration(slowMs) * time.Millisecond

	cfg.Relay = RelayConfig{
		AcceptLegacy: parseBool(env("RELAY_ACCEPT_LEGACY", ""), false, "RELAY_ACCEPT_LEGACY", &errs),
		SiteName:     env("SITE_NAME", DefaultSiteName),
	}

	user := env("EMAIL_USER", "")
	m := MailConfig{
		ResendAPIKey: env("RESEND_API_KEY", ""),
		SMTPHost:     env("SMTP_HOST", DefaultSMTPHost),
		SMTPSecure:   parseBool(env("SMTP_SECURE", ""), false, "SMTP_SECURE", &errs),
		Username:     user,
		Password:     env("EMAIL_PASS", ""),
		From:         env("EMAIL_FROM", user),
		To:           env("EMAIL_TO", user),
	}
	if strings.EqualFold(env("EMAIL_SERVICE", ""), "gmail") {
		m.SMTPHost = DefaultSMTPHost
	}
	defaultPort := DefaultSMTPPort
	if m.SMTPSecure {
		defaultPort = DefaultSMTPSecurePort
	}
	m.SMTPPort = parseInt(env("SMTP_PORT", ""), defaultPort, "SMTP_PORT", &errs)

	switch t := strings.ToLower(env("MAIL_TRANSPORT", "")); t {
	case TransportResend, TransportSMTP, TransportNoop:
		m.Transport = t
	case "":
		m.Transport = inferTransport(m)
	default:
		errs = append(errs, fmt.Errorf("MAIL_TRANSPORT: unknown transport %q", t))
	}
	cfg.Mail = m

	cfg.Client = ClientConfig{
		Endpoint: env("CONTACT_ENDPOINT", env("VITE_CONTACT_ENDPOINT", "")),
		Timeout:  DefaultContactTimeout,
	}
	if v := env("CONTACT_TIMEOUT", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			errs = append(errs, fmt.Errorf("CONTACT_TIMEOUT: %q is not a duration", v))
		} else {
			cfg.Client.Timeout = d
		}
	}

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return cfg, nil
}

// inferTransport picks a transport from whichever credentials are present.
func inferTransport(m MailConfig) string {
	switch {
	case m.ResendAPIKey != "":
		return TransportResend
	case m.Username != "" && m.Password != "":
		return TransportSMTP
	}
	return ""
}

// MailReady reports whether the configured transport has what it needs to send.
func (m MailConfig) MailReady() bool {
	if m.From == "" || m.To == "" {
		return false
	}
	switch m.Transport {
	case TransportResend:
		return m.ResendAPIKey != ""
	case TransportSMTP:
		return m.Username != "" && m.Password != ""
	case TransportNoop:
		return true
	}
	return false
}

func parseInt(v string, fallback int, key string, errs *[]error) int {
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a non-negative integer", key, v))
		return fallback
	}
	return n
}

func parseBool(v string, fallback bool, key string, errs *[]error) bool {
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a boolean", key, v))
		return fallback
	}
	return b
}
