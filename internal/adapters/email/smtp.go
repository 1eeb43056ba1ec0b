package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SMTPConfig describes an SMTP submission server.
type SMTPConfig struct {
	Host     string
	Port     int
	Secure   bool // implicit TLS (port 465); otherwise STARTTLS when offered
	Username string
	Password string
	From     string        // default sender when a request has none
	Timeout  time.Duration // whole-session limit; DefaultSMTPTimeout when zero
}

// DefaultSMTPTimeout bounds one SMTP session when the caller's context has no
// earlier deadline. It matches the Resend client timeout.
const DefaultSMTPTimeout = 30 * time.Second

// SMTPSender sends emails over SMTP.
type SMTPSender struct {
	cfg       SMTPConfig
	dialer    net.Dialer
	tlsConfig *tls.Config
}

// NewSMTPSender creates an SMTPSender for cfg.
// PRE: cfg.Host and cfg.Port are set
// POST: Returns a sender that dials per message
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSMTPTimeout
	}
	return &SMTPSender{
		cfg:       cfg,
		dialer:    net.Dialer{Timeout: 15 * time.Second},
		tlsConfig: &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12},
	}
}

// Send delivers one message in a fresh SMTP session.
// PRE: req has at least one recipient and a subject
// POST: Message accepted by the server; errors wrap ErrAuth or ErrConnection
// when the failure has that class
func (s *SMTPSender) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	from := req.From
	if from == "" {
		from = s.cfg.From
	}
	envelopeFrom, err := mail.ParseAddress(from)
	if err != nil {
		return SendResult{}, fmt.Errorf("smtp sender address %q: %w", from, err)
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), s.cfg.Host)
	msg, err := buildMIME(req, from, messageID, time.Now())
	if err != nil {
		return SendResult{}, fmt.Errorf("smtp compose: %w", err)
	}

	if err := s.deliver(ctx, envelopeFrom.Address, req.To, msg); err != nil {
		slog.Error("smtp_send_failed", "error", err, "host", s.cfg.Host, "to", req.To, "subject", req.Subject)
		return SendResult{}, fmt.Errorf("smtp send failed: %w", err)
	}

	slog.Info("smtp_sent", "message_id", messageID, "host", s.cfg.Host, "to", req.To, "subject", req.Subject)
	return SendResult{MessageID: messageID, SentAt: time.Now()}, nil
}

func (s *SMTPSender) deliver(ctx context.Context, from string, to []string, msg []byte) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	var conn net.Conn
	var err error
	if s.cfg.Secure {
		d := tls.Dialer{NetDialer: &s.dialer, Config: s.tlsConfig}
		conn, err = d.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = s.dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", ErrConnection, addr, err)
	}
	deadline := time.Now().Add(s.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return fmt.Errorf("%w: set deadline: %v", ErrConnection, err)
	}
	// Cancellation unblocks any pending read or write.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return classifySMTP("greeting", err)
	}
	defer c.Close()

	if !s.cfg.Secure {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(s.tlsConfig); err != nil {
				return fmt.Errorf("%w: starttls: %v", ErrConnection, err)
			}
		}
	}
	if s.cfg.Username != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
			if err := c.Auth(auth); err != nil {
				return fmt.Errorf("%w: %v", ErrAuth, err)
			}
		}
	}

	if err := c.Mail(from); err != nil {
		return classifySMTP("mail from", err)
	}
	for _, rcpt := range to {
		rcptAddr, err := mail.ParseAddress(rcpt)
		if err != nil {
			return fmt.Errorf("recipient %q: %w", rcpt, err)
		}
		if err := c.Rcpt(rcptAddr.Address); err != nil {
			return classifySMTP("rcpt to", err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return classifySMTP("data", err)
	}
	if _, err := w.Write(msg); err != nil {
		return classifySMTP("write", err)
	}
	if err := w.Close(); err != nil {
		return classifySMTP("data end", err)
	}
	return c.Quit()
}

// classifySMTP wraps a session error with its failure class.
// 530/534/535 replies are credential problems; network errors are connection problems.
func classifySMTP(stage string, err error) error {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		switch tpErr.Code {
		case 530, 534, 535:
			return fmt.Errorf("%w: %s: %v", ErrAuth, stage, err)
		}
		return fmt.Errorf("%s: %w", stage, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %s: %v", ErrConnection, stage, err)
	}
	return fmt.Errorf("%s: %w", stage, err)
}

// buildMIME renders a multipart/alternative message with CRLF line endings.
func buildMIME(req SendRequest, from, messageID string, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	body := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("From", from)
	header.Set("To", strings.Join(req.To, ", "))
	if req.ReplyTo != "" {
		header.Set("Reply-To", req.ReplyTo)
	}
	header.Set("Subject", mime.QEncoding.Encode("utf-8", req.Subject))
	header.Set("Date", now.Format(time.RFC1123Z))
	header.Set("Message-ID", messageID)
	header.Set("MIME-Version", "1.0")
	header.Set("Content-Type", "multipart/alternative; boundary="+body.Boundary())
	for k, v := range req.Headers {
		header.Set(k, v)
	}

	var out bytes.Buffer
	keys := make([]string, 0, len(header))
	for k := range header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range header[k] {
			fmt.Fprintf(&out, "%s: %s\r\n", k, v)
		}
	}
	out.WriteString("\r\n")

	parts := []struct{ contentType, content string }{
		{"text/plain; charset=utf-8", req.Text},
		{"text/html; charset=utf-8", req.HTML},
	}
	for _, p := range parts {
		if p.content == "" {
			continue
		}
		w, err := body.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {p.contentType},
			"Content-Transfer-Encoding": {"8bit"},
		})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(crlf(p.content))); err != nil {
			return nil, err
		}
	}
	if err := body.Close(); err != nil {
		return nil, err
	}
	out.Write(buf.Bytes())
	return out.Bytes(), nil
}

func crlf(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\n", "\r\n")
}
