package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/resend/resend-go/v2"
)

// ResendSender sends emails via the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
}

// ResendOption customizes a ResendSender.
type ResendOption func(*ResendSender)

// WithResendBaseURL points the client at another API root, for tests.
func WithResendBaseURL(u *url.URL) ResendOption {
	return func(s *ResendSender) { s.client.BaseURL = u }
}

// NewResendSender creates a new ResendSender with the given API key and default from address.
// PRE: apiKey is a valid Resend API key; from is a valid sender address
// POST: Returns a ready-to-use sender
func NewResendSender(apiKey, from string, opts ...ResendOption) *ResendSender {
	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: statusProbe{next: http.DefaultTransport},
	}
	s := &ResendSender{
		client: resend.NewCustomClient(httpClient, apiKey),
		from:   from,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Send sends a single email via Resend.
// PRE: req has at least one recipient and a subject
// POST: Email is queued for delivery; returns the Resend message ID, or an
// error wrapping ErrAuth or ErrConnection when the failure has that class
func (s *ResendSender) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	from := req.From
	if from == "" {
		from = s.from
	}

	params := &resend.SendEmailRequest{
		From:    from,
		To:      req.To,
		Subject: req.Subject,
		Html:    req.HTML,
		Text:    req.Text,
		Headers: req.Headers,
	}
	if req.ReplyTo != "" {
		params.ReplyTo = req.ReplyTo
	}

	probe := &responseStatus{}
	sent, err := s.client.Emails.SendWithContext(context.WithValue(ctx, statusKey{}, probe), params)
	if err != nil {
		err = classifyResend(err, probe)
		slog.Error("resend_send_failed", "error", err, "status", probe.code, "to", req.To, "subject", req.Subject)
		return SendResult{}, fmt.Errorf("resend send failed: %w", err)
	}

	slog.Info("resend_sent", "message_id", sent.Id, "to", req.To, "subject", req.Subject)
	return SendResult{
		MessageID: sent.Id,
		SentAt:    time.Now(),
	}, nil
}

// classifyResend maps a Resend client error to a failure class using what
// the transport saw for the same send.
func classifyResend(err error, probe *responseStatus) error {
	switch {
	case probe.code == http.StatusUnauthorized || probe.code == http.StatusForbidden:
		return fmt.Errorf("%w: %v", ErrAuth, err)
	case probe.code == 0 && (probe.transportFailed || isNetError(err)):
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return err
}

func isNetError(err error) bool {
	var netErr net.Error
	var urlErr *url.Error
	return errors.As(err, &netErr) || errors.As(err, &urlErr)
}

type statusKey struct{}

// responseStatus records the outcome of the last API round trip for one send.
type responseStatus struct {
	code            int
	transportFailed bool
}

// statusProbe is an http.RoundTripper that reports response codes into the
// request context so provider errors can be classified by status.
type statusProbe struct {
	next http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (p statusProbe) RoundTrip(r *http.Request) (*http.Response, error) {
	resp, err := p.next.RoundTrip(r)
	if rs, ok := r.Context().Value(statusKey{}).(*responseStatus); ok {
		if err != nil {
			rs.transportFailed = true
		} else {
			rs.code = resp.StatusCode
		}
	}
	return resp, err
}
