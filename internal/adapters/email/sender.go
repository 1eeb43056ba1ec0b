// Package email delivers relay mail through an external provider.
package email

import (
	"context"
	"errors"
	"time"
)

// Transport failure classes. Senders wrap provider errors with one of these
// so callers can map them with errors.Is.
var (
	ErrAuth       = errors.New("email provider rejected credentials")
	ErrConnection = errors.New("email provider unreachable")
)

// SendRequest contains the data needed to send an email via an external provider.
type SendRequest struct {
	To      []string // Recipient email addresses
	From    string   // Sender address (e.g. "Namma Body <hello@nammabody.com>")
	Subject string
	HTML    string            // HTML body
	Text    string            // Plain text alternative
	ReplyTo string            // Reply-to address, may carry a display name
	Headers map[string]string // Extra headers, e.g. X-Entity-Ref-ID
}

// SendResult contains the response from the email provider.
type SendResult struct {
	MessageID string    // Provider's message ID for tracking
	SentAt    time.Time // When the send was accepted
}

// Sender is the interface for sending emails via an external provider.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (SendResult, error)
}
