package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"

	"github.com/google/uuid"

	emailAdapter "nammabody/internal/adapters/email"
	"nammabody/internal/domain/contact"
)

// RelayContactInput is one inbound relay request.
type RelayContactInput struct {
	Method string
	Body   []byte
}

// RelayContactResult holds the outcome of a delivered request.
type RelayContactResult struct {
	SubmissionID string
	MessageID    string
}

// RelayContactDeps are the external dependencies for this orchestrator.
// A nil Sender or an empty Recipient or FromAddress means mail is not configured.
type RelayContactDeps struct {
	Sender       emailAdapter.Sender
	Recipient    string
	FromAddress  string
	SiteName     string
	AcceptLegacy bool
	NewID        func() string
}

// ExecuteRelayContact validates an inbound envelope and sends it as one email.
// PRE: in.Body is the complete request body
// POST: Sender.Send is called at most once, and only for a valid, configured
// request. On failure the returned Failure carries no transport detail.
func ExecuteRelayContact(ctx context.Context, in RelayContactInput, deps RelayContactDeps) (RelayContactResult, *contact.Failure) {
	if in.Method != http.MethodPost {
		return RelayContactResult{}, contact.ErrMethodNotAllowed
	}

	env, shape, err := contact.DecodeEnvelope(in.Body, deps.AcceptLegacy)
	if err != nil {
		slog.Info("relay_rejected", "reason", contact.KindMissingFields, "shape", shape, "error", err)
		return RelayContactResult{}, contact.ErrRequiredFields
	}
	if !contact.IsValidEmail(env.From) {
		slog.Info("relay_rejected", "reason", contact.KindInvalidEmail, "shape", shape)
		return RelayContactResult{}, contact.ErrInvalidEmail
	}

	if deps.Sender == nil || deps.Recipient == "" || deps.FromAddress == "" {
		slog.Error("relay_unconfigured",
			"has_sender", deps.Sender != nil,
			"has_recipient", deps.Recipient != "",
			"has_from", deps.FromAddress != "")
		return RelayContactResult{}, contact.ErrUnconfigured
	}

	msg, err := ComposeContactMail(env, deps.SiteName)
	if err != nil {
		slog.Error("relay_compose_failed", "error", err)
		return RelayContactResult{}, contact.ErrDelivery
	}

	newID := deps.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	id := newID()
	sender := mail.Address{Name: deps.SiteName, Address: deps.FromAddress}

	sent, err := deps.Sender.Send(ctx, emailAdapter.SendRequest{
		To:      []string{deps.Recipient},
		From:    sender.String(),
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
		ReplyTo: msg.ReplyTo,
		Headers: map[string]string{"X-Entity-Ref-ID": id},
	})
	if err != nil {
		f := classifySendError(err)
		slog.Error("relay_send_failed", "submission_id", id, "reason", f.Kind, "error", err)
		return RelayContactResult{}, f
	}

	slog.Info("contact_relayed", "submission_id", id, "message_id", sent.MessageID, "shape", shape)
	return RelayContactResult{SubmissionID: id, MessageID: sent.MessageID}, nil
}

// classifySendError maps a transport error to its relay failure.
func classifySendError(err error) *contact.Failure {
	switch {
	case errors.Is(err, emailAdapter.ErrAuth):
		return contact.ErrAuthFailure
	case errors.Is(err, emailAdapter.ErrConnection):
		return contact.ErrConnection
	}
	return contact.ErrDelivery
}
