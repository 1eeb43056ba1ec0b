package orchestrators

import (
	"context"
	"log/slog"

	"nammabody/internal/domain/contact"
)

// ContactRelay posts an envelope to the relay and interprets the answer.
type ContactRelay interface {
	Post(ctx context.Context, env contact.Envelope) contact.Result
}

// SubmitContactDeps are the external dependencies for this orchestrator.
type SubmitContactDeps struct {
	Endpoint string
	Relay    ContactRelay
}

// ExecuteSubmitContact validates a submission and delivers it to the relay.
// PRE: none
// POST: Exactly one relay call when validation passes and an endpoint is
// configured; none otherwise. The result is never an error value.
func ExecuteSubmitContact(ctx context.Context, sub contact.Submission, deps SubmitContactDeps) contact.Result {
	if res := contact.Validate(sub); !res.OK {
		return res
	}

	if deps.Endpoint == "" || deps.Relay == nil {
		slog.Warn("contact_event", "event", "endpoint_unconfigured")
		return contact.Failed(contact.CategoryConfiguration, contact.MsgUnconfigured)
	}

	env := contact.BuildEnvelope(sub)
	res := deps.Relay.Post(ctx, env)
	if res.OK {
		slog.Info("contact_event", "event", "submitted", "subject", env.Subject)
	} else {
		slog.Info("contact_event", "event", "submit_failed", "category", res.Category, "error", res.Error)
	}
	return res
}
