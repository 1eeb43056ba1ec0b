// Package relayclient posts contact envelopes to the relay endpoint.
package relayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"nammabody/internal/domain/contact"
)

// maxResponseBytes bounds how much of a relay response is read.
const maxResponseBytes = 1 << 20

// Client sends one envelope per call. It never retries.
type Client struct {
	endpoint string
	http     *http.Client
}

// New creates a client for endpoint. A zero timeout means no client-side limit
// beyond the caller's context.
func New(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

// Endpoint returns the configured relay URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

type relayResponse struct {
	OK    *bool  `json:"ok"`
	Error string `json:"error"`
}

// Post sends env as JSON and interprets the relay's answer.
// PRE: env has been built from a valid submission
// POST: Returns ok, or a transport or delivery failure with a user-facing message
func (c *Client) Post(ctx context.Context, env contact.Envelope) contact.Result {
	payload, err := json.Marshal(env)
	if err != nil {
		return contact.Failed(contact.CategoryTransport, contact.MsgNetwork)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		slog.Warn("contact_event", "event", "bad_endpoint", "error", err)
		return contact.Failed(contact.CategoryConfiguration, contact.MsgUnconfigured)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return contact.Failed(contact.CategoryTransport, contact.MsgCancelled)
		}
		slog.Warn("contact_event", "event", "relay_unreachable", "error", err)
		return contact.Failed(contact.CategoryTransport, contact.MsgNetwork)
	}
	defer resp.Body.Close()

	return interpret(resp)
}

func interpret(resp *http.Response) contact.Result {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return contact.Failed(contact.CategoryTransport, contact.MsgNetwork)
	}

	var rr relayResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		slog.Warn("contact_event", "event", "invalid_response", "status", resp.StatusCode, "error", err)
		return contact.Failed(contact.CategoryDelivery, contact.MsgInvalidResponse)
	}

	ok2xx := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !ok2xx || rr.OK == nil || !*rr.OK {
		msg := rr.Error
		if msg == "" {
			msg = contact.MsgSendFailed
		}
		slog.Info("contact_event", "event", "relay_rejected", "status", resp.StatusCode, "error", msg)
		return contact.Failed(contact.CategoryDelivery, msg)
	}
	return contact.Success()
}
