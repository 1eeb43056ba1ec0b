package contact

import "net/http"

// FailureKind is the stable machine-readable reason for a relay failure.
type FailureKind string

const (
	KindMethodNotAllowed  FailureKind = "method_not_allowed"
	KindMissingFields     FailureKind = "missing_fields"
	KindInvalidEmail      FailureKind = "invalid_email"
	KindUnconfigured      FailureKind = "unconfigured"
	KindAuthFailure       FailureKind = "auth_failure"
	KindConnectionFailure FailureKind = "connection_failure"
	KindDeliveryFailure   FailureKind = "delivery_failure"
	KindRateLimited       FailureKind = "rate_limited"
)

// Failure is a status-bearing relay outcome. It never carries transport detail.
type Failure struct {
	Kind    FailureKind
	Status  int
	Message string
}

// Error implements error.
func (f *Failure) Error() string {
	return string(f.Kind) + ": " + f.Message
}

// Relay failures, one per kind.
var (
	ErrMethodNotAllowed = &Failure{KindMethodNotAllowed, http.StatusMethodNotAllowed, "Method not allowed"}
	ErrRequiredFields   = &Failure{KindMissingFields, http.StatusBadRequest, "Missing required fields"}
	ErrInvalidEmail     = &Failure{KindInvalidEmail, http.StatusBadRequest, "Invalid email address"}
	ErrUnconfigured     = &Failure{KindUnconfigured, http.StatusInternalServerError, "Email service is not configured. Please try again later."}
	ErrAuthFailure      = &Failure{KindAuthFailure, http.StatusUnauthorized, "Email authentication failed."}
	ErrConnection       = &Failure{KindConnectionFailure, http.StatusServiceUnavailable, "Could not connect to email server. Please try again later."}
	ErrDelivery         = &Failure{KindDeliveryFailure, http.StatusInternalServerError, "Failed to send email. Please try again later."}
	ErrRateLimited      = &Failure{KindRateLimited, http.StatusTooManyRequests, "Too many requests. Please try again later."}
)

// FailureBody is the JSON shape written for a failed relay request.
type FailureBody struct {
	OK     bool        `json:"ok"`
	Error  string      `json:"error"`
	Reason FailureKind `json:"reason"`
}

// Body returns the response body for f.
func (f *Failure) Body() FailureBody {
	return FailureBody{OK: false, Error: f.Message, Reason: f.Kind}
}

// MsgRelaySent is the confirmation returned when the relay hands mail to the provider.
const MsgRelaySent = "Email sent successfully"

// SentBody is the JSON shape written for a delivered relay request.
type SentBody struct {
	OK        bool   `json:"ok"`
	Message   string `json:"message"`
	MessageID string `json:"messageId"`
}
