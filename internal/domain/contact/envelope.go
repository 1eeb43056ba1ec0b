package contact

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Shape identifies which wire contract a relay request body follows.
type Shape string

const (
	// ShapeEnvelope is the canonical {subject, from, message} contract.
	ShapeEnvelope Shape = "envelope"
	// ShapeLegacy is the flat {name, email, message, program} form-field contract.
	ShapeLegacy Shape = "legacy"
)

// Domain errors for envelope decoding.
var (
	ErrMalformedBody  = errors.New("request body is not a JSON object")
	ErrMissingFields  = errors.New("missing required fields")
	ErrLegacyDisabled = errors.New("legacy contact shape is not accepted")
)

// Envelope is the payload the client sends to the relay.
type Envelope struct {
	Subject string `json:"subject"`
	From    string `json:"from"`
	Message string `json:"message"`

	// ReplyName is the submitter's display name when known (legacy shape only).
	ReplyName string `json:"-"`
}

// BuildEnvelope derives the canonical envelope from a submission.
// PRE: s has passed Validate
// POST: Returns an envelope with subject, from and formatted message set
func BuildEnvelope(s Submission) Envelope {
	t := s.Trimmed()

	subject := "Contact Form: " + t.Name
	if t.Program != "" {
		subject += " - " + t.Program
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\n", t.Email)
	fmt.Fprintf(&b, "Name: %s\n", t.Name)
	if t.Program != "" {
		fmt.Fprintf(&b, "Program Interest: %s\n", t.Program)
	}
	b.WriteString("\nMessage:\n")
	b.WriteString(t.Message)

	return Envelope{
		Subject:   subject,
		From:      t.Email,
		Message:   b.String(),
		ReplyName: t.Name,
	}
}

// wireBody is the union of both accepted request shapes.
type wireBody struct {
	Subject string `json:"subject"`
	From    string `json:"from"`
	Message string `json:"message"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Program string `json:"program"`
}

// shape reports which contract a decoded body follows.
// Any canonical header field selects ShapeEnvelope; otherwise any legacy
// identity field selects ShapeLegacy. An empty body is treated as canonical.
func (w wireBody) shape() Shape {
	if strings.TrimSpace(w.Subject) != "" || strings.TrimSpace(w.From) != "" {
		return ShapeEnvelope
	}
	if strings.TrimSpace(w.Name) != "" || strings.TrimSpace(w.Email) != "" {
		return ShapeLegacy
	}
	return ShapeEnvelope
}

// DecodeEnvelope parses a relay request body into the canonical envelope.
// Legacy bodies are converted with BuildEnvelope when acceptLegacy is set.
// PRE: data is the raw request body
// POST: Returns the envelope and detected shape, or ErrMalformedBody,
// ErrMissingFields or ErrLegacyDisabled
func DecodeEnvelope(data []byte, acceptLegacy bool) (Envelope, Shape, error) {
	var w wireBody
	if err := json.Unmarshal(data, &w); err != nil {
		return Envelope{}, "", fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}

	shape := w.shape()
	switch shape {
	case ShapeLegacy:
		if !acceptLegacy {
			return Envelope{}, shape, ErrLegacyDisabled
		}
		s := Submission{Name: w.Name, Email: w.Email, Message: w.Message, Program: w.Program}.Trimmed()
		if s.Name == "" || s.Email == "" || s.Message == "" {
			return Envelope{}, shape, ErrMissingFields
		}
		return BuildEnvelope(s), shape, nil
	default:
		env := Envelope{
			Subject: strings.TrimSpace(w.Subject),
			From:    strings.TrimSpace(w.From),
			Message: strings.TrimSpace(w.Message),
		}
		if env.Subject == "" || env.From == "" || env.Message == "" {
			return Envelope{}, shape, ErrMissingFields
		}
		return env, shape, nil
	}
}

// SanitizeHeader neutralizes characters that could end a mail header line.
// CR and LF become spaces and NUL is dropped.
func SanitizeHeader(s string) string {
	s = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ", "\x00", "").Replace(s)
	return strings.TrimSpace(s)
}

// SanitizeBody normalizes line endings to LF and drops NUL bytes.
func SanitizeBody(s string) string {
	return strings.NewReplacer("\r\n", "\n", "\r", "\n", "\x00", "").Replace(s)
}
