package contact

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Category constants classify a failed Result for logging.
const (
	CategoryValidation    = "validation"
	CategoryConfiguration = "configuration"
	CategoryTransport     = "transport"
	CategoryDelivery      = "delivery"
)

// MinMessageLength is the minimum trimmed message length in runes.
const MinMessageLength = 10

// User-facing messages.
const (
	MsgNameRequired    = "Please enter your name."
	MsgEmailRequired   = "Please enter your email."
	MsgEmailInvalid    = "Please enter a valid email."
	MsgMessageRequired = "Please enter a message."
	MsgMessageTooShort = "Your message is too short. Add a bit more detail."

	MsgUnconfigured    = "Contact endpoint not configured."
	MsgNetwork         = "Network error. Please check your connection and try again."
	MsgCancelled       = "Request cancelled"
	MsgInvalidResponse = "Invalid response from server"
	MsgSendFailed      = "Failed to send message. Please try again."
)

// nonSpace is one or more runes that are neither @ nor whitespace as a
// browser's \s defines it. RE2's \s lacks \v, the Unicode separators and the BOM.
const nonSpace = `[^\s\x0B\p{Z}\x{FEFF}@]+`

// emailPattern is intentionally simple; the relay validates again.
var emailPattern = regexp.MustCompile(`^` + nonSpace + `@` + nonSpace + `\.` + nonSpace + `$`)

// Submission is what a visitor enters in the contact form.
type Submission struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
	Program string `json:"program,omitempty"`
}

// Result is the tagged outcome of validating or delivering a Submission.
type Result struct {
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
	Category string `json:"-"`
}

// Success returns an ok Result.
func Success() Result {
	return Result{OK: true}
}

// Failed returns a failed Result in the given category.
func Failed(category, msg string) Result {
	return Result{OK: false, Error: msg, Category: category}
}

// IsValidEmail reports whether addr looks like local@domain.tld.
func IsValidEmail(addr string) bool {
	return emailPattern.MatchString(addr)
}

// Trimmed returns a copy of s with every field trimmed of surrounding whitespace.
func (s Submission) Trimmed() Submission {
	return Submission{
		Name:    strings.TrimSpace(s.Name),
		Email:   strings.TrimSpace(s.Email),
		Message: strings.TrimSpace(s.Message),
		Program: strings.TrimSpace(s.Program),
	}
}

// Validate checks a submission before any network call.
// Rules run in order and the first failure wins.
// PRE: none
// POST: Returns an ok Result or a validation failure; s is not mutated
func Validate(s Submission) Result {
	t := s.Trimmed()
	switch {
	case t.Name == "":
		return Failed(CategoryValidation, MsgNameRequired)
	case t.Email == "":
		return Failed(CategoryValidation, MsgEmailRequired)
	case !IsValidEmail(t.Email):
		return Failed(CategoryValidation, MsgEmailInvalid)
	case t.Message == "":
		return Failed(CategoryValidation, MsgMessageRequired)
	case utf8.RuneCountInString(t.Message) < MinMessageLength:
		return Failed(CategoryValidation, MsgMessageTooShort)
	}
	return Success()
}
