package contact

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func validSubmission() Submission {
	return Submission{
		Name:    "Jane Doe",
		Email:   "jane@example.com",
		Message: "I'd like to start the 6-month plan please",
		Program: "6-Month Plan",
	}
}

// TestValidate_Valid tests that a complete submission passes.
func TestValidate_Valid(t *testing.T) {
	if r := Validate(validSubmission()); !r.OK {
		t.Errorf("expected ok, got %+v", r)
	}
}

// TestValidate_RuleOrder tests that rules run in order and the first failure wins.
func TestValidate_RuleOrder(t *testing.T) {
	cases := []struct {
		name string
		sub  Submission
		want string
	}{
		{"everything empty", Submission{}, MsgNameRequired},
		{"blank name", Submission{Name: "   ", Email: "x", Message: "x"}, MsgNameRequired},
		{"blank email", Submission{Name: "Jane", Email: " \t", Message: ""}, MsgEmailRequired},
		{"bad email beats empty message", Submission{Name: "Jane", Email: "not-an-email"}, MsgEmailInvalid},
		{"blank message", Submission{Name: "Jane", Email: "jane@example.com", Message: "  \n "}, MsgMessageRequired},
		{"short message", Submission{Name: "Jane", Email: "jane@example.com", Message: "  too short "}, MsgMessageTooShort},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := Validate(tc.sub)
			if r.OK {
				t.Fatal("expected failure")
			}
			if r.Error != tc.want {
				t.Errorf("error = %q, want %q", r.Error, tc.want)
			}
			if r.Category != CategoryValidation {
				t.Errorf("category = %q, want validation", r.Category)
			}
		})
	}
}

// TestValidate_MessageLengthBoundary tests lengths 0..9 fail and 10+ passes.
func TestValidate_MessageLengthBoundary(t *testing.T) {
	for n := 0; n <= 12; n++ {
		s := validSubmission()
		s.Message = "  " + strings.Repeat("a", n) + "  "
		r := Validate(s)
		if n < MinMessageLength && r.OK {
			t.Errorf("len %d: expected failure", n)
		}
		if n < MinMessageLength && r.Error != MsgMessageRequired && r.Error != MsgMessageTooShort {
			t.Errorf("len %d: unexpected error %q", n, r.Error)
		}
		if n >= MinMessageLength && !r.OK {
			t.Errorf("len %d: expected ok, got %q", n, r.Error)
		}
	}
}

// TestValidate_MessageCountsRunes tests that multi-byte characters count once.
func TestValidate_MessageCountsRunes(t *testing.T) {
	s := validSubmission()
	s.Message = "ನಮ್ಮ" // 4 runes, 12 bytes
	if r := Validate(s); r.Error != MsgMessageTooShort {
		t.Errorf("error = %q, want too short", r.Error)
	}
}

// TestValidate_Idempotent tests that repeated calls give identical results.
func TestValidate_Idempotent(t *testing.T) {
	for _, s := range []Submission{validSubmission(), {Name: "J", Email: "bad"}} {
		first, second := Validate(s), Validate(s)
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("results differ (-first +second):\n%s", diff)
		}
	}
}

// TestIsValidEmail tests the simple address pattern.
func TestIsValidEmail(t *testing.T) {
	valid := []string{"a@b.c", "jane@example.com", "first.last+tag@sub.domain.co.in", "x@y.z.w"}
	for _, addr := range valid {
		if !IsValidEmail(addr) {
			t.Errorf("IsValidEmail(%q) = false, want true", addr)
		}
	}
	invalid := []string{"", "not-an-email", "jane.example.com", "jane@example", "@example.com", "jane@.com", "jane@example.", "ja ne@example.com", "jane@@example.com", "jane@exa mple.com", "jane@example.com\n",
		"jane\u00a0doe@example.com", "jane@exa\u2003mple.com", "jane\u2028@example.com",
		"jane\v@example.com", "jane@example.\ufeffcom", "jane@example.c\u3000om"}
	for _, addr := range invalid {
		if IsValidEmail(addr) {
			t.Errorf("IsValidEmail(%q) = true, want false", addr)
		}
	}
}

// TestValidate_TrimsEmailBeforeMatching verifies surrounding whitespace is
// ignored while inner whitespace still fails.
func TestValidate_TrimsEmailBeforeMatching(t *testing.T) {
	s := validSubmission()
	s.Email = " \tjane@example.com \n"
	if res := Validate(s); !res.OK {
		t.Errorf("padded email rejected: %+v", res)
	}

	s.Email = " jane\u00a0doe@example.com "
	if res := Validate(s); res.Error != MsgEmailInvalid {
		t.Errorf("Validate(%q).Error = %q, want %q", s.Email, res.Error, MsgEmailInvalid)
	}
}

// TestBuildEnvelope_WithProgram tests subject suffix and program line.
func TestBuildEnvelope_WithProgram(t *testing.T) {
	env := BuildEnvelope(validSubmission())
	want := Envelope{
		Subject:   "Contact Form: Jane Doe - 6-Month Plan",
		From:      "jane@example.com",
		Message:   "From: jane@example.com\nName: Jane Doe\nProgram Interest: 6-Month Plan\n\nMessage:\nI'd like to start the 6-month plan please",
		ReplyName: "Jane Doe",
	}
	if diff := cmp.Diff(want, env); diff != "" {
		t.Errorf("envelope mismatch (-want +got):\n%s", diff)
	}
}

// TestBuildEnvelope_WithoutProgram tests that no program omits suffix and line.
func TestBuildEnvelope_WithoutProgram(t *testing.T) {
	s := validSubmission()
	s.Program = "  "
	env := BuildEnvelope(s)
	if env.Subject != "Contact Form: Jane Doe" {
		t.Errorf("subject = %q", env.Subject)
	}
	if strings.Contains(env.Message, "Program Interest") {
		t.Errorf("message should not mention program: %q", env.Message)
	}
}

// TestDecodeEnvelope_Canonical tests the canonical shape.
func TestDecodeEnvelope_Canonical(t *testing.T) {
	env, shape, err := DecodeEnvelope([]byte(`{"subject":" Hi ","from":"jane@example.com","message":"hello there"}`), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if shape != ShapeEnvelope {
		t.Errorf("shape = %s, want envelope", shape)
	}
	if env.Subject != "Hi" || env.From != "jane@example.com" || env.Message != "hello there" {
		t.Errorf("unexpected envelope: %+v", env)
	}
}

// TestDecodeEnvelope_MissingMessage tests that an absent message is rejected.
func TestDecodeEnvelope_MissingMessage(t *testing.T) {
	_, _, err := DecodeEnvelope([]byte(`{"subject":"Hi","from":"jane@example.com"}`), true)
	if !errors.Is(err, ErrMissingFields) {
		t.Errorf("expected ErrMissingFields, got %v", err)
	}
}

// TestDecodeEnvelope_Empty tests that an empty object is a missing-fields error.
func TestDecodeEnvelope_Empty(t *testing.T) {
	_, shape, err := DecodeEnvelope([]byte(`{}`), true)
	if !errors.Is(err, ErrMissingFields) {
		t.Errorf("expected ErrMissingFields, got %v", err)
	}
	if shape != ShapeEnvelope {
		t.Errorf("shape = %s, want envelope", shape)
	}
}

// TestDecodeEnvelope_Malformed tests non-object bodies.
func TestDecodeEnvelope_Malformed(t *testing.T) {
	for _, body := range []string{``, `not json`, `[1,2]`, `{"subject": 5}`} {
		if _, _, err := DecodeEnvelope([]byte(body), true); !errors.Is(err, ErrMalformedBody) {
			t.Errorf("body %q: expected ErrMalformedBody, got %v", body, err)
		}
	}
}

// TestDecodeEnvelope_LegacyAccepted tests that flat fields convert to the canonical envelope.
func TestDecodeEnvelope_LegacyAccepted(t *testing.T) {
	body := `{"name":"Jane Doe","email":"jane@example.com","message":"I'd like to start the 6-month plan please","program":"6-Month Plan"}`
	env, shape, err := DecodeEnvelope([]byte(body), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if shape != ShapeLegacy {
		t.Errorf("shape = %s, want legacy", shape)
	}
	if diff := cmp.Diff(BuildEnvelope(validSubmission()), env); diff != "" {
		t.Errorf("legacy conversion mismatch (-want +got):\n%s", diff)
	}
}

// TestDecodeEnvelope_LegacyDisabled tests that the shim can be turned off.
func TestDecodeEnvelope_LegacyDisabled(t *testing.T) {
	_, shape, err := DecodeEnvelope([]byte(`{"name":"Jane","email":"jane@example.com","message":"hello there"}`), false)
	if !errors.Is(err, ErrLegacyDisabled) {
		t.Errorf("expected ErrLegacyDisabled, got %v", err)
	}
	if shape != ShapeLegacy {
		t.Errorf("shape = %s, want legacy", shape)
	}
}

// TestDecodeEnvelope_LegacyMissingName tests legacy required fields.
func TestDecodeEnvelope_LegacyMissingName(t *testing.T) {
	_, _, err := DecodeEnvelope([]byte(`{"email":"jane@example.com","message":"hello there"}`), true)
	if !errors.Is(err, ErrMissingFields) {
		t.Errorf("expected ErrMissingFields, got %v", err)
	}
}

// TestSanitizeHeader tests header-injection neutralization.
func TestSanitizeHeader(t *testing.T) {
	got := SanitizeHeader("Hello\r\nBcc: victim@example.com\n\x00")
	if strings.ContainsAny(got, "\r\n\x00") {
		t.Errorf("header still contains line breaks: %q", got)
	}
	if got != "Hello Bcc: victim@example.com" {
		t.Errorf("SanitizeHeader = %q", got)
	}
}

// TestSanitizeBody tests line-ending normalization.
func TestSanitizeBody(t *testing.T) {
	if got := SanitizeBody("a\r\nb\rc\x00d"); got != "a\nb\ncd" {
		t.Errorf("SanitizeBody = %q", got)
	}
}

// TestFailure_Body tests the JSON failure projection.
func TestFailure_Body(t *testing.T) {
	b := ErrRequiredFields.Body()
	if b.OK || b.Error != "Missing required fields" || b.Reason != KindMissingFields {
		t.Errorf("unexpected body: %+v", b)
	}
	if ErrAuthFailure.Status != 401 || ErrConnection.Status != 503 || ErrMethodNotAllowed.Status != 405 {
		t.Error("unexpected status mapping")
	}
}
