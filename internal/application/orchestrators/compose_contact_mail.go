package orchestrators

import (
	"bytes"
	"fmt"
	"net/mail"
	"strings"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"nammabody/internal/domain/contact"
)

// mailRenderer renders the HTML body. Raw HTML in the source is omitted.
var mailRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// ContactMail is a relay envelope rendered for delivery.
type ContactMail struct {
	Subject string
	ReplyTo string
	Text    string
	HTML    string
}

// ComposeContactMail renders the text and HTML bodies for env.
// PRE: env passed DecodeEnvelope; site is the display name of the site
// POST: Header-bound values contain no line breaks; user text is escaped in HTML
func ComposeContactMail(env contact.Envelope, site string) (ContactMail, error) {
	subject := contact.SanitizeHeader(env.Subject)
	from := contact.SanitizeHeader(env.From)
	message := contact.SanitizeBody(env.Message)

	reply := mail.Address{Name: contact.SanitizeHeader(env.ReplyName), Address: from}

	text := fmt.Sprintf("From: %s\n\n%s\n\n---\nThis email was sent from the contact form on %s", from, message, site)

	var md strings.Builder
	md.WriteString("## New contact form submission\n\n")
	fmt.Fprintf(&md, "**From:** %s\n\n", escapeMarkdown(from))
	fmt.Fprintf(&md, "**Subject:** %s\n\n", escapeMarkdown(subject))
	md.WriteString(escapeMarkdown(message))
	md.WriteString("\n\n---\n\n")
	fmt.Fprintf(&md, "_This email was sent from the contact form on %s_\n", escapeMarkdown(site))

	var html bytes.Buffer
	if err := mailRenderer.Convert([]byte(md.String()), &html); err != nil {
		return ContactMail{}, fmt.Errorf("render contact mail: %w", err)
	}

	return ContactMail{
		Subject: subject,
		ReplyTo: reply.String(),
		Text:    text,
		HTML:    html.String(),
	}, nil
}

// escapeMarkdown backslash-escapes ASCII punctuation so user text renders literally.
func escapeMarkdown(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < 0x80 && strings.ContainsRune("!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~", r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
