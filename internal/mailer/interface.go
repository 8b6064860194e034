// Package mailer provides transactional email delivery with SSRF protection
// and MIME-injection-safe address handling, scoped to the single
// security-alert use case this service needs.
package mailer

import "context"

// EmailProvider defines the contract for transactional email delivery.
// Implementations MUST be thread-safe and must never log a decrypted
// credential or a raw recipient address.
type EmailProvider interface {
	// Send delivers an email and returns the provider's message ID for tracking.
	Send(ctx context.Context, payload EmailPayload) (providerMessageID string, err error)
}

// EmailPayload encapsulates all data required for sending an email. To MUST
// already have passed net/mail.ParseAddress before Send is called.
type EmailPayload struct {
	To        string         `json:"to"`
	Template  EmailTemplate  `json:"template"`
	Data      map[string]any `json:"data"`
	RequestID string         `json:"request_id"`
}

// EmailTemplate restricts which templates can be rendered, so a caller can
// never smuggle an arbitrary template path through user input.
type EmailTemplate string

const (
	TemplateSecurityAlert EmailTemplate = "security_alert"
)

var ValidTemplates = map[EmailTemplate]bool{
	TemplateSecurityAlert: true,
}

// SMTPConfig holds the single outbound SMTP identity this service sends
// security-alert mail from.
type SMTPConfig struct {
	Host          string `json:"host"`
	Port          int    `json:"port"`
	User          string `json:"user"`
	PassEncrypted string `json:"pass_encrypted"` // sealed via internal/crypto.Box
	From          string `json:"from"`
	TLSMode       string `json:"tls_mode"` // "starttls" or "tls"
}
