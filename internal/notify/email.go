package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/alcazar-iot/yeti-audio-agent/internal/util"
	"github.com/wneessen/go-mail"
)

// EmailConfig contains SMTP server settings for the optional fatal-
// condition escalation path.
type EmailConfig struct {
	Host       string
	Port       int
	FromName   string
	Username   string
	Password   string
	Recipients string
}

// IsConfigured reports whether enough of EmailConfig is set to attempt a
// send.
func (c EmailConfig) IsConfigured() bool {
	return util.IsConfigured(c.Host, c.Username, c.Recipients)
}

// SendFatalAlert emails subject/body to the configured recipients. It is
// a no-op (returning nil) when SMTP is not configured, matching the
// teacher's silently-skip-when-unconfigured behavior.
func SendFatalAlert(cfg EmailConfig, subject, body string) error {
	if !cfg.IsConfigured() {
		return nil
	}

	fullSubject := "[FATAL] " + subject
	fullBody := fmt.Sprintf("%s\n\nTime: %s", body, time.Now().UTC().Format(time.RFC3339))
	return sendEmail(cfg, fullSubject, fullBody)
}

// sendEmail delivers an email message to configured recipients.
func sendEmail(cfg EmailConfig, subject, body string) error {
	var recipients []string
	for _, r := range strings.Split(cfg.Recipients, ",") {
		if r = strings.TrimSpace(r); r != "" {
			recipients = append(recipients, r)
		}
	}
	if len(recipients) == 0 {
		return fmt.Errorf("no valid recipients")
	}

	m := mail.NewMsg()
	if cfg.FromName != "" {
		if err := m.FromFormat(cfg.FromName, cfg.Username); err != nil {
			return util.WrapError("set from address", err)
		}
	} else {
		if err := m.From(cfg.Username); err != nil {
			return util.WrapError("set from address", err)
		}
	}
	if err := m.To(recipients...); err != nil {
		return util.WrapError("set recipient address", err)
	}
	m.Subject(subject)
	m.SetBodyString(mail.TypeTextPlain, body)

	// Build client options with port-appropriate TLS settings.
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthAutoDiscover),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
	}

	switch cfg.Port {
	case 465: // SMTPS - implicit TLS
		opts = append(opts, mail.WithSSL())
	case 587: // Submission - STARTTLS required
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	default: // Port 25 or custom - opportunistic TLS
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSOpportunistic))
	}

	c, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return util.WrapError("create SMTP client", err)
	}

	if err := c.DialAndSend(m); err != nil {
		return util.WrapError("send email", err)
	}

	return nil
}
