package billing

import (
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/remindhq/remind/internal/config"
	"github.com/remindhq/remind/internal/license"
)

// Mailer delivers a freshly minted license token to the purchaser.
type Mailer interface {
	SendLicense(email, token string, tier license.PlanTier) error
}

// NewMailer returns an SMTP mailer when credentials are configured, otherwise
// a mailer that logs the token so local runs still surface it.
func NewMailer(cfg config.SMTPConfig) Mailer {
	if cfg.Configured() {
		return &smtpMailer{cfg: cfg}
	}
	return &logMailer{}
}

type logMailer struct{}

func (m *logMailer) SendLicense(email, token string, tier license.PlanTier) error {
	slog.Info("smtp not configured, logging license instead of emailing",
		"email", email, "tier", tier, "token", token)
	return nil
}

type smtpMailer struct {
	cfg config.SMTPConfig
}

func (m *smtpMailer) SendLicense(email, token string, tier license.PlanTier) error {
	body := licenseEmail(m.cfg.FromEmail, email, token, tier)
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	auth := smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	if err := smtp.SendMail(addr, auth, m.cfg.FromEmail, []string{email}, body); err != nil {
		return fmt.Errorf("sending license email to %s: %w", email, err)
	}
	return nil
}

func licenseEmail(from, to, token string, tier license.PlanTier) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	b.WriteString("Subject: Your Remind License\r\n")
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&b, "Welcome to Remind!\n\nYour %s license token:\n\n%s\n\n", strings.ToUpper(string(tier)), token)
	b.WriteString("Setup:\n")
	fmt.Fprintf(&b, "  1. Install remind\n  2. Configure: remind settings --license-token %s\n", token)
	b.WriteString("  3. Start using: remind add \"buy milk tomorrow\"\n\nHappy reminding!\n")
	return []byte(b.String())
}
