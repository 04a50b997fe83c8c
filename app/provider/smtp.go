package provider

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/relayq/relayq/app/entity"
)

type SMTP struct {
	dialer *gomail.Dialer
	source string
}

// NewSMTP builds a sender that delivers through a plain SMTP relay.
func NewSMTP(host string, port int, username, password, source string) *SMTP {
	return &SMTP{
		dialer: gomail.NewDialer(host, port, username, password),
		source: source,
	}
}

func (p *SMTP) Name() string { return "smtp" }

func (p *SMTP) SendEmail(_ context.Context, email *entity.Email) error {
	if email.RecipientEmail == "" {
		return fmt.Errorf("recipient is required")
	}

	from := email.SenderEmail
	if from == "" {
		from = p.source
	}

	m := gomail.NewMessage()
	if email.SenderName != "" {
		m.SetAddressHeader("From", from, email.SenderName)
	} else {
		m.SetHeader("From", from)
	}
	m.SetHeader("To", email.RecipientEmail)
	m.SetHeader("Subject", email.Subject)
	m.SetBody("text/html", email.Body)

	if err := p.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send email: %w", err)
	}
	return nil
}
