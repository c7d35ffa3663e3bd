package mail

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

// AddressBook resolves a user id to an email address.
type AddressBook interface {
	Email(ctx context.Context, userID uuid.UUID) (string, error)
}

// Mailer sends transactional mail over SMTP. Callers treat it as best
// effort; a send failure is logged upstream and never blocks a workflow.
type Mailer struct {
	dialer    *gomail.Dialer
	from      string
	addresses AddressBook
}

func NewMailer(host string, port int, username, password, from string, addresses AddressBook) *Mailer {
	return &Mailer{
		dialer:    gomail.NewDialer(host, port, username, password),
		from:      from,
		addresses: addresses,
	}
}

// Send delivers one plain-text email to a user.
func (m *Mailer) Send(ctx context.Context, userID uuid.UUID, subject, body string) error {
	to, err := m.addresses.Email(ctx, userID)
	if err != nil {
		return fmt.Errorf("mail: resolve recipient: %w", err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("mail: send to %s: %w", to, err)
	}
	return nil
}
