// Package mailer sends plain-text mail over SMTP with go-mail.
package mailer

import (
	"context"
	"fmt"
	"sync"

	"github.com/ds124wfegd/courseportal/config"
	"github.com/wneessen/go-mail"
)

// Sender delivers built messages; *mail.Client satisfies it.
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type SMTPMailer struct {
	from string

	mu     sync.Mutex
	sender Sender
}

func NewSMTPMailer(cfg *config.EmailConfig) (*SMTPMailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("mailer: create smtp client: %w", err)
	}
	return &SMTPMailer{from: cfg.From, sender: client}, nil
}

// WithSender replaces the SMTP transport.
func (m *SMTPMailer) WithSender(sender Sender) *SMTPMailer {
	m.sender = sender
	return m
}

// Send delivers one message. The dial and the SMTP dialogue both stop when
// ctx is done.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg, err := m.buildMessage(to, subject, body)
	if err != nil {
		return err
	}

	// One client holds one connection at a time.
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("mailer: send to %s: %w", to, err)
	}
	return nil
}

func (m *SMTPMailer) buildMessage(to, subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, fmt.Errorf("mailer: invalid sender %q: %w", m.from, err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("mailer: invalid recipient %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}
