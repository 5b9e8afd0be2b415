// Package mailer delivers rendered e-mail messages.
package mailer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
	"github.com/yukikurage/task-assignment-api/internal/config"
)

// Message is a rendered HTML e-mail for a single recipient
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers messages
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// New returns an SMTP sender when credentials are configured, otherwise a
// sender that only logs the envelope.
func New(cfg config.MailConfig, log zerolog.Logger) (Sender, error) {
	if !cfg.SMTPEnabled() {
		log.Warn().Msg("SMTP credentials not configured, e-mails will only be logged")
		return NewLogSender(cfg.From, log), nil
	}
	return NewSMTPSender(cfg)
}

// SMTPSender sends mail through an SMTP server using STARTTLS and PLAIN auth
type SMTPSender struct {
	client   *mail.Client
	from     string
	fromName string
}

// NewSMTPSender creates a new SMTPSender
func NewSMTPSender(cfg config.MailConfig) (*SMTPSender, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = mail.DefaultTimeout
	}

	client, err := mail.NewClient(cfg.SMTPHost,
		mail.WithPort(cfg.SMTPPort),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.SMTPUsername),
		mail.WithPassword(cfg.SMTPPassword),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
		mail.WithTimeout(timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}

	return &SMTPSender{client: client, from: cfg.From, fromName: cfg.FromName}, nil
}

// Send builds the MIME message and delivers it
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := BuildMsg(s.from, s.fromName, msg)
	if err != nil {
		return err
	}

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", msg.To, err)
	}
	return nil
}

// BuildMsg converts a Message into a go-mail message
func BuildMsg(from, fromName string, msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.FromFormat(fromName, from); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTML)
	return m, nil
}

// LogSender records the envelope instead of delivering
type LogSender struct {
	from string
	log  zerolog.Logger
}

// NewLogSender creates a new LogSender
func NewLogSender(from string, log zerolog.Logger) *LogSender {
	return &LogSender{from: from, log: log}
}

// Send logs the envelope. The body is not logged.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if _, err := BuildMsg(s.from, "", msg); err != nil {
		return err
	}
	s.log.Info().
		Str("from", s.from).
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Int("body_bytes", len(msg.HTML)).
		Msg("mail delivery skipped, SMTP not configured")
	return nil
}
