package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/minutemate/minutemate/pkg/config"
	"github.com/minutemate/minutemate/pkg/logger"
	"github.com/wneessen/go-mail"
)

// SMTPSender delivers mail through an SMTP relay.
type SMTPSender struct {
	from   string
	client *mail.Client
}

func NewSMTPSender(cfg *config.MailConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp: host is required")
	}
	if cfg.From == "" {
		return nil, errors.New("smtp: from address is required")
	}
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(tlsPolicy(cfg.TLSPolicy)),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password.Value()),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp: creating client: %w", err)
	}
	return &SMTPSender{from: cfg.From, client: client}, nil
}

func tlsPolicy(name string) mail.TLSPolicy {
	switch strings.ToLower(name) {
	case "mandatory":
		return mail.TLSMandatory
	case "none":
		return mail.NoTLS
	}
	return mail.TLSOpportunistic
}

func buildMsg(from string, msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	m.SetMessageID()
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}
	return m, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) (string, error) {
	m, err := buildMsg(s.from, msg)
	if err != nil {
		return "", err
	}
	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return "", fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return messageID(m), nil
}

func messageID(m *mail.Msg) string {
	if ids := m.GetGenHeader(mail.HeaderMessageID); len(ids) > 0 {
		return strings.Trim(ids[0], "<>")
	}
	return ""
}

// LogSender writes messages to the log instead of sending them. It is used
// when no SMTP relay is configured.
type LogSender struct {
	from string
}

func NewLogSender(from string) *LogSender {
	if from == "" {
		from = "minutemate@localhost"
	}
	return &LogSender{from: from}
}

func (s *LogSender) Send(ctx context.Context, msg Message) (string, error) {
	m, err := buildMsg(s.from, msg)
	if err != nil {
		return "", err
	}
	id := messageID(m)
	logger.FromContext(ctx).Info("Mail not sent (no SMTP relay configured)",
		"to", msg.To, "subject", msg.Subject, "message_id", id)
	return id, nil
}
