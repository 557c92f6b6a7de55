package notification

import (
	"context"
	"fmt"

	"github.com/ndtl/timereport/internal/config"
	"github.com/wneessen/go-mail"
)

type SMTPSender struct {
	from   string
	client *mail.Client
}

func NewSMTPSender(from string, cfg config.Smtp) (*SMTPSender, error) {
	policy := mail.TLSOpportunistic
	if cfg.TLS {
		policy = mail.TLSMandatory
	}
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(policy),
	}
	if cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.User),
			mail.WithPassword(cfg.Pass),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client for %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &SMTPSender{from: from, client: client}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := buildMsg(s.from, msg)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.Recipients(), err)
	}
	return nil
}
