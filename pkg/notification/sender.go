package notification

import (
	"context"
	"fmt"
	"os"

	"github.com/ndtl/timereport/internal/config"
)

// NewSender builds the transport selected by cfg.Transport.
func NewSender(ctx context.Context, cfg config.Mail) (Sender, error) {
	switch cfg.Transport {
	case "smtp":
		return NewSMTPSender(cfg.From, cfg.Smtp)
	case "gmail":
		return NewGmailSender(ctx, cfg.From, cfg.Gmail.CredentialsFile)
	case "amqp":
		return NewAMQPSender(cfg.From, cfg.Amqp)
	case "console":
		return NewConsoleSender(os.Stdout), nil
	default:
		return nil, fmt.Errorf("unknown mail transport %q", cfg.Transport)
	}
}
