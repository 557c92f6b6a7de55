package notification

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailSender sends through the Gmail API as the configured sender using a
// service account with domain-wide delegation.
type GmailSender struct {
	from    string
	service *gmail.Service
}

func NewGmailSender(ctx context.Context, from string, credentialsFile string) (*GmailSender, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read gmail credentials: %w", err)
	}
	conf, err := google.JWTConfigFromJSON(data, gmail.GmailSendScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse gmail credentials: %w", err)
	}
	conf.Subject = from

	service, err := gmail.NewService(ctx, option.WithHTTPClient(conf.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create gmail service: %w", err)
	}
	return &GmailSender{from: from, service: service}, nil
}

func (s *GmailSender) Send(ctx context.Context, msg Message) error {
	raw, err := rawMIME(s.from, msg)
	if err != nil {
		return err
	}
	_, err = s.service.Users.Messages.
		Send("me", &gmail.Message{Raw: base64.URLEncoding.EncodeToString(raw)}).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("gmail send to %s: %w", msg.Recipients(), err)
	}
	return nil
}
