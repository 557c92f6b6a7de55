package notification

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/wneessen/go-mail"
)

// ErrInvalidMessage marks messages no transport can send as built.
var ErrInvalidMessage = errors.New("invalid message")

func buildMsg(from string, msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("%w: sender %q: %w", ErrInvalidMessage, from, err)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("%w: recipients %q: %w", ErrInvalidMessage, msg.Recipients(), err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTML)
	for _, a := range msg.Attachments {
		var opts []mail.FileOption
		if a.ContentType != "" {
			opts = append(opts, mail.WithFileContentType(mail.ContentType(a.ContentType)))
		}
		if err := m.AttachReader(a.Name, bytes.NewReader(a.Data), opts...); err != nil {
			return nil, fmt.Errorf("%w: attachment %s: %w", ErrInvalidMessage, a.Name, err)
		}
	}
	return m, nil
}

// rawMIME renders msg as an RFC 5322 message.
func rawMIME(from string, msg Message) ([]byte, error) {
	m, err := buildMsg(from, msg)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to render message: %w", err)
	}
	return buf.Bytes(), nil
}
