package notification

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// ConsoleSender prints messages instead of sending them.
type ConsoleSender struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsoleSender(out io.Writer) *ConsoleSender {
	return &ConsoleSender{out: out}
}

func (s *ConsoleSender) Send(ctx context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.out, "To: %s\nSubject: %s\n\n%s\n", msg.Recipients(), msg.Subject, msg.HTML)
	if err != nil {
		return err
	}
	for _, a := range msg.Attachments {
		if _, err := fmt.Fprintf(s.out, "[attachment %s, %d bytes]\n", a.Name, len(a.Data)); err != nil {
			return err
		}
	}
	return nil
}
