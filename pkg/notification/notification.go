package notification

import (
	"context"
	"strings"
)

// Attachment is a file sent along with a report.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Message is a rendered report addressed to one recipient group.
type Message struct {
	To          []string
	Subject     string
	HTML        string
	Attachments []Attachment
}

func (m Message) Recipients() string {
	return strings.Join(m.To, ", ")
}

// Sender hands a message to a transport. Implementations must be safe to
// call repeatedly with the same message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type contextKey string

const runIdKey contextKey = "run_id"

// WithRunId tags ctx with the id of the batch a delivery belongs to.
func WithRunId(ctx context.Context, runId string) context.Context {
	return context.WithValue(ctx, runIdKey, runId)
}

func RunId(ctx context.Context) string {
	if id, ok := ctx.Value(runIdKey).(string); ok {
		return id
	}
	return ""
}
