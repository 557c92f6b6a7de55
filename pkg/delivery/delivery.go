package delivery

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusSent   Status = "sent"
	StatusFailed Status = "failed"
)

// Record is one attempt to deliver a report to a recipient, after retries.
type Record struct {
	Id        uuid.UUID
	RunId     uuid.UUID
	Report    string
	Recipient string
	Subject   string
	Status    Status
	Attempts  int
	Error     string
	CreatedAt time.Time
}
