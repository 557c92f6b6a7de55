package notification

import (
	"context"
	"sync"
)

// SenderStub records messages and fails the first FailTimes sends.
type SenderStub struct {
	mu        sync.Mutex
	FailTimes int
	Err       error
	Calls     int
	Sent      []Message
}

func (s *SenderStub) Send(ctx context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	if s.Calls <= s.FailTimes {
		return s.Err
	}
	s.Sent = append(s.Sent, msg)
	return nil
}

// DelivererStub records delivered messages per report.
type DelivererStub struct {
	mu        sync.Mutex
	Delivered []Delivered
	// FailFor makes Deliver fail for messages to these recipient strings.
	FailFor map[string]error
}

type Delivered struct {
	Report  string
	RunId   string
	Message Message
}

func (d *DelivererStub) Deliver(ctx context.Context, report string, msg Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err, ok := d.FailFor[msg.Recipients()]; ok {
		return err
	}
	d.Delivered = append(d.Delivered, Delivered{Report: report, RunId: RunId(ctx), Message: msg})
	return nil
}
