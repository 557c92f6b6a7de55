package notification

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ndtl/timereport/internal/config"
	"github.com/ndtl/timereport/internal/event_bus"
	log "github.com/sirupsen/logrus"
)

var ErrDeliveryFailure = errors.New("delivery failed")

// Policy bounds retries for one message and the pause after each successful
// send.
type Policy struct {
	Attempts   int
	RetryDelay time.Duration
	Pause      time.Duration
}

func PolicyFrom(cfg config.Mail) Policy {
	return Policy{
		Attempts:   cfg.Retries,
		RetryDelay: cfg.RetryDelay,
		Pause:      cfg.Pause,
	}
}

// Deliverer is what report jobs hand finished messages to.
type Deliverer interface {
	Deliver(ctx context.Context, report string, msg Message) error
}

type Dispatcher struct {
	sender Sender
	bus    *event_bus.EventBus
	policy Policy
	wait   func(ctx context.Context, d time.Duration) error
}

func NewDispatcher(sender Sender, bus *event_bus.EventBus, policy Policy) *Dispatcher {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	return &Dispatcher{
		sender: sender,
		bus:    bus,
		policy: policy,
		wait:   sleep,
	}
}

// NewConsoleDispatcher prints messages to out without retries or pauses.
func NewConsoleDispatcher(out io.Writer) *Dispatcher {
	return NewDispatcher(NewConsoleSender(out), nil, Policy{Attempts: 1})
}

// Deliver sends msg, retrying with a constant delay. Messages that fail with
// ErrInvalidMessage are not retried. Once attempts are exhausted the failure
// is published and ErrDeliveryFailure returned.
func (d *Dispatcher) Deliver(ctx context.Context, report string, msg Message) error {
	logger := log.WithFields(log.Fields{
		"report":    report,
		"recipient": msg.Recipients(),
		"run":       RunId(ctx),
	})

	attempts := 0
	operation := func() error {
		attempts++
		err := d.sender.Send(ctx, msg)
		if errors.Is(err, ErrInvalidMessage) {
			return backoff.Permanent(err)
		}
		if err != nil {
			logger.Warnf("send attempt %d/%d failed: %v", attempts, d.policy.Attempts, err)
		}
		return err
	}
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(d.policy.RetryDelay), uint64(d.policy.Attempts-1)),
		ctx,
	)

	if err := backoff.Retry(operation, b); err != nil {
		logger.Errorf("giving up after %d attempts: %v", attempts, err)
		d.publish(ctx, event_bus.ReportDeliveryFailedType, event_bus.ReportDeliveryFailed{
			RunId:     RunId(ctx),
			Report:    report,
			Recipient: msg.Recipients(),
			Subject:   msg.Subject,
			Attempts:  attempts,
			Error:     err.Error(),
		})
		return fmt.Errorf("%w: %s to %s: %w", ErrDeliveryFailure, report, msg.Recipients(), err)
	}

	logger.Infof("Sent %q", msg.Subject)
	d.publish(ctx, event_bus.ReportDeliveredType, event_bus.ReportDelivered{
		RunId:     RunId(ctx),
		Report:    report,
		Recipient: msg.Recipients(),
		Subject:   msg.Subject,
		Attempts:  attempts,
	})

	if d.policy.Pause > 0 {
		// the message is already sent
		if err := d.wait(ctx, d.policy.Pause); err != nil {
			logger.Infof("pause after send interrupted: %v", err)
		}
	}
	return nil
}

func (d *Dispatcher) publish(ctx context.Context, eventType event_bus.EventType, data any) {
	if d.bus == nil {
		return
	}
	// a cancelled run still records its outcome
	if err := d.bus.Publish(event_bus.NewEvent(context.WithoutCancel(ctx), eventType, data)); err != nil {
		log.Errorf("failed to publish %s: %v", eventType, err)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
