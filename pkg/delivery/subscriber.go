package delivery

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/ndtl/timereport/internal/event_bus"
	log "github.com/sirupsen/logrus"
)

// Subscribe records every delivery outcome published on the bus.
func Subscribe(bus *event_bus.EventBus, repo Repository) {
	event_bus.SubscribeTyped(bus, event_bus.ReportDeliveredType, func(e event_bus.EventT[event_bus.ReportDelivered]) error {
		_, err := repo.Store(e.Context(), Record{
			RunId:     parseRunId(e.Data.RunId),
			Report:    e.Data.Report,
			Recipient: e.Data.Recipient,
			Subject:   e.Data.Subject,
			Status:    StatusSent,
			Attempts:  e.Data.Attempts,
		})
		if err != nil {
			return fmt.Errorf("record delivery to %s: %w", e.Data.Recipient, err)
		}
		return nil
	})
	event_bus.SubscribeTyped(bus, event_bus.ReportDeliveryFailedType, func(e event_bus.EventT[event_bus.ReportDeliveryFailed]) error {
		_, err := repo.Store(e.Context(), Record{
			RunId:     parseRunId(e.Data.RunId),
			Report:    e.Data.Report,
			Recipient: e.Data.Recipient,
			Subject:   e.Data.Subject,
			Status:    StatusFailed,
			Attempts:  e.Data.Attempts,
			Error:     e.Data.Error,
		})
		if err != nil {
			return fmt.Errorf("record failed delivery to %s: %w", e.Data.Recipient, err)
		}
		return nil
	})
}

func parseRunId(value string) uuid.UUID {
	id, err := uuid.Parse(value)
	if err != nil {
		log.Warnf("delivery event without valid run id %q", value)
		return uuid.Nil
	}
	return id
}
