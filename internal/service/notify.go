package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/freelancedao/escrow-service/internal/events"
	"github.com/freelancedao/escrow-service/internal/model"
	"github.com/freelancedao/escrow-service/internal/notify"
)

type EventBus interface {
	Publish(topic string, ev events.Event) int
	Subscribe(topic string) (<-chan events.Event, func())
}

// deliver hands notifications to the sink. Delivery failures never fail the
// operation that produced them.
func deliver(ctx context.Context, sink notify.Sink, log zerolog.Logger, items ...model.Notification) {
	if sink == nil {
		return
	}
	for _, n := range items {
		if err := sink.Notify(ctx, n); err != nil {
			log.Warn().
				Err(err).
				Str("type", string(n.Type)).
				Str("recipient_id", n.RecipientID.String()).
				Msg("failed to deliver notification")
		}
	}
}

func publish(bus EventBus, c *model.Contract, action string) {
	if bus == nil || c == nil {
		return
	}
	bus.Publish(events.ContractTopic(c.ID), events.Event{
		ContractID: c.ID,
		Action:     action,
		Status:     c.Status,
		Version:    c.Version,
		At:         c.UpdatedAt,
	})
}
