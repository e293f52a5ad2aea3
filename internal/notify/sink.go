// Package notify delivers lifecycle notifications to the parties of a contract.
package notify

import (
	"context"
	"errors"

	"github.com/freelancedao/escrow-service/internal/model"
)

type Sink interface {
	Notify(ctx context.Context, n model.Notification) error
}

type Store interface {
	Create(ctx context.Context, n *model.Notification) error
}

// StoreSink persists notifications so recipients can list them later.
type StoreSink struct {
	store Store
}

func NewStoreSink(store Store) *StoreSink {
	return &StoreSink{store: store}
}

func (s *StoreSink) Notify(ctx context.Context, n model.Notification) error {
	return s.store.Create(ctx, &n)
}

type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// MQSink publishes notifications on the message broker with routing key
// notification.<type>.
type MQSink struct {
	publisher Publisher
}

func NewMQSink(publisher Publisher) *MQSink {
	return &MQSink{publisher: publisher}
}

func (s *MQSink) Notify(ctx context.Context, n model.Notification) error {
	return s.publisher.Publish(ctx, "notification."+string(n.Type), n)
}

// Fanout delivers to every sink and joins their errors.
type Fanout []Sink

func (f Fanout) Notify(ctx context.Context, n model.Notification) error {
	var errs []error
	for _, sink := range f {
		if err := sink.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
