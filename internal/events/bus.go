// Package events is an in-process publish/subscribe bus for contract changes.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/freelancedao/escrow-service/internal/model"
)

type Event struct {
	ContractID uuid.UUID            `json:"contract_id"`
	Action     string               `json:"action"`
	Status     model.ContractStatus `json:"status"`
	Version    int64                `json:"version"`
	At         time.Time            `json:"at"`
}

const subscriberBuffer = 16

type subscriber struct {
	ch chan Event
}

// Bus fans events out per topic. A subscriber that is not keeping up loses
// events instead of blocking the publisher.
type Bus struct {
	mu     sync.RWMutex
	topics map[string]map[*subscriber]struct{}
	closed bool
}

func NewBus() *Bus {
	return &Bus{topics: make(map[string]map[*subscriber]struct{})}
}

func ContractTopic(id uuid.UUID) string {
	return "contract:" + id.String()
}

// Publish reports how many subscribers received the event.
func (b *Bus) Publish(topic string, ev Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for sub := range b.topics[topic] {
		select {
		case sub.ch <- ev:
			delivered++
		default:
		}
	}
	return delivered
}

// Subscribe registers interest in topic. cancel unregisters and closes the
// channel; it is safe to call more than once.
func (b *Bus) Subscribe(topic string) (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, subscriberBuffer)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[*subscriber]struct{})
	}
	b.topics[topic][sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if subs, ok := b.topics[topic]; ok {
				if _, ok := subs[sub]; ok {
					delete(subs, sub)
					close(sub.ch)
				}
				if len(subs) == 0 {
					delete(b.topics, topic)
				}
			}
		})
	}
	return sub.ch, cancel
}

// Close ends every subscription.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for topic, subs := range b.topics {
		for sub := range subs {
			close(sub.ch)
		}
		delete(b.topics, topic)
	}
}
