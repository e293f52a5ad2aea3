package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/freelancedao/escrow-service/internal/metrics"
	"github.com/freelancedao/escrow-service/internal/model"
)

var ErrQueueFull = errors.New("notification queue full")

const deliverTimeout = 10 * time.Second

// Dispatcher is an asynchronous Sink. Notify enqueues and returns at once;
// worker goroutines deliver to the wrapped sink. When the queue is full the
// notification is dropped.
type Dispatcher struct {
	next   Sink
	log    zerolog.Logger
	queue  chan model.Notification
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool

	delivered *atomic.Int64
	failed    *atomic.Int64
	dropped   *atomic.Int64
}

func NewDispatcher(next Sink, queueSize, workers int, log zerolog.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	if workers <= 0 {
		workers = 1
	}
	d := &Dispatcher{
		next:      next,
		log:       log,
		queue:     make(chan model.Notification, queueSize),
		delivered: atomic.NewInt64(0),
		failed:    atomic.NewInt64(0),
		dropped:   atomic.NewInt64(0),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	return d
}

func (d *Dispatcher) Notify(_ context.Context, n model.Notification) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop()
		return ErrQueueFull
	}

	select {
	case d.queue <- n:
		return nil
	default:
		d.drop()
		return ErrQueueFull
	}
}

func (d *Dispatcher) drop() {
	d.dropped.Inc()
	metrics.RecordNotificationDropped()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for n := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
		err := d.next.Notify(ctx, n)
		cancel()
		if err != nil {
			d.failed.Inc()
			d.log.Warn().
				Err(err).
				Str("type", string(n.Type)).
				Str("recipient_id", n.RecipientID.String()).
				Msg("notification delivery failed")
			continue
		}
		d.delivered.Inc()
	}
}

// Close stops accepting notifications and waits for the queue to drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}

type Stats struct {
	Delivered int64
	Failed    int64
	Dropped   int64
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
	}
}
