package fanout

import (
	"context"
	"sync"

	"auction-engine/internal/models"
	"auction-engine/utils"
)

// Sink is the delivery side of the notification system: a best-effort
// real-time push and a durable per-user record.
type Sink interface {
	Push(ctx context.Context, target models.Target, payload any) error
	Persist(ctx context.Context, n models.Notification) (models.Notification, error)
}

// Dispatcher delivers event batches to a Sink off the caller's goroutine.
// Publish never blocks while Run is active; delivery failures are logged and
// dropped.
type Dispatcher struct {
	sink     Sink
	queue    chan []Event
	inflight sync.WaitGroup

	// mu guards closing and orders inflight.Add before drain's Wait
	mu      sync.Mutex
	closing bool
}

// NewDispatcher creates a dispatcher with a buffered queue of queueSize batches.
func NewDispatcher(sink Sink, queueSize int) *Dispatcher {
	if queueSize < 0 {
		queueSize = 0
	}
	return &Dispatcher{
		sink:  sink,
		queue: make(chan []Event, queueSize),
	}
}

// Publish hands a batch to the worker. When the queue is full the batch is
// delivered on its own goroutine instead of blocking the caller. Once Run has
// started shutting down, batches are delivered on the caller's goroutine.
func (d *Dispatcher) Publish(events []Event) {
	if len(events) == 0 {
		return
	}

	d.mu.Lock()
	if d.closing {
		d.mu.Unlock()
		d.Deliver(context.Background(), events)
		return
	}
	select {
	case d.queue <- events:
	default:
		d.inflight.Add(1)
		go func() {
			defer d.inflight.Done()
			d.Deliver(context.Background(), events)
		}()
	}
	d.mu.Unlock()
}

// Run drains the queue until ctx is cancelled, then delivers whatever is
// still queued and waits for overflow deliveries before returning.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case events := <-d.queue:
			d.Deliver(ctx, events)
		case <-ctx.Done():
			d.drain()
			return nil
		}
	}
}

func (d *Dispatcher) drain() {
	// after this no batch enters the queue or the overflow group
	d.mu.Lock()
	d.closing = true
	d.mu.Unlock()

	for {
		select {
		case events := <-d.queue:
			d.Deliver(context.Background(), events)
		default:
			d.inflight.Wait()
			return
		}
	}
}

// Deliver sends every event in order. Each user event is persisted before it
// is pushed, and a failed push never undoes the stored record.
func (d *Dispatcher) Deliver(ctx context.Context, events []Event) {
	for _, e := range events {
		if e.Target.IsTopic() {
			if err := d.sink.Push(ctx, e.Target, e.Update); err != nil {
				utils.Warn("fanout: topic push failed", map[string]any{"target": e.Target.Key(), "error": err.Error()})
			}
			continue
		}

		if e.Target.UserID == "" {
			utils.Warn("fanout: dropping event without target", map[string]any{"message": e.Message})
			continue
		}

		n, err := d.sink.Persist(ctx, e.Notification())
		if err != nil {
			utils.Error("fanout: failed to persist notification", map[string]any{"userID": e.Target.UserID, "error": err.Error()})
			n = e.Notification()
		}
		if err := d.sink.Push(ctx, e.Target, n); err != nil {
			utils.Warn("fanout: user push failed", map[string]any{"target": e.Target.Key(), "error": err.Error()})
		}
	}
}
