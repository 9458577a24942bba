package propagation

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jacksonlee411/Roots-And-Branches/modules/organization/domain/types"
)

// Publisher delivers one committed change event to the read side.
type Publisher interface {
	Publish(ctx context.Context, event types.ChangeEvent) error
}

// Propagator is the write side's event outbox. Commands enqueue without
// blocking; a single delivery goroutine drains the queue in commit order, so
// events for one code always reach the publisher in the order they were
// committed. Delivery is at-least-once; consumers dedupe by recordId.
type Propagator struct {
	publisher   Publisher
	log         *zap.Logger
	queue       chan types.ChangeEvent
	maxAttempts int
	baseBackoff time.Duration
	dropped     atomic.Int64
	delivered   atomic.Int64
}

func NewPropagator(publisher Publisher, log *zap.Logger, queueSize int) *Propagator {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Propagator{
		publisher:   publisher,
		log:         log,
		queue:       make(chan types.ChangeEvent, queueSize),
		maxAttempts: 5,
		baseBackoff: 100 * time.Millisecond,
	}
}

// Enqueue accepts a committed event. When the queue is full the event is
// dropped and counted; the read side catches up from the store, it does not
// stall the command path.
func (p *Propagator) Enqueue(event types.ChangeEvent) {
	select {
	case p.queue <- event:
	default:
		p.dropped.Add(1)
		p.log.Error("propagation queue full, event dropped",
			zap.String("code", event.Code),
			zap.String("record_id", event.RecordID),
			zap.Int64("dropped_total", p.dropped.Load()),
		)
	}
}

// Run drains the queue until ctx is cancelled.
func (p *Propagator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-p.queue:
			p.deliver(ctx, event)
		}
	}
}

// Delivered reports how many events have been published since startup.
func (p *Propagator) Delivered() int64 { return p.delivered.Load() }

// Depth reports the current queue backlog.
func (p *Propagator) Depth() int { return len(p.queue) }

func (p *Propagator) deliver(ctx context.Context, event types.ChangeEvent) {
	backoff := p.baseBackoff
	for attempt := 1; ; attempt++ {
		err := p.publisher.Publish(ctx, event)
		if err == nil {
			p.delivered.Add(1)
			return
		}
		if attempt >= p.maxAttempts {
			p.log.Error("event delivery abandoned",
				zap.String("code", event.Code),
				zap.String("record_id", event.RecordID),
				zap.Int("attempts", attempt),
				zap.Error(err),
			)
			return
		}
		p.log.Warn("event delivery failed, retrying",
			zap.String("code", event.Code),
			zap.String("record_id", event.RecordID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
