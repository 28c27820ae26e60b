// Package eventbus fans domain events out to in-process handlers and to
// tenant-configured webhook subscriptions.
package eventbus

import (
	"context"
	"sync"

	"github.com/ironlayer/ironlayer/internal/logging"
)

// EventType names a domain event kind a subscription can register for.
type EventType string

const (
	EventPlanCreated      EventType = "plan.created"
	EventPlanApproved     EventType = "plan.approved"
	EventPlanRejected     EventType = "plan.rejected"
	EventPlanApplied      EventType = "plan.applied"
	EventRunCompleted     EventType = "run.completed"
	EventRunFailed        EventType = "run.failed"
	EventCheckFailed      EventType = "check.failed"
	EventBudgetExceeded   EventType = "budget.exceeded"
)

// Event is one published domain occurrence.
type Event struct {
	Type     EventType
	TenantID string
	Payload  map[string]interface{}
}

// Handler receives a published event. Handler errors are logged, never
// propagated back to the publisher: publishing a domain event must never
// fail the operation that triggered it.
type Handler func(ctx context.Context, e Event) error

// Bus is an in-process typed handler registry with fan-out delivery.
// Handlers for a type run sequentially in registration order; a handler
// panicking or erroring does not stop the remaining handlers from running.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	logger   *logging.Logger
}

// New constructs an empty Bus.
func New(logger *logging.Logger) *Bus {
	return &Bus{handlers: make(map[EventType][]Handler), logger: logger}
}

// Subscribe registers fn to run whenever an event of type t is published.
func (b *Bus) Subscribe(t EventType, fn Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], fn)
}

// Publish runs every handler registered for e.Type in sequence, logging
// and continuing past any handler error.
func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[e.Type]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := b.safeInvoke(ctx, h, e); err != nil && b.logger != nil {
			b.logger.WithFields(map[string]interface{}{
				"event_type": string(e.Type),
				"tenant_id":  e.TenantID,
				"error":      err.Error(),
			}).Error("event handler failed")
		}
	}
}

func (b *Bus) safeInvoke(ctx context.Context, h Handler, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if b.logger != nil {
				b.logger.WithFields(map[string]interface{}{
					"event_type": string(e.Type),
					"panic":      r,
				}).Error("event handler panicked")
			}
		}
	}()
	return h(ctx, e)
}
