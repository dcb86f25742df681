package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"lexmatch_backend/platform/logger"
)

type pinged struct {
	BaseEvent
}

func (pinged) EventName() string { return "test.pinged" }

type ignored struct {
	BaseEvent
}

func (ignored) EventName() string { return "test.ignored" }

func TestPublishDeliversToAllHandlers(t *testing.T) {
	bus := NewInMemoryBus(logger.Discard())
	var calls atomic.Int32

	for i := 0; i < 3; i++ {
		bus.Subscribe("test.pinged", HandlerFunc(func(ctx context.Context, event Event) error {
			calls.Add(1)
			return nil
		}))
	}

	bus.Publish(context.Background(), pinged{BaseEvent: NewBaseEvent()})
	bus.Publish(context.Background(), ignored{BaseEvent: NewBaseEvent()})
	bus.Wait()

	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 handler calls, got %d", got)
	}
}

func TestPublishSurvivesFailingHandlers(t *testing.T) {
	bus := NewInMemoryBus(logger.Discard())
	var delivered atomic.Bool

	bus.Subscribe("test.pinged", HandlerFunc(func(context.Context, Event) error {
		panic("boom")
	}))
	bus.Subscribe("test.pinged", HandlerFunc(func(context.Context, Event) error {
		delivered.Store(true)
		return errors.New("smtp down")
	}))

	bus.Publish(context.Background(), pinged{BaseEvent: NewBaseEvent()})
	bus.Wait()

	if !delivered.Load() {
		t.Fatalf("expected second handler to run despite first panicking")
	}
}
