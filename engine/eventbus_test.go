package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/samir777-eng/ebad-academy-sub001/core"
)

func TestEventBusSync(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	count := 0
	bus.Subscribe(core.EventBadgeAwarded, func(ctx context.Context, e core.Event) { count++ })
	bus.Publish(context.Background(), core.NewBadgeAwarded("u", 1, time.Now()))
	bus.Publish(context.Background(), core.NewLessonCompleted("u", 1, time.Now()))
	if count != 1 {
		t.Fatalf("want 1 got %d", count)
	}
}

func TestEventBusAsync(t *testing.T) {
	bus := NewEventBus(DispatchAsync)
	defer bus.Close()
	ch := make(chan struct{})
	bus.Subscribe(core.EventLevelUnlocked, func(ctx context.Context, e core.Event) { close(ch) })
	bus.Publish(context.Background(), core.NewLevelUnlocked("u", 1, 2, time.Now()))
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	var count atomic.Int32
	unsub := bus.SubscribeAll(func(ctx context.Context, e core.Event) { count.Add(1) })
	bus.Publish(context.Background(), core.NewBadgeAwarded("u", 1, time.Now()))
	bus.Publish(context.Background(), core.NewLevelProgressed("u", 1, 50, time.Now()))
	unsub()
	bus.Publish(context.Background(), core.NewBadgeAwarded("u", 2, time.Now()))
	if got := count.Load(); got != 2 {
		t.Fatalf("want 2 got %d", got)
	}
}

func TestEventBusDropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	var dropped atomic.Int32
	bus := NewEventBus(DispatchAsync, WithWorkers(1), WithQueueSize(1),
		WithDropHandler(func(core.Event) { dropped.Add(1) }))
	bus.Subscribe(core.EventBadgeAwarded, func(ctx context.Context, e core.Event) { <-block })

	for i := 0; i < 10; i++ {
		bus.Publish(context.Background(), core.NewBadgeAwarded("u", core.BadgeID(i+1), time.Now()))
	}
	close(block)
	bus.Close()
	if dropped.Load() == 0 {
		t.Fatal("expected dropped events")
	}
}
