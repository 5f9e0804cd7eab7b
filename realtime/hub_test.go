package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/samir777-eng/ebad-academy-sub001/core"
)

func TestHubSubscribeBroadcastUnsubscribe(t *testing.T) {
	h := NewHub()
	id, ch := h.Subscribe(1, "")

	ev := core.NewLevelUnlocked("bob", 1, 2, time.Now())
	h.Broadcast(context.Background(), ev)

	received := <-ch
	if received.UserID != "bob" || received.Type != core.EventLevelUnlocked {
		t.Fatalf("unexpected event: %+v", received)
	}

	h.Unsubscribe(id)
	_, ok := <-ch
	if ok {
		t.Fatal("expected channel closed after unsubscribe")
	}
	if h.Subscribers() != 0 {
		t.Fatal("subscriber still registered")
	}
}

func TestHubFiltersByUser(t *testing.T) {
	h := NewHub()
	_, alice := h.Subscribe(4, "alice")
	_, all := h.Subscribe(4, "")

	h.Broadcast(context.Background(), core.NewBadgeAwarded("bob", 1, time.Now()))
	h.Broadcast(context.Background(), core.NewBadgeAwarded("alice", 2, time.Now()))

	if got := (<-alice).BadgeID; got != 2 {
		t.Fatalf("alice got badge %d", got)
	}
	select {
	case ev := <-alice:
		t.Fatalf("unexpected extra event %+v", ev)
	default:
	}
	if len(all) != 2 {
		t.Fatalf("unfiltered subscriber got %d events", len(all))
	}
}

func TestHubDropsWhenFull(t *testing.T) {
	h := NewHub()
	h.Subscribe(1, "")
	for i := 0; i < 3; i++ {
		h.Broadcast(context.Background(), core.NewBadgeAwarded("u", core.BadgeID(i+1), time.Now()))
	}
	if h.Dropped() != 2 {
		t.Fatalf("want 2 dropped, got %d", h.Dropped())
	}
}

func TestMarshalJSON(t *testing.T) {
	ev := core.NewBadgeAwarded("alice", 9, time.Now())
	b := MarshalJSON(ev)
	var out core.Event
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.BadgeID != 9 || out.ID != ev.ID {
		t.Fatalf("unexpected event: %+v", out)
	}
}
