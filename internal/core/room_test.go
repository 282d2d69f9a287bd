package core

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRegistryAddRemove(t *testing.T) {
	reg := NewRegistry()
	a, b := NewClient("a"), NewClient("b")

	if !reg.Add("r1", a) || !reg.Add("r1", b) {
		t.Fatalf("expected both adds to succeed")
	}
	if reg.Add("r1", a) {
		t.Fatalf("duplicate add should report false")
	}

	if got := reg.Connections("r1"); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected connections: %v", got)
	}
	if room, ok := reg.Lookup("b"); !ok || room != "r1" {
		t.Fatalf("lookup failed: %q %v", room, ok)
	}

	if n := reg.Broadcast("r1", &Event{Kind: EventChat}, "a"); n != 1 {
		t.Fatalf("expected 1 delivery, got %d", n)
	}
	if len(a.Events) != 0 || len(b.Events) != 1 {
		t.Fatalf("broadcast should skip the excluded connection")
	}

	reg.Remove("r1", "a")
	reg.Remove("r1", "b")
	if reg.Len() != 0 {
		t.Fatalf("empty room should be deleted")
	}
	if reg.Remove("r1", "b") {
		t.Fatalf("removing twice should report false")
	}
	if _, ok := reg.Lookup("b"); ok {
		t.Fatalf("lookup should fail after remove")
	}
}

func TestRoomBroadcastSkipsSlowConsumer(t *testing.T) {
	room := NewRoom("r1")
	slow := NewClient("slow")
	fast := NewClient("fast")
	room.AddClient(slow)
	room.AddClient(fast)

	for range cap(slow.Events) {
		slow.Events <- &Event{}
	}

	if n := room.Broadcast(&Event{Kind: EventChat}, ""); n != 1 {
		t.Fatalf("expected only the fast client to receive, got %d", n)
	}
}

func TestTaskQueueRunsInOrderAndDropsWhenFull(t *testing.T) {
	logger := zerolog.Nop()
	q := newTaskQueue("test", 2, time.Second, &logger)

	var order []int
	q.enqueue("one", func(context.Context) error { order = append(order, 1); return nil })
	q.enqueue("two", func(context.Context) error { order = append(order, 2); return errors.New("boom") })
	if q.enqueue("three", func(context.Context) error { return nil }) {
		t.Fatalf("third task should be dropped")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	q.run(ctx)

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("unexpected order: %v", order)
	}
}

func TestTaskQueueAppliesTimeout(t *testing.T) {
	logger := zerolog.Nop()
	q := newTaskQueue("test", 1, 20*time.Millisecond, &logger)

	var expired atomic.Bool
	done := make(chan struct{})
	q.enqueue("slow", func(ctx context.Context) error {
		defer close(done)
		<-ctx.Done()
		expired.Store(errors.Is(ctx.Err(), context.DeadlineExceeded))
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.run(ctx)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("task did not time out")
	}
	if !expired.Load() {
		t.Fatalf("expected deadline exceeded")
	}
}
