package progress

import (
	"testing"
	"time"
)

func TestSubscribeReceivesBroadcast(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe("run-1")
	defer b.Unsubscribe("run-1", ch)

	b.Broadcast(GenerationEvent{RunID: "run-1", Generation: 1, BestValue: 3.5})

	select {
	case ev := <-ch:
		if ev.Generation != 1 || ev.BestValue != 3.5 {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
}

func TestLateSubscriberGetsLastEvent(t *testing.T) {
	b := NewBroadcaster()
	b.Broadcast(GenerationEvent{RunID: "run-2", Generation: 4, BestValue: 0.1})

	ch := b.Subscribe("run-2")
	defer b.Unsubscribe("run-2", ch)

	select {
	case ev := <-ch:
		if ev.Generation != 4 {
			t.Fatalf("expected cached event for late subscriber, got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for cached event")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe("run-3")
	b.Unsubscribe("run-3", ch)

	_, ok := <-ch
	if ok {
		t.Fatal("expected channel to be closed after unsubscribe")
	}
}

func TestCleanupJobClosesAllSubscribers(t *testing.T) {
	b := NewBroadcaster()
	ch1 := b.Subscribe("run-4")
	ch2 := b.Subscribe("run-4")

	b.CleanupJob("run-4")

	for _, ch := range []chan GenerationEvent{ch1, ch2} {
		if _, ok := <-ch; ok {
			t.Fatal("expected channel closed after CleanupJob")
		}
	}
}

func TestBroadcastToUnknownRunIsNoop(t *testing.T) {
	b := NewBroadcaster()
	b.Broadcast(GenerationEvent{RunID: "nobody-listening"})
}
