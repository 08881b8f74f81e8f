package events

import "testing"

func TestPublishSubscribe(t *testing.T) {
	b := NewBus()
	ch, unsub := b.Subscribe(EventOrderFilled, 4)
	defer unsub()

	b.Publish(EventOrderFilled, "fill-1")
	b.Publish(EventCycleStarted, "ignored") // different topic

	select {
	case got := <-ch:
		if got != "fill-1" {
			t.Fatalf("payload = %v, want fill-1", got)
		}
	default:
		t.Fatal("expected a buffered message")
	}
	select {
	case got := <-ch:
		t.Fatalf("unexpected extra message %v", got)
	default:
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := NewBus()
	ch, unsub := b.Subscribe(EventPriceTick, 1)
	defer unsub()

	b.Publish(EventPriceTick, 1)
	b.Publish(EventPriceTick, 2) // buffer full: dropped, must not block

	if got := <-ch; got != 1 {
		t.Fatalf("payload = %v, want 1", got)
	}
	select {
	case got := <-ch:
		t.Fatalf("dropped message delivered: %v", got)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBus()
	ch, unsub := b.Subscribe(EventRiskAlert, 1)
	unsub()

	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after unsubscribe")
	}
	// Publishing after unsubscribe is a no-op.
	b.Publish(EventRiskAlert, "x")
}

func TestCloseShutsDownSubscribers(t *testing.T) {
	b := NewBus()
	ch, _ := b.Subscribe(EventCycleFinished, 1)
	b.Close()

	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after bus close")
	}
	b.Publish(EventCycleFinished, "x") // no-op, must not panic

	late, _ := b.Subscribe(EventCycleFinished, 1)
	if _, ok := <-late; ok {
		t.Fatal("expected immediately closed channel on closed bus")
	}
}
