package events

import (
	"context"
	"errors"
	"testing"
)

func TestPublishRunsAllHandlersAndJoinsErrors(t *testing.T) {
	d := NewInMemoryDispatcher()
	boom := errors.New("boom")
	var calls []string

	d.Subscribe(EventTicketUpdated, func(context.Context, Event) error {
		calls = append(calls, "first")
		return boom
	})
	d.Subscribe(EventTicketUpdated, func(context.Context, Event) error {
		calls = append(calls, "second")
		return nil
	})
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		calls = append(calls, "other")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventTicketUpdated, TicketID: "t1"})
	if !errors.Is(err, boom) {
		t.Fatalf("Publish() error = %v, want wrapped boom", err)
	}
	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Fatalf("calls = %v, want [first second]", calls)
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()
	if err := d.Publish(context.Background(), Event{Type: EventTicketSLABreached}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
}

func TestPublishRecoversHandlerPanic(t *testing.T) {
	d := NewInMemoryDispatcher()
	ran := false
	d.Subscribe(EventTicketCommented, func(context.Context, Event) error {
		panic("bad payload")
	})
	d.Subscribe(EventTicketCommented, func(context.Context, Event) error {
		ran = true
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventTicketCommented})
	if err == nil {
		t.Fatalf("Publish() error = nil, want recovered panic")
	}
	if !ran {
		t.Fatalf("second handler did not run after a panic")
	}
}
