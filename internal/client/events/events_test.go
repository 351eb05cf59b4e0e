package events

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func next(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e, ok := <-ch:
		if !ok {
			t.Fatal("subscription closed")
		}
		return e
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
	return Event{}
}

func TestBusDeliversToEverySubscriber(t *testing.T) {
	bus := NewBus()
	printer, logger := bus.Subscribe(), bus.Subscribe()
	if n := bus.SubscriberCount(); n != 2 {
		t.Fatalf("SubscriberCount() = %d, want 2", n)
	}

	msg := MessageData{Room: "general", ID: 7, User: "alice", Text: "hello"}
	bus.Publish(Event{Type: EventMessage, Data: msg})

	for name, ch := range map[string]<-chan Event{"printer": printer, "logger": logger} {
		e := next(t, ch)
		if e.Type != EventMessage {
			t.Errorf("%s: type = %v, want message", name, e.Type)
		}
		if got, ok := e.Data.(MessageData); !ok || got != msg {
			t.Errorf("%s: data = %+v, want %+v", name, e.Data, msg)
		}
		if e.Timestamp.IsZero() {
			t.Errorf("%s: timestamp not stamped", name)
		}
	}
}

func TestPublishKeepsGivenTimestamp(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe()

	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	bus.Publish(Event{Type: EventNotice, Data: "old", Timestamp: at})

	if e := next(t, ch); !e.Timestamp.Equal(at) {
		t.Errorf("Timestamp = %v, want %v", e.Timestamp, at)
	}
}

func TestHelpers(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe()

	bus.PublishType(EventReconnecting)
	if e := next(t, ch); e.Type != EventReconnecting || e.Data != nil {
		t.Errorf("PublishType: got %v %v", e.Type, e.Data)
	}

	bus.Notice("Logged in as alice")
	if e := next(t, ch); e.Type != EventNotice || e.Data != "Logged in as alice" {
		t.Errorf("Notice: got %v %v", e.Type, e.Data)
	}

	sendErr := errors.New("broken pipe")
	bus.PublishError(sendErr, "Not sent")
	e := next(t, ch)
	data, ok := e.Data.(ErrorData)
	if e.Type != EventError || !ok {
		t.Fatalf("PublishError: got %v %T", e.Type, e.Data)
	}
	if !errors.Is(data.Error, sendErr) || data.Context != "Not sent" {
		t.Errorf("PublishError data = %+v", data)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe()
	bus.Unsubscribe(ch)

	if n := bus.SubscriberCount(); n != 0 {
		t.Errorf("SubscriberCount() = %d after unsubscribe", n)
	}
	if _, ok := <-ch; ok {
		t.Error("channel still open after unsubscribe")
	}

	// Unknown channels are ignored.
	bus.Unsubscribe(make(chan Event))
}

func TestCloseEndsSubscriptions(t *testing.T) {
	bus := NewBus()
	a, b := bus.Subscribe(), bus.Subscribe()
	bus.Close()
	bus.Close()

	for i, ch := range []<-chan Event{a, b} {
		if _, ok := <-ch; ok {
			t.Errorf("subscription %d still open", i)
		}
	}

	bus.Publish(Event{Type: EventDisconnected})
	if _, ok := <-bus.Subscribe(); ok {
		t.Error("subscribing to a closed bus should yield a closed channel")
	}
}

func TestSlowSubscriberMissesEvents(t *testing.T) {
	bus := NewBusWithBuffer(1)
	ch := bus.Subscribe()

	done := make(chan struct{})
	go func() {
		for id := 0; id < 10; id++ {
			bus.Publish(Event{Type: EventMessage, Data: MessageData{ID: id}})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}

	if e := next(t, ch); e.Data.(MessageData).ID != 0 {
		t.Errorf("first buffered event = %+v, want id 0", e.Data)
	}
	select {
	case e := <-ch:
		t.Errorf("unexpected extra event %+v", e)
	default:
	}
}

func TestConcurrentPublishers(t *testing.T) {
	const publishers, perPublisher = 8, 25
	bus := NewBusWithBuffer(publishers * perPublisher)
	ch := bus.Subscribe()

	var wg sync.WaitGroup
	for p := 0; p < publishers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perPublisher; i++ {
				bus.Notice("tick")
			}
		}()
	}
	wg.Wait()
	bus.Close()

	count := 0
	for range ch {
		count++
	}
	if count != publishers*perPublisher {
		t.Errorf("received %d events, want %d", count, publishers*perPublisher)
	}
}

func TestEventTypeString(t *testing.T) {
	names := map[EventType]string{
		EventConnecting:   "connecting",
		EventConnected:    "connected",
		EventDisconnected: "disconnected",
		EventReconnecting: "reconnecting",
		EventStateChanged: "state_changed",
		EventMessage:      "message",
		EventRooms:        "rooms",
		EventNotice:       "notice",
		EventError:        "error",
		EventType(999):    "unknown",
	}
	for typ, want := range names {
		if got := typ.String(); got != want {
			t.Errorf("EventType(%d).String() = %q, want %q", int(typ), got, want)
		}
	}
}
