// Package events carries client lifecycle and chat events from the
// protocol loops to whatever renders them.
package events

import (
	"sync"
	"time"
)

// EventType identifies what happened.
type EventType int

const (
	EventConnecting EventType = iota
	EventConnected
	EventDisconnected
	EventReconnecting
	EventStateChanged
	EventMessage
	EventRooms
	EventNotice
	EventError
)

var eventNames = map[EventType]string{
	EventConnecting:   "connecting",
	EventConnected:    "connected",
	EventDisconnected: "disconnected",
	EventReconnecting: "reconnecting",
	EventStateChanged: "state_changed",
	EventMessage:      "message",
	EventRooms:        "rooms",
	EventNotice:       "notice",
	EventError:        "error",
}

func (t EventType) String() string {
	if name, ok := eventNames[t]; ok {
		return name
	}
	return "unknown"
}

// Event is one published occurrence. Data holds one of the *Data types
// below, a string for notices, or nil.
type Event struct {
	Type      EventType
	Data      interface{}
	Timestamp time.Time
}

type ConnectedData struct {
	ServerAddr string
}

type StateData struct {
	State string
	User  string
	Room  string
}

type MessageData struct {
	Room string
	ID   int
	User string
	Text string
}

type RoomInfo struct {
	Name string
	AI   bool
}

type RoomsData struct {
	Rooms []RoomInfo
}

type ErrorData struct {
	Error   error
	Context string
}

const defaultBuffer = 256

// Bus fans events out to subscribers. Publishing never blocks: a subscriber
// whose buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[<-chan Event]chan Event
	buffer int
	closed bool
}

func NewBus() *Bus {
	return NewBusWithBuffer(defaultBuffer)
}

func NewBusWithBuffer(buffer int) *Bus {
	if buffer < 1 {
		buffer = 1
	}
	return &Bus{subs: make(map[<-chan Event]chan Event), buffer: buffer}
}

func (b *Bus) Subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.buffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.subs[ch] = ch
	return ch
}

func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if send, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(send)
	}
}

func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *Bus) PublishType(t EventType) {
	b.Publish(Event{Type: t})
}

func (b *Bus) PublishError(err error, context string) {
	b.Publish(Event{Type: EventError, Data: ErrorData{Error: err, Context: context}})
}

// Notice publishes a line of informational text.
func (b *Bus) Notice(text string) {
	b.Publish(Event{Type: EventNotice, Data: text})
}

// Close closes every subscriber channel. Later publishes are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for key, ch := range b.subs {
		delete(b.subs, key)
		close(ch)
	}
}

func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
