package store

import (
	"sync"
	"time"
)

// Message is one entry of a room log. ID is its 0-based position.
type Message struct {
	ID      int
	Author  string
	Content string
	Time    time.Time
}

// MessageTable is an append-only, gapless message log safe for concurrent
// use. Reads return copies.
type MessageTable struct {
	mu       sync.RWMutex
	messages []Message
}

func NewMessageTable() *MessageTable {
	return &MessageTable{}
}

// Add appends a message and returns it. IDs follow append order.
func (t *MessageTable) Add(author, content string) Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	msg := Message{
		ID:      len(t.messages),
		Author:  author,
		Content: content,
		Time:    time.Now(),
	}
	t.messages = append(t.messages, msg)
	return msg
}

// Get retrieves a message by ID.
func (t *MessageTable) Get(id int) (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if id < 0 || id >= len(t.messages) {
		return Message{}, false
	}
	return t.messages[id], true
}

// All returns every message in ID order.
func (t *MessageTable) All() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return clone(t.messages)
}

// From returns the messages with ID >= id, or nothing if id is out of range.
func (t *MessageTable) From(id int) []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if id < 0 || id >= len(t.messages) {
		return []Message{}
	}
	return clone(t.messages[id:])
}

// Last returns up to n of the newest messages in ID order.
func (t *MessageTable) Last(n int) []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if n <= 0 || len(t.messages) == 0 {
		return []Message{}
	}
	start := max(0, len(t.messages)-n)
	return clone(t.messages[start:])
}

// Len returns the number of messages.
func (t *MessageTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

func clone(m []Message) []Message {
	out := make([]Message, len(m))
	copy(out, m)
	return out
}
