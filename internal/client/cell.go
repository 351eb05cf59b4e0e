package client

import (
	"sync"

	"linechat/internal/client/state"
)

// cell holds the current state. Every swap closes the wake channel handed
// out with the previous state, so a waiter that loaded both together never
// misses a change.
type cell struct {
	mu   sync.Mutex
	cur  *state.State
	wake chan struct{}
}

func newCell(s *state.State) *cell {
	return &cell{cur: s, wake: make(chan struct{})}
}

func (c *cell) load() (*state.State, <-chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur, c.wake
}

// swap replaces the state unless the cell is already dead.
func (c *cell) swap(s *state.State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur.Variant() == state.Dead {
		return false
	}
	c.setLocked(s)
	return true
}

// kill installs a dead state unconditionally.
func (c *cell) kill(dead *state.State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(dead)
}

func (c *cell) setLocked(s *state.State) {
	c.cur = s
	close(c.wake)
	c.wake = make(chan struct{})
}
