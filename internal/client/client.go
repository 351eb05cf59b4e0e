// Package client coordinates the chat client: a receive loop that feeds
// server units through the state machine and a send loop that turns user
// input and autonomous state actions into units.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"linechat/internal/client/events"
	"linechat/internal/client/session"
	"linechat/internal/client/state"
	"linechat/internal/port"
	"linechat/pkg/protocol"

	"github.com/rs/zerolog/log"
)

// PollInterval bounds how long the send loop waits for input before it
// rechecks the current state.
const PollInterval = 100 * time.Millisecond

// LineSource supplies lines typed by the user.
type LineSource interface {
	// Poll waits up to timeout for a line; ok is false on timeout. An error
	// means no more input will arrive.
	Poll(timeout time.Duration) (line string, ok bool, err error)
}

type Client struct {
	port    port.Port
	input   LineSource
	session *session.Session
	bus     *events.Bus
	machine *state.Machine
	addr    string

	cell      *cell
	done      atomic.Bool
	closeOnce sync.Once

	// stopped is cancelled by Shutdown and aborts a pending Connect.
	stopped context.Context
	stop    context.CancelFunc
}

// New wires a client. addr is only used for display.
func New(p port.Port, input LineSource, sess *session.Session, bus *events.Bus, addr string) *Client {
	c := &Client{
		port:    p,
		input:   input,
		session: sess,
		bus:     bus,
		addr:    addr,
	}
	c.stopped, c.stop = context.WithCancel(context.Background())
	c.machine = state.New(sess, bus, c.Shutdown)
	c.cell = newCell(c.machine.Initial())
	return c
}

// Run connects and drives both loops until the user exits, ctx is cancelled
// or the connection cannot be re-established. Only the last case returns an
// error.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer context.AfterFunc(c.stopped, cancel)()

	c.bus.PublishType(events.EventConnecting)
	if err := c.port.Connect(ctx); err != nil {
		cancelled := ctx.Err() != nil
		c.Shutdown()
		if cancelled {
			return nil
		}
		return err
	}
	c.bus.Publish(events.Event{Type: events.EventConnected, Data: events.ConnectedData{ServerAddr: c.addr}})

	stop := context.AfterFunc(ctx, c.Shutdown)
	defer stop()

	s, _ := c.cell.load()
	c.install(s)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.sendLoop()
	}()

	err := c.receiveLoop(ctx)
	c.Shutdown()
	wg.Wait()
	return err
}

// Shutdown stops the client. It runs once: the state becomes Dead, the
// session is saved and unlocked, and the port is closed, which unblocks the
// receive loop.
func (c *Client) Shutdown() {
	c.closeOnce.Do(func() {
		c.done.Store(true)
		c.stop()
		c.cell.kill(c.machine.Dead())
		if err := c.session.Unlock(); err != nil {
			log.Warn().Err(err).Msg("Failed to save session")
		}
		if err := c.port.Close(); err != nil {
			log.Debug().Err(err).Msg("Port close")
		}
		c.bus.PublishType(events.EventDisconnected)
	})
}

// State returns the current state.
func (c *Client) State() *state.State {
	s, _ := c.cell.load()
	return s
}

func (c *Client) receiveLoop(ctx context.Context) error {
	for {
		u, err := c.port.Receive()
		if err != nil {
			if c.done.Load() {
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}

		if u.Kind() == protocol.KindEOF {
			if c.done.Load() {
				return nil
			}
			if err := c.reconnect(ctx); err != nil {
				if c.done.Load() {
					return nil
				}
				return err
			}
			continue
		}

		s, _ := c.cell.load()
		next, reply := c.machine.Dispatch(s, u)
		if next != nil {
			c.install(next)
		}
		if reply != nil {
			c.send(reply)
		}
	}
}

func (c *Client) reconnect(ctx context.Context) error {
	log.Info().Msg("Connection lost, reconnecting")
	c.bus.PublishType(events.EventReconnecting)

	if err := c.port.Connect(ctx); err != nil {
		return err
	}
	c.bus.Publish(events.Event{Type: events.EventConnected, Data: events.ConnectedData{ServerAddr: c.addr}})
	c.install(c.machine.Initial())
	return nil
}

func (c *Client) sendLoop() {
	var held string
	holding := false

	for {
		s, wake := c.cell.load()
		switch {
		case s.Variant() == state.Dead:
			return

		case s.Has(state.Interactive):
			if holding {
				holding = false
				c.submit(s, held)
				continue
			}
			line, ok, err := c.input.Poll(PollInterval)
			if err != nil {
				log.Debug().Err(err).Msg("Input closed")
				c.Shutdown()
				return
			}
			if !ok {
				continue
			}
			// The state may have moved on while polling; the line belongs to
			// whatever interactive state is current when it is handled.
			cur, _ := c.cell.load()
			if cur.Has(state.Interactive) {
				c.submit(cur, line)
				continue
			}
			held, holding = line, true

		case s.Has(state.NonInteractive):
			if u, ok := s.Autonomous(); ok {
				c.send(u)
				continue
			}
			<-wake

		default:
			<-wake
		}
	}
}

func (c *Client) submit(s *state.State, line string) {
	if u, ok := c.machine.Input(s, line); ok {
		c.send(u)
	}
}

// install makes s current, wakes the send loop and sends whatever the new
// state needs sent on entry.
func (c *Client) install(s *state.State) {
	if !c.cell.swap(s) {
		return
	}
	log.Debug().Str("state", s.Name()).Msg("State installed")
	for _, u := range c.machine.Install(s) {
		c.send(u)
	}
}

func (c *Client) send(u protocol.Unit) {
	if err := c.port.Send(u); err != nil {
		if c.done.Load() || errors.Is(err, port.ErrClosed) {
			return
		}
		log.Warn().Err(err).Str("unit", u.Kind().String()).Msg("Send failed")
		c.bus.PublishError(err, "Not sent")
	}
}
