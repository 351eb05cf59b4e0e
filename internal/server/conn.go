package server

import (
	"errors"
	"net"
	"sync"
	"time"

	"linechat/internal/port"
	"linechat/internal/server/metrics"
	"linechat/internal/server/room"
	"linechat/pkg/protocol"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

type role int

const (
	roleGuest role = iota
	roleUser
	roleMember
)

// Conn is one client connection. Units are read and handled on the serve
// goroutine; everything sent to the client, replies and room traffic alike,
// goes through one outbound queue drained by a writer goroutine.
type Conn struct {
	id      string
	srv     *Server
	port    *port.LinePort
	limiter *rate.Limiter
	logger  zerolog.Logger

	out       chan protocol.Unit
	done      chan struct{}
	closeOnce sync.Once

	// Owned by the serve goroutine.
	user string
	room *room.Room
}

func newConn(s *Server, nc net.Conn) *Conn {
	id := uuid.NewString()
	return &Conn{
		id:      id,
		srv:     s,
		port:    port.FromConn(nc),
		limiter: s.limiter(),
		logger:  log.With().Str("conn", id).Str("remote", nc.RemoteAddr().String()).Logger(),
		out:     make(chan protocol.Unit, s.opts.OutboundBuffer),
		done:    make(chan struct{}),
	}
}

func (c *Conn) ID() string   { return c.id }
func (c *Conn) Name() string { return c.user }

// Deliver queues u for the client without blocking. A client whose queue is
// full is disconnected; it will reconnect and resync.
func (c *Conn) Deliver(u protocol.Unit) {
	select {
	case c.out <- u:
	case <-c.done:
	default:
		c.logger.Warn().Msg("Outbound queue full, dropping connection")
		c.Close()
	}
}

// Push queues u, waiting while the queue is full. It reports false once the
// connection is closed.
func (c *Conn) Push(u protocol.Unit) bool {
	select {
	case c.out <- u:
		return true
	case <-c.done:
		return false
	}
}

// Close ends the connection. It is safe to call from any goroutine and
// more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.port.Close()
	})
}

func (c *Conn) serve() {
	c.logger.Info().Msg("Connection opened")
	defer c.logger.Info().Msg("Connection closed")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writeLoop()
	}()

	defer func() {
		c.leaveRoom()
		c.Close()
		wg.Wait()
	}()

	for {
		u, err := c.port.Receive()
		if err != nil {
			if !errors.Is(err, port.ErrNotConnected) {
				c.logger.Warn().Err(err).Msg("Receive failed")
			}
			return
		}
		if u.Kind() == protocol.KindEOF {
			return
		}

		start := time.Now()
		c.handle(u)
		elapsed := time.Since(start)

		c.srv.stats.RecordUnit(elapsed)
		metrics.UnitsTotal.WithLabelValues(u.Kind().String()).Inc()
		metrics.UnitDuration.Observe(elapsed.Seconds())
	}
}

func (c *Conn) writeLoop() {
	for {
		select {
		case u := <-c.out:
			if err := c.port.Send(u); err != nil {
				c.logger.Debug().Err(err).Msg("Send failed")
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Conn) role() role {
	switch {
	case c.room != nil:
		return roleMember
	case c.user != "":
		return roleUser
	default:
		return roleGuest
	}
}

func (c *Conn) leaveRoom() {
	if c.room == nil {
		return
	}
	c.room.Leave(c)
	c.room = nil
}
