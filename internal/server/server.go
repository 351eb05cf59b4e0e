package server

import (
	"context"
	"errors"
	"net"
	"sync"

	"linechat/internal/port"
	"linechat/internal/server/metrics"
	"linechat/internal/server/room"
	"linechat/internal/server/stats"
	"linechat/internal/server/store"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Options tune per-connection behavior.
type Options struct {
	// RateLimit is the sustained number of units per second a connection
	// may send; zero disables limiting.
	RateLimit float64
	RateBurst int
	// OutboundBuffer is the number of units queued for a slow reader before
	// it is disconnected.
	OutboundBuffer int
	Multiplex      bool
}

func DefaultOptions() Options {
	return Options{RateLimit: 20, RateBurst: 40, OutboundBuffer: 256}
}

// Server accepts connections and runs one goroutine per connection.
type Server struct {
	auth  *store.AuthDb
	rooms *room.Registry
	stats *stats.Stats
	opts  Options

	mu    sync.Mutex
	conns map[*Conn]struct{}
	wg    sync.WaitGroup
}

func New(auth *store.AuthDb, rooms *room.Registry, st *stats.Stats, opts Options) *Server {
	if opts.OutboundBuffer <= 0 {
		opts.OutboundBuffer = DefaultOptions().OutboundBuffer
	}
	if st == nil {
		st = stats.New()
	}
	return &Server{
		auth:  auth,
		rooms: rooms,
		stats: st,
		opts:  opts,
		conns: make(map[*Conn]struct{}),
	}
}

// Serve accepts connections from ln until ctx is done, then closes every
// open connection and waits for their goroutines to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var err error
	for {
		raw, acceptErr := ln.Accept()
		if acceptErr != nil {
			if ctx.Err() == nil && !errors.Is(acceptErr, net.ErrClosed) {
				err = acceptErr
			}
			break
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			stop := context.AfterFunc(ctx, func() { raw.Close() })
			conn, err := port.Accept(raw, s.opts.Multiplex)
			stop()
			if err != nil {
				log.Warn().Err(err).Str("remote", raw.RemoteAddr().String()).Msg("Rejected connection")
				return
			}
			s.ServeConn(ctx, conn)
		}()
	}

	s.closeAll()
	s.wg.Wait()
	return err
}

// ServeConn runs the protocol on one connection until it ends.
func (s *Server) ServeConn(ctx context.Context, nc net.Conn) {
	c := newConn(s, nc)

	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
	s.stats.IncrementConnections()
	metrics.Connections.Inc()

	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		s.stats.DecrementOpenConnections()
		metrics.Connections.Dec()
	}()

	stop := context.AfterFunc(ctx, c.Close)
	defer stop()

	c.serve()
}

// Stats returns the server's activity counters.
func (s *Server) Stats() *stats.Stats {
	return s.stats
}

func (s *Server) closeAll() {
	s.mu.Lock()
	conns := make([]*Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

func (s *Server) limiter() *rate.Limiter {
	if s.opts.RateLimit <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := s.opts.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(s.opts.RateLimit), burst)
}
