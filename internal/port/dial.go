package port

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/hashicorp/yamux"
	"github.com/rs/zerolog/log"
)

// TLSDialer returns a DialFunc that opens a TLS connection to addr. With
// multiplex set, the line protocol runs on the first stream of a yamux
// session carried by the TLS connection.
func TLSDialer(addr string, cfg *tls.Config, multiplex bool) DialFunc {
	return func(ctx context.Context) (net.Conn, error) {
		d := &tls.Dialer{
			NetDialer: &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second},
			Config:    cfg,
		}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", addr, err)
		}
		if !multiplex {
			return conn, nil
		}

		session, err := yamux.Client(conn, muxConfig())
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to start yamux: %w", err)
		}
		stream, err := session.OpenStream()
		if err != nil {
			session.Close()
			return nil, fmt.Errorf("failed to open stream: %w", err)
		}
		return &muxConn{Stream: stream, session: session}, nil
	}
}

// Accept prepares a freshly accepted server connection. With multiplex set it
// waits for the client's first yamux stream.
func Accept(conn net.Conn, multiplex bool) (net.Conn, error) {
	if !multiplex {
		return conn, nil
	}
	session, err := yamux.Server(conn, muxConfig())
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to start yamux: %w", err)
	}
	stream, err := session.AcceptStream()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to accept stream: %w", err)
	}
	return &muxConn{Stream: stream, session: session}, nil
}

func muxConfig() *yamux.Config {
	cfg := yamux.DefaultConfig()
	cfg.KeepAliveInterval = 15 * time.Second
	cfg.LogOutput = log.Logger.With().Str("component", "yamux").Logger()
	return cfg
}

// muxConn closes the whole session along with its only stream.
type muxConn struct {
	*yamux.Stream
	session *yamux.Session
}

func (c *muxConn) Close() error {
	c.Stream.Close()
	return c.session.Close()
}
