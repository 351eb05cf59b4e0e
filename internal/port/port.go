package port

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"linechat/pkg/protocol"

	"github.com/rs/zerolog/log"
)

// MaxLineSize bounds a single protocol line.
const MaxLineSize = 64 * 1024

var (
	ErrNotConnected        = errors.New("port: not connected")
	ErrEndpointUnreachable = errors.New("port: endpoint unreachable")
	ErrClosed              = errors.New("port: closed")
	errUnsendable          = errors.New("port: unit has no wire form")
)

// Port carries protocol units over a line oriented transport.
type Port interface {
	// Connect opens the transport if it is not open yet.
	Connect(ctx context.Context) error
	// Send writes one unit as one line.
	Send(u protocol.Unit) error
	// Receive blocks for the next unit. The end of the stream is reported
	// as protocol.EOF, once per disconnect.
	Receive() (protocol.Unit, error)
	Close() error
}

// DialFunc opens a new transport connection.
type DialFunc func(ctx context.Context) (net.Conn, error)

// LinePort is a Port over a net.Conn. A LinePort built with New redials
// through its DialFunc; one built with FromConn wraps an accepted connection
// and cannot reconnect.
type LinePort struct {
	dial      DialFunc
	reconnect *ReconnectConfig

	connectMu sync.Mutex
	writeMu   sync.Mutex

	mu      sync.Mutex
	conn    net.Conn
	scanner *bufio.Scanner
	closed  bool
}

func New(dial DialFunc, reconnect *ReconnectConfig) *LinePort {
	if reconnect == nil {
		reconnect = DefaultReconnectConfig()
	}
	return &LinePort{dial: dial, reconnect: reconnect}
}

func FromConn(conn net.Conn) *LinePort {
	p := &LinePort{}
	p.attach(conn)
	return p
}

func (p *LinePort) Connect(ctx context.Context) error {
	p.connectMu.Lock()
	defer p.connectMu.Unlock()

	p.mu.Lock()
	closed, connected := p.closed, p.conn != nil
	p.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if connected {
		return nil
	}
	if p.dial == nil {
		return ErrNotConnected
	}

	conn, err := p.dialWithBackoff(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		conn.Close()
		return ErrClosed
	}
	p.attachLocked(conn)
	return nil
}

func (p *LinePort) attach(conn net.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attachLocked(conn)
}

func (p *LinePort) attachLocked(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), MaxLineSize)
	p.conn = conn
	p.scanner = scanner
}

func (p *LinePort) Send(u protocol.Unit) error {
	if k := u.Kind(); k == protocol.KindInvalid || k == protocol.KindEOF {
		return errUnsendable
	}

	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if _, err := io.WriteString(conn, u.String()+"\n"); err != nil {
		return fmt.Errorf("port: send %s: %w", u.Kind(), err)
	}
	return nil
}

func (p *LinePort) Receive() (protocol.Unit, error) {
	p.mu.Lock()
	conn, scanner, closed := p.conn, p.scanner, p.closed
	p.mu.Unlock()

	if conn == nil {
		if closed {
			return protocol.EOF{}, nil
		}
		return nil, ErrNotConnected
	}

	for scanner.Scan() {
		u := protocol.Parse(scanner.Text())
		if u.Kind() == protocol.KindEOF {
			// Blank lines carry nothing; only the stream end is EOF.
			continue
		}
		return u, nil
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		log.Debug().Err(err).Msg("port: read ended")
	}
	p.drop(conn)
	return protocol.EOF{}, nil
}

// drop forgets conn if it is still the current connection.
func (p *LinePort) drop(conn net.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == conn {
		p.conn.Close()
		p.conn = nil
		p.scanner = nil
	}
}

// Close shuts the transport down for good and unblocks a pending Receive.
func (p *LinePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	p.scanner = nil
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("port: close: %w", err)
	}
	return nil
}

// RemoteAddr returns the peer address, or "" when disconnected.
func (p *LinePort) RemoteAddr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return ""
	}
	return p.conn.RemoteAddr().String()
}
