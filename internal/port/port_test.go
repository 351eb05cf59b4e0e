package port

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"linechat/pkg/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeDialer hands out one side of a fresh net.Pipe per dial and sends the
// other side to peers.
func pipeDialer(peers chan<- net.Conn) DialFunc {
	return func(ctx context.Context) (net.Conn, error) {
		client, server := net.Pipe()
		peers <- server
		return client, nil
	}
}

func TestLinePort_SendReceive(t *testing.T) {
	client, server := net.Pipe()
	p := FromConn(client)
	defer p.Close()

	go func() {
		server.Write([]byte("\nrecv 3 alice \"hi there\"\nbogus line\n"))
	}()

	u, err := p.Receive()
	require.NoError(t, err)
	assert.Equal(t, protocol.Recv{ID: 3, User: "alice", Text: "hi there"}, u)

	u, err = p.Receive()
	require.NoError(t, err)
	assert.Equal(t, protocol.KindInvalid, u.Kind())

	lines := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(server).ReadString('\n')
		lines <- line
	}()
	require.NoError(t, p.Send(protocol.Send{Text: "a b"}))
	assert.Equal(t, "send \"a b\"\n", <-lines)
}

func TestLinePort_EOFOncePerDisconnect(t *testing.T) {
	client, server := net.Pipe()
	p := FromConn(client)

	server.Close()

	u, err := p.Receive()
	require.NoError(t, err)
	assert.Equal(t, protocol.EOF{}, u)

	_, err = p.Receive()
	assert.ErrorIs(t, err, ErrNotConnected)

	assert.ErrorIs(t, p.Send(protocol.Ping{}), ErrNotConnected)
	assert.ErrorIs(t, p.Connect(context.Background()), ErrNotConnected)
}

func TestLinePort_ReconnectAfterEOF(t *testing.T) {
	peers := make(chan net.Conn, 2)
	p := New(pipeDialer(peers), nil)
	defer p.Close()

	require.NoError(t, p.Connect(context.Background()))
	first := <-peers

	// Connect is idempotent while connected.
	require.NoError(t, p.Connect(context.Background()))
	assert.Len(t, peers, 0)

	first.Close()
	u, err := p.Receive()
	require.NoError(t, err)
	assert.Equal(t, protocol.KindEOF, u.Kind())

	require.NoError(t, p.Connect(context.Background()))
	second := <-peers
	go second.Write([]byte("pong\n"))

	u, err = p.Receive()
	require.NoError(t, err)
	assert.Equal(t, protocol.Pong{}, u)
}

func TestLinePort_CloseUnblocksReceive(t *testing.T) {
	client, _ := net.Pipe()
	p := FromConn(client)

	done := make(chan protocol.Unit, 1)
	go func() {
		u, _ := p.Receive()
		done <- u
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, p.Close())

	select {
	case u := <-done:
		assert.Equal(t, protocol.KindEOF, u.Kind())
	case <-time.After(time.Second):
		t.Fatal("Receive did not return after Close")
	}

	assert.ErrorIs(t, p.Connect(context.Background()), ErrClosed)
}

func TestLinePort_RefusesUnsendable(t *testing.T) {
	client, _ := net.Pipe()
	p := FromConn(client)
	defer p.Close()

	assert.Error(t, p.Send(protocol.Invalid{}))
	assert.Error(t, p.Send(protocol.EOF{}))
}

func TestConnect_MaxAttempts(t *testing.T) {
	var calls atomic.Int32
	dial := func(ctx context.Context) (net.Conn, error) {
		calls.Add(1)
		return nil, errors.New("connection refused")
	}
	p := New(dial, &ReconnectConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   1.0,
		MaxAttempts:  3,
	})

	err := p.Connect(context.Background())
	assert.ErrorIs(t, err, ErrEndpointUnreachable)
	assert.Equal(t, int32(3), calls.Load())
}

func TestConnect_ContextCancellation(t *testing.T) {
	dial := func(ctx context.Context) (net.Conn, error) {
		return nil, errors.New("connection refused")
	}
	p := New(dial, &ReconnectConfig{
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     50 * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := p.Connect(ctx)
	if err != context.DeadlineExceeded && err != context.Canceled {
		t.Errorf("Expected context error, got: %v", err)
	}
}

func TestDefaultReconnectConfig(t *testing.T) {
	cfg := DefaultReconnectConfig()

	if cfg.InitialDelay != 500*time.Millisecond {
		t.Errorf("InitialDelay = %v, want 500ms", cfg.InitialDelay)
	}
	if cfg.MaxDelay != 10*time.Second {
		t.Errorf("MaxDelay = %v, want 10s", cfg.MaxDelay)
	}
	if cfg.Multiplier != 2.0 {
		t.Errorf("Multiplier = %v, want 2.0", cfg.Multiplier)
	}
	if cfg.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", cfg.MaxAttempts)
	}
}

func TestExponentialBackoff(t *testing.T) {
	cfg := &ReconnectConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
	}

	delay := cfg.InitialDelay
	delay = cfg.next(delay)
	if delay != 200*time.Millisecond {
		t.Errorf("Second delay = %v, want 200ms", delay)
	}
	delay = cfg.next(delay)
	if delay != 400*time.Millisecond {
		t.Errorf("Third delay = %v, want 400ms", delay)
	}

	for i := 0; i < 10; i++ {
		delay = cfg.next(delay)
	}
	if delay != cfg.MaxDelay {
		t.Errorf("Delay should be capped at MaxDelay, got %v", delay)
	}
}
