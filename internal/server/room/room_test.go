package room

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"linechat/internal/server/store"
	"linechat/pkg/protocol"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMember struct {
	name string
	mu   sync.Mutex
	got  []protocol.Unit
}

func (m *fakeMember) Name() string { return m.name }

func (m *fakeMember) Deliver(u protocol.Unit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.got = append(m.got, u)
}

func (m *fakeMember) Push(u protocol.Unit) bool {
	m.Deliver(u)
	return true
}

func (m *fakeMember) units() []protocol.Unit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]protocol.Unit(nil), m.got...)
}

type echoResponder struct{ err error }

func (e echoResponder) Reply(ctx context.Context, room string, history []store.Message) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	return "echo: " + history[len(history)-1].Content, nil
}

func TestRoom_JoinDeliversHistory(t *testing.T) {
	reg := NewRegistry(context.Background(), Options{History: 2})
	r, err := reg.Add("general", false)
	require.NoError(t, err)

	r.Post("alice", "one")
	r.Post("alice", "two")
	r.Post("alice", "three")

	m := &fakeMember{name: "bob"}
	r.Join(m)

	assert.Equal(t, []protocol.Unit{
		protocol.Ok{Code: protocol.OkEnter, Data: "general"},
		protocol.Recv{ID: 1, User: "alice", Text: "two"},
		protocol.Recv{ID: 2, User: "alice", Text: "three"},
	}, m.units())
	assert.Equal(t, 1, r.Members())
}

func TestRoom_BroadcastInOrder(t *testing.T) {
	reg := NewRegistry(context.Background(), Options{})
	r, _ := reg.Add("general", false)

	a := &fakeMember{name: "a"}
	b := &fakeMember{name: "b"}
	r.Join(a)
	r.Join(b)

	const writers, perWriter = 8, 25
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				r.Post(fmt.Sprintf("w%d", w), "x")
			}
		}(w)
	}
	wg.Wait()

	for _, m := range []*fakeMember{a, b} {
		units := m.units()[1:] // skip ENTER_OK
		require.Len(t, units, writers*perWriter)
		for i, u := range units {
			assert.Equal(t, i, u.(protocol.Recv).ID)
		}
	}
}

func TestRoom_LeaveStopsDelivery(t *testing.T) {
	reg := NewRegistry(context.Background(), Options{})
	r, _ := reg.Add("general", false)
	m := &fakeMember{name: "a"}

	r.Join(m)
	r.Leave(m)
	r.Post("b", "hello")

	assert.Len(t, m.units(), 1)
	assert.Equal(t, 0, r.Members())
}

func TestRoom_Resync(t *testing.T) {
	reg := NewRegistry(context.Background(), Options{})
	r, _ := reg.Add("general", false)
	for i := 0; i < 4; i++ {
		r.Post("alice", fmt.Sprint(i))
	}

	m := &fakeMember{name: "bob"}
	r.Join(m)
	r.Resync(m, 1)
	assert.Equal(t, []protocol.Unit{
		protocol.Ok{Code: protocol.OkEnter, Data: "general"},
		protocol.Recv{ID: 2, User: "alice", Text: "2"},
		protocol.Recv{ID: 3, User: "alice", Text: "3"},
		protocol.Sync{ID: 3},
	}, m.units())

	up := &fakeMember{name: "carol"}
	r.Join(up)
	r.Resync(up, 3)
	assert.Equal(t, []protocol.Unit{protocol.Sync{ID: 3}}, up.units()[1:])
}

// queueMember has a small outbound queue drained by a reader goroutine, like
// a real connection.
type queueMember struct {
	out      chan protocol.Unit
	closed   chan struct{}
	failAt   int
	pushed   int
	overflow atomic.Bool
}

func newQueueMember(size int) *queueMember {
	return &queueMember{out: make(chan protocol.Unit, size), closed: make(chan struct{})}
}

func (m *queueMember) Name() string { return "queue" }

func (m *queueMember) Deliver(u protocol.Unit) {
	select {
	case m.out <- u:
	default:
		m.overflow.Store(true)
	}
}

func (m *queueMember) Push(u protocol.Unit) bool {
	m.pushed++
	if m.failAt > 0 && m.pushed >= m.failAt {
		return false
	}
	select {
	case m.out <- u:
		return true
	case <-m.closed:
		return false
	}
}

func TestRoom_ResyncLargeGap(t *testing.T) {
	reg := NewRegistry(context.Background(), Options{})
	r, _ := reg.Add("general", false)
	for i := 0; i < 300; i++ {
		r.Post("alice", fmt.Sprint(i))
	}

	m := newQueueMember(32)
	r.Join(m)
	<-m.out // enter confirmation

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Resync(m, 0)
	}()

	// Posts made while the resync runs are not broadcast to m directly;
	// they arrive through the resync, in order.
	posted := make(chan struct{})
	post := func() {
		defer close(posted)
		for i := 300; i < 320; i++ {
			r.Post("bob", fmt.Sprint(i))
		}
	}

	want := 1
	synced := false
	for !synced || want < 320 {
		select {
		case u := <-m.out:
			switch u := u.(type) {
			case protocol.Recv:
				require.Equal(t, want, u.ID)
				if want == 1 {
					go post()
				}
				want++
			case protocol.Sync:
				require.Equal(t, want-1, u.ID)
				synced = true
			default:
				t.Fatalf("unexpected unit %v", u)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("stalled at id %d", want)
		}
	}
	<-done
	<-posted
	assert.False(t, m.overflow.Load())
}

func TestRoom_ResyncAbortedRestoresBroadcast(t *testing.T) {
	reg := NewRegistry(context.Background(), Options{})
	r, _ := reg.Add("general", false)
	for i := 0; i < 3*resyncChunk; i++ {
		r.Post("alice", "m")
	}

	m := newQueueMember(4 * resyncChunk)
	m.failAt = 10
	r.Join(m)
	r.Resync(m, 0)
	assert.Len(t, m.out, 1+9, "enter confirmation plus the messages queued before the failure")

	r.Post("alice", "live")
	assert.Len(t, m.out, 11)
}

func TestRoom_ResyncNonMember(t *testing.T) {
	reg := NewRegistry(context.Background(), Options{})
	r, _ := reg.Add("general", false)
	r.Post("alice", "m")

	m := newQueueMember(4)
	r.Resync(m, -1)
	assert.Empty(t, m.out)
}

func TestRoom_AIReply(t *testing.T) {
	reg := NewRegistry(context.Background(), Options{History: 5, Responder: echoResponder{}})
	r, _ := reg.Add("AI Ideas", true)
	m := &fakeMember{name: "alice"}
	r.Join(m)

	r.Post("alice", "hi")

	require.Eventually(t, func() bool { return r.Messages().Len() == 2 }, time.Second, 5*time.Millisecond)
	reply, _ := r.Messages().Get(1)
	assert.Equal(t, store.AIAuthor, reply.Author)
	assert.Equal(t, "echo: hi", reply.Content)

	// The AI does not answer itself.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, r.Messages().Len())
}

func TestRoom_AIReplyFailure(t *testing.T) {
	reg := NewRegistry(context.Background(), Options{Responder: echoResponder{err: errors.New("offline")}})
	r, _ := reg.Add("AI Study", true)

	r.Post("alice", "hi")
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, r.Messages().Len())
}

func TestRegistry_Policy(t *testing.T) {
	strict := NewRegistry(context.Background(), Options{Policy: PolicyReject})
	_, err := strict.Open("lobby")
	assert.ErrorIs(t, err, ErrNoRoom)

	open := NewRegistry(context.Background(), Options{Policy: PolicyCreate})
	r, err := open.Open("lobby")
	require.NoError(t, err)
	again, err := open.Open("lobby")
	require.NoError(t, err)
	assert.Same(t, r, again)

	_, err = open.Open("bad,name")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestRegistry_AddAndListing(t *testing.T) {
	reg := NewRegistry(context.Background(), Options{})
	_, err := reg.Add("general", false)
	require.NoError(t, err)
	_, err = reg.Add("AI Doodle", true)
	require.NoError(t, err)

	_, err = reg.Add("general", false)
	assert.ErrorIs(t, err, ErrRoomExists)
	for _, bad := range []string{"", " padded", "star*", "a,b", "tab\there"} {
		_, err = reg.Add(bad, false)
		assert.ErrorIs(t, err, ErrInvalidName, "name %q", bad)
	}

	assert.Equal(t, "AI Doodle*,general", reg.Listing())
}

func TestRoom_LogsMemberNames(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf).Level(zerolog.DebugLevel)
	t.Cleanup(func() { log.Logger = prev })

	reg := NewRegistry(context.Background(), Options{})
	r, _ := reg.Add("general", false)
	m := &fakeMember{name: "dora"}
	r.Join(m)
	r.Leave(m)

	out := buf.String()
	assert.Contains(t, out, `"member":"dora"`)
	assert.Contains(t, out, "Member joined")
	assert.Contains(t, out, "Member left")
}
