package room

import (
	"context"
	"sync"

	"linechat/internal/server/store"
	"linechat/pkg/protocol"

	"github.com/rs/zerolog/log"
)

// Member is a connection that receives a room's traffic. Deliver must not
// block; a member that cannot keep up is expected to drop itself. Push waits
// for queue space and reports false once the member is gone.
type Member interface {
	Name() string
	Deliver(u protocol.Unit)
	Push(u protocol.Unit) bool
}

// resyncChunk is how many missing messages a resync queues per step.
const resyncChunk = 64

// Responder produces replies for AI rooms.
type Responder interface {
	Reply(ctx context.Context, room string, history []store.Message) (string, error)
}

// Room is a named channel with a message log and a roster. Joins, posts and
// resyncs are serialized so every member observes message IDs in order.
type Room struct {
	name      string
	ai        bool
	history   int
	responder Responder
	ctx       context.Context

	mu sync.Mutex
	// members maps each member to whether it is being resynced. Broadcasts
	// skip resyncing members; the resync itself covers what they miss.
	members map[Member]bool
	table   *store.MessageTable
}

func newRoom(ctx context.Context, name string, ai bool, history int, responder Responder) *Room {
	return &Room{
		name:      name,
		ai:        ai,
		history:   history,
		responder: responder,
		ctx:       ctx,
		members:   make(map[Member]bool),
		table:     store.NewMessageTable(),
	}
}

func (r *Room) Name() string { return r.name }
func (r *Room) IsAI() bool   { return r.ai }

// Messages exposes the room log for read-only inspection.
func (r *Room) Messages() *store.MessageTable { return r.table }

// Members returns the number of connected members.
func (r *Room) Members() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Join adds m to the roster. m receives the enter confirmation followed by
// the recent history, and then live traffic.
func (r *Room) Join(m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.members[m] = false
	log.Debug().Str("room", r.name).Str("member", m.Name()).Msg("Member joined")
	m.Deliver(protocol.Ok{Code: protocol.OkEnter, Data: r.name})
	for _, msg := range r.table.Last(r.history) {
		m.Deliver(recv(msg))
	}
}

func (r *Room) Leave(m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[m]; ok {
		delete(r.members, m)
		log.Debug().Str("room", r.name).Str("member", m.Name()).Msg("Member left")
	}
}

// Post appends a message and forwards it to every member. In AI rooms a
// human message also schedules a reply.
func (r *Room) Post(author, content string) store.Message {
	r.mu.Lock()
	msg := r.table.Add(author, content)
	u := recv(msg)
	for m, resyncing := range r.members {
		if !resyncing {
			m.Deliver(u)
		}
	}
	r.mu.Unlock()

	if r.ai && r.responder != nil && author != store.AIAuthor {
		go r.reply()
	}
	return msg
}

// Resync sends m every message after the given ID, then a sync marker with
// the newest ID. Earlier steps are queued outside the room lock with
// backpressure; the last step runs under the lock so that m returns to live
// traffic without a gap.
func (r *Room) Resync(m Member, after int) {
	if !r.setResyncing(m, true) {
		return
	}
	defer r.setResyncing(m, false)

	next := after + 1
	for {
		r.mu.Lock()
		missing := r.table.From(next)
		if len(missing) <= resyncChunk {
			defer r.mu.Unlock()
			if !push(m, missing) {
				return
			}
			if n := r.table.Len(); n > 0 {
				m.Push(protocol.Sync{ID: n - 1})
			}
			// Back to live traffic while still holding the lock.
			r.members[m] = false
			return
		}
		r.mu.Unlock()

		if !push(m, missing[:resyncChunk]) {
			log.Debug().Str("room", r.name).Str("member", m.Name()).Msg("Resync aborted")
			return
		}
		next = missing[resyncChunk-1].ID + 1
	}
}

// setResyncing flags m if it is still a member.
func (r *Room) setResyncing(m Member, on bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[m]; !ok {
		return false
	}
	r.members[m] = on
	return true
}

func push(m Member, msgs []store.Message) bool {
	for _, msg := range msgs {
		if !m.Push(recv(msg)) {
			return false
		}
	}
	return true
}

func (r *Room) reply() {
	text, err := r.responder.Reply(r.ctx, r.name, r.table.Last(r.history))
	if err != nil {
		if r.ctx.Err() == nil {
			log.Error().Err(err).Str("room", r.name).Msg("AI reply failed")
		}
		return
	}
	if text == "" {
		return
	}
	r.Post(store.AIAuthor, text)
}

func recv(msg store.Message) protocol.Recv {
	return protocol.Recv{ID: msg.ID, User: msg.Author, Text: msg.Content}
}
