package state

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"linechat/internal/client/events"
	"linechat/internal/client/session"
	"linechat/pkg/protocol"

	"github.com/rs/zerolog/log"
)

type handler func(m *Machine, s *State, u protocol.Unit) (*State, protocol.Unit)

type key struct {
	variant Variant
	kind    protocol.Kind
}

// table maps (state variant, unit kind) to a handler. Pairs that are absent
// are logged and dropped.
var table = map[key]handler{
	{Guest, protocol.KindPing}: (*Machine).pong,
	{Guest, protocol.KindOk}:   (*Machine).guestOk,
	{Guest, protocol.KindErr}:  (*Machine).guestErr,
	{Auth, protocol.KindPing}:  (*Machine).pong,
	{Auth, protocol.KindOk}:    (*Machine).authOk,
	{Auth, protocol.KindErr}:   (*Machine).authErr,
	{Auth, protocol.KindRecv}:  (*Machine).recv,
	{Auth, protocol.KindSync}:  (*Machine).sync,
}

// Machine owns the behavior behind the states: it turns received units into
// transitions and user input into units.
type Machine struct {
	session *session.Session
	bus     *events.Bus
	exit    func()

	mu       sync.Mutex
	pending  string
	seenAuth bool

	watermark atomic.Int64
	// resyncing is set from a sync request until the server's sync marker.
	// Meanwhile only the message right after the watermark is accepted, so
	// enter history past a gap cannot hide the resent messages.
	resyncing atomic.Bool
}

// New creates a Machine. exit is called when the user asks to quit.
func New(sess *session.Session, bus *events.Bus, exit func()) *Machine {
	m := &Machine{session: sess, bus: bus, exit: exit}
	m.watermark.Store(NoSync)
	return m
}

// Initial returns the state to start from after every (re)connect.
func (m *Machine) Initial() *State {
	if token := m.session.Token(); token != "" {
		return resumeState(token)
	}
	return guestState()
}

// Dead returns a terminal state.
func (m *Machine) Dead() *State {
	return deadState()
}

// Install records that s became current and returns the units that must be
// sent on its behalf: one list-rooms on the first Auth state since the last
// Guest state, and a sync for a Synchronizable state with a sync ID.
func (m *Machine) Install(s *State) []protocol.Unit {
	var out []protocol.Unit

	m.mu.Lock()
	switch s.Variant() {
	case Guest:
		m.seenAuth = false
	case Auth:
		if !m.seenAuth {
			m.seenAuth = true
			out = append(out, protocol.ListRooms{})
		}
	}
	m.mu.Unlock()

	if s.Has(Synchronizable) {
		m.watermark.Store(int64(s.syncID))
		m.resyncing.Store(s.syncID != NoSync)
		if s.syncID != NoSync {
			out = append(out, protocol.Sync{ID: s.syncID})
		}
	}

	m.bus.Publish(events.Event{Type: events.EventStateChanged, Data: events.StateData{
		State: s.Name(),
		User:  m.session.Username(),
		Room:  s.room,
	}})
	return out
}

// Dispatch handles a received unit in state s. It returns the next state, or
// nil to stay, and a unit to send back, or nil.
func (m *Machine) Dispatch(s *State, u protocol.Unit) (*State, protocol.Unit) {
	if s.Variant() == Dead {
		return nil, nil
	}
	h, ok := table[key{s.Variant(), u.Kind()}]
	if !ok {
		log.Debug().Str("state", s.Name()).Str("unit", u.Kind().String()).Msg("Dropped unit")
		return nil, nil
	}
	return h(m, s, u)
}

func (m *Machine) pong(*State, protocol.Unit) (*State, protocol.Unit) {
	return nil, protocol.Pong{}
}

func (m *Machine) guestOk(s *State, u protocol.Unit) (*State, protocol.Unit) {
	ok := u.(protocol.Ok)
	switch ok.Code {
	case protocol.OkLogin, protocol.OkRegister:
	default:
		log.Debug().Str("code", string(ok.Code)).Msg("Unexpected ok while logged out")
		return nil, nil
	}

	user := m.takePending()
	if s.kind == KindResume {
		user = m.session.Username()
	}
	m.session.SetLogin(user, ok.Data)
	m.save()

	if ok.Code == protocol.OkRegister {
		m.bus.Notice(fmt.Sprintf("Registered and logged in as %s", user))
	} else {
		m.bus.Notice(fmt.Sprintf("Logged in as %s", user))
	}

	if s.kind == KindResume {
		if room := m.session.Room(); room != "" {
			return rejoinState(room), nil
		}
	}
	return authState(), nil
}

func (m *Machine) guestErr(s *State, u protocol.Unit) (*State, protocol.Unit) {
	e := u.(protocol.Err)
	switch e.Code {
	case protocol.ErrLogin:
		m.fail("Login failed: wrong username or password")
	case protocol.ErrRegister:
		m.fail("Registration failed: username taken or invalid")
	case protocol.ErrToken:
		m.session.ClearLogin()
		m.save()
		m.bus.Notice("Saved login expired, please log in again")
		return guestState(), nil
	default:
		m.fail(describe(e.Code))
	}
	return nil, nil
}

func (m *Machine) authOk(s *State, u protocol.Unit) (*State, protocol.Unit) {
	ok := u.(protocol.Ok)
	switch ok.Code {
	case protocol.OkRooms:
		m.bus.Publish(events.Event{Type: events.EventRooms, Data: ParseRooms(ok.Data)})
	case protocol.OkEnter:
		room := ok.Data
		syncID := NoSync
		if s.kind == KindRejoin && room == m.session.Room() {
			syncID = m.session.LastSeen()
		}
		m.session.SetRoom(room)
		m.save()
		m.bus.Notice(fmt.Sprintf("Entered %s", room))
		return roomState(room, syncID), nil
	case protocol.OkLeave:
		m.session.SetRoom("")
		m.save()
		m.bus.Notice(fmt.Sprintf("Left %s", s.room))
		return authState(), nil
	case protocol.OkLogout:
		m.session.ClearLogin()
		m.save()
		m.bus.Notice("Logged out")
		return guestState(), nil
	default:
		log.Debug().Str("code", string(ok.Code)).Msg("Unexpected ok while logged in")
	}
	return nil, nil
}

func (m *Machine) authErr(s *State, u protocol.Unit) (*State, protocol.Unit) {
	e := u.(protocol.Err)
	switch e.Code {
	case protocol.ErrRoom:
		m.fail("No such room")
		if s.kind == KindRejoin {
			m.session.SetRoom("")
			m.save()
			return authState(), nil
		}
	case protocol.ErrAuth:
		m.fail("The server no longer knows this login, please log in again")
		m.session.ClearLogin()
		m.save()
		return guestState(), nil
	default:
		m.fail(describe(e.Code))
	}
	return nil, nil
}

func (m *Machine) recv(s *State, u protocol.Unit) (*State, protocol.Unit) {
	if s.kind != KindRoom {
		log.Debug().Str("state", s.Name()).Msg("Message outside a room dropped")
		return nil, nil
	}
	r := u.(protocol.Recv)
	last := m.watermark.Load()
	if int64(r.ID) <= last {
		log.Debug().Int("id", r.ID).Msg("Duplicate message dropped")
		return nil, nil
	}
	if m.resyncing.Load() && int64(r.ID) > last+1 {
		log.Debug().Int("id", r.ID).Int64("last", last).Msg("Message ahead of resync dropped")
		return nil, nil
	}
	m.watermark.Store(int64(r.ID))
	m.session.SetLastSeen(r.ID)

	m.bus.Publish(events.Event{Type: events.EventMessage, Data: events.MessageData{
		Room: s.room,
		ID:   r.ID,
		User: r.User,
		Text: r.Text,
	}})
	return nil, nil
}

// sync adopts the server's newest offset, which also recovers from a server
// whose log restarted below ours.
func (m *Machine) sync(s *State, u protocol.Unit) (*State, protocol.Unit) {
	if s.kind != KindRoom {
		return nil, nil
	}
	id := u.(protocol.Sync).ID
	m.resyncing.Store(false)
	m.watermark.Store(int64(id))
	m.session.SetLastSeen(id)
	return nil, nil
}

// Watermark returns the newest message offset shown in the current room.
func (m *Machine) Watermark() int {
	return int(m.watermark.Load())
}

func (m *Machine) setPending(user string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = user
}

func (m *Machine) takePending() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	user := m.pending
	m.pending = ""
	return user
}

func (m *Machine) fail(text string) {
	m.bus.Publish(events.Event{Type: events.EventError, Data: events.ErrorData{Context: text}})
}

func (m *Machine) save() {
	if err := m.session.Save(); err != nil {
		log.Warn().Err(err).Msg("Failed to save session")
	}
}

func describe(code protocol.ErrCode) string {
	switch code {
	case protocol.ErrAuth:
		return "Log in first"
	case protocol.ErrNotInRoom:
		return "You are not in a room"
	case protocol.ErrRate:
		return "Slow down, too many messages"
	case protocol.ErrRoom:
		return "No such room"
	case protocol.ErrToken:
		return "Login token rejected"
	}
	return fmt.Sprintf("Server error %s", code)
}

// ParseRooms decodes the data of an ok ROOMS unit.
func ParseRooms(data string) events.RoomsData {
	var rooms []events.RoomInfo
	for _, name := range strings.Split(data, ",") {
		if name == "" {
			continue
		}
		info := events.RoomInfo{Name: name}
		if strings.HasSuffix(name, "*") {
			info.Name = strings.TrimSuffix(name, "*")
			info.AI = true
		}
		rooms = append(rooms, info)
	}
	return events.RoomsData{Rooms: rooms}
}
