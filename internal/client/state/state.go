// Package state implements the client's protocol state machine. A State is
// immutable apart from its one-shot autonomous unit; transitions replace the
// current state wholesale.
package state

import (
	"sync/atomic"

	"linechat/pkg/protocol"
)

// Variant is the coarse authentication level of a state.
type Variant int

const (
	Dead Variant = iota
	Guest
	Auth
)

func (v Variant) String() string {
	switch v {
	case Dead:
		return "dead"
	case Guest:
		return "guest"
	case Auth:
		return "auth"
	}
	return "unknown"
}

// Capability describes how the send loop drives a state.
type Capability uint8

const (
	// Interactive states turn user input into units.
	Interactive Capability = 1 << iota
	// NonInteractive states emit one autonomous unit and wait for the reply.
	NonInteractive
	// Synchronizable states track the newest room message seen.
	Synchronizable
)

// Kind names the concrete state.
type Kind int

const (
	KindDead Kind = iota
	KindGuest
	KindResume
	KindAuth
	KindRejoin
	KindRoom
)

var kinds = map[Kind]struct {
	name    string
	variant Variant
	caps    Capability
}{
	KindDead:   {"dead", Dead, 0},
	KindGuest:  {"guest", Guest, Interactive},
	KindResume: {"resume", Guest, NonInteractive},
	KindAuth:   {"auth", Auth, Interactive},
	KindRejoin: {"rejoin", Auth, NonInteractive},
	KindRoom:   {"room", Auth, Interactive | Synchronizable},
}

func (k Kind) String() string { return kinds[k].name }

// NoSync is the sync ID of a state that has nothing to resynchronize.
const NoSync = -1

type State struct {
	kind   Kind
	room   string
	syncID int

	autonomous protocol.Unit
	taken      atomic.Bool
}

func newState(kind Kind) *State {
	return &State{kind: kind, syncID: NoSync}
}

func (s *State) Kind() Kind       { return s.kind }
func (s *State) Variant() Variant { return kinds[s.kind].variant }
func (s *State) Name() string     { return s.kind.String() }

func (s *State) Has(c Capability) bool {
	return kinds[s.kind].caps&c != 0
}

// Room returns the room a room state is in.
func (s *State) Room() string { return s.room }

// SyncID returns the offset to resynchronize from on install, or NoSync.
func (s *State) SyncID() int { return s.syncID }

// Autonomous hands out the state's own unit exactly once.
func (s *State) Autonomous() (protocol.Unit, bool) {
	if s.autonomous == nil || !s.taken.CompareAndSwap(false, true) {
		return nil, false
	}
	return s.autonomous, true
}

func deadState() *State  { return newState(KindDead) }
func guestState() *State { return newState(KindGuest) }
func authState() *State  { return newState(KindAuth) }

func resumeState(token string) *State {
	s := newState(KindResume)
	s.autonomous = protocol.TokenLogin{Token: token}
	return s
}

func rejoinState(room string) *State {
	s := newState(KindRejoin)
	s.room = room
	s.autonomous = protocol.Enter{Room: room}
	return s
}

func roomState(room string, syncID int) *State {
	s := newState(KindRoom)
	s.room = room
	s.syncID = syncID
	return s
}
