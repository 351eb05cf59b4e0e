package protocol

import (
	"strconv"
	"strings"
)

// Kind identifies the variant of a Unit.
type Kind int

const (
	KindInvalid Kind = iota
	KindEOF
	KindLogin
	KindRegister
	KindTokenLogin
	KindLogout
	KindListRooms
	KindEnter
	KindLeave
	KindSend
	KindRecv
	KindSync
	KindOk
	KindErr
	KindPing
	KindPong
)

var kindNames = map[Kind]string{
	KindInvalid:    "invalid",
	KindEOF:        "eof",
	KindLogin:      "login",
	KindRegister:   "register",
	KindTokenLogin: "login-token",
	KindLogout:     "logout",
	KindListRooms:  "list-rooms",
	KindEnter:      "enter",
	KindLeave:      "leave",
	KindSend:       "send",
	KindRecv:       "recv",
	KindSync:       "sync",
	KindOk:         "ok",
	KindErr:        "err",
	KindPing:       "ping",
	KindPong:       "pong",
}

// String returns the wire command for the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Unit is one protocol message. Units are values and never change after
// construction.
type Unit interface {
	Kind() Kind
	// String serializes the unit as a single line without the terminator.
	String() string
}

type Login struct{ User, Pass string }
type Register struct{ User, Pass string }
type TokenLogin struct{ Token string }
type Logout struct{}
type ListRooms struct{}
type Enter struct{ Room string }
type Leave struct{}
type Send struct{ Text string }

// Recv carries a room message from the server. ID is the message offset in
// the room log.
type Recv struct {
	ID   int
	User string
	Text string
}

// Sync carries the last message offset the sender has observed.
type Sync struct{ ID int }

type Ok struct {
	Code OkCode
	Data string
}

type Err struct{ Code ErrCode }
type Ping struct{}
type Pong struct{}

// EOF marks the end of a stream or an empty line.
type EOF struct{}

// Invalid is produced for any line that does not match the grammar.
type Invalid struct{}

func (Login) Kind() Kind      { return KindLogin }
func (Register) Kind() Kind   { return KindRegister }
func (TokenLogin) Kind() Kind { return KindTokenLogin }
func (Logout) Kind() Kind     { return KindLogout }
func (ListRooms) Kind() Kind  { return KindListRooms }
func (Enter) Kind() Kind      { return KindEnter }
func (Leave) Kind() Kind      { return KindLeave }
func (Send) Kind() Kind       { return KindSend }
func (Recv) Kind() Kind       { return KindRecv }
func (Sync) Kind() Kind       { return KindSync }
func (Ok) Kind() Kind         { return KindOk }
func (Err) Kind() Kind        { return KindErr }
func (Ping) Kind() Kind       { return KindPing }
func (Pong) Kind() Kind       { return KindPong }
func (EOF) Kind() Kind        { return KindEOF }
func (Invalid) Kind() Kind    { return KindInvalid }

func (u Login) String() string      { return line(KindLogin, u.User, u.Pass) }
func (u Register) String() string   { return line(KindRegister, u.User, u.Pass) }
func (u TokenLogin) String() string { return line(KindTokenLogin, u.Token) }
func (Logout) String() string       { return line(KindLogout) }
func (ListRooms) String() string    { return line(KindListRooms) }
func (u Enter) String() string      { return line(KindEnter, u.Room) }
func (Leave) String() string        { return line(KindLeave) }
func (u Send) String() string       { return line(KindSend, u.Text) }
func (u Recv) String() string       { return line(KindRecv, strconv.Itoa(u.ID), u.User, u.Text) }
func (u Sync) String() string       { return line(KindSync, strconv.Itoa(u.ID)) }
func (u Err) String() string        { return line(KindErr, string(u.Code)) }
func (Ping) String() string         { return line(KindPing) }
func (Pong) String() string         { return line(KindPong) }
func (EOF) String() string          { return "" }
func (Invalid) String() string      { return "" }

func (u Ok) String() string {
	if u.Data == "" {
		return line(KindOk, string(u.Code))
	}
	return line(KindOk, string(u.Code), u.Data)
}

func line(kind Kind, args ...string) string {
	var sb strings.Builder
	sb.WriteString(kind.String())
	for _, arg := range args {
		sb.WriteByte(' ')
		sb.WriteString(Quote(arg))
	}
	return sb.String()
}
