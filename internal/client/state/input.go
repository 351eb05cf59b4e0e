package state

import (
	"fmt"
	"strings"
	"unicode"

	"linechat/pkg/protocol"
)

// Input turns one line typed by the user into a unit for the server. Local
// commands are handled here and produce no unit.
func (m *Machine) Input(s *State, line string) (protocol.Unit, bool) {
	if !s.Has(Interactive) {
		return nil, false
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, false
	}

	if !strings.HasPrefix(line, "/") {
		if s.kind == KindRoom {
			return protocol.Send{Text: line}, true
		}
		m.bus.Notice("Not in a room. Type /help for commands")
		return nil, false
	}

	cmd, rest := line, ""
	if i := strings.IndexFunc(line, unicode.IsSpace); i >= 0 {
		cmd, rest = line[:i], strings.TrimSpace(line[i:])
	}

	switch cmd {
	case "/help":
		m.bus.Notice(help(s))
		return nil, false
	case "/info":
		m.bus.Notice(m.info(s))
		return nil, false
	case "/exit":
		m.exit()
		return nil, false
	}

	switch s.Variant() {
	case Guest:
		return m.guestInput(cmd, line)
	case Auth:
		return m.authInput(s, cmd, rest)
	}
	return nil, false
}

func (m *Machine) guestInput(cmd, line string) (protocol.Unit, bool) {
	switch cmd {
	case "/login", "/register":
		u := protocol.Parse(strings.TrimPrefix(line, "/"))
		switch u := u.(type) {
		case protocol.Login:
			m.setPending(u.User)
			return u, true
		case protocol.Register:
			m.setPending(u.User)
			return u, true
		}
		m.fail(fmt.Sprintf("Usage: %s <username> <password>", cmd))
		return nil, false
	}
	m.unknown(cmd)
	return nil, false
}

func (m *Machine) authInput(s *State, cmd, rest string) (protocol.Unit, bool) {
	switch cmd {
	case "/rooms":
		return protocol.ListRooms{}, true
	case "/enter":
		if rest == "" {
			m.fail("Usage: /enter <room>")
			return nil, false
		}
		return protocol.Enter{Room: rest}, true
	case "/logout":
		return protocol.Logout{}, true
	case "/leave":
		if s.kind == KindRoom {
			return protocol.Leave{}, true
		}
	}
	m.unknown(cmd)
	return nil, false
}

func (m *Machine) unknown(cmd string) {
	m.fail(fmt.Sprintf("Unknown command %s, type /help", cmd))
}

func (m *Machine) info(s *State) string {
	parts := []string{"state: " + s.Name()}
	if user := m.session.Username(); user != "" && s.Variant() == Auth {
		parts = append(parts, "user: "+user)
	}
	if s.kind == KindRoom {
		parts = append(parts, "room: "+s.room, fmt.Sprintf("last seen: %d", m.Watermark()))
	}
	if m.session.Shared() {
		parts = append(parts, "session: temporary")
	}
	return strings.Join(parts, ", ")
}

func help(s *State) string {
	var lines []string
	switch s.kind {
	case KindGuest:
		lines = []string{
			"/login <user> <password>     log in",
			"/register <user> <password>  create an account",
		}
	case KindAuth:
		lines = []string{
			"/rooms         list rooms (AI rooms are marked *)",
			"/enter <room>  enter a room",
			"/logout        log out",
		}
	case KindRoom:
		lines = []string{
			"<text>         send a message",
			"/leave         leave the room",
			"/rooms         list rooms",
			"/enter <room>  switch rooms",
			"/logout        log out",
		}
	}
	lines = append(lines, "/info          show session details", "/exit          quit")
	return strings.Join(lines, "\n")
}
