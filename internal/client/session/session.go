// Package session persists the client's login between runs in a flat
// KEY=VALUE file.
package session

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	keyToken    = "TOKEN"
	keyUsername = "USERNAME"
	keyRoom     = "ROOM"
	keyLastSeen = "LAST_SEEN"
	keyLocked   = "LOCKED"
)

// NoOffset marks an unknown last-seen message.
const NoOffset = -1

// Session is the persisted client identity. One process holds the file
// locked for its lifetime; a second process that finds it locked works on
// an unsaved copy instead.
type Session struct {
	mu       sync.Mutex
	path     string
	token    string
	username string
	room     string
	lastSeen int
	locked   bool
	shared   bool
}

// Path returns the session file name for suffix inside dir.
func Path(dir, suffix string) string {
	return filepath.Join(dir, "session"+suffix+".env")
}

// Open loads and locks the session file at path. When another process holds
// the lock it returns an in-memory session; Shared reports that case.
func Open(path string) (*Session, error) {
	values, err := godotenv.Read(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read session: %w", err)
	}

	if values[keyLocked] == "true" {
		log.Warn().Str("path", path).Msg("Session file is locked by another client, using a temporary session")
		return &Session{lastSeen: NoOffset, shared: true}, nil
	}

	s := &Session{
		path:     path,
		token:    values[keyToken],
		username: values[keyUsername],
		room:     values[keyRoom],
		lastSeen: NoOffset,
		locked:   true,
	}
	if v, ok := values[keyLastSeen]; ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			s.lastSeen = n
		}
	}
	if err := s.Save(); err != nil {
		return nil, err
	}
	return s, nil
}

// Memory returns a session that is never written to disk.
func Memory() *Session {
	return &Session{lastSeen: NoOffset}
}

// Shared reports whether the session is an unsaved stand-in for a file
// locked by another process.
func (s *Session) Shared() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shared
}

func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

func (s *Session) Room() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

func (s *Session) LastSeen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// SetLogin records a fresh token for user. Switching users forgets the room.
func (s *Session) SetLogin(user, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user != s.username {
		s.room = ""
		s.lastSeen = NoOffset
	}
	s.username = user
	s.token = token
}

// ClearLogin forgets the token and room, keeping the username as a hint.
func (s *Session) ClearLogin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.room = ""
	s.lastSeen = NoOffset
}

// SetRoom records the current room. Entering a different room resets the
// last-seen offset.
func (s *Session) SetRoom(room string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room != s.room {
		s.lastSeen = NoOffset
	}
	s.room = room
}

func (s *Session) SetLastSeen(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = id
}

// Save writes the session file. It is a no-op for in-memory sessions.
func (s *Session) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// Unlock releases the file lock and saves.
func (s *Session) Unlock() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked = false
	return s.saveLocked()
}

func (s *Session) saveLocked() error {
	if s.path == "" {
		return nil
	}
	values := map[string]string{
		keyToken:    s.token,
		keyUsername: s.username,
		keyRoom:     s.room,
		keyLastSeen: strconv.Itoa(s.lastSeen),
		keyLocked:   strconv.FormatBool(s.locked),
	}
	if err := godotenv.Write(values, s.path); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}
