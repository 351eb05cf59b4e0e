package room

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Policy decides what entering an unknown room does.
type Policy string

const (
	PolicyReject Policy = "reject"
	PolicyCreate Policy = "create"
)

var (
	ErrNoRoom      = errors.New("room: no such room")
	ErrRoomExists  = errors.New("room: already exists")
	ErrInvalidName = errors.New("room: invalid name")
)

var namePattern = regexp.MustCompile(`^[^,*\x00-\x1f]{1,64}$`)

// Options configure a Registry.
type Options struct {
	Policy    Policy
	History   int
	Responder Responder
}

// Registry maps room names to rooms. Rooms live until the registry's
// context ends.
type Registry struct {
	ctx  context.Context
	opts Options

	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRegistry(ctx context.Context, opts Options) *Registry {
	if opts.Policy == "" {
		opts.Policy = PolicyReject
	}
	return &Registry{ctx: ctx, opts: opts, rooms: make(map[string]*Room)}
}

// Add creates a room.
func (reg *Registry) Add(name string, ai bool) (*Room, error) {
	if !validName(name) {
		return nil, ErrInvalidName
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, exists := reg.rooms[name]; exists {
		return nil, ErrRoomExists
	}
	r := newRoom(reg.ctx, name, ai, reg.opts.History, reg.opts.Responder)
	reg.rooms[name] = r
	return r, nil
}

func (reg *Registry) Get(name string) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.rooms[name]
	return r, ok
}

// Open returns the named room, creating it when the policy allows.
func (reg *Registry) Open(name string) (*Room, error) {
	if r, ok := reg.Get(name); ok {
		return r, nil
	}
	if reg.opts.Policy != PolicyCreate {
		return nil, ErrNoRoom
	}
	r, err := reg.Add(name, false)
	if errors.Is(err, ErrRoomExists) {
		r, _ = reg.Get(name)
		return r, nil
	}
	return r, err
}

// List returns every room sorted by name.
func (reg *Registry) List() []*Room {
	reg.mu.RLock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		rooms = append(rooms, r)
	}
	reg.mu.RUnlock()

	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].name < rooms[j].name
	})
	return rooms
}

// Listing renders the room list carried by an ok ROOMS unit. AI rooms are
// marked with a trailing '*'.
func (reg *Registry) Listing() string {
	rooms := reg.List()
	names := make([]string, 0, len(rooms))
	for _, r := range rooms {
		if r.ai {
			names = append(names, r.name+"*")
		} else {
			names = append(names, r.name)
		}
	}
	return strings.Join(names, ",")
}

func validName(name string) bool {
	return namePattern.MatchString(name) && strings.TrimSpace(name) == name
}
