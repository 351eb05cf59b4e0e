package stats

import (
	"sort"
	"sync"
	"time"
)

// Stats tracks server activity with thread-safe access.
type Stats struct {
	mu sync.RWMutex

	totalConns int64
	openConns  int64
	totalUnits int64
	messages   int64
	authOK     int64
	authFailed int64

	// Ring buffer of unit handling times (for percentile calculations)
	handleTimes []time.Duration
	maxSamples  int

	startTime time.Time
}

// Snapshot represents a point-in-time view of statistics.
type Snapshot struct {
	TotalConnections int64 `json:"total_connections"`
	OpenConnections  int64 `json:"open_connections"`
	TotalUnits       int64 `json:"total_units"`
	Messages         int64 `json:"messages"`
	AuthSucceeded    int64 `json:"auth_succeeded"`
	AuthFailed       int64 `json:"auth_failed"`

	// Unit handling time metrics
	P50 time.Duration `json:"p50_ns"`
	P90 time.Duration `json:"p90_ns"`

	Uptime time.Duration `json:"uptime_ns"`
}

// New creates a new Stats tracker.
func New() *Stats {
	return NewWithOptions(1000)
}

// NewWithOptions creates a Stats tracker keeping maxSamples handling times.
func NewWithOptions(maxSamples int) *Stats {
	if maxSamples <= 0 {
		maxSamples = 1000
	}
	return &Stats{
		handleTimes: make([]time.Duration, 0, maxSamples),
		maxSamples:  maxSamples,
		startTime:   time.Now(),
	}
}

// IncrementConnections increments the connection counters.
func (s *Stats) IncrementConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalConns++
	s.openConns++
}

// DecrementOpenConnections decrements the open connection counter.
func (s *Stats) DecrementOpenConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openConns > 0 {
		s.openConns--
	}
}

// RecordUnit records one handled unit and how long handling took.
func (s *Stats) RecordUnit(duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalUnits++
	if len(s.handleTimes) >= s.maxSamples {
		// Shift left, drop oldest
		copy(s.handleTimes, s.handleTimes[1:])
		s.handleTimes = s.handleTimes[:len(s.handleTimes)-1]
	}
	s.handleTimes = append(s.handleTimes, duration)
}

// RecordMessage counts a message posted to a room.
func (s *Stats) RecordMessage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages++
}

// RecordAuth counts an authentication attempt.
func (s *Stats) RecordAuth(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ok {
		s.authOK++
	} else {
		s.authFailed++
	}
}

// Snapshot returns a point-in-time view of all statistics.
func (s *Stats) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		TotalConnections: s.totalConns,
		OpenConnections:  s.openConns,
		TotalUnits:       s.totalUnits,
		Messages:         s.messages,
		AuthSucceeded:    s.authOK,
		AuthFailed:       s.authFailed,
		Uptime:           time.Since(s.startTime),
	}

	n := len(s.handleTimes)
	if n == 0 {
		return snap
	}

	sorted := make([]time.Duration, n)
	copy(sorted, s.handleTimes)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	snap.P50 = sorted[n/2]
	p90Index := int(float64(n) * 0.9)
	if p90Index >= n {
		p90Index = n - 1
	}
	snap.P90 = sorted[p90Index]

	return snap
}
