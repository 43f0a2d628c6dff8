// Package store keeps the last-fetched list of every resource type and
// decides which of several overlapping fetches may update it.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/jetsetgo/warehouse-console/internal/records"
)

// Entry is the cached list of one resource.
type Entry struct {
	Resource  string        `json:"resource"`
	Rows      []records.Row `json:"rows"`
	FetchedAt time.Time     `json:"fetched_at"`
}

// Ticket identifies one fetch.
type Ticket struct {
	Resource string
	ID       string
	seq      uint64
}

type inflight struct {
	seq    uint64
	cancel context.CancelFunc
}

// Store is a thread-safe cache keyed by resource type. Within a resource the
// newest fetch wins: starting a fetch cancels the previous one, and only the
// newest ticket may apply its result.
type Store struct {
	mu       sync.RWMutex
	entries  map[string]Entry
	inflight map[string]inflight
	seq      uint64
	history  *History
	now      func() time.Time
}

// New creates an empty store with a fetch history of the given capacity.
func New(historySize int) *Store {
	return &Store{
		entries:  make(map[string]Entry),
		inflight: make(map[string]inflight),
		history:  NewHistory(historySize),
		now:      time.Now,
	}
}

// Begin starts a fetch of resource, cancelling the one in flight. The
// returned context is cancelled when a newer fetch starts or Finish runs.
func (s *Store) Begin(ctx context.Context, resource string) (context.Context, Ticket) {
	fetchCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.seq++
	t := Ticket{Resource: resource, seq: s.seq}
	prev, busy := s.inflight[resource]
	s.inflight[resource] = inflight{seq: t.seq, cancel: cancel}
	if busy {
		s.history.Supersede(resource, prev.seq)
	}
	t.ID = s.history.Add(resource, t.seq, s.now())
	s.mu.Unlock()

	if busy {
		prev.cancel()
	}
	return fetchCtx, t
}

// Current reports whether t is still the newest fetch of its resource.
func (s *Store) Current(t Ticket) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.inflight[t.Resource]
	return ok && f.seq == t.seq
}

// Apply stores rows when t is still current and reports whether it did.
func (s *Store) Apply(t Ticket, rows []records.Row) bool {
	s.mu.Lock()
	f, ok := s.inflight[t.Resource]
	if !ok || f.seq != t.seq {
		s.mu.Unlock()
		return false
	}
	if rows == nil {
		rows = []records.Row{}
	}
	now := s.now()
	s.entries[t.Resource] = Entry{Resource: t.Resource, Rows: rows, FetchedAt: now}
	s.mu.Unlock()

	s.history.Complete(t.seq, len(rows), now)
	return true
}

// Finish ends the fetch. A failed fetch records errMsg; the cached list is
// left as it was.
func (s *Store) Finish(t Ticket, errMsg string) {
	s.mu.Lock()
	f, ok := s.inflight[t.Resource]
	if ok && f.seq == t.seq {
		delete(s.inflight, t.Resource)
	}
	s.mu.Unlock()

	if ok && f.seq == t.seq {
		f.cancel()
	}
	if errMsg != "" {
		s.history.Fail(t.seq, errMsg, s.now())
	}
}

// Get returns the cached entry for resource.
func (s *Store) Get(resource string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[resource]
	return e, ok
}

// Rows returns the cached rows for resource, nil when never fetched.
func (s *Store) Rows(resource string) []records.Row {
	e, _ := s.Get(resource)
	return e.Rows
}

// Clear drops every cached list and cancels fetches in flight.
func (s *Store) Clear() {
	s.mu.Lock()
	pending := s.inflight
	s.inflight = make(map[string]inflight)
	s.entries = make(map[string]Entry)
	s.mu.Unlock()

	for _, f := range pending {
		f.cancel()
	}
}

// History returns the fetch log.
func (s *Store) History() *History {
	return s.history
}
