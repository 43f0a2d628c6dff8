package store

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Fetch statuses
const (
	StatusPending    = "pending"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusSuperseded = "superseded"
)

// FetchRecord describes one list fetch
type FetchRecord struct {
	ID          string     `json:"id"`
	Resource    string     `json:"resource"`
	Status      string     `json:"status"`
	Rows        int        `json:"rows"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`

	seq uint64
}

// History is a thread-safe ring buffer of fetch records
type History struct {
	mu      sync.RWMutex
	entries []FetchRecord
	cap     int
}

// NewHistory creates a fetch history with the given capacity
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 50
	}
	return &History{
		entries: make([]FetchRecord, 0, capacity),
		cap:     capacity,
	}
}

// Add records a pending fetch and returns its ID
func (h *History) Add(resource string, seq uint64, at time.Time) string {
	rec := FetchRecord{
		ID:        uuid.NewString(),
		Resource:  resource,
		Status:    StatusPending,
		StartedAt: at,
		seq:       seq,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.entries) >= h.cap {
		copy(h.entries, h.entries[1:])
		h.entries[len(h.entries)-1] = rec
	} else {
		h.entries = append(h.entries, rec)
	}
	return rec.ID
}

// Entries returns all fetch records (newest first)
func (h *History) Entries() []FetchRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]FetchRecord, len(h.entries))
	for i, j := 0, len(h.entries)-1; j >= 0; i, j = i+1, j-1 {
		result[i] = h.entries[j]
	}
	return result
}

// Complete marks a fetch as applied to the store
func (h *History) Complete(seq uint64, rows int, at time.Time) {
	h.update(seq, func(r *FetchRecord) {
		r.Status = StatusCompleted
		r.Rows = rows
		r.CompletedAt = &at
	})
}

// Fail marks a fetch as failed unless it was already superseded
func (h *History) Fail(seq uint64, errMsg string, at time.Time) {
	h.update(seq, func(r *FetchRecord) {
		if r.Status == StatusSuperseded {
			return
		}
		r.Status = StatusFailed
		r.Error = errMsg
		r.CompletedAt = &at
	})
}

// Supersede marks the pending fetch of resource with seq as replaced
func (h *History) Supersede(resource string, seq uint64) {
	h.update(seq, func(r *FetchRecord) {
		if r.Resource == resource && r.Status == StatusPending {
			r.Status = StatusSuperseded
		}
	})
}

func (h *History) update(seq uint64, fn func(*FetchRecord)) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := len(h.entries) - 1; i >= 0; i-- {
		if h.entries[i].seq == seq {
			fn(&h.entries[i])
			return
		}
	}
}
