package history

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is the process-lifetime Repository. Entries are kept in a slice
// in creation order; all access goes through one RWMutex so every operation
// is atomic with respect to concurrent requests. Returned entries are copies.
type MemoryRepo struct {
	mu      sync.RWMutex
	entries []*Entry
	seq     uint64
	now     func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{now: time.Now}
}

// WithClock replaces the time source. Intended for tests.
func (r *MemoryRepo) WithClock(now func() time.Time) *MemoryRepo {
	r.now = now
	return r
}

func (r *MemoryRepo) Create(_ context.Context, e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	ts := r.now().UTC()
	e.ID = uuid.New()
	e.Seq = r.seq
	e.CreatedAt = ts
	e.UpdatedAt = ts
	r.entries = append(r.entries, e.clone())
	return nil
}

func (r *MemoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.indexOf(id); i >= 0 {
		return r.entries[i].clone(), nil
	}
	return nil, ErrNotFound
}

func (r *MemoryRepo) Update(_ context.Context, id uuid.UUID, content string, status Status) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	e := r.entries[i]
	e.Content = content
	e.Status = status
	// UpdatedAt never moves backwards, even if the wall clock does.
	if ts := r.now().UTC(); ts.After(e.UpdatedAt) {
		e.UpdatedAt = ts
	}
	return e.clone(), nil
}

func (r *MemoryRepo) Delete(_ context.Context, id uuid.UUID) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	removed := r.entries[i]
	r.entries = append(r.entries[:i], r.entries[i+1:]...)
	return removed, nil
}

func (r *MemoryRepo) DeleteByStatus(_ context.Context, status Status) ([]*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []*Entry
	kept := r.entries[:0]
	for _, e := range r.entries {
		if e.Status == status {
			removed = append(removed, e)
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(r.entries); i++ {
		r.entries[i] = nil
	}
	r.entries = kept
	return removed, nil
}

func (r *MemoryRepo) List(_ context.Context, profileID string, filter StatusFilter) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Entry
	if profileID == "" {
		return out, nil
	}
	for _, e := range r.entries {
		if e.ProfileID == profileID && filter.Matches(e.Status) {
			out = append(out, e.clone())
		}
	}
	return out, nil
}

func (r *MemoryRepo) All(_ context.Context) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Entry, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.clone()
	}
	return out, nil
}

// Reset drops every entry. The sequence keeps counting so ordering stays
// monotonic across resets.
func (r *MemoryRepo) Reset(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.entries)
	r.entries = nil
	return n, nil
}

func (r *MemoryRepo) indexOf(id uuid.UUID) int {
	for i, e := range r.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}
