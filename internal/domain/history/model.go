package history

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle marker of an Entry.
type Status string

const (
	StatusOpen  Status = "open"
	StatusSaved Status = "saved"
	StatusSent  Status = "sent"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusSaved, StatusSent:
		return true
	}
	return false
}

// ParseStatus converts s into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("invalid status: %s", s)
	}
	return st, nil
}

// Title categorizes an entry.
type Title string

const (
	TitleDictation Title = "dictation"
	TitleLetter    Title = "letter"
)

// StatusFilter selects entries by status. FilterAll matches every entry.
type StatusFilter string

const FilterAll StatusFilter = "all"

// ParseFilter accepts "all", a status, or the empty string (same as "all").
func ParseFilter(s string) (StatusFilter, error) {
	if s == "" || s == string(FilterAll) {
		return FilterAll, nil
	}
	if _, err := ParseStatus(s); err != nil {
		return "", fmt.Errorf("invalid status filter: %s", s)
	}
	return StatusFilter(s), nil
}

// Matches reports whether an entry with status st passes the filter.
func (f StatusFilter) Matches(st Status) bool {
	return f == FilterAll || Status(f) == st
}

// Entry is one stored document: a dictation transcript or a generated letter.
type Entry struct {
	ID        uuid.UUID  `json:"id"`
	Seq       uint64     `json:"seq"`
	ProfileID string     `json:"profile_id"`
	Title     Title      `json:"title"`
	Content   string     `json:"content"`
	Status    Status     `json:"status"`
	PairID    *uuid.UUID `json:"pair_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// GroupKey is the pair id, or the entry's own id for unpaired entries.
func (e *Entry) GroupKey() uuid.UUID {
	if e.PairID != nil {
		return *e.PairID
	}
	return e.ID
}

func (e *Entry) clone() *Entry {
	c := *e
	if e.PairID != nil {
		pid := *e.PairID
		c.PairID = &pid
	}
	return &c
}

// NewEntry carries the caller-supplied fields of a new Entry.
type NewEntry struct {
	ProfileID string     `json:"profile_id"`
	Title     Title      `json:"title"`
	Content   string     `json:"content"`
	Status    Status     `json:"status"`
	PairID    *uuid.UUID `json:"pair_id,omitempty"`
}

// Group is the set of entries sharing a group key, in creation order.
type Group struct {
	Key     uuid.UUID `json:"key"`
	Status  Status    `json:"status"`
	Entries []*Entry  `json:"entries"`
}

// Counts is the dashboard tally per status.
type Counts struct {
	Open  int `json:"open"`
	Saved int `json:"saved"`
	Sent  int `json:"sent"`
}

func (c *Counts) add(st Status) {
	switch st {
	case StatusOpen:
		c.Open++
	case StatusSaved:
		c.Saved++
	case StatusSent:
		c.Sent++
	}
}

// CountMode selects how Counts tallies the collection.
type CountMode string

const (
	// CountByGroup tallies one status per group, so a dictation and its
	// letter count once.
	CountByGroup CountMode = "group"
	// CountByEntry tallies every entry separately.
	CountByEntry CountMode = "entry"
)

// ParseCountMode converts s into a CountMode. The empty string selects
// CountByGroup.
func ParseCountMode(s string) (CountMode, error) {
	switch CountMode(s) {
	case "", CountByGroup:
		return CountByGroup, nil
	case CountByEntry:
		return CountByEntry, nil
	}
	return "", fmt.Errorf("invalid count mode: %s", s)
}
