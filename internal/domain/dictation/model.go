package dictation

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/medassist/internal/platform/mockdata"
)

var (
	ErrTaskNotFound = errors.New("dictation not found")
	// ErrNotReady is returned by Save, Send, Edit and Export before the
	// letter has been generated.
	ErrNotReady  = errors.New("letter not ready")
	ErrQueueFull = errors.New("dictation queue is full")
	// ErrProfileChanged rejects a start for a session that is no longer
	// the active one.
	ErrProfileChanged = errors.New("active profile changed")
	ErrEntryMissing   = errors.New("history entry no longer exists")
)

// State is the lifecycle of one dictation task.
type State string

const (
	StateIdle       State = "idle"
	StateDrafting   State = "drafting"
	StateGenerating State = "generating"
	StateReady      State = "ready"
	StateFailed     State = "failed"
)

// Task is one dictation and the letter generated from it. Each task owns its
// pair id and entry ids, so overlapping dictations never share state.
type Task struct {
	ID               uuid.UUID         `json:"id"`
	PairID           uuid.UUID         `json:"pair_id"`
	ProfileID        string            `json:"profile_id"`
	State            State             `json:"state"`
	DictationEntryID uuid.UUID         `json:"dictation_entry_id"`
	LetterEntryID    *uuid.UUID        `json:"letter_entry_id,omitempty"`
	DictationText    string            `json:"dictation_text"`
	LetterText       string            `json:"letter_text,omitempty"`
	Scenario         mockdata.Scenario `json:"scenario"`
	Error            string            `json:"error,omitempty"`
	StartedAt        time.Time         `json:"started_at"`
	ReadyAt          *time.Time        `json:"ready_at,omitempty"`
}

func (t *Task) clone() *Task {
	c := *t
	if t.LetterEntryID != nil {
		id := *t.LetterEntryID
		c.LetterEntryID = &id
	}
	if t.ReadyAt != nil {
		ts := *t.ReadyAt
		c.ReadyAt = &ts
	}
	return &c
}

// EventType names a dictation lifecycle change.
type EventType string

const (
	EventReady  EventType = "dictation.ready"
	EventFailed EventType = "dictation.failed"
)

type Event struct {
	Type EventType `json:"type"`
	Task *Task     `json:"task"`
}
