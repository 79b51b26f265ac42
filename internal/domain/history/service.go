package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/medassist/internal/domain/profile"
	"github.com/ehr/medassist/internal/platform/observe"
)

// EventType names a change to the history.
type EventType string

const (
	EventEntryCreated EventType = "entry.created"
	EventEntryUpdated EventType = "entry.updated"
	EventEntryDeleted EventType = "entry.deleted"
	EventHistoryReset EventType = "history.reset"
)

// Event describes one change. Entry is nil for EventHistoryReset.
type Event struct {
	Type      EventType `json:"type"`
	ProfileID string    `json:"profile_id,omitempty"`
	Entry     *Entry    `json:"entry,omitempty"`
}

// Publisher receives history events after the change is applied.
type Publisher interface {
	PublishHistoryEvent(ctx context.Context, ev Event)
}

type Config struct {
	CountMode CountMode
	Publisher Publisher
	Metrics   *observe.Metrics
	Logger    zerolog.Logger
}

// Service is the document history tracker.
type Service struct {
	repo Repository
	cfg  Config
}

func NewService(repo Repository, cfg Config) *Service {
	if cfg.CountMode == "" {
		cfg.CountMode = CountByGroup
	}
	return &Service{repo: repo, cfg: cfg}
}

// Create appends a new entry. The profile id must be a valid insurance
// number; an empty status defaults to open. Title and content are not
// validated.
func (s *Service) Create(ctx context.Context, in NewEntry) (*Entry, error) {
	if err := profile.ValidateInsuranceNumber(in.ProfileID); err != nil {
		return nil, fmt.Errorf("profile_id: %w", err)
	}
	if in.Status == "" {
		in.Status = StatusOpen
	}
	if !in.Status.Valid() {
		return nil, fmt.Errorf("invalid status: %s", in.Status)
	}

	e := &Entry{
		ProfileID: in.ProfileID,
		Title:     in.Title,
		Content:   in.Content,
		Status:    in.Status,
		PairID:    in.PairID,
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, err
	}

	s.cfg.Metrics.RecordEntryCreated(ctx, string(e.Title), string(e.Status))
	s.publish(ctx, Event{Type: EventEntryCreated, ProfileID: e.ProfileID, Entry: e})
	return e, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.repo.GetByID(ctx, id)
}

// Update replaces content and status of entry id. Unknown ids are a silent
// no-op reported as (nil, false, nil).
func (s *Service) Update(ctx context.Context, id uuid.UUID, content string, status Status) (*Entry, bool, error) {
	if !status.Valid() {
		return nil, false, fmt.Errorf("invalid status: %s", status)
	}
	e, err := s.repo.Update(ctx, id, content, status)
	if errors.Is(err, ErrNotFound) {
		s.cfg.Logger.Debug().Str("entry_id", id.String()).Msg("update of unknown entry ignored")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	s.cfg.Metrics.RecordStatusUpdate(ctx, string(status))
	s.publish(ctx, Event{Type: EventEntryUpdated, ProfileID: e.ProfileID, Entry: e})
	return e, true, nil
}

// Delete removes entry id; unknown ids are ignored.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	e, err := s.repo.Delete(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	s.cfg.Metrics.RecordEntriesDeleted(ctx, "single", 1)
	s.publish(ctx, Event{Type: EventEntryDeleted, ProfileID: e.ProfileID, Entry: e})
	return nil
}

// DeleteAllOpen removes every open entry of every profile and returns how
// many were removed.
func (s *Service) DeleteAllOpen(ctx context.Context) (int, error) {
	removed, err := s.repo.DeleteByStatus(ctx, StatusOpen)
	if err != nil {
		return 0, err
	}
	s.cfg.Metrics.RecordEntriesDeleted(ctx, "bulk_open", len(removed))
	for _, e := range removed {
		s.publish(ctx, Event{Type: EventEntryDeleted, ProfileID: e.ProfileID, Entry: e})
	}
	return len(removed), nil
}

// ListGrouped returns the profile's entries passing filter, grouped by pair
// and ordered newest group first.
func (s *Service) ListGrouped(ctx context.Context, profileID string, filter StatusFilter) ([]Group, error) {
	entries, err := s.repo.List(ctx, profileID, filter)
	if err != nil {
		return nil, err
	}
	return GroupEntries(entries), nil
}

// Counts tallies the whole collection, regardless of profile, using the
// configured CountMode.
func (s *Service) Counts(ctx context.Context) (Counts, error) {
	entries, err := s.repo.All(ctx)
	if err != nil {
		return Counts{}, err
	}
	return CountEntries(entries, s.cfg.CountMode), nil
}

// CountMode reports the tally mode in use.
func (s *Service) CountMode() CountMode {
	return s.cfg.CountMode
}

// Reset drops every entry.
func (s *Service) Reset(ctx context.Context) error {
	n, err := s.repo.Reset(ctx)
	if err != nil {
		return err
	}
	s.cfg.Metrics.RecordEntriesDeleted(ctx, "reset", n)
	s.publish(ctx, Event{Type: EventHistoryReset})
	return nil
}

func (s *Service) publish(ctx context.Context, ev Event) {
	if s.cfg.Publisher == nil {
		return
	}
	s.cfg.Publisher.PublishHistoryEvent(ctx, ev)
}
