package profile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/medassist/internal/platform/mockdata"
	"github.com/ehr/medassist/internal/platform/observe"
)

// HistoryResetter clears the document history when the profile changes.
// next is the session about to become active.
type HistoryResetter interface {
	ResetHistory(ctx context.Context, next *Session) error
}

// Config controls Selector behaviour.
type Config struct {
	// ResetHistoryOnChange clears the history on every activation.
	ResetHistoryOnChange bool
	Logger               zerolog.Logger
	Metrics              *observe.Metrics
}

// Selector validates insurance numbers and holds the active session.
type Selector struct {
	gen     *mockdata.Generator
	history HistoryResetter
	cfg     Config

	// switchMu serializes activations so a reset and the session swap
	// that follows it are never interleaved with another activation.
	switchMu sync.Mutex
	mu       sync.RWMutex
	active   *Session
	now    func() time.Time
}

func NewSelector(gen *mockdata.Generator, history HistoryResetter, cfg Config) *Selector {
	return &Selector{
		gen:     gen,
		history: history,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Activate validates number, generates fresh patient and lab data and makes
// the result the active session. On validation failure nothing changes.
func (s *Selector) Activate(ctx context.Context, number string) (*Session, error) {
	if err := ValidateInsuranceNumber(number); err != nil {
		return nil, err
	}

	patient := s.gen.GeneratePatient(number)
	sess := &Session{
		Profile: Profile{
			Name:            patient.Name,
			InsuranceNumber: number,
		},
		Patient:     patient,
		Labs:        s.gen.GenerateLabs(),
		ActivatedAt: s.now().UTC(),
	}

	s.switchMu.Lock()
	defer s.switchMu.Unlock()

	if s.cfg.ResetHistoryOnChange && s.history != nil {
		if err := s.history.ResetHistory(ctx, sess); err != nil {
			return nil, fmt.Errorf("reset history: %w", err)
		}
	}

	s.mu.Lock()
	s.active = sess
	s.mu.Unlock()

	s.cfg.Metrics.RecordProfileActivation(ctx)
	s.cfg.Logger.Info().
		Str("insurance_number", number).
		Str("name", patient.Name).
		Msg("profile activated")

	return sess, nil
}

// Active returns the current session or ErrNoActiveProfile.
func (s *Selector) Active() (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return nil, ErrNoActiveProfile
	}
	return s.active, nil
}
