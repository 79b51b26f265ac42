package dictation

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ehr/medassist/internal/domain/history"
	"github.com/ehr/medassist/internal/domain/profile"
	"github.com/ehr/medassist/internal/platform/mockdata"
	"github.com/ehr/medassist/internal/platform/observe"
)

// EntryStore is the subset of the history tracker the simulator writes to.
type EntryStore interface {
	Create(ctx context.Context, in history.NewEntry) (*history.Entry, error)
	Update(ctx context.Context, id uuid.UUID, content string, status history.Status) (*history.Entry, bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Reset(ctx context.Context) error
}

// ScenarioPicker supplies the clinical case for a new dictation.
type ScenarioPicker interface {
	PickScenario() mockdata.Scenario
}

// Renderer turns the letter text into an exportable document.
type Renderer interface {
	Render(w io.Writer, title, text string) error
}

type Publisher interface {
	PublishDictationEvent(ctx context.Context, ev Event)
}

type Config struct {
	// Delay is the simulated processing time before a letter is ready.
	Delay     time.Duration
	QueueSize int
	Publisher Publisher
	Metrics   *observe.Metrics
	Logger    zerolog.Logger
}

type job struct {
	taskID  uuid.UUID
	session *profile.Session
}

// Simulator turns dictations into letters. Started tasks are queued and a
// single worker (Run) generates their letters one at a time, in order.
type Simulator struct {
	store     EntryStore
	scenarios ScenarioPicker
	renderer  Renderer
	cfg       Config
	queue     chan job
	now       func() time.Time

	// resetMu is held for writing while the history is reset and for
	// reading around every store write made on behalf of a task.
	resetMu sync.RWMutex
	current *profile.Session

	mu    sync.RWMutex
	tasks map[uuid.UUID]*Task
}

func NewSimulator(store EntryStore, scenarios ScenarioPicker, renderer Renderer, cfg Config) *Simulator {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	return &Simulator{
		store:     store,
		scenarios: scenarios,
		renderer:  renderer,
		cfg:       cfg,
		queue:     make(chan job, cfg.QueueSize),
		now:       time.Now,
		tasks:     make(map[uuid.UUID]*Task),
	}
}

// Start records the dictation for the given session and queues letter
// generation. The dictation entry exists in the history as soon as Start
// returns.
func (s *Simulator) Start(ctx context.Context, sess *profile.Session) (*Task, error) {
	if sess == nil {
		return nil, profile.ErrNoActiveProfile
	}
	number := sess.Profile.InsuranceNumber
	sc := s.scenarios.PickScenario()
	text, err := DictationText(number, sc)
	if err != nil {
		return nil, fmt.Errorf("render dictation: %w", err)
	}

	t := &Task{
		ID:            uuid.New(),
		PairID:        uuid.New(),
		ProfileID:     number,
		State:         StateIdle,
		DictationText: text,
		Scenario:      sc,
		StartedAt:     s.now().UTC(),
	}

	s.resetMu.RLock()
	defer s.resetMu.RUnlock()
	if s.current != nil && s.current != sess {
		return nil, ErrProfileChanged
	}

	pair := t.PairID
	entry, err := s.store.Create(ctx, history.NewEntry{
		ProfileID: number,
		Title:     history.TitleDictation,
		Content:   text,
		Status:    history.StatusOpen,
		PairID:    &pair,
	})
	if err != nil {
		return nil, fmt.Errorf("store dictation: %w", err)
	}
	t.DictationEntryID = entry.ID
	t.State = StateDrafting

	// The worker must not see the task before it is marked generating.
	s.mu.Lock()
	s.tasks[t.ID] = t
	select {
	case s.queue <- job{taskID: t.ID, session: sess}:
		t.State = StateGenerating
		s.mu.Unlock()
	default:
		delete(s.tasks, t.ID)
		s.mu.Unlock()
		if err := s.store.Delete(ctx, entry.ID); err != nil {
			s.cfg.Logger.Warn().Err(err).Str("entry_id", entry.ID.String()).Msg("rollback of dictation entry failed")
		}
		return nil, ErrQueueFull
	}

	s.cfg.Metrics.AddQueueDepth(ctx, 1)
	s.cfg.Logger.Info().
		Str("task_id", t.ID.String()).
		Str("insurance_number", number).
		Msg("dictation queued")

	return s.Get(t.ID)
}

// Run processes queued tasks until ctx is cancelled. Tasks still waiting
// when Run returns are marked failed.
func (s *Simulator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			s.drain()
			return nil
		case j := <-s.queue:
			s.cfg.Metrics.AddQueueDepth(ctx, -1)
			s.process(ctx, j)
		}
	}
}

func (s *Simulator) drain() {
	for {
		select {
		case j := <-s.queue:
			s.cfg.Metrics.AddQueueDepth(context.Background(), -1)
			s.fail(context.Background(), j.taskID, "shutdown")
		default:
			return
		}
	}
}

func (s *Simulator) process(ctx context.Context, j job) {
	if s.cfg.Delay > 0 {
		timer := time.NewTimer(s.cfg.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.fail(context.Background(), j.taskID, "shutdown")
			return
		case <-timer.C:
		}
	}

	ctx, span := observe.StartSpan(ctx, "dictation.generate_letter",
		trace.WithAttributes(attribute.String("task_id", j.taskID.String())))
	defer span.End()

	s.resetMu.RLock()
	defer s.resetMu.RUnlock()

	// A history reset while the task waited has already failed it.
	s.mu.RLock()
	t, ok := s.tasks[j.taskID]
	var (
		pair   uuid.UUID
		sc     mockdata.Scenario
		number string
	)
	if ok {
		ok = t.State == StateGenerating
		pair, sc, number = t.PairID, t.Scenario, t.ProfileID
	}
	s.mu.RUnlock()
	if !ok {
		return
	}

	text, err := LetterText(number, j.session.Patient, sc)
	if err != nil {
		s.fail(ctx, j.taskID, fmt.Sprintf("render letter: %v", err))
		return
	}
	entry, err := s.store.Create(ctx, history.NewEntry{
		ProfileID: number,
		Title:     history.TitleLetter,
		Content:   text,
		Status:    history.StatusOpen,
		PairID:    &pair,
	})
	if err != nil {
		s.fail(ctx, j.taskID, fmt.Sprintf("store letter: %v", err))
		return
	}

	now := s.now().UTC()
	s.mu.Lock()
	t.LetterEntryID = &entry.ID
	t.LetterText = text
	t.State = StateReady
	t.ReadyAt = &now
	snapshot := t.clone()
	s.mu.Unlock()

	s.cfg.Metrics.RecordDictation(ctx, now.Sub(snapshot.StartedAt).Seconds(), string(StateReady))
	s.cfg.Logger.Info().Str("task_id", snapshot.ID.String()).Msg("letter ready")
	s.publish(ctx, Event{Type: EventReady, Task: snapshot})
}

func (s *Simulator) fail(ctx context.Context, id uuid.UUID, reason string) {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	t.State = StateFailed
	t.Error = reason
	snapshot := t.clone()
	s.mu.Unlock()

	s.cfg.Metrics.RecordDictation(ctx, s.now().Sub(snapshot.StartedAt).Seconds(), string(StateFailed))
	s.cfg.Logger.Error().Str("task_id", id.String()).Str("reason", reason).Msg("dictation failed")
	s.publish(ctx, Event{Type: EventFailed, Task: snapshot})
}

// ResetHistory clears the history and fails every task started before the
// reset, so letters for a previous profile never reach the new history.
// Only sessions equal to next may start dictations afterwards.
func (s *Simulator) ResetHistory(ctx context.Context, next *profile.Session) error {
	s.resetMu.Lock()
	defer s.resetMu.Unlock()

	if err := s.store.Reset(ctx); err != nil {
		return err
	}
	s.current = next

	s.mu.RLock()
	stale := make([]uuid.UUID, 0, len(s.tasks))
	for id, t := range s.tasks {
		if t.State != StateFailed {
			stale = append(stale, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range stale {
		s.fail(ctx, id, "history reset")
	}
	return nil
}

// Get returns a snapshot of task id.
func (s *Simulator) Get(id uuid.UUID) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return t.clone(), nil
}

// ready returns a snapshot of a ready task.
func (s *Simulator) ready(id uuid.UUID) (*Task, error) {
	t, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if t.State != StateReady {
		return nil, ErrNotReady
	}
	return t, nil
}

// Save marks the dictation and its letter saved.
func (s *Simulator) Save(ctx context.Context, id uuid.UUID) (*Task, error) {
	return s.setPairStatus(ctx, id, history.StatusSaved)
}

// Send marks the dictation and its letter sent.
func (s *Simulator) Send(ctx context.Context, id uuid.UUID) (*Task, error) {
	return s.setPairStatus(ctx, id, history.StatusSent)
}

func (s *Simulator) setPairStatus(ctx context.Context, id uuid.UUID, status history.Status) (*Task, error) {
	s.resetMu.RLock()
	defer s.resetMu.RUnlock()

	t, err := s.ready(id)
	if err != nil {
		return nil, err
	}
	if err := s.update(ctx, t.DictationEntryID, t.DictationText, status); err != nil {
		return nil, err
	}
	if err := s.update(ctx, *t.LetterEntryID, t.LetterText, status); err != nil {
		return nil, err
	}
	s.cfg.Logger.Info().Str("task_id", id.String()).Str("status", string(status)).Msg("letter status changed")
	return t, nil
}

// Edit replaces the letter text. The letter entry goes back to open.
func (s *Simulator) Edit(ctx context.Context, id uuid.UUID, text string) (*Task, error) {
	s.resetMu.RLock()
	defer s.resetMu.RUnlock()

	if _, err := s.ready(id); err != nil {
		return nil, err
	}

	s.mu.Lock()
	t := s.tasks[id]
	t.LetterText = text
	snapshot := t.clone()
	s.mu.Unlock()

	if err := s.update(ctx, *snapshot.LetterEntryID, text, history.StatusOpen); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// update writes one entry of a task and reports ErrEntryMissing when the
// entry was deleted from the history in the meantime.
func (s *Simulator) update(ctx context.Context, id uuid.UUID, content string, status history.Status) error {
	_, found, err := s.store.Update(ctx, id, content, status)
	if err != nil {
		return err
	}
	if !found {
		return ErrEntryMissing
	}
	return nil
}

// Export writes the current letter text as a document to w.
func (s *Simulator) Export(id uuid.UUID, w io.Writer) error {
	t, err := s.ready(id)
	if err != nil {
		return err
	}
	return s.renderer.Render(w, "Arztbrief", t.LetterText)
}

func (s *Simulator) publish(ctx context.Context, ev Event) {
	if s.cfg.Publisher == nil {
		return
	}
	s.cfg.Publisher.PublishDictationEvent(ctx, ev)
}
