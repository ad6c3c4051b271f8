package intake

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/log"
)

type SchedulerState int

const (
	StateIdle SchedulerState = iota
	StatePendingCreate
	StateActive
	StateStopped
)

func (s SchedulerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePendingCreate:
		return "pending_create"
	case StateActive:
		return "active"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

var (
	ErrSchedulerStopped = errors.New("autosave stopped")
	ErrCreatePending    = errors.New("form creation already in flight")
)

type SchedulerConfig struct {
	ClientID       int64
	FormType       string
	Debounce       time.Duration
	Interval       time.Duration
	RequestTimeout time.Duration
	Clock          Clock
	Revisions      *Revisions
	// Snapshot returns the non-empty answers to flush.
	Snapshot func() []AnswerRecord
	// OnFormID is called once the server allocates a form.
	OnFormID func(formID int64)
}

// Scheduler allocates the server form after a debounce window and then flushes
// answers on a fixed interval. Failures are logged and retried by the next
// debounce or tick.
type Scheduler struct {
	writer FormWriter
	cfg    SchedulerConfig

	mu       sync.Mutex
	state    SchedulerState
	formID   int64
	creating bool
	debounce Timer
	tick     Timer
}

func NewScheduler(writer FormWriter, cfg SchedulerConfig) *Scheduler {
	if cfg.Clock == nil {
		cfg.Clock = RealClock()
	}
	if cfg.Revisions == nil {
		cfg.Revisions = NewRevisions(cfg.Clock)
	}
	if cfg.FormType == "" {
		cfg.FormType = FormTypeIntake
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	if cfg.Snapshot == nil {
		cfg.Snapshot = func() []AnswerRecord { return nil }
	}
	if cfg.OnFormID == nil {
		cfg.OnFormID = func(int64) {}
	}
	return &Scheduler{writer: writer, cfg: cfg, state: StateStopped}
}

// Start arms the scheduler. With a known form id it goes straight to Active.
func (s *Scheduler) Start(formID *int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimersLocked()
	if formID != nil {
		s.formID = *formID
		s.state = StateActive
		s.armTickLocked()
		return
	}
	s.formID = 0
	s.state = StateIdle
}

func (s *Scheduler) State() SchedulerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) FormID() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.formID, s.formID != 0
}

// Touch records an answer edit. Before a form exists it (re)starts the debounce timer.
func (s *Scheduler) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateIdle, StatePendingCreate:
		if s.creating {
			return
		}
		if s.debounce != nil {
			s.debounce.Stop()
		}
		s.state = StatePendingCreate
		s.debounce = s.cfg.Clock.AfterFunc(s.cfg.Debounce, s.create)
	}
}

// Stop clears both timers. Requests already in flight are allowed to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimersLocked()
	s.state = StateStopped
}

// Flush writes the current answers now, allocating the form first if needed.
func (s *Scheduler) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return ErrSchedulerStopped
	}
	var formID *int64
	if s.formID != 0 {
		id := s.formID
		formID = &id
	} else {
		if s.creating {
			s.mu.Unlock()
			return ErrCreatePending
		}
		if s.debounce != nil {
			s.debounce.Stop()
			s.debounce = nil
		}
		s.creating = true
	}
	s.mu.Unlock()

	records := s.cfg.Snapshot()
	allocated, err := s.writer.AutoSave(ctx, AutoSaveRequest{
		ClientID: s.cfg.ClientID,
		FormID:   formID,
		FormType: s.cfg.FormType,
		Answers:  records,
		Revision: s.cfg.Revisions.Next(),
	})

	if formID != nil {
		return err
	}

	s.mu.Lock()
	s.creating = false
	if err != nil {
		if s.state == StatePendingCreate {
			s.state = StateIdle
		}
		s.mu.Unlock()
		return err
	}
	adopted := s.becomeActiveLocked(allocated)
	s.mu.Unlock()
	if adopted {
		s.cfg.OnFormID(allocated)
	}
	return nil
}

func (s *Scheduler) create() {
	s.mu.Lock()
	if s.state != StatePendingCreate || s.creating {
		s.mu.Unlock()
		return
	}
	s.debounce = nil
	s.creating = true
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RequestTimeout)
	defer cancel()
	formID, err := s.writer.AddIntakeForm(ctx, s.cfg.ClientID, s.cfg.FormType)

	s.mu.Lock()
	s.creating = false
	if err != nil {
		if s.state == StatePendingCreate {
			s.state = StateIdle
		}
		s.mu.Unlock()
		log.WithFields(log.Fields{"client_id": s.cfg.ClientID}).WithError(err).Warn("intake: create form failed, will retry on next edit")
		return
	}
	adopted := s.becomeActiveLocked(formID)
	s.mu.Unlock()

	if !adopted {
		log.WithFields(log.Fields{"client_id": s.cfg.ClientID, "form_id": formID}).Warn("intake: late form allocation ignored, a form is already in use")
		return
	}
	log.WithFields(log.Fields{"client_id": s.cfg.ClientID, "form_id": formID}).Info("intake: form allocated")
	s.cfg.OnFormID(formID)
}

// becomeActiveLocked records an allocated form id unless one is already known,
// and reports whether it was adopted. A stopped scheduler arms nothing.
func (s *Scheduler) becomeActiveLocked(formID int64) bool {
	adopted := s.formID == 0
	if adopted {
		s.formID = formID
	}
	if s.state == StateStopped {
		return adopted
	}
	s.state = StateActive
	if s.tick == nil {
		s.armTickLocked()
	}
	return adopted
}

func (s *Scheduler) armTickLocked() {
	s.tick = s.cfg.Clock.AfterFunc(s.cfg.Interval, s.flushTick)
}

func (s *Scheduler) flushTick() {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return
	}
	s.tick = nil
	formID := s.formID
	s.mu.Unlock()

	if records := s.cfg.Snapshot(); len(records) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RequestTimeout)
		_, err := s.writer.AutoSave(ctx, AutoSaveRequest{
			ClientID: s.cfg.ClientID,
			FormID:   &formID,
			FormType: s.cfg.FormType,
			Answers:  records,
			Revision: s.cfg.Revisions.Next(),
		})
		cancel()
		if err != nil {
			log.WithFields(log.Fields{"client_id": s.cfg.ClientID, "form_id": formID}).WithError(err).Warn("intake: autosave failed")
		} else {
			log.WithFields(log.Fields{"form_id": formID, "answers": len(records)}).Debug("intake: autosaved")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateActive && s.tick == nil {
		s.armTickLocked()
	}
}

func (s *Scheduler) stopTimersLocked() {
	if s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
	}
	if s.tick != nil {
		s.tick.Stop()
		s.tick = nil
	}
}
