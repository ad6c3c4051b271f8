package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/log"
)

var (
	ErrSessionClosed   = errors.New("intake session is closed")
	ErrNotOnForm       = errors.New("question is not on the form")
	ErrWrongAnswerType = errors.New("answer does not fit the question type")
	ErrInvalidOption   = errors.New("option is not offered by the question")
)

type Options struct {
	FormType       string
	Debounce       time.Duration
	Interval       time.Duration
	RequestTimeout time.Duration
	Clock          Clock
}

// Workflow wires the catalog, draft store, reconciler, scheduler and finalizer.
type Workflow struct {
	backend    Backend
	drafts     *DraftStore
	catalog    *Catalog
	reconciler *Reconciler
	opts       Options
}

func NewWorkflow(backend Backend, drafts *DraftStore, opts Options) *Workflow {
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.FormType == "" {
		opts.FormType = FormTypeIntake
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 2 * time.Second
	}
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	return &Workflow{
		backend:    backend,
		drafts:     drafts,
		catalog:    NewCatalog(backend),
		reconciler: NewReconciler(drafts, backend),
		opts:       opts,
	}
}

func (w *Workflow) Catalog() *Catalog {
	return w.catalog
}

func (w *Workflow) Drafts() *DraftStore {
	return w.drafts
}

// Open loads the catalog and reconciles the client's draft. When the decision
// is DecisionPrompt no session is returned; call Resume or StartNew.
func (w *Workflow) Open(ctx context.Context, clientID int64) (*Session, Reconciliation, error) {
	catalog := w.catalog.Load(ctx)
	rec, err := w.reconciler.Open(ctx, clientID, catalog)
	if err != nil {
		return nil, Reconciliation{}, err
	}
	if rec.Decision == DecisionPrompt {
		return nil, rec, nil
	}
	return w.newSession(clientID, rec.Draft), rec, nil
}

func (w *Workflow) Resume(ctx context.Context, clientID, formID int64) (*Session, error) {
	draft, err := w.reconciler.Resume(ctx, clientID, formID, w.catalog.Questions())
	if err != nil {
		return nil, err
	}
	return w.newSession(clientID, draft), nil
}

func (w *Workflow) StartNew(ctx context.Context, clientID int64) (*Session, error) {
	draft, err := w.reconciler.StartNew(ctx, clientID, w.catalog.Questions())
	if err != nil {
		return nil, err
	}
	return w.newSession(clientID, draft), nil
}

func (w *Workflow) newSession(clientID int64, draft Draft) *Session {
	revisions := NewRevisions(w.opts.Clock)
	board := NewBoard(w.catalog.Questions(), draft.ActiveQuestions)
	draft.ActiveQuestions = board.Active()

	s := &Session{
		clientID:       clientID,
		formType:       w.opts.FormType,
		draft:          draft,
		board:          board,
		drafts:         w.drafts,
		writer:         w.backend,
		revisions:      revisions,
		finalizer:      NewFinalizer(w.backend, w.drafts, revisions),
		requestTimeout: w.opts.RequestTimeout,
	}
	if s.requestTimeout <= 0 {
		s.requestTimeout = 15 * time.Second
	}
	s.scheduler = NewScheduler(w.backend, SchedulerConfig{
		ClientID:       clientID,
		FormType:       w.opts.FormType,
		Debounce:       w.opts.Debounce,
		Interval:       w.opts.Interval,
		RequestTimeout: w.opts.RequestTimeout,
		Clock:          w.opts.Clock,
		Revisions:      revisions,
		Snapshot:       s.snapshot,
		OnFormID:       s.adoptFormID,
	})
	s.scheduler.Start(draft.FormID)
	return s
}

// Session is one editing visit to one client's intake form. All draft
// mutations are serialized and persisted before the call returns.
type Session struct {
	clientID       int64
	formType       string
	drafts         *DraftStore
	writer         FormWriter
	scheduler      *Scheduler
	finalizer      *Finalizer
	revisions      *Revisions
	requestTimeout time.Duration

	mu        sync.Mutex
	draft     Draft
	board     *Board
	closed    bool
	submitted bool
}

func (s *Session) ClientID() int64 {
	return s.clientID
}

func (s *Session) Questions() []Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.Active()
}

func (s *Session) Bank(category string) []Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.FilterBank(category)
}

func (s *Session) Categories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.Categories()
}

func (s *Session) Draft() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Clone()
}

func (s *Session) AutosaveState() SchedulerState {
	return s.scheduler.State()
}

// Move reorders the rank editor and persists the resulting active list.
func (s *Session) Move(ctx context.Context, key Key, from, to ListID, dest int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if err := s.board.Move(key, from, to, dest); err != nil {
		return err
	}
	return s.persistBoardLocked(ctx)
}

func (s *Session) Add(ctx context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if err := s.board.Add(key); err != nil {
		return err
	}
	return s.persistBoardLocked(ctx)
}

func (s *Session) Remove(ctx context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if err := s.board.Remove(key); err != nil {
		return err
	}
	return s.persistBoardLocked(ctx)
}

// SetAnswer stores a text, textarea or dropdown answer.
func (s *Session) SetAnswer(ctx context.Context, key Key, text string) error {
	return s.edit(ctx, key, func(question Question, answers Answers) error {
		switch question.Type {
		case TypeText, TypeTextarea:
		case TypeDropdown:
			if text != "" && !question.HasOption(text) {
				return fmt.Errorf("%w: %q", ErrInvalidOption, text)
			}
		default:
			return fmt.Errorf("%w: %s takes choices", ErrWrongAnswerType, question.Type)
		}
		answers.SetText(key, text)
		return nil
	})
}

// ToggleChoice selects or deselects one checkbox option.
func (s *Session) ToggleChoice(ctx context.Context, key Key, option string, selected bool) error {
	return s.edit(ctx, key, func(question Question, answers Answers) error {
		if question.Type != TypeCheckbox {
			return fmt.Errorf("%w: %s is not a checkbox", ErrWrongAnswerType, question.Type)
		}
		if !question.HasOption(option) {
			return fmt.Errorf("%w: %q", ErrInvalidOption, option)
		}
		answers.ToggleChoice(key, option, selected)
		return nil
	})
}

// SetOther fills the free-text field of a selected "Other" choice.
func (s *Session) SetOther(ctx context.Context, key Key, text string) error {
	return s.edit(ctx, key, func(question Question, answers Answers) error {
		if question.Type != TypeCheckbox {
			return fmt.Errorf("%w: %s is not a checkbox", ErrWrongAnswerType, question.Type)
		}
		return answers.SetOther(key, strings.TrimSpace(text))
	})
}

func (s *Session) edit(ctx context.Context, key Key, apply func(Question, Answers) error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	question, ok := s.activeLocked(key)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotOnForm, key)
	}
	answers := s.draft.Answers.Clone()
	if err := apply(question, answers); err != nil {
		s.mu.Unlock()
		return err
	}
	s.draft.Answers = answers
	err := s.drafts.Save(ctx, s.clientID, s.draft)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.scheduler.Touch()
	return nil
}

// Flush writes the answers to the server immediately.
func (s *Session) Flush(ctx context.Context) error {
	return s.scheduler.Flush(ctx)
}

// Leave stops autosave and records that the trainer navigated away.
func (s *Session) Leave(ctx context.Context) error {
	if err := s.close(ctx); err != nil {
		return err
	}
	return s.drafts.MarkLeft(ctx, s.clientID)
}

// LeaveForCustomize stops autosave before a detour to the customize view.
// The draft and its answers are kept for the return trip.
func (s *Session) LeaveForCustomize(ctx context.Context) error {
	if err := s.close(ctx); err != nil {
		return err
	}
	return s.drafts.MarkCustomize(ctx, s.clientID)
}

// Close stops autosave without touching the session flags.
func (s *Session) Close(ctx context.Context) error {
	return s.close(ctx)
}

func (s *Session) close(ctx context.Context) error {
	s.scheduler.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.drafts.Save(ctx, s.clientID, s.draft)
}

// Submit finalizes the form. Autosave is stopped first so no later flush can
// overwrite the final answers; on a status or answer failure autosave resumes
// and the draft is kept.
func (s *Session) Submit(ctx context.Context, generateSummary bool) error {
	s.scheduler.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	formID, err := s.ensureFormLocked(ctx)
	if err != nil {
		s.scheduler.Start(s.draft.FormID)
		return &SubmitError{Stage: StageStatus, Err: err}
	}

	err = s.finalizer.Submit(ctx, SubmitRequest{
		ClientID:        s.clientID,
		FormID:          formID,
		ActiveQuestions: s.board.Active(),
		Answers:         s.draft.Answers.Clone(),
		GenerateSummary: generateSummary,
	})
	var submitErr *SubmitError
	if err != nil && errors.As(err, &submitErr) && !submitErr.Completed() {
		s.scheduler.Start(&formID)
		return err
	}
	s.closed = true
	s.submitted = true
	s.draft = EmptyDraft()
	return err
}

// ensureFormLocked returns the form id, allocating the form through an autosave
// when the debounce never fired.
func (s *Session) ensureFormLocked(ctx context.Context) (int64, error) {
	if s.draft.FormID != nil {
		return *s.draft.FormID, nil
	}
	if id, ok := s.scheduler.FormID(); ok {
		s.draft.FormID = &id
		return id, nil
	}
	id, err := s.writer.AutoSave(ctx, AutoSaveRequest{
		ClientID: s.clientID,
		FormType: s.formType,
		Answers:  Collect(s.board.Active(), s.draft.Answers),
		Revision: s.revisions.Next(),
	})
	if err != nil {
		return 0, err
	}
	s.draft.FormID = &id
	if err := s.drafts.Save(ctx, s.clientID, s.draft); err != nil {
		log.WithFields(log.Fields{"client_id": s.clientID}).WithError(err).Warn("intake: persist allocated form id failed")
	}
	return id, nil
}

func (s *Session) persistBoardLocked(ctx context.Context) error {
	s.draft.ActiveQuestions = s.board.Active()
	return s.drafts.Save(ctx, s.clientID, s.draft)
}

func (s *Session) activeLocked(key Key) (Question, bool) {
	for _, question := range s.draft.ActiveQuestions {
		if question.Key() == key {
			return question, true
		}
	}
	return Question{}, false
}

func (s *Session) snapshot() []AnswerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Collect(s.draft.ActiveQuestions, s.draft.Answers)
}

func (s *Session) adoptFormID(formID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// a form allocated after the trainer left still belongs to the stored draft
	if s.submitted || s.draft.FormID != nil {
		return
	}
	s.draft.FormID = &formID
	ctx, cancel := context.WithTimeout(context.Background(), s.requestTimeout)
	defer cancel()
	if err := s.drafts.Save(ctx, s.clientID, s.draft); err != nil {
		log.WithFields(log.Fields{"client_id": s.clientID, "form_id": formID}).WithError(err).Warn("intake: persist form id failed")
	}
}
