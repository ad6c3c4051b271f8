package intake

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errBackendDown = errors.New("backend down")

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward, firing due timers in order on the calling goroutine.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()
	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.fired || t.stopped || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.fired = true
		c.now = next.at
		c.mu.Unlock()
		next.f()
	}
}

type fakeBackend struct {
	mu sync.Mutex

	questions    []Question
	questionsErr error

	check    FormCheck
	checkErr error
	checks   int

	saved    []AnswerRecord
	savedErr error

	nextFormID int64
	addErr     error
	addCalls   int

	autoSaveErr error
	autoSaves   []AutoSaveRequest

	statusErr error
	statuses  []FormStatus

	finalErr    error
	finalSaves  []FinalSaveRequest
	summaryErr  error
	summaries   []SummaryRequest
	summaryHits int
}

func (f *fakeBackend) UserQuestions(context.Context) ([]Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.questionsErr != nil {
		return nil, f.questionsErr
	}
	return cloneQuestions(f.questions), nil
}

func (f *fakeBackend) CheckIntakeForm(context.Context, int64) (FormCheck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	return f.check, f.checkErr
}

func (f *fakeBackend) SavedAnswers(context.Context, int64, int64) ([]AnswerRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saved, f.savedErr
}

func (f *fakeBackend) AddIntakeForm(context.Context, int64, string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls++
	if f.addErr != nil {
		return 0, f.addErr
	}
	return f.nextFormID, nil
}

func (f *fakeBackend) AutoSave(_ context.Context, req AutoSaveRequest) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.autoSaves = append(f.autoSaves, req)
	if f.autoSaveErr != nil {
		return 0, f.autoSaveErr
	}
	if req.FormID != nil {
		return *req.FormID, nil
	}
	return f.nextFormID, nil
}

func (f *fakeBackend) UpdateFormStatus(_ context.Context, _ int64, status FormStatus, _ int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	return f.statusErr
}

func (f *fakeBackend) FinalSave(_ context.Context, req FinalSaveRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalSaves = append(f.finalSaves, req)
	return f.finalErr
}

func (f *fakeBackend) CreateClientSummary(_ context.Context, req SummaryRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaryHits++
	if f.summaryErr != nil {
		return f.summaryErr
	}
	f.summaries = append(f.summaries, req)
	return nil
}

func (f *fakeBackend) autoSaveCalls() []AutoSaveRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]AutoSaveRequest, len(f.autoSaves))
	copy(out, f.autoSaves)
	return out
}

func (f *fakeBackend) creates() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addCalls
}

func testCatalog() []Question {
	return []Question{
		{ID: 1, Source: SourceGlobal, Text: "Age", Type: TypeText, Category: "Basics", IsDefault: true},
		{ID: 2, Source: SourceGlobal, Text: "Diet", Type: TypeText, Category: "Nutrition", IsDefault: true},
		{ID: 3, Source: SourceGlobal, Text: "Goals", Type: TypeCheckbox, Options: []string{"A", "B", OtherOption}, Category: "Goals"},
		{ID: 1, Source: SourceTrainer, Text: "Injuries", Type: TypeTextarea, Category: "Health"},
		{ID: 4, Source: SourceGlobal, Text: "Experience", Type: TypeDropdown, Options: []string{"Beginner", "Advanced"}, Category: "Basics"},
	}
}

func key(source Source, id int64) Key {
	return Key{Source: source, ID: id}
}

func newTestDrafts() *DraftStore {
	return NewDraftStore(NewMemoryStorage(), NewMemoryStorage())
}
