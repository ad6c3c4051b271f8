package summary

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/intake"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/session"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/store"
)

type fakeStore struct {
	summary  store.ClientSummary
	finished map[int64]string
}

func (f *fakeStore) GetSummary(_ context.Context, summaryID int64) (store.ClientSummary, error) {
	if summaryID != f.summary.ID {
		return store.ClientSummary{}, errors.New("not found")
	}
	return f.summary, nil
}

func (f *fakeStore) FinishSummary(_ context.Context, summaryID int64, text string) error {
	if f.finished == nil {
		f.finished = map[int64]string{}
	}
	f.finished[summaryID] = text
	return nil
}

func (f *fakeStore) GetTrainerByID(_ context.Context, trainerID int64) (store.Trainer, error) {
	return store.Trainer{ID: trainerID, FirstName: "Sam", Email: "sam@example.com"}, nil
}

func (f *fakeStore) GetClient(_ context.Context, trainerID, clientID int64) (store.Client, error) {
	return store.Client{ID: clientID, FirstName: "Ana", LastName: "Ruiz"}, nil
}

type generatorFunc func(ctx context.Context, prompt string) (string, error)

func (f generatorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

type fakeNotifier struct {
	sent []string
}

func (n *fakeNotifier) IsConfigured() bool { return true }

func (n *fakeNotifier) SendSummaryReadyEmail(to, trainerName, clientName string, clientID int64) error {
	n.sent = append(n.sent, to+"|"+clientName)
	return nil
}

type fakeQueue struct {
	jobs chan session.SummaryJob
}

func (q *fakeQueue) Dequeue(ctx context.Context, wait time.Duration) (session.SummaryJob, bool, error) {
	select {
	case job := <-q.jobs:
		return job, true, nil
	case <-ctx.Done():
		return session.SummaryJob{}, false, ctx.Err()
	case <-time.After(wait):
		return session.SummaryJob{}, false, nil
	}
}

func pendingSummary() store.ClientSummary {
	return store.ClientSummary{ID: 11, TrainerID: 1, ClientID: 4, Prompt: "prompt", Status: store.SummaryPending}
}

func TestBuildPromptSkipsBlankAnswers(t *testing.T) {
	prompt := BuildPrompt(" Ana Ruiz ", []intake.QA{
		{Question: "Age", Answer: "20"},
		{Question: "Goals", Answer: "A, Other (Swim)"},
		{Question: "Injuries", Answer: "  "},
	})
	if !strings.HasPrefix(prompt, "Summarize the intake form of Ana Ruiz") {
		t.Fatalf("unexpected prompt header: %q", prompt)
	}
	if !strings.Contains(prompt, "- Age: 20\n- Goals: A, Other (Swim)\n") {
		t.Fatalf("prompt missing answers: %q", prompt)
	}
	if strings.Contains(prompt, "Injuries") {
		t.Fatal("blank answers should be skipped")
	}
}

func TestHTTPGenerator(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["system"] != systemPrompt || body["prompt"] != "hello" {
			t.Errorf("unexpected request body: %#v", body)
		}
		_, _ = w.Write([]byte(`{"text":"  Client wants to swim.  "}`))
	}))
	defer server.Close()

	text, err := NewHTTPGenerator(server.URL).Generate(context.Background(), "hello")
	if err != nil || text != "Client wants to swim." {
		t.Fatalf("Generate() = %q, %v", text, err)
	}
}

func TestHTTPGeneratorErrors(t *testing.T) {
	if _, err := NewHTTPGenerator("").Generate(context.Background(), "x"); !errors.Is(err, ErrNoGenerator) {
		t.Fatalf("empty URL error = %v", err)
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()
	if _, err := NewHTTPGenerator(server.URL).Generate(context.Background(), "x"); err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("expected 503 error, got %v", err)
	}
}

func TestProcessStoresTextAndNotifies(t *testing.T) {
	st := &fakeStore{summary: pendingSummary()}
	notifier := &fakeNotifier{}
	worker := NewWorker(nil, st, generatorFunc(func(_ context.Context, prompt string) (string, error) {
		return "summary for " + prompt, nil
	}), notifier)

	if err := worker.Process(context.Background(), session.SummaryJob{SummaryID: 11}); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if st.finished[11] != "summary for prompt" {
		t.Fatalf("stored text = %q", st.finished[11])
	}
	if len(notifier.sent) != 1 || notifier.sent[0] != "sam@example.com|Ana Ruiz" {
		t.Fatalf("unexpected notifications: %v", notifier.sent)
	}
}

func TestProcessMarksFailedOnGeneratorError(t *testing.T) {
	st := &fakeStore{summary: pendingSummary()}
	notifier := &fakeNotifier{}
	worker := NewWorker(nil, st, generatorFunc(func(context.Context, string) (string, error) {
		return "", errors.New("model down")
	}), notifier)

	if err := worker.Process(context.Background(), session.SummaryJob{SummaryID: 11}); err == nil {
		t.Fatal("expected error")
	}
	if text, ok := st.finished[11]; !ok || text != "" {
		t.Fatalf("summary should be finished with empty text, got %q (%v)", text, ok)
	}
	if len(notifier.sent) != 0 {
		t.Fatal("failed summaries should not notify")
	}
}

func TestProcessSkipsFinishedSummaries(t *testing.T) {
	done := pendingSummary()
	done.Status = store.SummaryReady
	st := &fakeStore{summary: done}
	worker := NewWorker(nil, st, generatorFunc(func(context.Context, string) (string, error) {
		t.Fatal("generator should not run")
		return "", nil
	}), nil)

	if err := worker.Process(context.Background(), session.SummaryJob{SummaryID: 11}); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(st.finished) != 0 {
		t.Fatal("ready summary was rewritten")
	}
}

func TestRunDrainsQueueUntilCancelled(t *testing.T) {
	st := &fakeStore{summary: pendingSummary()}
	generated := make(chan string, 1)
	queue := &fakeQueue{jobs: make(chan session.SummaryJob, 1)}
	worker := NewWorker(queue, st, generatorFunc(func(_ context.Context, prompt string) (string, error) {
		generated <- prompt
		return "ok", nil
	}), nil)
	worker.wait = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(stopped)
	}()

	queue.jobs <- session.SummaryJob{ID: "job-1", SummaryID: 11}
	select {
	case <-generated:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not processed")
	}

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
