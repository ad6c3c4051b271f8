package intake

import (
	"context"
	"reflect"
	"testing"
)

func TestOpenWithoutDraftOrFormStartsFresh(t *testing.T) {
	ctx := context.Background()
	drafts := newTestDrafts()
	backend := &fakeBackend{check: FormCheck{ClientFirstName: "Ana", ClientLastName: "Diaz"}}
	reconciler := NewReconciler(drafts, backend)

	rec, err := reconciler.Open(ctx, 1, testCatalog())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if rec.Decision != DecisionFresh {
		t.Fatalf("Decision = %s, want fresh", rec.Decision)
	}
	want := []Key{key(SourceGlobal, 1), key(SourceGlobal, 2)}
	if got := keysOf(rec.Draft.ActiveQuestions); !reflect.DeepEqual(got, want) {
		t.Fatalf("active = %v, want defaults %v", got, want)
	}
	if rec.ClientFirstName != "Ana" {
		t.Fatalf("client name not carried: %+v", rec)
	}
	stored, _ := drafts.Load(ctx, 1)
	if len(stored.ActiveQuestions) != 2 {
		t.Fatalf("fresh draft not persisted: %+v", stored)
	}
}

func TestOpenResumesNonEmptyDraftWithoutServerCheck(t *testing.T) {
	ctx := context.Background()
	drafts := newTestDrafts()
	_ = drafts.Save(ctx, 1, Draft{ActiveQuestions: testCatalog()[3:4], Answers: Answers{"trainer:1": TextAnswer("knee")}})
	backend := &fakeBackend{check: FormCheck{Exists: true, FormID: 5, Status: StatusInProgress}}
	_ = drafts.MarkLeft(ctx, 1)

	rec, err := NewReconciler(drafts, backend).Open(ctx, 1, testCatalog())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if rec.Decision != DecisionResumeDraft {
		t.Fatalf("Decision = %s, want resume_draft", rec.Decision)
	}
	if rec.Draft.Answers["trainer:1"].Text != "knee" {
		t.Fatalf("draft answers lost: %+v", rec.Draft)
	}
	if backend.checks != 0 {
		t.Fatal("server consulted while a local draft exists")
	}
}

func TestOpenPromptsOnceAfterLeaving(t *testing.T) {
	ctx := context.Background()
	drafts := newTestDrafts()
	backend := &fakeBackend{check: FormCheck{Exists: true, FormID: 5, Status: StatusInProgress, ClientFirstName: "Ana"}}
	reconciler := NewReconciler(drafts, backend)
	_ = drafts.MarkLeft(ctx, 1)

	rec, err := reconciler.Open(ctx, 1, testCatalog())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if rec.Decision != DecisionPrompt || rec.ServerFormID != 5 {
		t.Fatalf("Open() = %+v, want prompt for form 5", rec)
	}
	if left, _ := drafts.HasLeft(ctx, 1); left {
		t.Fatal("prompt must clear the has-left flag")
	}

	_ = drafts.Clear(ctx, 1)
	second, err := reconciler.Open(ctx, 1, testCatalog())
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	if second.Decision != DecisionFresh {
		t.Fatalf("second Decision = %s, want fresh", second.Decision)
	}
}

func TestOpenInProgressWithoutLeavingStartsFresh(t *testing.T) {
	backend := &fakeBackend{check: FormCheck{Exists: true, FormID: 5, Status: StatusInProgress}}
	rec, err := NewReconciler(newTestDrafts(), backend).Open(context.Background(), 1, testCatalog())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if rec.Decision != DecisionFresh {
		t.Fatalf("Decision = %s, want fresh", rec.Decision)
	}
}

func TestOpenCheckFailureDegradesToFresh(t *testing.T) {
	ctx := context.Background()
	drafts := newTestDrafts()
	_ = drafts.MarkLeft(ctx, 1)
	backend := &fakeBackend{checkErr: errBackendDown}

	rec, err := NewReconciler(drafts, backend).Open(ctx, 1, testCatalog())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if rec.Decision != DecisionFresh || len(rec.Draft.ActiveQuestions) != 2 {
		t.Fatalf("Open() = %+v, want fresh defaults", rec)
	}
}

func TestOpenAfterCustomizeKeepsDraft(t *testing.T) {
	ctx := context.Background()
	drafts := newTestDrafts()
	_ = drafts.Save(ctx, 1, Draft{ActiveQuestions: testCatalog()[:1], Answers: Answers{"global:1": TextAnswer("20")}})
	_ = drafts.MarkCustomize(ctx, 1)
	backend := &fakeBackend{}

	rec, err := NewReconciler(drafts, backend).Open(ctx, 1, testCatalog())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if rec.Decision != DecisionResumeDraft || rec.Draft.Answers["global:1"].Text != "20" {
		t.Fatalf("Open() = %+v, want the draft back", rec)
	}
	if customized, _ := drafts.CustomizeTriggered(ctx, 1); customized {
		t.Fatal("customize flag must be cleared on return")
	}
	if backend.checks != 0 {
		t.Fatal("server consulted after customize")
	}
}

func TestResumeAddsAnsweredQuestions(t *testing.T) {
	ctx := context.Background()
	drafts := newTestDrafts()
	backend := &fakeBackend{saved: []AnswerRecord{
		{QuestionID: 1, QuestionSource: SourceGlobal, Answer: TextAnswer("20")},
		{QuestionID: 3, QuestionSource: SourceGlobal, Answer: ChoiceAnswer("Other"), Other: "Climb"},
		{QuestionID: 99, QuestionSource: SourceGlobal, Answer: TextAnswer("gone")},
	}}

	draft, err := NewReconciler(drafts, backend).Resume(ctx, 1, 42, testCatalog())
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	want := []Key{key(SourceGlobal, 1), key(SourceGlobal, 2), key(SourceGlobal, 3)}
	if got := keysOf(draft.ActiveQuestions); !reflect.DeepEqual(got, want) {
		t.Fatalf("active = %v, want %v", got, want)
	}
	if draft.FormID == nil || *draft.FormID != 42 {
		t.Fatalf("FormID = %v, want 42", draft.FormID)
	}
	if draft.Answers.Other(key(SourceGlobal, 3)) != "Climb" {
		t.Fatalf("other text lost: %+v", draft.Answers)
	}
	stored, _ := drafts.Load(ctx, 1)
	if !reflect.DeepEqual(stored.FormID, draft.FormID) {
		t.Fatal("resumed draft not persisted")
	}
}

func TestResumeReadFailureKeepsFormID(t *testing.T) {
	backend := &fakeBackend{savedErr: errBackendDown}
	draft, err := NewReconciler(newTestDrafts(), backend).Resume(context.Background(), 1, 42, testCatalog())
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if len(draft.ActiveQuestions) != 2 || len(draft.Answers) != 0 || *draft.FormID != 42 {
		t.Fatalf("Resume() = %+v", draft)
	}
}
