package intake

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadDraftBootstrapsEmptyDraft(t *testing.T) {
	ctx := context.Background()
	local := NewMemoryStorage()
	drafts := NewDraftStore(local, NewMemoryStorage())

	first, err := drafts.Load(ctx, 7)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(first.ActiveQuestions) != 0 || len(first.Answers) != 0 || first.FormID != nil {
		t.Fatalf("Load() = %+v, want empty draft", first)
	}
	if raw, ok, _ := local.Get(ctx, "currentQuestions_7"); !ok || raw != "[]" {
		t.Fatalf("currentQuestions_7 = %q (present=%v), want persisted []", raw, ok)
	}
	if raw, _, _ := local.Get(ctx, "formId_7"); raw != "null" {
		t.Fatalf("formId_7 = %q, want null", raw)
	}

	second, err := drafts.Load(ctx, 7)
	if err != nil {
		t.Fatalf("second Load() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("second Load() = %+v, want %+v", second, first)
	}
}

func TestLoadDraftTreatsCorruptJSONAsEmpty(t *testing.T) {
	ctx := context.Background()
	local := NewMemoryStorage()
	_ = local.Set(ctx, "currentQuestions_3", `[{"id":1,`)
	_ = local.Set(ctx, "currentAnswers_3", `{}`)
	drafts := NewDraftStore(local, NewMemoryStorage())

	draft, err := drafts.Load(ctx, 3)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !draft.IsEmpty() {
		t.Fatalf("Load() = %+v, want empty draft", draft)
	}
	if raw, _, _ := local.Get(ctx, "currentQuestions_3"); raw != "[]" {
		t.Fatalf("corrupt entry not replaced: %q", raw)
	}
}

func TestLoadDraftRecoversFromTruncatedStateFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "intake.json")
	if err := os.WriteFile(path, []byte(`{"currentQuestions_1": "[`), 0o600); err != nil {
		t.Fatalf("write state file: %v", err)
	}
	local, err := NewFileStorage(path)
	if err != nil {
		t.Fatalf("NewFileStorage() error = %v", err)
	}

	draft, err := NewDraftStore(local, NewMemoryStorage()).Load(ctx, 1)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !draft.IsEmpty() {
		t.Fatalf("Load() = %+v, want empty draft", draft)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read state file: %v", err)
	}
	if !json.Valid(data) {
		t.Fatalf("state file not rewritten: %s", data)
	}
}

func TestDraftRoundTripThroughFileStorage(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "intake.json")
	local, err := NewFileStorage(path)
	if err != nil {
		t.Fatalf("NewFileStorage() error = %v", err)
	}
	drafts := NewDraftStore(local, NewMemoryStorage())

	formID := int64(42)
	draft := Draft{
		ActiveQuestions: testCatalog()[:3],
		Answers: Answers{
			"global:1": TextAnswer("20"),
			"global:3": ChoiceAnswer("A", "Other"),
		},
		FormID: &formID,
	}
	if err := drafts.Save(ctx, 9, draft); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reopened, err := NewFileStorage(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	loaded, err := NewDraftStore(reopened, NewMemoryStorage()).Load(ctx, 9)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(loaded, draft) {
		t.Fatalf("Load() = %+v, want %+v", loaded, draft)
	}

	if err := drafts.Clear(ctx, 9); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, ok, _ := local.Get(ctx, "currentAnswers_9"); ok {
		t.Fatal("expected answers to be removed")
	}
}

func TestSessionFlags(t *testing.T) {
	ctx := context.Background()
	drafts := newTestDrafts()

	if left, _ := drafts.HasLeft(ctx, 1); left {
		t.Fatal("HasLeft() = true before MarkLeft")
	}
	if err := drafts.MarkLeft(ctx, 1); err != nil {
		t.Fatalf("MarkLeft() error = %v", err)
	}
	if left, _ := drafts.HasLeft(ctx, 1); !left {
		t.Fatal("HasLeft() = false after MarkLeft")
	}
	if left, _ := drafts.HasLeft(ctx, 2); left {
		t.Fatal("flags must be namespaced per client")
	}
	if err := drafts.ClearLeft(ctx, 1); err != nil {
		t.Fatalf("ClearLeft() error = %v", err)
	}
	if left, _ := drafts.HasLeft(ctx, 1); left {
		t.Fatal("HasLeft() = true after ClearLeft")
	}

	_ = drafts.MarkCustomize(ctx, 1)
	if customized, _ := drafts.CustomizeTriggered(ctx, 1); !customized {
		t.Fatal("CustomizeTriggered() = false after MarkCustomize")
	}
}
