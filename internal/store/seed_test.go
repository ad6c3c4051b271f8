package store

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type recordingWriter struct {
	upserts []Question
	err     error
}

func (w *recordingWriter) UpsertGlobalQuestion(_ context.Context, question Question) (Question, error) {
	if w.err != nil {
		return Question{}, w.err
	}
	question.ID = int64(len(w.upserts) + 1)
	w.upserts = append(w.upserts, question)
	return question, nil
}

func TestEmbeddedSeedIsWellFormed(t *testing.T) {
	questions, err := LoadSeed("")
	if err != nil {
		t.Fatalf("LoadSeed() error = %v", err)
	}
	if len(questions) == 0 {
		t.Fatal("embedded seed is empty")
	}

	defaults := 0
	seen := map[string]bool{}
	for _, question := range questions {
		if seen[question.Text] {
			t.Fatalf("duplicate seed question %q", question.Text)
		}
		seen[question.Text] = true
		if question.IsDefault {
			defaults++
		}
		choice := question.Type == "dropdown" || question.Type == "checkbox"
		if choice != (len(question.Options) > 0) {
			t.Fatalf("question %q: type %s with %d options", question.Text, question.Type, len(question.Options))
		}
	}
	if defaults == 0 {
		t.Fatal("seed must flag at least one default question")
	}
}

func TestDecodeSeedRejectsIncompleteEntries(t *testing.T) {
	_, err := decodeSeed(strings.NewReader("questions:\n  - text: Age\n"))
	if err == nil {
		t.Fatal("expected missing type to fail")
	}
}

func TestSeedGlobalQuestions(t *testing.T) {
	writer := &recordingWriter{}
	questions := []Question{{Text: "Age", Type: "text"}, {Text: "Goals", Type: "checkbox", Options: []string{"A"}}}
	if err := SeedGlobalQuestions(context.Background(), writer, questions); err != nil {
		t.Fatalf("SeedGlobalQuestions() error = %v", err)
	}
	if len(writer.upserts) != 2 {
		t.Fatalf("upserts = %d, want 2", len(writer.upserts))
	}

	failing := &recordingWriter{err: errors.New("db down")}
	if err := SeedGlobalQuestions(context.Background(), failing, questions); err == nil {
		t.Fatal("expected writer error to propagate")
	}
}
