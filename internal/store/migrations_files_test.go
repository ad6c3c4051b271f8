package store

import (
	"errors"
	"io"
	"io/fs"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
)

func TestEveryMigrationCanBeRolledBack(t *testing.T) {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		t.Fatalf("open migration source: %v", err)
	}
	defer src.Close()

	version, err := src.First()
	if err != nil {
		t.Fatalf("no migrations discovered: %v", err)
	}
	count := 0
	for {
		count++
		for direction, read := range map[string]func(uint) (io.ReadCloser, string, error){
			"up":   src.ReadUp,
			"down": src.ReadDown,
		} {
			body, _, err := read(version)
			if err != nil {
				t.Fatalf("version %d has no %s migration: %v", version, direction, err)
			}
			_ = body.Close()
		}
		next, err := src.Next(version)
		if errors.Is(err, fs.ErrNotExist) {
			break
		}
		if err != nil {
			t.Fatalf("next after %d: %v", version, err)
		}
		version = next
	}
	if count < 2 {
		t.Fatalf("expected the init and search migrations, found %d", count)
	}
}

func TestInitMigrationKeysAnswersBySourceAndQuestion(t *testing.T) {
	raw, err := fs.ReadFile(migrationFiles, "migrations/000001_init.up.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	sqlText := string(raw)
	for _, snippet := range []string{
		"PRIMARY KEY (form_id, question_source, question_id)",
		"revision BIGINT NOT NULL DEFAULT 0",
		"CHECK (status IN ('in_progress', 'completed'))",
	} {
		if !strings.Contains(sqlText, snippet) {
			t.Fatalf("expected migration to contain %q", snippet)
		}
	}
}
