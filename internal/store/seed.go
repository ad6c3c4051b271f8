package store

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/log"
)

//go:embed seed/global_questions.yaml
var defaultSeed embed.FS

type seedFile struct {
	Questions []seedQuestion `yaml:"questions"`
}

type seedQuestion struct {
	Text     string   `yaml:"text"`
	Type     string   `yaml:"type"`
	Options  []string `yaml:"options"`
	Category string   `yaml:"category"`
	Default  bool     `yaml:"default"`
}

// GlobalQuestionWriter is the part of the store the seeder writes through.
type GlobalQuestionWriter interface {
	UpsertGlobalQuestion(ctx context.Context, question Question) (Question, error)
}

// LoadSeed reads a YAML question seed. An empty path selects the embedded catalog.
func LoadSeed(path string) ([]Question, error) {
	var reader io.Reader
	if path == "" {
		raw, err := defaultSeed.ReadFile("seed/global_questions.yaml")
		if err != nil {
			return nil, fmt.Errorf("read embedded seed: %w", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open seed %s: %w", path, err)
		}
		defer f.Close()
		reader = f
	}
	return decodeSeed(reader)
}

func decodeSeed(reader io.Reader) ([]Question, error) {
	var file seedFile
	if err := yaml.NewDecoder(reader).Decode(&file); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	questions := make([]Question, 0, len(file.Questions))
	for i, item := range file.Questions {
		if item.Text == "" || item.Type == "" {
			return nil, fmt.Errorf("seed question %d: text and type are required", i)
		}
		questions = append(questions, Question{
			Source:    SourceGlobal,
			Text:      item.Text,
			Type:      item.Type,
			Options:   item.Options,
			Category:  item.Category,
			IsDefault: item.Default,
		})
	}
	return questions, nil
}

// SeedGlobalQuestions upserts the seed catalog. Re-running it is harmless.
func SeedGlobalQuestions(ctx context.Context, writer GlobalQuestionWriter, questions []Question) error {
	for _, question := range questions {
		if _, err := writer.UpsertGlobalQuestion(ctx, question); err != nil {
			return err
		}
	}
	log.WithFields(log.Fields{"questions": len(questions)}).Info("store: global questions seeded")
	return nil
}
