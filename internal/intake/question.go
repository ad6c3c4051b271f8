// Package intake implements the intake-form draft workflow: the question catalog,
// per-client drafts, the bank/active rank editor, autosave and submission.
package intake

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type Source string

const (
	SourceGlobal  Source = "global"
	SourceTrainer Source = "trainer"
)

func (s Source) Valid() bool {
	return s == SourceGlobal || s == SourceTrainer
}

type QuestionType string

const (
	TypeText     QuestionType = "text"
	TypeTextarea QuestionType = "textarea"
	TypeDropdown QuestionType = "dropdown"
	TypeCheckbox QuestionType = "checkbox"
)

var (
	ErrInvalidKey      = errors.New("invalid question key")
	ErrInvalidQuestion = errors.New("invalid question")
)

// Key identifies a question. Global and trainer questions may share a numeric id.
type Key struct {
	Source Source
	ID     int64
}

func (k Key) String() string {
	return string(k.Source) + ":" + strconv.FormatInt(k.ID, 10)
}

// ParseKey reads the "source:id" form produced by Key.String.
func ParseKey(value string) (Key, error) {
	source, id, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, value)
	}
	parsed, err := strconv.ParseInt(id, 10, 64)
	if err != nil || parsed <= 0 {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, value)
	}
	key := Key{Source: Source(source), ID: parsed}
	if !key.Source.Valid() {
		return Key{}, fmt.Errorf("%w: unknown source %q", ErrInvalidKey, source)
	}
	return key, nil
}

type Question struct {
	ID        int64        `json:"id"`
	Source    Source       `json:"question_source"`
	Text      string       `json:"question_text"`
	Type      QuestionType `json:"question_type"`
	Options   []string     `json:"options,omitempty"`
	Category  string       `json:"category"`
	IsDefault bool         `json:"is_default"`
}

func (q Question) Key() Key {
	return Key{Source: q.Source, ID: q.ID}
}

// HasOptions reports whether the question type carries a fixed option list.
func (q Question) HasOptions() bool {
	return q.Type == TypeDropdown || q.Type == TypeCheckbox
}

func (q Question) HasOption(option string) bool {
	for _, candidate := range q.Options {
		if candidate == option {
			return true
		}
	}
	return false
}

// Validate checks that options are present exactly when the type needs them.
func (q Question) Validate() error {
	if !q.Source.Valid() {
		return fmt.Errorf("%w: source %q", ErrInvalidQuestion, q.Source)
	}
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("%w: text is required", ErrInvalidQuestion)
	}
	switch q.Type {
	case TypeText, TypeTextarea:
		if len(q.Options) > 0 {
			return fmt.Errorf("%w: %s questions take no options", ErrInvalidQuestion, q.Type)
		}
	case TypeDropdown, TypeCheckbox:
		if len(q.Options) == 0 {
			return fmt.Errorf("%w: %s questions need options", ErrInvalidQuestion, q.Type)
		}
	default:
		return fmt.Errorf("%w: type %q", ErrInvalidQuestion, q.Type)
	}
	return nil
}

// Defaults returns the default-flagged questions in catalog order.
func Defaults(catalog []Question) []Question {
	defaults := make([]Question, 0)
	for _, question := range catalog {
		if question.IsDefault {
			defaults = append(defaults, question)
		}
	}
	return defaults
}

func cloneQuestions(questions []Question) []Question {
	out := make([]Question, len(questions))
	copy(out, questions)
	return out
}
