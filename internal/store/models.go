package store

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrStaleRevision rejects a write older than the one already stored.
	ErrStaleRevision = errors.New("stale revision")
	// ErrFormCompleted rejects autosaves against a submitted form.
	ErrFormCompleted = errors.New("form already completed")
	ErrEmailTaken    = errors.New("email already registered")
)

const (
	SourceGlobal  = "global"
	SourceTrainer = "trainer"

	FormInProgress = "in_progress"
	FormCompleted  = "completed"

	SummaryPending = "pending"
	SummaryReady   = "ready"
	SummaryFailed  = "failed"
)

type Trainer struct {
	ID           int64
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (t Trainer) DisplayName() string {
	return t.FirstName + " " + t.LastName
}

type Client struct {
	ID        int64
	TrainerID int64
	FirstName string
	LastName  string
	Email     string
	Phone     string
	CreatedAt time.Time
}

type Question struct {
	ID        int64
	Source    string
	TrainerID *int64
	Text      string
	Type      string
	Options   []string
	Category  string
	IsDefault bool
	UpdatedAt time.Time
}

type IntakeForm struct {
	ID          int64
	TrainerID   int64
	ClientID    int64
	FormType    string
	Status      string
	Revision    int64
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FormWithClient is the latest form of a client plus the client's name.
type FormWithClient struct {
	Form            *IntakeForm
	ClientFirstName string
	ClientLastName  string
}

// Answer is one stored answer. Value holds the JSON string or array as written.
type Answer struct {
	QuestionID     int64
	QuestionSource string
	Value          json.RawMessage
	Other          string
	QuestionText   string
}

type ClientSummary struct {
	ID          int64
	TrainerID   int64
	ClientID    int64
	FormID      *int64
	SummaryType string
	Prompt      string
	Text        string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
