package intake

import "context"

type FormStatus string

const (
	StatusInProgress FormStatus = "in_progress"
	StatusCompleted  FormStatus = "completed"
)

// FormTypeIntake is the form_type sent when allocating an intake form.
const FormTypeIntake = "intake"

// FormCheck describes the most recent server-side form for a client.
type FormCheck struct {
	Exists          bool
	FormID          int64
	Status          FormStatus
	ClientFirstName string
	ClientLastName  string
}

type AutoSaveRequest struct {
	ClientID int64
	FormID   *int64
	FormType string
	Answers  []AnswerRecord
	Revision int64
}

type FinalSaveRequest struct {
	FormID   int64
	Answers  []AnswerRecord
	Revision int64
}

type SummaryRequest struct {
	ClientID int64
	FormID   int64
	Data     []QA
}

type QuestionSource interface {
	UserQuestions(ctx context.Context) ([]Question, error)
}

type FormReader interface {
	CheckIntakeForm(ctx context.Context, clientID int64) (FormCheck, error)
	SavedAnswers(ctx context.Context, clientID, formID int64) ([]AnswerRecord, error)
}

type FormWriter interface {
	AddIntakeForm(ctx context.Context, clientID int64, formType string) (int64, error)
	AutoSave(ctx context.Context, req AutoSaveRequest) (int64, error)
}

type FormFinisher interface {
	UpdateFormStatus(ctx context.Context, formID int64, status FormStatus, revision int64) error
	FinalSave(ctx context.Context, req FinalSaveRequest) error
	CreateClientSummary(ctx context.Context, req SummaryRequest) error
}

// Backend is everything the workflow needs from the intake API.
type Backend interface {
	QuestionSource
	FormReader
	FormWriter
	FormFinisher
}
