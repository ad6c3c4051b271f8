package export

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/intake"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/log"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/store"
)

// DataStore defines the interface for data access
type DataStore interface {
	GetIntakeForm(ctx context.Context, trainerID, formID int64) (store.IntakeForm, error)
	GetClient(ctx context.Context, trainerID, clientID int64) (store.Client, error)
	GetTrainerByID(ctx context.Context, trainerID int64) (store.Trainer, error)
	ListAnswers(ctx context.Context, trainerID, formID int64) ([]store.Answer, error)
}

type converter func(ctx context.Context, html, title string) (*Result, error)

// Service provides intake form export functionality
type Service struct {
	store   DataStore
	archive Archive
	pdf     converter
	docx    converter
	now     func() time.Time
}

// NewService creates an export service. archive may be nil, in which case
// exports are returned inline only.
func NewService(store DataStore, archive Archive) *Service {
	return &Service{
		store:   store,
		archive: archive,
		pdf:     exportPDF,
		docx:    exportDOCX,
		now:     time.Now,
	}
}

// Export renders a completed intake form in the requested format.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	form, err := s.store.GetIntakeForm(ctx, req.TrainerID, req.FormID)
	if err != nil {
		return nil, fmt.Errorf("get intake form: %w", err)
	}
	if form.Status != store.FormCompleted {
		return nil, ErrFormNotCompleted
	}

	client, err := s.store.GetClient(ctx, req.TrainerID, form.ClientID)
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	answers, err := s.store.ListAnswers(ctx, req.TrainerID, req.FormID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	clientName := strings.TrimSpace(client.FirstName + " " + client.LastName)
	data := TemplateData{
		Title:      "Intake Form - " + clientName,
		ClientName: clientName,
		Status:     form.Status,
		Rows:       answerRows(answers),
	}
	if trainer, err := s.store.GetTrainerByID(ctx, req.TrainerID); err == nil {
		data.TrainerName = trainer.DisplayName()
	}
	if form.CompletedAt != nil {
		data.CompletedAt = *form.CompletedAt
	}

	html, err := RenderIntakeHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	var result *Result
	switch req.Format {
	case FormatPDF:
		result, err = s.pdf(ctx, html, data.Title)
	case FormatDOCX:
		result, err = s.docx(ctx, html, data.Title)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}
	if err != nil {
		return nil, err
	}

	if s.archive != nil {
		key := fmt.Sprintf("trainers/%d/forms/%d/%s-%s", req.TrainerID, req.FormID, s.now().UTC().Format("20060102T150405"), result.Filename)
		link, err := s.archive.Put(ctx, key, result.MimeType, result.Data)
		if err != nil {
			log.WithFields(log.Fields{"form_id": req.FormID, "export_id": uuid.NewString()}).WithError(err).Warn("export: archive failed")
		} else {
			result.ObjectKey = key
			result.URL = link
		}
	}
	return result, nil
}

// answerRows renders stored answers the way the summary input flattens them:
// checkbox choices joined by ", " and the free text for "Other" in parentheses.
func answerRows(answers []store.Answer) []TemplateRow {
	rows := make([]TemplateRow, 0, len(answers))
	for _, answer := range answers {
		var value intake.Answer
		if err := json.Unmarshal(answer.Value, &value); err != nil {
			value = intake.TextAnswer(string(answer.Value))
		}
		if value.IsEmpty() {
			continue
		}
		text := value.String()
		if answer.Other != "" {
			text += " (" + answer.Other + ")"
		}
		question := answer.QuestionText
		if question == "" {
			question = fmt.Sprintf("Question %s:%d", answer.QuestionSource, answer.QuestionID)
		}
		rows = append(rows, TemplateRow{Question: question, Answer: text})
	}
	return rows
}
