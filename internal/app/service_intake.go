package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/export"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/gitrepo"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/intake"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/log"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/rbac"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/search"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/session"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/store"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/summary"
)

type QuestionInput struct {
	Text      string   `json:"question_text" validate:"required,max=500"`
	Type      string   `json:"question_type" validate:"required,oneof=text textarea dropdown checkbox"`
	Options   []string `json:"options" validate:"dive,required,max=200"`
	Category  string   `json:"category" validate:"max=100"`
	IsDefault bool     `json:"is_default"`
}

type ClientInput struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone" validate:"max=30"`
}

type AddFormInput struct {
	ClientID int64  `json:"client_id" validate:"gt=0"`
	FormType string `json:"form_type" validate:"max=50"`
}

type FormData struct {
	FormID   *int64 `json:"form_id"`
	FormType string `json:"form_type" validate:"max=50"`
}

type AutoSaveInput struct {
	ClientID int64                 `json:"client_id" validate:"gt=0"`
	FormData FormData              `json:"form_data"`
	Answers  []intake.AnswerRecord `json:"answers"`
	Revision int64                 `json:"revision" validate:"gte=0"`
}

type StatusInput struct {
	FormID   int64  `json:"form_id" validate:"gt=0"`
	Status   string `json:"status" validate:"oneof=in_progress completed"`
	Revision int64  `json:"revision" validate:"gte=0"`
}

type FinalSaveInput struct {
	FormID   int64                 `json:"form_id" validate:"gt=0"`
	Answers  []intake.AnswerRecord `json:"answers"`
	Revision int64                 `json:"revision" validate:"gte=0"`
}

type SummaryInput struct {
	FormID int64       `json:"form_id" validate:"gt=0"`
	Data   []intake.QA `json:"data"`
}

type TemplateInput struct {
	Name        string            `json:"name" validate:"required,max=120"`
	Description string            `json:"description" validate:"max=500"`
	Questions   []intake.Question `json:"questions" validate:"min=1"`
}

// FormCheck is the check_intake_form response body.
type FormCheck struct {
	FormExists      bool   `json:"form_exists"`
	FormID          *int64 `json:"form_id"`
	Status          string `json:"status,omitempty"`
	ClientFirstName string `json:"client_first_name"`
	ClientLastName  string `json:"client_last_name"`
}

type ClientView struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type SummaryView struct {
	ID          int64     `json:"id"`
	ClientID    int64     `json:"client_id"`
	FormID      *int64    `json:"form_id"`
	SummaryType string    `json:"summary_type"`
	Text        string    `json:"summary_text"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

var draftKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,128}$`)

func toIntakeQuestion(question store.Question) intake.Question {
	return intake.Question{
		ID:        question.ID,
		Source:    intake.Source(question.Source),
		Text:      question.Text,
		Type:      intake.QuestionType(question.Type),
		Options:   question.Options,
		Category:  question.Category,
		IsDefault: question.IsDefault,
	}
}

func toClientView(client store.Client) ClientView {
	return ClientView{
		ID:        client.ID,
		FirstName: client.FirstName,
		LastName:  client.LastName,
		Email:     client.Email,
		Phone:     client.Phone,
		CreatedAt: client.CreatedAt,
	}
}

func toSummaryView(item store.ClientSummary) SummaryView {
	return SummaryView{
		ID:          item.ID,
		ClientID:    item.ClientID,
		FormID:      item.FormID,
		SummaryType: item.SummaryType,
		Text:        item.Text,
		Status:      item.Status,
		CreatedAt:   item.CreatedAt,
	}
}

// toStoreAnswers encodes answers for storage. Unknown sources and empty ids are rejected.
func toStoreAnswers(records []intake.AnswerRecord) ([]store.Answer, error) {
	answers := make([]store.Answer, 0, len(records))
	for i, record := range records {
		if record.QuestionID <= 0 || !record.QuestionSource.Valid() {
			return nil, invalid("Invalid answer", map[string]any{"index": i})
		}
		value, err := json.Marshal(record.Answer)
		if err != nil {
			return nil, fmt.Errorf("encode answer %s: %w", record.Key(), err)
		}
		answers = append(answers, store.Answer{
			QuestionID:     record.QuestionID,
			QuestionSource: string(record.QuestionSource),
			Value:          value,
			Other:          strings.TrimSpace(record.Other),
		})
	}
	return answers, nil
}

func (s *Service) UserQuestions(ctx context.Context, current Session) ([]intake.Question, error) {
	questions, err := s.store.ListQuestions(ctx, current.TrainerID)
	if err != nil {
		return nil, err
	}
	out := make([]intake.Question, 0, len(questions))
	for _, question := range questions {
		out = append(out, toIntakeQuestion(question))
	}
	return out, nil
}

func (s *Service) questionFromInput(current Session, in QuestionInput) (store.Question, error) {
	if err := s.check(in); err != nil {
		return store.Question{}, err
	}
	candidate := intake.Question{
		Source:  intake.SourceTrainer,
		Text:    strings.TrimSpace(in.Text),
		Type:    intake.QuestionType(in.Type),
		Options: in.Options,
	}
	if err := candidate.Validate(); err != nil {
		return store.Question{}, invalid(err.Error(), nil)
	}
	trainerID := current.TrainerID
	return store.Question{
		Source:    store.SourceTrainer,
		TrainerID: &trainerID,
		Text:      candidate.Text,
		Type:      in.Type,
		Options:   in.Options,
		Category:  strings.TrimSpace(in.Category),
		IsDefault: in.IsDefault,
	}, nil
}

func (s *Service) AddQuestion(ctx context.Context, current Session, in QuestionInput) (intake.Question, error) {
	if err := s.authorize(current, rbac.ActionManageQuestions); err != nil {
		return intake.Question{}, err
	}
	question, err := s.questionFromInput(current, in)
	if err != nil {
		return intake.Question{}, err
	}
	created, err := s.store.InsertTrainerQuestion(ctx, question)
	if err != nil {
		return intake.Question{}, err
	}
	if s.search != nil {
		s.search.IndexQuestion(created)
	}
	return toIntakeQuestion(created), nil
}

func (s *Service) UpdateQuestion(ctx context.Context, current Session, questionID int64, in QuestionInput) (intake.Question, error) {
	if err := s.authorize(current, rbac.ActionManageQuestions); err != nil {
		return intake.Question{}, err
	}
	question, err := s.questionFromInput(current, in)
	if err != nil {
		return intake.Question{}, err
	}
	question.ID = questionID
	updated, err := s.store.UpdateTrainerQuestion(ctx, current.TrainerID, question)
	if err != nil {
		return intake.Question{}, err
	}
	if s.search != nil {
		s.search.IndexQuestion(updated)
	}
	return toIntakeQuestion(updated), nil
}

func (s *Service) DeleteQuestion(ctx context.Context, current Session, questionID int64) error {
	if err := s.authorize(current, rbac.ActionManageQuestions); err != nil {
		return err
	}
	if err := s.store.DeleteTrainerQuestion(ctx, current.TrainerID, questionID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteQuestion(store.SourceTrainer, questionID)
	}
	return nil
}

func (s *Service) SearchQuestions(ctx context.Context, current Session, text, category string, limit int) (search.Response, error) {
	if s.search == nil {
		return search.Response{}, unavailable("SEARCH_UNAVAILABLE", "Search is not configured")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.search.Search(ctx, search.Query{
		Text:      strings.TrimSpace(text),
		Category:  strings.TrimSpace(category),
		TrainerID: current.TrainerID,
		Limit:     limit,
	}), nil
}

func (s *Service) AddClient(ctx context.Context, current Session, in ClientInput) (ClientView, error) {
	if err := s.authorize(current, rbac.ActionManageClients); err != nil {
		return ClientView{}, err
	}
	if err := s.check(in); err != nil {
		return ClientView{}, err
	}
	client, err := s.store.CreateClient(ctx, store.Client{
		TrainerID: current.TrainerID,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:     strings.TrimSpace(in.Phone),
	})
	if err != nil {
		return ClientView{}, err
	}
	return toClientView(client), nil
}

func (s *Service) ListClients(ctx context.Context, current Session) ([]ClientView, error) {
	clients, err := s.store.ListClients(ctx, current.TrainerID)
	if err != nil {
		return nil, err
	}
	out := make([]ClientView, 0, len(clients))
	for _, client := range clients {
		out = append(out, toClientView(client))
	}
	return out, nil
}

func (s *Service) CheckIntakeForm(ctx context.Context, current Session, clientID int64) (FormCheck, error) {
	latest, err := s.store.LatestIntakeForm(ctx, current.TrainerID, clientID)
	if err != nil {
		return FormCheck{}, err
	}
	check := FormCheck{
		ClientFirstName: latest.ClientFirstName,
		ClientLastName:  latest.ClientLastName,
	}
	if latest.Form != nil {
		formID := latest.Form.ID
		check.FormExists = true
		check.FormID = &formID
		check.Status = latest.Form.Status
	}
	return check, nil
}

func (s *Service) AddIntakeForm(ctx context.Context, current Session, in AddFormInput) (int64, error) {
	if err := s.authorize(current, rbac.ActionFillForm); err != nil {
		return 0, err
	}
	if err := s.check(in); err != nil {
		return 0, err
	}
	form, err := s.store.CreateIntakeForm(ctx, current.TrainerID, in.ClientID, formType(in.FormType), 0)
	if err != nil {
		return 0, err
	}
	log.WithFields(log.Fields{"trainer_id": current.TrainerID, "client_id": in.ClientID, "form_id": form.ID}).Info("intake: form allocated")
	return form.ID, nil
}

func formType(value string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	return intake.FormTypeIntake
}

// clientForm loads a form and checks it belongs to clientID.
func (s *Service) clientForm(ctx context.Context, current Session, clientID, formID int64) (store.IntakeForm, error) {
	form, err := s.store.GetIntakeForm(ctx, current.TrainerID, formID)
	if err != nil {
		return store.IntakeForm{}, err
	}
	if form.ClientID != clientID {
		return store.IntakeForm{}, sql.ErrNoRows
	}
	return form, nil
}

func (s *Service) SavedAnswers(ctx context.Context, current Session, clientID, formID int64) ([]intake.AnswerRecord, error) {
	if _, err := s.clientForm(ctx, current, clientID, formID); err != nil {
		return nil, err
	}
	answers, err := s.store.ListAnswers(ctx, current.TrainerID, formID)
	if err != nil {
		return nil, err
	}
	records := make([]intake.AnswerRecord, 0, len(answers))
	for _, answer := range answers {
		record := intake.AnswerRecord{
			QuestionID:     answer.QuestionID,
			QuestionSource: intake.Source(answer.QuestionSource),
			Other:          answer.Other,
		}
		if err := json.Unmarshal(answer.Value, &record.Answer); err != nil {
			return nil, fmt.Errorf("decode answer %s: %w", record.Key(), err)
		}
		records = append(records, record)
	}
	return records, nil
}

// AutoSave stores a draft snapshot. A missing form id allocates the form first,
// so the returned id is the one the client should keep.
func (s *Service) AutoSave(ctx context.Context, current Session, in AutoSaveInput) (int64, error) {
	if err := s.authorize(current, rbac.ActionFillForm); err != nil {
		return 0, err
	}
	if err := s.check(in); err != nil {
		return 0, err
	}
	answers, err := toStoreAnswers(in.Answers)
	if err != nil {
		return 0, err
	}

	var formID int64
	if in.FormData.FormID == nil || *in.FormData.FormID <= 0 {
		form, err := s.store.CreateIntakeForm(ctx, current.TrainerID, in.ClientID, formType(in.FormData.FormType), in.Revision)
		if err != nil {
			return 0, err
		}
		formID = form.ID
	} else {
		form, err := s.clientForm(ctx, current, in.ClientID, *in.FormData.FormID)
		if err != nil {
			return 0, err
		}
		formID = form.ID
	}

	if err := s.store.SaveAnswers(ctx, current.TrainerID, formID, in.Revision, answers, false); err != nil {
		return 0, err
	}
	log.WithFields(log.Fields{"form_id": formID, "answers": len(answers), "revision": in.Revision}).Debug("intake: autosaved")
	return formID, nil
}

func (s *Service) UpdateFormStatus(ctx context.Context, current Session, in StatusInput) error {
	if err := s.authorize(current, rbac.ActionFillForm); err != nil {
		return err
	}
	if err := s.check(in); err != nil {
		return err
	}
	if err := s.store.UpdateFormStatus(ctx, current.TrainerID, in.FormID, in.Status, in.Revision); err != nil {
		return err
	}
	log.WithFields(log.Fields{"form_id": in.FormID, "status": in.Status}).Info("intake: form status updated")
	return nil
}

// FinalSave writes the submitted answers. It is accepted after completion.
func (s *Service) FinalSave(ctx context.Context, current Session, in FinalSaveInput) error {
	if err := s.authorize(current, rbac.ActionFillForm); err != nil {
		return err
	}
	if err := s.check(in); err != nil {
		return err
	}
	answers, err := toStoreAnswers(in.Answers)
	if err != nil {
		return err
	}
	return s.store.SaveAnswers(ctx, current.TrainerID, in.FormID, in.Revision, answers, true)
}

// CreateClientSummary stores a pending summary and queues its generation.
func (s *Service) CreateClientSummary(ctx context.Context, current Session, clientID int64, in SummaryInput) (SummaryView, error) {
	if err := s.authorize(current, rbac.ActionFillForm); err != nil {
		return SummaryView{}, err
	}
	if err := s.check(in); err != nil {
		return SummaryView{}, err
	}
	client, err := s.store.GetClient(ctx, current.TrainerID, clientID)
	if err != nil {
		return SummaryView{}, err
	}
	if _, err := s.clientForm(ctx, current, clientID, in.FormID); err != nil {
		return SummaryView{}, err
	}

	formID := in.FormID
	created, err := s.store.InsertSummary(ctx, store.ClientSummary{
		TrainerID:   current.TrainerID,
		ClientID:    clientID,
		FormID:      &formID,
		SummaryType: "intake",
		Prompt:      summary.BuildPrompt(client.FirstName+" "+client.LastName, in.Data),
	})
	if err != nil {
		return SummaryView{}, err
	}

	if s.queue == nil {
		log.WithField("summary_id", created.ID).Warn("summary: queue not configured, summary left pending")
		return toSummaryView(created), nil
	}
	job := session.SummaryJob{
		ID:        uuid.NewString(),
		SummaryID: created.ID,
		TrainerID: current.TrainerID,
		ClientID:  clientID,
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		// no worker will pick the row up, so it must not stay pending
		if markErr := s.store.FinishSummary(ctx, created.ID, ""); markErr != nil {
			log.WithField("summary_id", created.ID).WithError(markErr).Error("summary: mark unqueued summary failed")
		}
		log.WithField("summary_id", created.ID).WithError(err).Warn("summary: enqueue failed")
		return SummaryView{}, unavailable("SUMMARY_QUEUE_UNAVAILABLE", "Summary could not be queued")
	}
	return toSummaryView(created), nil
}

func (s *Service) ClientSummaries(ctx context.Context, current Session, clientID int64) ([]SummaryView, error) {
	if _, err := s.store.GetClient(ctx, current.TrainerID, clientID); err != nil {
		return nil, err
	}
	items, err := s.store.ListSummaries(ctx, current.TrainerID, clientID)
	if err != nil {
		return nil, err
	}
	out := make([]SummaryView, 0, len(items))
	for _, item := range items {
		out = append(out, toSummaryView(item))
	}
	return out, nil
}

func (s *Service) ExportIntakeForm(ctx context.Context, current Session, formID int64, format string) (*export.Result, error) {
	if err := s.authorize(current, rbac.ActionExport); err != nil {
		return nil, err
	}
	if s.exporter == nil {
		return nil, unavailable("EXPORT_UNAVAILABLE", "Export is not configured")
	}
	parsed, err := export.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	return s.exporter.Export(ctx, export.Request{TrainerID: current.TrainerID, FormID: formID, Format: parsed})
}

func (s *Service) templateRepo() (templateRepo, error) {
	if s.templates == nil {
		return nil, unavailable("TEMPLATES_UNAVAILABLE", "Templates are not configured")
	}
	return s.templates, nil
}

func (s *Service) ListTemplates(_ context.Context, current Session) ([]gitrepo.Summary, error) {
	repo, err := s.templateRepo()
	if err != nil {
		return nil, err
	}
	return repo.List(current.TrainerID)
}

func (s *Service) SaveTemplate(_ context.Context, current Session, in TemplateInput) (gitrepo.Revision, error) {
	if err := s.authorize(current, rbac.ActionManageQuestions); err != nil {
		return gitrepo.Revision{}, err
	}
	repo, err := s.templateRepo()
	if err != nil {
		return gitrepo.Revision{}, err
	}
	if err := s.check(in); err != nil {
		return gitrepo.Revision{}, err
	}
	return repo.Save(current.TrainerID, gitrepo.Template{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Questions:   in.Questions,
	}, current.UserName)
}

func (s *Service) GetTemplate(_ context.Context, current Session, hash string) (gitrepo.Template, gitrepo.Revision, error) {
	repo, err := s.templateRepo()
	if err != nil {
		return gitrepo.Template{}, gitrepo.Revision{}, err
	}
	return repo.Get(current.TrainerID, hash)
}

func (s *Service) draftStorage(current Session, key string) (intake.Storage, error) {
	if s.drafts == nil {
		return nil, unavailable("DRAFTS_UNAVAILABLE", "Server drafts are not configured")
	}
	if !draftKeyPattern.MatchString(key) {
		return nil, invalid("Invalid draft key", nil)
	}
	return s.drafts(current.TrainerID), nil
}

func (s *Service) GetDraft(ctx context.Context, current Session, key string) (string, error) {
	storage, err := s.draftStorage(current, key)
	if err != nil {
		return "", err
	}
	value, ok, err := storage.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", sql.ErrNoRows
	}
	return value, nil
}

func (s *Service) PutDraft(ctx context.Context, current Session, key, value string) error {
	storage, err := s.draftStorage(current, key)
	if err != nil {
		return err
	}
	return storage.Set(ctx, key, value)
}

func (s *Service) DeleteDraft(ctx context.Context, current Session, key string) error {
	storage, err := s.draftStorage(current, key)
	if err != nil {
		return err
	}
	return storage.Remove(ctx, key)
}
