package intake

import (
	"context"
	"fmt"

	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/log"
)

type Stage string

const (
	StageStatus  Stage = "status"
	StageAnswers Stage = "answers"
	StageSummary Stage = "summary"
)

// SubmitError reports which submission step failed. Status and answer
// failures leave the draft untouched; a summary failure happens after the
// form is already completed.
type SubmitError struct {
	Stage Stage
	Err   error
}

func (e *SubmitError) Error() string {
	if e.Completed() {
		return fmt.Sprintf("form submitted, summary request failed: %v", e.Err)
	}
	return fmt.Sprintf("submit %s: %v", e.Stage, e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// Completed reports whether the form reached the completed state despite the error.
func (e *SubmitError) Completed() bool {
	return e.Stage == StageSummary
}

type SubmitRequest struct {
	ClientID        int64
	FormID          int64
	ActiveQuestions []Question
	Answers         Answers
	GenerateSummary bool
}

type Finalizer struct {
	backend   FormFinisher
	drafts    *DraftStore
	revisions *Revisions
}

func NewFinalizer(backend FormFinisher, drafts *DraftStore, revisions *Revisions) *Finalizer {
	return &Finalizer{backend: backend, drafts: drafts, revisions: revisions}
}

// Submit completes the form, saves the final answers, clears the local draft
// and optionally requests a summary. The steps are not transactional.
func (f *Finalizer) Submit(ctx context.Context, req SubmitRequest) error {
	if err := f.backend.UpdateFormStatus(ctx, req.FormID, StatusCompleted, f.revisions.Next()); err != nil {
		return &SubmitError{Stage: StageStatus, Err: err}
	}

	records := Collect(req.ActiveQuestions, req.Answers)
	if err := f.backend.FinalSave(ctx, FinalSaveRequest{
		FormID:   req.FormID,
		Answers:  records,
		Revision: f.revisions.Next(),
	}); err != nil {
		return &SubmitError{Stage: StageAnswers, Err: err}
	}

	fields := log.Fields{"client_id": req.ClientID, "form_id": req.FormID}
	if err := f.drafts.Clear(ctx, req.ClientID); err != nil {
		log.WithFields(fields).WithError(err).Warn("intake: clear draft after submit failed")
	}
	if err := f.drafts.ClearLeft(ctx, req.ClientID); err != nil {
		log.WithFields(fields).WithError(err).Warn("intake: clear has-left flag after submit failed")
	}
	log.WithFields(fields).Infof("intake: form submitted with %d answers", len(records))

	if !req.GenerateSummary {
		return nil
	}
	if err := f.backend.CreateClientSummary(ctx, SummaryRequest{
		ClientID: req.ClientID,
		FormID:   req.FormID,
		Data:     Flatten(req.ActiveQuestions, req.Answers),
	}); err != nil {
		return &SubmitError{Stage: StageSummary, Err: err}
	}
	return nil
}
