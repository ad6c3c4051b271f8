package intake

import (
	"context"
	"fmt"

	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/log"
)

type Decision int

const (
	// DecisionFresh starts from the default questions.
	DecisionFresh Decision = iota
	// DecisionResumeDraft continues the local draft as-is.
	DecisionResumeDraft
	// DecisionPrompt asks whether to resume the server form or start new.
	DecisionPrompt
)

func (d Decision) String() string {
	switch d {
	case DecisionFresh:
		return "fresh"
	case DecisionResumeDraft:
		return "resume_draft"
	case DecisionPrompt:
		return "prompt"
	}
	return "unknown"
}

type Reconciliation struct {
	Decision Decision
	// Draft is empty when Decision is DecisionPrompt.
	Draft           Draft
	ServerFormID    int64
	ClientFirstName string
	ClientLastName  string
}

type Reconciler struct {
	drafts *DraftStore
	forms  FormReader
}

func NewReconciler(drafts *DraftStore, forms FormReader) *Reconciler {
	return &Reconciler{drafts: drafts, forms: forms}
}

// Open decides how to start editing a client's form.
//
// Returning from a customize detour always continues the local draft without
// consulting the server. Otherwise a non-empty draft wins; with no draft, an
// in-progress server form prompts only if the trainer left the form earlier in
// this session, and the prompt clears that flag.
func (r *Reconciler) Open(ctx context.Context, clientID int64, catalog []Question) (Reconciliation, error) {
	draft, err := r.drafts.Load(ctx, clientID)
	if err != nil {
		return Reconciliation{}, err
	}

	customized, err := r.drafts.CustomizeTriggered(ctx, clientID)
	if err != nil {
		return Reconciliation{}, err
	}
	if customized {
		if err := r.drafts.ClearCustomize(ctx, clientID); err != nil {
			return Reconciliation{}, err
		}
		if !draft.IsEmpty() {
			return Reconciliation{Decision: DecisionResumeDraft, Draft: draft}, nil
		}
		return r.fresh(ctx, clientID, catalog, FormCheck{})
	}

	if !draft.IsEmpty() {
		return Reconciliation{Decision: DecisionResumeDraft, Draft: draft}, nil
	}

	check, err := r.forms.CheckIntakeForm(ctx, clientID)
	if err != nil {
		log.WithFields(log.Fields{"client_id": clientID}).WithError(err).Warn("intake: form check failed, starting from defaults")
		return r.fresh(ctx, clientID, catalog, FormCheck{})
	}

	if check.Exists && check.Status == StatusInProgress {
		left, err := r.drafts.HasLeft(ctx, clientID)
		if err != nil {
			return Reconciliation{}, err
		}
		if left {
			if err := r.drafts.ClearLeft(ctx, clientID); err != nil {
				return Reconciliation{}, err
			}
			return Reconciliation{
				Decision:        DecisionPrompt,
				Draft:           EmptyDraft(),
				ServerFormID:    check.FormID,
				ClientFirstName: check.ClientFirstName,
				ClientLastName:  check.ClientLastName,
			}, nil
		}
	}
	return r.fresh(ctx, clientID, catalog, check)
}

// Resume loads the server form's answers into a new local draft. A read
// failure degrades to the defaults while keeping the form id.
func (r *Reconciler) Resume(ctx context.Context, clientID, formID int64, catalog []Question) (Draft, error) {
	draft := EmptyDraft()
	draft.ActiveQuestions = Defaults(catalog)
	draft.FormID = &formID

	records, err := r.forms.SavedAnswers(ctx, clientID, formID)
	if err != nil {
		log.WithFields(log.Fields{"client_id": clientID, "form_id": formID}).WithError(err).Warn("intake: saved answers unavailable, resuming with defaults")
		records = nil
	}

	onForm := make(map[Key]struct{}, len(draft.ActiveQuestions))
	for _, question := range draft.ActiveQuestions {
		onForm[question.Key()] = struct{}{}
	}
	byKey := make(map[Key]Question, len(catalog))
	for _, question := range catalog {
		byKey[question.Key()] = question
	}
	for _, record := range records {
		key := record.Key()
		if _, ok := onForm[key]; ok {
			continue
		}
		question, ok := byKey[key]
		if !ok {
			continue
		}
		onForm[key] = struct{}{}
		draft.ActiveQuestions = append(draft.ActiveQuestions, question)
	}
	draft.Answers = Restore(records)

	if err := r.drafts.Save(ctx, clientID, draft); err != nil {
		return Draft{}, fmt.Errorf("save resumed draft: %w", err)
	}
	return draft, nil
}

// StartNew abandons any server form and starts from the defaults.
func (r *Reconciler) StartNew(ctx context.Context, clientID int64, catalog []Question) (Draft, error) {
	rec, err := r.fresh(ctx, clientID, catalog, FormCheck{})
	if err != nil {
		return Draft{}, err
	}
	return rec.Draft, nil
}

func (r *Reconciler) fresh(ctx context.Context, clientID int64, catalog []Question, check FormCheck) (Reconciliation, error) {
	draft := EmptyDraft()
	draft.ActiveQuestions = Defaults(catalog)
	if err := r.drafts.Save(ctx, clientID, draft); err != nil {
		return Reconciliation{}, fmt.Errorf("save fresh draft: %w", err)
	}
	return Reconciliation{
		Decision:        DecisionFresh,
		Draft:           draft,
		ClientFirstName: check.ClientFirstName,
		ClientLastName:  check.ClientLastName,
	}, nil
}
