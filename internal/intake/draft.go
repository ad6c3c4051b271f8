package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/log"
)

// Draft is the unsubmitted working copy of one client's intake form.
type Draft struct {
	ActiveQuestions []Question
	Answers         Answers
	FormID          *int64
}

func EmptyDraft() Draft {
	return Draft{ActiveQuestions: []Question{}, Answers: Answers{}}
}

func (d Draft) IsEmpty() bool {
	return len(d.ActiveQuestions) == 0 && len(d.Answers) == 0 && d.FormID == nil
}

func (d Draft) Clone() Draft {
	out := Draft{
		ActiveQuestions: cloneQuestions(d.ActiveQuestions),
		Answers:         d.Answers.Clone(),
	}
	if d.FormID != nil {
		id := *d.FormID
		out.FormID = &id
	}
	return out
}

const (
	keyQuestions  = "currentQuestions_"
	keyAnswers    = "currentAnswers_"
	keyFormID     = "formId_"
	keyHasLeft    = "hasLeftIntakeForm_"
	keyCustomized = "customizeTriggered_"
)

// DraftStore persists drafts in local storage and per-visit flags in session storage.
type DraftStore struct {
	local   Storage
	session Storage
}

func NewDraftStore(local, session Storage) *DraftStore {
	return &DraftStore{local: local, session: session}
}

func storageKey(prefix string, clientID int64) string {
	return prefix + strconv.FormatInt(clientID, 10)
}

// Load returns the stored draft. A missing draft is created empty and persisted;
// a corrupt one is logged and replaced by an empty draft.
func (s *DraftStore) Load(ctx context.Context, clientID int64) (Draft, error) {
	rawQuestions, hasQuestions, err := s.local.Get(ctx, storageKey(keyQuestions, clientID))
	if err != nil {
		return Draft{}, fmt.Errorf("read draft questions: %w", err)
	}
	rawAnswers, hasAnswers, err := s.local.Get(ctx, storageKey(keyAnswers, clientID))
	if err != nil {
		return Draft{}, fmt.Errorf("read draft answers: %w", err)
	}
	rawFormID, hasFormID, err := s.local.Get(ctx, storageKey(keyFormID, clientID))
	if err != nil {
		return Draft{}, fmt.Errorf("read draft form id: %w", err)
	}

	if !hasQuestions && !hasAnswers && !hasFormID {
		draft := EmptyDraft()
		if err := s.Save(ctx, clientID, draft); err != nil {
			return Draft{}, err
		}
		return draft, nil
	}

	draft, err := decodeDraft(rawQuestions, rawAnswers, rawFormID, hasQuestions, hasAnswers, hasFormID)
	if err != nil {
		log.WithFields(log.Fields{"client_id": clientID}).WithError(err).Warn("intake: stored draft unreadable, starting empty")
		draft = EmptyDraft()
		if err := s.Save(ctx, clientID, draft); err != nil {
			return Draft{}, err
		}
	}
	return draft, nil
}

func decodeDraft(rawQuestions, rawAnswers, rawFormID string, hasQuestions, hasAnswers, hasFormID bool) (Draft, error) {
	draft := EmptyDraft()
	if hasQuestions {
		if err := json.Unmarshal([]byte(rawQuestions), &draft.ActiveQuestions); err != nil {
			return Draft{}, fmt.Errorf("decode questions: %w", err)
		}
		if draft.ActiveQuestions == nil {
			draft.ActiveQuestions = []Question{}
		}
	}
	if hasAnswers {
		if err := json.Unmarshal([]byte(rawAnswers), &draft.Answers); err != nil {
			return Draft{}, fmt.Errorf("decode answers: %w", err)
		}
		if draft.Answers == nil {
			draft.Answers = Answers{}
		}
	}
	if hasFormID && rawFormID != "" && rawFormID != "null" {
		id, err := strconv.ParseInt(rawFormID, 10, 64)
		if err != nil {
			return Draft{}, fmt.Errorf("decode form id: %w", err)
		}
		draft.FormID = &id
	}
	return draft, nil
}

// Save overwrites every stored part of the draft.
func (s *DraftStore) Save(ctx context.Context, clientID int64, draft Draft) error {
	questions := draft.ActiveQuestions
	if questions == nil {
		questions = []Question{}
	}
	answers := draft.Answers
	if answers == nil {
		answers = Answers{}
	}
	encodedQuestions, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("encode draft questions: %w", err)
	}
	encodedAnswers, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("encode draft answers: %w", err)
	}
	formID := "null"
	if draft.FormID != nil {
		formID = strconv.FormatInt(*draft.FormID, 10)
	}

	if err := s.local.Set(ctx, storageKey(keyQuestions, clientID), string(encodedQuestions)); err != nil {
		return fmt.Errorf("write draft questions: %w", err)
	}
	if err := s.local.Set(ctx, storageKey(keyAnswers, clientID), string(encodedAnswers)); err != nil {
		return fmt.Errorf("write draft answers: %w", err)
	}
	if err := s.local.Set(ctx, storageKey(keyFormID, clientID), formID); err != nil {
		return fmt.Errorf("write draft form id: %w", err)
	}
	return nil
}

func (s *DraftStore) Clear(ctx context.Context, clientID int64) error {
	for _, prefix := range []string{keyQuestions, keyAnswers, keyFormID} {
		if err := s.local.Remove(ctx, storageKey(prefix, clientID)); err != nil {
			return fmt.Errorf("clear draft: %w", err)
		}
	}
	return nil
}

func (s *DraftStore) HasLeft(ctx context.Context, clientID int64) (bool, error) {
	return s.flag(ctx, keyHasLeft, clientID)
}

func (s *DraftStore) MarkLeft(ctx context.Context, clientID int64) error {
	return s.setFlag(ctx, keyHasLeft, clientID)
}

func (s *DraftStore) ClearLeft(ctx context.Context, clientID int64) error {
	return s.clearFlag(ctx, keyHasLeft, clientID)
}

func (s *DraftStore) CustomizeTriggered(ctx context.Context, clientID int64) (bool, error) {
	return s.flag(ctx, keyCustomized, clientID)
}

func (s *DraftStore) MarkCustomize(ctx context.Context, clientID int64) error {
	return s.setFlag(ctx, keyCustomized, clientID)
}

func (s *DraftStore) ClearCustomize(ctx context.Context, clientID int64) error {
	return s.clearFlag(ctx, keyCustomized, clientID)
}

func (s *DraftStore) flag(ctx context.Context, prefix string, clientID int64) (bool, error) {
	value, ok, err := s.session.Get(ctx, storageKey(prefix, clientID))
	if err != nil {
		return false, fmt.Errorf("read %s flag: %w", prefix, err)
	}
	return ok && value == "true", nil
}

func (s *DraftStore) setFlag(ctx context.Context, prefix string, clientID int64) error {
	if err := s.session.Set(ctx, storageKey(prefix, clientID), "true"); err != nil {
		return fmt.Errorf("write %s flag: %w", prefix, err)
	}
	return nil
}

func (s *DraftStore) clearFlag(ctx context.Context, prefix string, clientID int64) error {
	if err := s.session.Remove(ctx, storageKey(prefix, clientID)); err != nil {
		return fmt.Errorf("clear %s flag: %w", prefix, err)
	}
	return nil
}
