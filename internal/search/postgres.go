package search

import (
	"context"
	"strings"

	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/store"
)

// QuestionStore is the part of the Postgres store the fallback and reindex need.
type QuestionStore interface {
	SearchQuestions(ctx context.Context, trainerID int64, query, category string, limit int) ([]store.Question, error)
	ListAllQuestions(ctx context.Context) ([]store.Question, error)
}

// Postgres implements Searcher with trigram-indexed ILIKE matching as a fallback.
type Postgres struct {
	store QuestionStore
}

func NewPostgres(questions QuestionStore) *Postgres {
	return &Postgres{store: questions}
}

// Healthy always returns true; if Postgres is down, the whole app is down.
func (p *Postgres) Healthy() bool {
	return true
}

func (p *Postgres) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" && q.Category == "" {
		return nil, 0, nil
	}
	questions, err := p.store.SearchQuestions(ctx, q.TrainerID, q.Text, q.Category, q.Limit)
	if err != nil {
		return nil, 0, err
	}
	results := make([]Result, 0, len(questions))
	for _, question := range questions {
		results = append(results, resultFromQuestion(question))
	}
	return results, len(results), nil
}

// LoadAllRecords reads every question for a full reindex.
func (p *Postgres) LoadAllRecords(ctx context.Context) ([]QuestionRecord, error) {
	questions, err := p.store.ListAllQuestions(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]QuestionRecord, 0, len(questions))
	for _, question := range questions {
		records = append(records, RecordFromQuestion(question))
	}
	return records, nil
}
