package search

import (
	"context"

	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/log"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/store"
)

// Index is the write side of the question index.
type Index interface {
	Healthy() bool
	IndexQuestions(records []QuestionRecord) error
	DeleteQuestion(source string, questionID int64) error
}

type primary interface {
	Searcher
	Index
}

// Service is the facade that tries Meilisearch first and falls back to Postgres.
type Service struct {
	meili    primary
	postgres *Postgres
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, postgres *Postgres) *Service {
	if meili == nil {
		return &Service{postgres: postgres}
	}
	return &Service{meili: meili, postgres: postgres}
}

func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Warnf("search: meilisearch error, falling back to postgres: %v", err)
	}

	results, total, err := s.postgres.Search(ctx, q)
	if err != nil {
		log.Errorf("search: postgres error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexQuestion indexes one question (fire-and-forget to Meilisearch).
func (s *Service) IndexQuestion(q store.Question) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	record := RecordFromQuestion(q)
	go func() {
		if err := s.meili.IndexQuestions([]QuestionRecord{record}); err != nil {
			log.Warnf("search: index question %s: %v", record.ID, err)
		}
	}()
}

// DeleteQuestion removes a question from the index (fire-and-forget).
func (s *Service) DeleteQuestion(source string, questionID int64) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteQuestion(source, questionID); err != nil {
			log.Warnf("search: delete question %s: %v", documentID(source, questionID), err)
		}
	}()
}

// ReindexAll reads every question from Postgres and pushes it to Meilisearch.
// It returns the number of records sent; zero when Meilisearch is unavailable.
func (s *Service) ReindexAll(ctx context.Context) (int, error) {
	if s.meili == nil || !s.meili.Healthy() || s.postgres == nil {
		return 0, nil
	}
	records, err := s.postgres.LoadAllRecords(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.meili.IndexQuestions(records); err != nil {
		return 0, err
	}
	return len(records), nil
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
