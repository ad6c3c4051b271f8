package search

import (
	"context"
	"strconv"

	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/store"
)

// Result is a single question hit returned to the caller.
type Result struct {
	Key      string   `json:"key"`
	ID       int64    `json:"id"`
	Source   string   `json:"question_source"`
	Text     string   `json:"question_text"`
	Type     string   `json:"question_type"`
	Options  []string `json:"options,omitempty"`
	Category string   `json:"category"`
	Snippet  string   `json:"snippet"`
}

// Query describes a search request scoped to one trainer's catalog.
type Query struct {
	Text      string
	Category  string // empty = all categories
	TrainerID int64
	Limit     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a catalog search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// QuestionRecord is the data we index for a question. Meilisearch ids only allow
// [A-Za-z0-9_-], so the document id is "{source}-{id}".
type QuestionRecord struct {
	ID         string   `json:"id"`
	QuestionID int64    `json:"questionId"`
	Source     string   `json:"source"`
	TrainerID  int64    `json:"trainerId"`
	Text       string   `json:"text"`
	Type       string   `json:"type"`
	Options    []string `json:"options"`
	Category   string   `json:"category"`
}

func documentID(source string, questionID int64) string {
	return source + "-" + strconv.FormatInt(questionID, 10)
}

// RecordFromQuestion flattens a stored question for indexing.
func RecordFromQuestion(q store.Question) QuestionRecord {
	record := QuestionRecord{
		ID:         documentID(q.Source, q.ID),
		QuestionID: q.ID,
		Source:     q.Source,
		Text:       q.Text,
		Type:       q.Type,
		Options:    q.Options,
		Category:   q.Category,
	}
	if q.TrainerID != nil {
		record.TrainerID = *q.TrainerID
	}
	if record.Options == nil {
		record.Options = []string{}
	}
	return record
}

func resultFromQuestion(q store.Question) Result {
	return Result{
		Key:      q.Source + ":" + strconv.FormatInt(q.ID, 10),
		ID:       q.ID,
		Source:   q.Source,
		Text:     q.Text,
		Type:     q.Type,
		Options:  q.Options,
		Category: q.Category,
		Snippet:  q.Text,
	}
}
