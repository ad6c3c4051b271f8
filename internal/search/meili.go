package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"

	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/log"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/store"
)

const idxQuestions = "smartgains_questions"

// Meili implements Searcher via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the question index.
// The client is returned even when the first health check fails; healthLoop
// flips it on once the server answers.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Warnf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxQuestions,
		PrimaryKey: "id",
	}); err != nil {
		log.Debugf("search: create index %s (may already exist): %v", idxQuestions, err)
	}

	index := m.client.Index(idxQuestions)
	filterable := []interface{}{"source", "trainerId", "category"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		log.Warnf("search: update filterable attrs for %s: %v", idxQuestions, err)
	}
	searchable := []string{"text", "category", "options"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		log.Warnf("search: update searchable attrs for %s: %v", idxQuestions, err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Infof("search: meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// filterFor limits hits to global questions plus the trainer's own.
func filterFor(q Query) []string {
	filters := []string{fmt.Sprintf("(source = %q OR trainerId = %d)", store.SourceGlobal, q.TrainerID)}
	if q.Category != "" {
		filters = append(filters, fmt.Sprintf("category = %q", q.Category))
	}
	return filters
}

func (m *Meili) Search(_ context.Context, q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit <= 0 {
		limit = 20
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{{
			IndexUID:              idxQuestions,
			Query:                 q.Text,
			Limit:                 limit,
			Filter:                filterFor(q),
			AttributesToHighlight: []string{"text"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
		}},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		for _, hit := range sr.Hits {
			result, err := hitToResult(hit)
			if err != nil {
				log.WithError(err).Debug("search: skipping undecodable hit")
				continue
			}
			results = append(results, result)
		}
	}
	return results, total, nil
}

// questionHit mirrors QuestionRecord plus the highlighted copy Meilisearch adds.
type questionHit struct {
	QuestionRecord
	Formatted struct {
		Text string `json:"text"`
	} `json:"_formatted"`
}

func hitToResult(hit meili.Hit) (Result, error) {
	raw, err := json.Marshal(hit)
	if err != nil {
		return Result{}, err
	}
	var h questionHit
	if err := json.Unmarshal(raw, &h); err != nil {
		return Result{}, fmt.Errorf("decode hit: %w", err)
	}
	r := Result{
		Key:      h.Source + ":" + strconv.FormatInt(h.QuestionID, 10),
		ID:       h.QuestionID,
		Source:   h.Source,
		Text:     h.Text,
		Type:     h.Type,
		Category: h.Category,
		Snippet:  strings.TrimSpace(h.Formatted.Text),
	}
	if len(h.Options) > 0 {
		r.Options = h.Options
	}
	if r.Snippet == "" {
		r.Snippet = r.Text
	}
	return r, nil
}

// IndexQuestions adds or updates questions in the index.
func (m *Meili) IndexQuestions(records []QuestionRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxQuestions).AddDocuments(records, nil)
	return err
}

func (m *Meili) DeleteQuestion(source string, questionID int64) error {
	_, err := m.client.Index(idxQuestions).DeleteDocument(documentID(source, questionID), nil)
	return err
}
