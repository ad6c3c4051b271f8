package intake

import (
	"context"
	"sync"

	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/log"
)

// Catalog holds the last successfully loaded question definitions.
type Catalog struct {
	source QuestionSource

	mu        sync.RWMutex
	questions []Question
}

func NewCatalog(source QuestionSource) *Catalog {
	return &Catalog{source: source, questions: []Question{}}
}

// Load refreshes the catalog. On failure the previous catalog is kept and returned.
func (c *Catalog) Load(ctx context.Context) []Question {
	fetched, err := c.source.UserQuestions(ctx)
	if err != nil {
		log.WithError(err).Warn("intake: question catalog fetch failed, keeping previous catalog")
		return c.Questions()
	}

	seen := make(map[Key]struct{}, len(fetched))
	questions := make([]Question, 0, len(fetched))
	for _, question := range fetched {
		if _, dup := seen[question.Key()]; dup {
			log.Debugf("intake: duplicate catalog question %s dropped", question.Key())
			continue
		}
		if err := question.Validate(); err != nil {
			log.WithError(err).Warnf("intake: catalog question %s skipped", question.Key())
			continue
		}
		seen[question.Key()] = struct{}{}
		questions = append(questions, question)
	}

	c.mu.Lock()
	c.questions = questions
	c.mu.Unlock()
	return cloneQuestions(questions)
}

func (c *Catalog) Questions() []Question {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneQuestions(c.questions)
}

func (c *Catalog) Lookup(key Key) (Question, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, question := range c.questions {
		if question.Key() == key {
			return question, true
		}
	}
	return Question{}, false
}
