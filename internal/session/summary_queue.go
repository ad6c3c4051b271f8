package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SummaryJob asks the worker to generate one stored client summary.
type SummaryJob struct {
	ID         string    `json:"id"`
	SummaryID  int64     `json:"summary_id"`
	TrainerID  int64     `json:"trainer_id"`
	ClientID   int64     `json:"client_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// SummaryQueue is a Redis list consumed with BRPOP.
type SummaryQueue struct {
	client *redis.Client
	key    string
}

func NewSummaryQueue(client *redis.Client) *SummaryQueue {
	return &SummaryQueue{client: client, key: "queue:summaries"}
}

func (q *SummaryQueue) Enqueue(ctx context.Context, job SummaryJob) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal summary job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("enqueue summary job: %w", err)
	}
	return nil
}

// Dequeue blocks up to wait for the next job. ok is false when the wait elapsed.
func (q *SummaryQueue) Dequeue(ctx context.Context, wait time.Duration) (SummaryJob, bool, error) {
	result, err := q.client.BRPop(ctx, wait, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return SummaryJob{}, false, nil
	}
	if err != nil {
		return SummaryJob{}, false, fmt.Errorf("dequeue summary job: %w", err)
	}
	// result is [key, value]
	var job SummaryJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return SummaryJob{}, false, fmt.Errorf("decode summary job: %w", err)
	}
	return job, true, nil
}

func (q *SummaryQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}
