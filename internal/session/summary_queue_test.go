package session

import (
	"context"
	"testing"
	"time"
)

func TestSummaryQueueIsFIFO(t *testing.T) {
	client, _ := newTestClient(t)
	queue := NewSummaryQueue(client)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		if err := queue.Enqueue(ctx, SummaryJob{ID: "job", SummaryID: i, TrainerID: 1, ClientID: 2}); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}
	if n, err := queue.Len(ctx); err != nil || n != 3 {
		t.Fatalf("Len() = %d, %v", n, err)
	}

	for want := int64(1); want <= 3; want++ {
		job, ok, err := queue.Dequeue(ctx, time.Second)
		if err != nil || !ok {
			t.Fatalf("Dequeue() ok=%v err=%v", ok, err)
		}
		if job.SummaryID != want || job.EnqueuedAt.IsZero() {
			t.Fatalf("Dequeue() = %+v, want summary %d", job, want)
		}
	}
}
