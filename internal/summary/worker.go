package summary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/log"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/session"
	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/store"
)

type Store interface {
	GetSummary(ctx context.Context, summaryID int64) (store.ClientSummary, error)
	FinishSummary(ctx context.Context, summaryID int64, text string) error
	GetTrainerByID(ctx context.Context, trainerID int64) (store.Trainer, error)
	GetClient(ctx context.Context, trainerID, clientID int64) (store.Client, error)
}

type Queue interface {
	Dequeue(ctx context.Context, wait time.Duration) (session.SummaryJob, bool, error)
}

type Notifier interface {
	IsConfigured() bool
	SendSummaryReadyEmail(to, trainerName, clientName string, clientID int64) error
}

// Worker drains the summary queue one job at a time.
type Worker struct {
	queue     Queue
	store     Store
	generator Generator
	notifier  Notifier
	wait      time.Duration
	backoff   time.Duration
}

// NewWorker builds a worker. notifier may be nil.
func NewWorker(queue Queue, store Store, generator Generator, notifier Notifier) *Worker {
	return &Worker{
		queue:     queue,
		store:     store,
		generator: generator,
		notifier:  notifier,
		wait:      5 * time.Second,
		backoff:   time.Second,
	}
}

// Run processes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	log.Infof("summary: worker started")
	for {
		if ctx.Err() != nil {
			log.Infof("summary: worker stopped")
			return
		}
		job, ok, err := w.queue.Dequeue(ctx, w.wait)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.WithError(err).Warn("summary: dequeue failed")
			select {
			case <-ctx.Done():
			case <-time.After(w.backoff):
			}
			continue
		}
		if !ok {
			continue
		}
		if err := w.Process(ctx, job); err != nil {
			log.WithFields(log.Fields{"job_id": job.ID, "summary_id": job.SummaryID}).WithError(err).Error("summary: job failed")
		}
	}
}

// Process generates one summary. A generator failure marks the summary failed;
// the error is still returned so the caller can log it.
func (w *Worker) Process(ctx context.Context, job session.SummaryJob) error {
	summary, err := w.store.GetSummary(ctx, job.SummaryID)
	if err != nil {
		return fmt.Errorf("load summary %d: %w", job.SummaryID, err)
	}
	if summary.Status != store.SummaryPending {
		return nil
	}

	started := time.Now()
	text, genErr := w.generator.Generate(ctx, summary.Prompt)
	if genErr != nil {
		text = ""
	}
	if err := w.store.FinishSummary(ctx, summary.ID, text); err != nil {
		return fmt.Errorf("store summary %d: %w", summary.ID, err)
	}
	if genErr != nil {
		return fmt.Errorf("generate summary %d: %w", summary.ID, genErr)
	}

	log.WithFields(log.Fields{
		"summary_id":  summary.ID,
		"client_id":   summary.ClientID,
		"duration_ms": time.Since(started).Milliseconds(),
	}).Info("summary: ready")

	w.notify(ctx, summary)
	return nil
}

func (w *Worker) notify(ctx context.Context, summary store.ClientSummary) {
	if w.notifier == nil || !w.notifier.IsConfigured() {
		return
	}
	trainer, err := w.store.GetTrainerByID(ctx, summary.TrainerID)
	if err != nil {
		log.WithError(err).Warn("summary: load trainer for notification")
		return
	}
	client, err := w.store.GetClient(ctx, summary.TrainerID, summary.ClientID)
	if err != nil {
		log.WithError(err).Warn("summary: load client for notification")
		return
	}
	clientName := client.FirstName + " " + client.LastName
	if err := w.notifier.SendSummaryReadyEmail(trainer.Email, trainer.FirstName, clientName, client.ID); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Warn("summary: send notification")
	}
}
