// Package worker runs the deposit completion loop: it sweeps the job table
// for due work and hands each job back to the deposit service.
package worker

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/apelisol/stepakash-wallet/internal/store"
)

// JobRunner executes a single queued deposit attempt.
type JobRunner interface {
	RunJob(ctx context.Context, jobID string) error
}

// JobLister pulls due jobs from the queue and reclaims abandoned ones.
type JobLister interface {
	Due(ctx context.Context, limit int) ([]store.DepositJob, error)
	FailStaleProcessing(ctx context.Context, cutoff time.Time) ([]store.DepositJob, error)
}

type Worker struct {
	jobs       JobLister
	runner     JobRunner
	batchSize  int
	staleAfter time.Duration
	cron       *cron.Cron
}

func New(jobs JobLister, runner JobRunner, batchSize int, staleAfter time.Duration) *Worker {
	return &Worker{jobs: jobs, runner: runner, batchSize: batchSize, staleAfter: staleAfter}
}

// Sweep processes one batch of due jobs. Individual job failures are logged
// and do not stop the batch; the jobs themselves record their retry state.
// Jobs abandoned at processing by a crashed runner are failed first: their
// transfer may already have gone out, so they go to the operator rather than
// back into the pool.
func (w *Worker) Sweep(ctx context.Context) {
	stale, err := w.jobs.FailStaleProcessing(ctx, time.Now().Add(-w.staleAfter))
	if err != nil {
		log.Printf("worker: reclaiming stale jobs failed: %v", err)
	}
	for _, job := range stale {
		log.Printf("CRITICAL deposit job %s: crashed mid-transfer, manual reconciliation required (transaction %s)", job.ID, job.TransactionID)
	}

	jobs, err := w.jobs.Due(ctx, w.batchSize)
	if err != nil {
		log.Printf("worker: listing due jobs failed: %v", err)
		return
	}
	for _, job := range jobs {
		if ctx.Err() != nil {
			return
		}
		if err := w.runner.RunJob(ctx, job.ID); err != nil {
			log.Printf("worker: job %s (transaction %s) failed: %v", job.ID, job.TransactionID, err)
		}
	}
}

// Start schedules periodic sweeps. The schedule accepts standard cron
// expressions as well as @every intervals.
func (w *Worker) Start(ctx context.Context, schedule string) error {
	w.cron = cron.New()
	_, err := w.cron.AddFunc(schedule, func() {
		w.Sweep(ctx)
	})
	if err != nil {
		return err
	}
	w.cron.Start()
	log.Printf("Deposit worker started with schedule %q", schedule)
	return nil
}

// Stop halts scheduling and waits for in-flight sweeps to finish.
func (w *Worker) Stop() {
	if w.cron != nil {
		<-w.cron.Stop().Done()
	}
}
