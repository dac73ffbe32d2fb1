package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vocdoni/kernel-prover/kernelprover"
	"github.com/vocdoni/kernel-prover/log"
	"github.com/vocdoni/kernel-prover/storage"
	"golang.org/x/sync/errgroup"
)

// DefaultPollInterval is how long an idle worker waits before looking for
// new jobs in the queue.
const DefaultPollInterval = time.Second

// ProverService runs a pool of workers that take proving jobs from the
// storage queue, prove them and store their output.
type ProverService struct {
	stg          *storage.Storage
	kp           *kernelprover.KernelProver
	workers      int
	pollInterval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewProver creates a new ProverService with the provided number of workers.
func NewProver(stg *storage.Storage, kp *kernelprover.KernelProver, workers int) *ProverService {
	return &ProverService{
		stg:          stg,
		kp:           kp,
		workers:      max(workers, 1),
		pollInterval: DefaultPollInterval,
	}
}

// SetPollInterval changes the idle wait of the workers. It must be called
// before Start.
func (ps *ProverService) SetPollInterval(d time.Duration) {
	ps.pollInterval = d
}

// Start releases the jobs left running by a previous process and starts the
// workers. It returns an error if the service is already running.
func (ps *ProverService) Start(ctx context.Context) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.cancel != nil {
		return fmt.Errorf("prover service already running")
	}
	released, err := ps.stg.ReleaseJobs()
	if err != nil {
		return fmt.Errorf("failed to release jobs: %w", err)
	}
	if released > 0 {
		log.Infow("released interrupted proving jobs", "count", released)
	}

	ctx, ps.cancel = context.WithCancel(ctx)
	ps.group, ctx = errgroup.WithContext(ctx)
	for i := range ps.workers {
		ps.group.Go(func() error {
			ps.worker(ctx, i)
			return nil
		})
	}
	log.Infow("prover service started", "workers", ps.workers)
	return nil
}

// Stop halts the workers and waits for them to finish the jobs in progress.
func (ps *ProverService) Stop() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.cancel == nil {
		return
	}
	ps.cancel()
	if err := ps.group.Wait(); err != nil {
		log.Warnw("prover service stopped", "error", err)
	}
	ps.cancel = nil
	ps.group = nil
	log.Infow("prover service stopped")
}

func (ps *ProverService) worker(ctx context.Context, id int) {
	ticker := time.NewTicker(ps.pollInterval)
	defer ticker.Stop()
	log.Debugw("prover worker started", "worker", id)

	for {
		select {
		case <-ctx.Done():
			log.Debugw("prover worker stopped", "worker", id)
			return
		default:
		}

		job, err := ps.stg.NextJob()
		if err != nil {
			if !errors.Is(err, storage.ErrNoMoreElements) {
				log.Errorw(err, "failed to get next proving job")
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				log.Debugw("prover worker stopped", "worker", id)
				return
			}
			continue
		}
		ps.processJob(ctx, id, job)
	}
}

// processJob proves one job and stores its result. A job interrupted by the
// shutdown of the service is left reserved, so it is released and proved
// again on the next start.
func (ps *ProverService) processJob(ctx context.Context, worker int, job *storage.ProvingJob) {
	log.Debugw("proving job", "worker", worker, "jobId", job.ID)
	startTime := time.Now()

	output, err := ps.kp.Prove(ctx, &job.TxRequest, job.ExecutionResult)
	if err != nil {
		if ctx.Err() != nil {
			log.Warnw("proving job interrupted", "jobId", job.ID)
			return
		}
		log.Warnw("proving job failed", "jobId", job.ID, "error", err.Error())
		if err := ps.stg.MarkJobFailed(job.ID, err); err != nil {
			log.Errorw(err, fmt.Sprintf("failed to mark job %s as failed", job.ID))
		}
		return
	}
	if err := ps.stg.MarkJobDone(job.ID, output); err != nil {
		log.Errorw(err, fmt.Sprintf("failed to mark job %s as done", job.ID))
		return
	}
	log.Infow("proving job done",
		"jobId", job.ID,
		"worker", worker,
		"took", time.Since(startTime).String())
}
