package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vocdoni/kernel-prover/circuits"
	"github.com/vocdoni/kernel-prover/execution"
	"github.com/vocdoni/kernel-prover/log"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

// JobStatus is the processing status of a proving job.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// ProvingJob is a request to prove a transaction, and its result once
// processed.
type ProvingJob struct {
	ID              string               `json:"id"`
	Status          JobStatus            `json:"status"`
	TxRequest       circuits.TxRequest   `json:"txRequest"`
	ExecutionResult *execution.Result    `json:"executionResult"`
	Output          *circuits.TailOutput `json:"output,omitempty"`
	Error           string               `json:"error,omitempty"`
	CreatedAt       time.Time            `json:"createdAt"`
	UpdatedAt       time.Time            `json:"updatedAt"`
}

// PushJob stores a new proving job and enqueues it. It returns the job id.
func (s *Storage) PushJob(txRequest *circuits.TxRequest, result *execution.Result) (string, error) {
	if txRequest == nil || result == nil {
		return "", fmt.Errorf("missing tx request or execution result")
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("could not generate job id: %w", err)
	}
	now := time.Now()
	job := &ProvingJob{
		ID:              id.String(),
		Status:          JobPending,
		TxRequest:       *txRequest,
		ExecutionResult: result,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	if err := s.setArtifact(jobPrefix, []byte(job.ID), job); err != nil {
		return "", fmt.Errorf("store job: %w", err)
	}
	if err := s.setArtifact(jobQueuePrefix, []byte(job.ID), &reservation{Timestamp: now.Unix()}); err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}
	return job.ID, nil
}

// Job returns the proving job with the provided id, or ErrNotFound.
func (s *Storage) Job(id string) (*ProvingJob, error) {
	job := &ProvingJob{}
	if err := s.getArtifact(jobPrefix, []byte(id), job); err != nil {
		return nil, err
	}
	return job, nil
}

// NextJob returns the oldest non reserved job of the queue and reserves it.
// It returns ErrNoMoreElements if there are no jobs available.
func (s *Storage) NextJob() (*ProvingJob, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	var chosen []byte
	pr := prefixeddb.NewPrefixedReader(s.db, jobQueuePrefix)
	if err := pr.Iterate(nil, func(k, _ []byte) bool {
		if s.isReserved(jobReservationPrefix, k) {
			return true
		}
		chosen = append([]byte(nil), k...)
		return false
	}); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	if chosen == nil {
		return nil, ErrNoMoreElements
	}
	job := &ProvingJob{}
	if err := s.getArtifact(jobPrefix, chosen, job); err != nil {
		return nil, fmt.Errorf("get job %s: %w", chosen, err)
	}
	if err := s.setReservation(jobReservationPrefix, chosen); err != nil {
		return nil, fmt.Errorf("reserve job %s: %w", chosen, err)
	}
	job.Status = JobRunning
	job.UpdatedAt = time.Now()
	if err := s.setArtifact(jobPrefix, chosen, job); err != nil {
		return nil, fmt.Errorf("update job %s: %w", chosen, err)
	}
	return job, nil
}

// MarkJobDone removes the job from the queue and stores its output.
func (s *Storage) MarkJobDone(id string, output *circuits.TailOutput) error {
	return s.finishJob(id, func(job *ProvingJob) {
		job.Status = JobDone
		job.Output = output
	})
}

// MarkJobFailed removes the job from the queue and stores the error that
// made it fail.
func (s *Storage) MarkJobFailed(id string, jobErr error) error {
	return s.finishJob(id, func(job *ProvingJob) {
		job.Status = JobFailed
		if jobErr != nil {
			job.Error = jobErr.Error()
		}
	})
}

func (s *Storage) finishJob(id string, update func(*ProvingJob)) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	key := []byte(id)
	job := &ProvingJob{}
	if err := s.getArtifact(jobPrefix, key, job); err != nil {
		return fmt.Errorf("get job %s: %w", id, err)
	}
	if err := s.deleteArtifact(jobReservationPrefix, key); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete reservation: %w", err)
	}
	if err := s.deleteArtifact(jobQueuePrefix, key); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete queued job: %w", err)
	}
	update(job)
	job.UpdatedAt = time.Now()
	return s.setArtifact(jobPrefix, key, job)
}

// ReleaseJobs drops every reservation so the jobs left running by a previous
// process are picked again. It returns the number of released jobs.
func (s *Storage) ReleaseJobs() (int, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	keys, err := s.clearReservations(jobReservationPrefix)
	if err != nil {
		return 0, err
	}
	for _, k := range keys {
		job := &ProvingJob{}
		if err := s.getArtifact(jobPrefix, k, job); err != nil {
			log.Warnw("released reservation without job", "id", string(k), "error", err.Error())
			continue
		}
		job.Status = JobPending
		job.UpdatedAt = time.Now()
		if err := s.setArtifact(jobPrefix, k, job); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}

// PendingJobs returns the number of jobs in the queue, reserved or not.
func (s *Storage) PendingJobs() (int, error) {
	count := 0
	pr := prefixeddb.NewPrefixedReader(s.db, jobQueuePrefix)
	if err := pr.Iterate(nil, func(_, _ []byte) bool {
		count++
		return true
	}); err != nil {
		return 0, err
	}
	return count, nil
}
