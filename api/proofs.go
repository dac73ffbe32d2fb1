package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vocdoni/kernel-prover/execution"
	"github.com/vocdoni/kernel-prover/log"
	"github.com/vocdoni/kernel-prover/storage"
)

// newProof enqueues a proving job for the transaction
// POST /proofs
func (a *API) newProof(w http.ResponseWriter, r *http.Request) {
	req := &ProofRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	if req.ExecutionResult == nil {
		ErrMissingExecution.Write(w)
		return
	}
	// reject results the prover would fail on before they reach the queue
	if _, err := execution.Summarize(req.ExecutionResult); err != nil {
		ErrInvalidExecution.WithErr(err).Write(w)
		return
	}
	id, err := a.storage.PushJob(&req.TxRequest, req.ExecutionResult)
	if err != nil {
		ErrStorageFailure.Withf("could not enqueue job: %v", err).Write(w)
		return
	}
	log.Infow("new proving job",
		"jobId", id,
		"origin", req.TxRequest.Origin.String(),
		"calls", execution.Count(req.ExecutionResult))
	httpWriteJSON(w, &ProofResponse{JobID: id})
}

// proof returns the status of a proving job and its output once done
// GET /proofs/{jobId}
func (a *API) proof(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, JobURLParam))
	if err != nil {
		ErrMalformedJobID.WithErr(err).Write(w)
		return
	}
	job, err := a.storage.Job(id.String())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			ErrJobNotFound.Write(w)
			return
		}
		ErrStorageFailure.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, job)
}
