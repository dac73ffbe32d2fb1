package api

import (
	"github.com/vocdoni/kernel-prover/circuits"
	"github.com/vocdoni/kernel-prover/execution"
	"github.com/vocdoni/kernel-prover/storage"
	"github.com/vocdoni/kernel-prover/types"
)

// ProofRequest asks the prover to build the kernel proof of a transaction
// whose private execution has already been simulated.
type ProofRequest struct {
	TxRequest       circuits.TxRequest `json:"txRequest"`
	ExecutionResult *execution.Result  `json:"executionResult"`
}

// ProofResponse is returned when a proving job is enqueued.
type ProofResponse struct {
	JobID string `json:"jobId"`
}

// Contract is a contract class and one of its instances. If the instance
// address is empty it is derived from the rest of the instance fields.
type Contract struct {
	Class    storage.ContractClass    `json:"class"`
	Instance storage.ContractInstance `json:"instance"`
}

// ContractResponse is the result of a contract registration.
type ContractResponse struct {
	Address types.AztecAddress `json:"address"`
	ClassID types.Fr           `json:"classId"`
}

// StateUpdate inserts settled data in the world state. Master secret keys
// are indexed by the hash of their public key.
type StateUpdate struct {
	NoteHashes       []types.Fr `json:"noteHashes,omitempty"`
	Nullifiers       []types.Fr `json:"nullifiers,omitempty"`
	MasterSecretKeys []types.Fr `json:"masterSecretKeys,omitempty"`
}

// StateResponse holds the roots of the world state after an update, and the
// leaf index of the first inserted note hash.
type StateResponse struct {
	FirstNoteHashIndex uint64   `json:"firstNoteHashIndex"`
	NoteHashRoot       types.Fr `json:"noteHashRoot"`
	NullifierRoot      types.Fr `json:"nullifierRoot"`
}
