package circuits

import "github.com/vocdoni/kernel-prover/types"

// Capacities are the sizes of the kernel accumulated arrays. A chain must run
// a reset circuit before any of them would overflow.
type Capacities struct {
	NoteHashes            int `json:"noteHashes"`
	Nullifiers            int `json:"nullifiers"`
	NoteHashReadRequests  int `json:"noteHashReadRequests"`
	NullifierReadRequests int `json:"nullifierReadRequests"`
	KeyValidationRequests int `json:"keyValidationRequests"`
	PublicCallRequests    int `json:"publicCallRequests"`
}

// DefaultCapacities returns the protocol capacities.
func DefaultCapacities() Capacities {
	return Capacities{
		NoteHashes:            types.MaxNoteHashesPerTx,
		Nullifiers:            types.MaxNullifiersPerTx,
		NoteHashReadRequests:  types.MaxNoteHashReadRequestsPerTx,
		NullifierReadRequests: types.MaxNullifierReadRequestsPerTx,
		KeyValidationRequests: types.MaxKeyValidationRequestsPerTx,
		PublicCallRequests:    types.MaxEnqueuedCallsPerTx,
	}
}
