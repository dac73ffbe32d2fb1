package circuits

import (
	"slices"

	"github.com/vocdoni/kernel-prover/types"
)

// TxConstantData is set by the init kernel and stays constant for the rest
// of the chain.
type TxConstantData struct {
	TxContext                TxContext `json:"txContext"`
	VKTreeRoot               types.Fr  `json:"vkTreeRoot"`
	ProtocolContractTreeRoot types.Fr  `json:"protocolContractTreeRoot"`
}

// ValidationRequests are the requests that still have to be proven by a
// reset circuit before the chain can be finalized.
type ValidationRequests struct {
	NoteHashReadRequests  []ScopedReadRequest          `json:"noteHashReadRequests"`
	NullifierReadRequests []ScopedReadRequest          `json:"nullifierReadRequests"`
	KeyValidationRequests []ScopedKeyValidationRequest `json:"keyValidationRequests"`
	// SplitCounter is the counter at which side effects become revertible.
	// It is nil until a reset circuit sets it.
	SplitCounter *uint32 `json:"splitCounter,omitempty"`
}

// PendingCount returns the number of requests not validated yet.
func (v *ValidationRequests) PendingCount() int {
	return len(v.NoteHashReadRequests) + len(v.NullifierReadRequests) + len(v.KeyValidationRequests)
}

// PrivateAccumulatedData holds the side effects accumulated by the chain.
type PrivateAccumulatedData struct {
	NoteHashes         []ScopedNoteHash    `json:"noteHashes"`
	Nullifiers         []ScopedNullifier   `json:"nullifiers"`
	PublicCallRequests []PublicCallRequest `json:"publicCallRequests"`
}

// PrivateKernelCircuitPublicInputs are the public outputs of the init, inner
// and reset kernel circuits.
type PrivateKernelCircuitPublicInputs struct {
	Constants                      TxConstantData         `json:"constants"`
	MinRevertibleSideEffectCounter uint32                 `json:"minRevertibleSideEffectCounter"`
	ValidationRequests             ValidationRequests     `json:"validationRequests"`
	End                            PrivateAccumulatedData `json:"end"`
	PublicTeardownCallRequest      PublicCallRequest      `json:"publicTeardownCallRequest"`
	FeePayer                       types.AztecAddress     `json:"feePayer"`
	EndSideEffectCounter           uint32                 `json:"endSideEffectCounter"`
}

// EmptyPrivateKernelCircuitPublicInputs returns the public inputs that exist
// before any kernel circuit has run.
func EmptyPrivateKernelCircuitPublicInputs() PrivateKernelCircuitPublicInputs {
	return PrivateKernelCircuitPublicInputs{}
}

// Clone returns a deep copy of the public inputs, so that a circuit output
// never aliases its input.
func (p PrivateKernelCircuitPublicInputs) Clone() PrivateKernelCircuitPublicInputs {
	c := p
	c.ValidationRequests.NoteHashReadRequests = slices.Clone(p.ValidationRequests.NoteHashReadRequests)
	c.ValidationRequests.NullifierReadRequests = slices.Clone(p.ValidationRequests.NullifierReadRequests)
	c.ValidationRequests.KeyValidationRequests = slices.Clone(p.ValidationRequests.KeyValidationRequests)
	if p.ValidationRequests.SplitCounter != nil {
		v := *p.ValidationRequests.SplitCounter
		c.ValidationRequests.SplitCounter = &v
	}
	c.End.NoteHashes = slices.Clone(p.End.NoteHashes)
	c.End.Nullifiers = slices.Clone(p.End.Nullifiers)
	c.End.PublicCallRequests = slices.Clone(p.End.PublicCallRequests)
	return c
}

// CombinedAccumulatedData is the finalized set of side effects of a
// transaction, or of one of its revertibility phases.
type CombinedAccumulatedData struct {
	NoteHashes         []types.Fr          `json:"noteHashes"`
	Nullifiers         []types.Fr          `json:"nullifiers"`
	PublicCallRequests []PublicCallRequest `json:"publicCallRequests"`
}

// PublicInputsForPublic is the tail output of a transaction with public
// calls, split at the min revertible side effect counter.
type PublicInputsForPublic struct {
	NonRevertibleAccumulatedData CombinedAccumulatedData `json:"nonRevertibleAccumulatedData"`
	RevertibleAccumulatedData    CombinedAccumulatedData `json:"revertibleAccumulatedData"`
	PublicTeardownCallRequest    PublicCallRequest       `json:"publicTeardownCallRequest"`
}

// PublicInputsForRollup is the tail output of a private only transaction.
type PublicInputsForRollup struct {
	End CombinedAccumulatedData `json:"end"`
}

// PrivateKernelTailCircuitPublicInputs are the public outputs of the tail
// kernel circuit. Exactly one of ForPublic and ForRollup is set.
type PrivateKernelTailCircuitPublicInputs struct {
	Constants                      TxConstantData         `json:"constants"`
	FeePayer                       types.AztecAddress     `json:"feePayer"`
	MinRevertibleSideEffectCounter uint32                 `json:"minRevertibleSideEffectCounter"`
	ValidationRequestsSplitCounter uint32                 `json:"validationRequestsSplitCounter"`
	ForPublic                      *PublicInputsForPublic `json:"forPublic,omitempty"`
	ForRollup                      *PublicInputsForRollup `json:"forRollup,omitempty"`
}

// HasPublicCalls reports whether the transaction continues in public.
func (p *PrivateKernelTailCircuitPublicInputs) HasPublicCalls() bool {
	return p.ForPublic != nil
}
