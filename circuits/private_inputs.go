package circuits

import "github.com/vocdoni/kernel-prover/types"

// ContractAddressPreimage are the values an address is derived from.
type ContractAddressPreimage struct {
	ContractClassID          types.Fr `json:"contractClassId"`
	PublicKeysHash           types.Fr `json:"publicKeysHash"`
	SaltedInitializationHash types.Fr `json:"saltedInitializationHash"`
}

// ContractClassIDPreimage are the values a contract class id is derived
// from.
type ContractClassIDPreimage struct {
	ArtifactHash             types.Fr `json:"artifactHash"`
	PrivateFunctionsRoot     types.Fr `json:"privateFunctionsRoot"`
	PublicBytecodeCommitment types.Fr `json:"publicBytecodeCommitment"`
}

// NullifierMembershipWitness proves that a nullifier is settled in the
// nullifier tree.
type NullifierMembershipWitness struct {
	Nullifier types.Fr                `json:"nullifier"`
	Witness   types.MembershipWitness `json:"witness"`
}

// PrivateCallData is everything a kernel circuit needs to verify one call of
// the private execution.
type PrivateCallData struct {
	CallStackItem                         PrivateCallStackItem    `json:"callStackItem"`
	VerificationKey                       types.VerificationKey   `json:"verificationKey"`
	PublicKeysHash                        types.Fr                `json:"publicKeysHash"`
	ContractClassArtifactHash             types.Fr                `json:"contractClassArtifactHash"`
	ContractClassPublicBytecodeCommitment types.Fr                `json:"contractClassPublicBytecodeCommitment"`
	SaltedInitializationHash              types.Fr                `json:"saltedInitializationHash"`
	FunctionLeafMembershipWitness         types.MembershipWitness `json:"functionLeafMembershipWitness"`
	ProtocolContractSiblingPath           []types.Fr              `json:"protocolContractSiblingPath"`
	AcirHash                              types.Fr                `json:"acirHash"`
}

// PrivateKernelData is the output of a previous kernel circuit, together
// with the proof that its verification key belongs to the VK tree.
type PrivateKernelData struct {
	PublicInputs    PrivateKernelCircuitPublicInputs `json:"publicInputs"`
	VerificationKey types.VerificationKey            `json:"verificationKey"`
	VKIndex         uint64                           `json:"vkIndex"`
	VKPath          []types.Fr                       `json:"vkPath"`
}

// PrivateKernelInitCircuitPrivateInputs are the inputs of the first kernel
// circuit of a transaction.
type PrivateKernelInitCircuitPrivateInputs struct {
	TxRequest                TxRequest       `json:"txRequest"`
	VKTreeRoot               types.Fr        `json:"vkTreeRoot"`
	ProtocolContractTreeRoot types.Fr        `json:"protocolContractTreeRoot"`
	PrivateCall              PrivateCallData `json:"privateCall"`
}

// PrivateKernelInnerCircuitPrivateInputs are the inputs of the kernel
// circuits that fold every nested call.
type PrivateKernelInnerCircuitPrivateInputs struct {
	PreviousKernel PrivateKernelData `json:"previousKernel"`
	PrivateCall    PrivateCallData   `json:"privateCall"`
}

// PendingReadHint links a read request to the side effect emitted earlier in
// the same transaction that satisfies it.
type PendingReadHint struct {
	ReadRequestIndex int `json:"readRequestIndex"`
	PendingIndex     int `json:"pendingIndex"`
}

// SettledNoteHashReadHint links a note hash read request to a leaf of the
// note hash tree.
type SettledNoteHashReadHint struct {
	ReadRequestIndex int                     `json:"readRequestIndex"`
	Membership       types.MembershipWitness `json:"membership"`
	Value            types.Fr                `json:"value"`
}

// SettledNullifierReadHint links a nullifier read request to a leaf of the
// nullifier tree.
type SettledNullifierReadHint struct {
	ReadRequestIndex int                        `json:"readRequestIndex"`
	Membership       NullifierMembershipWitness `json:"membership"`
}

// KeyValidationHint carries the master secret key that validates a key
// validation request.
type KeyValidationHint struct {
	RequestIndex int      `json:"requestIndex"`
	SkM          types.Fr `json:"skM"`
}

// TransientDataHint pairs a note hash with the nullifier that consumes it,
// so that both can be squashed.
type TransientDataHint struct {
	NoteHashIndex  int `json:"noteHashIndex"`
	NullifierIndex int `json:"nullifierIndex"`
}

// ResetHints are the hints a reset circuit consumes.
type ResetHints struct {
	NoteHashPendingReads           []PendingReadHint          `json:"noteHashPendingReads"`
	NoteHashSettledReads           []SettledNoteHashReadHint  `json:"noteHashSettledReads"`
	NullifierPendingReads          []PendingReadHint          `json:"nullifierPendingReads"`
	NullifierSettledReads          []SettledNullifierReadHint `json:"nullifierSettledReads"`
	KeyValidationHints             []KeyValidationHint        `json:"keyValidationHints"`
	TransientDataHints             []TransientDataHint        `json:"transientDataHints"`
	ValidationRequestsSplitCounter uint32                     `json:"validationRequestsSplitCounter"`
}

// Dimensions returns the number of hints of each kind.
func (h *ResetHints) Dimensions() ResetDimensions {
	return ResetDimensions{
		NoteHashPendingRead:    len(h.NoteHashPendingReads),
		NoteHashSettledRead:    len(h.NoteHashSettledReads),
		NullifierPendingRead:   len(h.NullifierPendingReads),
		NullifierSettledRead:   len(h.NullifierSettledReads),
		KeyValidation:          len(h.KeyValidationHints),
		TransientDataSquashing: len(h.TransientDataHints),
	}
}

// ResetDimensions are the sizes of a reset circuit variant.
type ResetDimensions struct {
	NoteHashPendingRead    int `json:"noteHashPendingRead"`
	NoteHashSettledRead    int `json:"noteHashSettledRead"`
	NullifierPendingRead   int `json:"nullifierPendingRead"`
	NullifierSettledRead   int `json:"nullifierSettledRead"`
	KeyValidation          int `json:"keyValidation"`
	TransientDataSquashing int `json:"transientDataSquashing"`
}

// Total returns the number of hints in all dimensions.
func (d ResetDimensions) Total() int {
	return d.NoteHashPendingRead + d.NoteHashSettledRead + d.NullifierPendingRead +
		d.NullifierSettledRead + d.KeyValidation + d.TransientDataSquashing
}

// PrivateKernelResetCircuitPrivateInputs are the inputs of a reset circuit.
type PrivateKernelResetCircuitPrivateInputs struct {
	PreviousKernel PrivateKernelData `json:"previousKernel"`
	Hints          ResetHints        `json:"hints"`
	Dimensions     ResetDimensions   `json:"dimensions"`
}

// PrivateKernelTailCircuitPrivateInputs are the inputs of the last kernel
// circuit of a transaction.
type PrivateKernelTailCircuitPrivateInputs struct {
	PreviousKernel                 PrivateKernelData `json:"previousKernel"`
	ValidationRequestsSplitCounter uint32            `json:"validationRequestsSplitCounter"`
}
