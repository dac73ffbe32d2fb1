package types

const (
	// FunctionTreeHeight is the height of the per contract class tree of
	// private functions.
	FunctionTreeHeight = 5
	// VKTreeHeight is the height of the tree of kernel verification keys.
	VKTreeHeight = 5
	// ProtocolContractTreeHeight is the height of the protocol contract tree.
	ProtocolContractTreeHeight = 3
	// NoteHashTreeHeight is the height of the note hash tree.
	NoteHashTreeHeight = 40
	// NullifierTreeHeight is the height of the nullifier tree.
	NullifierTreeHeight = 40

	// MaxNoteHashesPerCall and the following limits bound the side effects a
	// single private function can emit.
	MaxNoteHashesPerCall            = 16
	MaxNullifiersPerCall            = 16
	MaxNoteHashReadRequestsPerCall  = 16
	MaxNullifierReadRequestsPerCall = 16
	MaxKeyValidationRequestsPerCall = 16
	MaxEnqueuedCallsPerCall         = 16

	// MaxNoteHashesPerTx and the following limits are the capacities of the
	// kernel circuits' accumulated arrays.
	MaxNoteHashesPerTx            = 64
	MaxNullifiersPerTx            = 64
	MaxNoteHashReadRequestsPerTx  = 64
	MaxNullifierReadRequestsPerTx = 64
	MaxKeyValidationRequestsPerTx = 64
	MaxEnqueuedCallsPerTx         = 32
)

// Domain separators used when hashing protocol values.
const (
	GeneratorIndexFunctionLeaf uint64 = iota + 1
	GeneratorIndexVK
	GeneratorIndexPartialAddress
	GeneratorIndexContractLeaf
	GeneratorIndexContractClassID
	GeneratorIndexSkApp
)
