package circuits

import "github.com/vocdoni/kernel-prover/types"

// Ordered is implemented by every side effect carrying a side effect
// counter.
type Ordered interface {
	SideEffectCounter() uint32
}

// NoteHash is a commitment to a note emitted by a private function.
type NoteHash struct {
	Value   types.Fr `json:"value"`
	Counter uint32   `json:"counter"`
}

func (n NoteHash) SideEffectCounter() uint32 { return n.Counter }

// ScopedNoteHash is a note hash together with the contract that emitted it.
type ScopedNoteHash struct {
	NoteHash        NoteHash           `json:"noteHash"`
	ContractAddress types.AztecAddress `json:"contractAddress"`
}

func (n ScopedNoteHash) SideEffectCounter() uint32 { return n.NoteHash.Counter }

// Nullifier marks a note, or any other value, as consumed. NoteHash is set
// when the nullifier consumes a note emitted in the same transaction.
type Nullifier struct {
	Value    types.Fr `json:"value"`
	Counter  uint32   `json:"counter"`
	NoteHash types.Fr `json:"noteHash"`
}

func (n Nullifier) SideEffectCounter() uint32 { return n.Counter }

// ScopedNullifier is a nullifier together with the contract that emitted it.
type ScopedNullifier struct {
	Nullifier       Nullifier          `json:"nullifier"`
	ContractAddress types.AztecAddress `json:"contractAddress"`
}

func (n ScopedNullifier) SideEffectCounter() uint32 { return n.Nullifier.Counter }

// ReadRequest asks the kernel to prove that a note hash or nullifier exists,
// either emitted earlier in the transaction or settled in a tree.
type ReadRequest struct {
	Value   types.Fr `json:"value"`
	Counter uint32   `json:"counter"`
}

func (r ReadRequest) SideEffectCounter() uint32 { return r.Counter }

// ScopedReadRequest is a read request together with the contract that
// issued it.
type ScopedReadRequest struct {
	ReadRequest     ReadRequest        `json:"readRequest"`
	ContractAddress types.AztecAddress `json:"contractAddress"`
}

func (r ScopedReadRequest) SideEffectCounter() uint32 { return r.ReadRequest.Counter }

// KeyValidationRequest asks the kernel to prove that SkApp is the app secret
// key derived from the master key whose public key hashes to PkMHash.
type KeyValidationRequest struct {
	PkMHash types.Fr `json:"pkMHash"`
	SkApp   types.Fr `json:"skApp"`
	Counter uint32   `json:"counter"`
}

func (r KeyValidationRequest) SideEffectCounter() uint32 { return r.Counter }

// ScopedKeyValidationRequest is a key validation request together with the
// contract that issued it.
type ScopedKeyValidationRequest struct {
	Request         KeyValidationRequest `json:"request"`
	ContractAddress types.AztecAddress   `json:"contractAddress"`
}

func (r ScopedKeyValidationRequest) SideEffectCounter() uint32 { return r.Request.Counter }

// PublicCallRequest is a public function call enqueued by a private
// function, to be executed after the private part of the transaction.
type PublicCallRequest struct {
	ContractAddress  types.AztecAddress     `json:"contractAddress"`
	MsgSender        types.AztecAddress     `json:"msgSender"`
	FunctionSelector types.FunctionSelector `json:"functionSelector"`
	IsStaticCall     bool                   `json:"isStaticCall"`
	ArgsHash         types.Fr               `json:"argsHash"`
	Counter          uint32                 `json:"counter"`
}

func (r PublicCallRequest) SideEffectCounter() uint32 { return r.Counter }

// IsEmpty reports whether the request is unset.
func (r PublicCallRequest) IsEmpty() bool {
	return r == PublicCallRequest{}
}

// scope attaches the contract address to the side effects of a call.
func scope[T any, S any](items []T, fn func(T) S) []S {
	res := make([]S, 0, len(items))
	for _, item := range items {
		res = append(res, fn(item))
	}
	return res
}

// ScopeNoteHashes scopes note hashes to contract.
func ScopeNoteHashes(items []NoteHash, contract types.AztecAddress) []ScopedNoteHash {
	return scope(items, func(n NoteHash) ScopedNoteHash {
		return ScopedNoteHash{NoteHash: n, ContractAddress: contract}
	})
}

// ScopeNullifiers scopes nullifiers to contract.
func ScopeNullifiers(items []Nullifier, contract types.AztecAddress) []ScopedNullifier {
	return scope(items, func(n Nullifier) ScopedNullifier {
		return ScopedNullifier{Nullifier: n, ContractAddress: contract}
	})
}

// ScopeReadRequests scopes read requests to contract.
func ScopeReadRequests(items []ReadRequest, contract types.AztecAddress) []ScopedReadRequest {
	return scope(items, func(r ReadRequest) ScopedReadRequest {
		return ScopedReadRequest{ReadRequest: r, ContractAddress: contract}
	})
}

// ScopeKeyValidationRequests scopes key validation requests to contract.
func ScopeKeyValidationRequests(items []KeyValidationRequest, contract types.AztecAddress) []ScopedKeyValidationRequest {
	return scope(items, func(r KeyValidationRequest) ScopedKeyValidationRequest {
		return ScopedKeyValidationRequest{Request: r, ContractAddress: contract}
	})
}
