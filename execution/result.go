// Package execution models the trace of a private execution: a tree of
// function calls, each with the bytecode and witness of its circuit, and the
// indices derived from the whole tree that the kernel chain consumes.
package execution

import (
	"github.com/vocdoni/kernel-prover/circuits"
	"github.com/vocdoni/kernel-prover/types"
)

// PublicExecutionRequest is a public function call enqueued by a private
// function.
type PublicExecutionRequest struct {
	CallContext       circuits.CallContext `json:"callContext"`
	Args              []types.Fr           `json:"args"`
	SideEffectCounter uint32               `json:"sideEffectCounter"`
}

// IsEmpty reports whether the request is unset.
func (r PublicExecutionRequest) IsEmpty() bool {
	return r.CallContext == circuits.CallContext{} && len(r.Args) == 0 && r.SideEffectCounter == 0
}

// CallRequest returns the request as seen by the kernel circuits.
func (r PublicExecutionRequest) CallRequest() (circuits.PublicCallRequest, error) {
	if r.IsEmpty() {
		return circuits.PublicCallRequest{}, nil
	}
	argsHash := types.ZeroFr
	if len(r.Args) > 0 {
		var err error
		if argsHash, err = types.PoseidonHash(r.Args...); err != nil {
			return circuits.PublicCallRequest{}, err
		}
	}
	return circuits.PublicCallRequest{
		ContractAddress:  r.CallContext.ContractAddress,
		MsgSender:        r.CallContext.MsgSender,
		FunctionSelector: r.CallContext.FunctionSelector,
		IsStaticCall:     r.CallContext.IsStaticCall,
		ArgsHash:         argsHash,
		Counter:          r.SideEffectCounter,
	}, nil
}

// Result is one call of a private execution. It is immutable once produced
// by the executor.
type Result struct {
	Acir           types.HexBytes                `json:"acir"`
	PartialWitness types.WitnessMap              `json:"partialWitness"`
	CallStackItem  circuits.PrivateCallStackItem `json:"callStackItem"`
	ReturnValues   []types.Fr                    `json:"returnValues"`
	// NoteHashLeafIndexMap maps settled note hashes read by the call to
	// their leaf index in the note hash tree.
	NoteHashLeafIndexMap map[types.Fr]uint64 `json:"noteHashLeafIndexMap"`
	// NoteHashNullifierCounterMap maps the counter of a note hash emitted by
	// the call to the counter of the nullifier that consumes it.
	NoteHashNullifierCounterMap map[uint32]uint32        `json:"noteHashNullifierCounterMap"`
	NestedExecutions            []*Result                `json:"nestedExecutions"`
	EnqueuedPublicFunctionCalls []PublicExecutionRequest `json:"enqueuedPublicFunctionCalls"`
	PublicTeardownFunctionCall  PublicExecutionRequest   `json:"publicTeardownFunctionCall"`
}

// ContractAddress returns the address of the called contract.
func (r *Result) ContractAddress() types.AztecAddress {
	return r.CallStackItem.ContractAddress
}

// Selector returns the selector of the called function.
func (r *Result) Selector() types.FunctionSelector {
	return r.CallStackItem.FunctionData.Selector
}

// PublicInputs returns the app circuit public inputs of the call.
func (r *Result) PublicInputs() *circuits.PrivateCircuitPublicInputs {
	return &r.CallStackItem.PublicInputs
}

// Walk visits r and its nested executions in pre-order, left to right. It
// stops when fn returns false.
func Walk(r *Result, fn func(*Result) bool) bool {
	if !fn(r) {
		return false
	}
	for _, nested := range r.NestedExecutions {
		if !Walk(nested, fn) {
			return false
		}
	}
	return true
}

// Count returns the number of calls in the tree rooted at r.
func Count(r *Result) int {
	n := 0
	Walk(r, func(*Result) bool {
		n++
		return true
	})
	return n
}
