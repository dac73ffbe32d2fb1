package execution

import (
	"errors"
	"slices"

	"github.com/vocdoni/kernel-prover/types"
)

// ErrMultipleTeardownCalls is returned when more than one call of the trace
// sets a public teardown function call.
var ErrMultipleTeardownCalls = errors.New("multiple public teardown calls detected")

// CollectNoteHashLeafIndexMap merges the note hash leaf index maps of the
// whole tree. Nested calls override their parents.
func CollectNoteHashLeafIndexMap(r *Result) map[types.Fr]uint64 {
	res := map[types.Fr]uint64{}
	Walk(r, func(node *Result) bool {
		for k, v := range node.NoteHashLeafIndexMap {
			res[k] = v
		}
		return true
	})
	return res
}

// CollectNoteHashNullifierCounterMap merges the note hash to nullifier
// counter maps of the whole tree.
func CollectNoteHashNullifierCounterMap(r *Result) map[uint32]uint32 {
	res := map[uint32]uint32{}
	Walk(r, func(node *Result) bool {
		for k, v := range node.NoteHashNullifierCounterMap {
			res[k] = v
		}
		return true
	})
	return res
}

// CollectEnqueuedPublicFunctionCalls returns the public calls enqueued by
// the whole tree sorted by side effect counter, highest first, which is the
// order in which the kernel stack pops them.
func CollectEnqueuedPublicFunctionCalls(r *Result) []PublicExecutionRequest {
	res := []PublicExecutionRequest{}
	Walk(r, func(node *Result) bool {
		res = append(res, node.EnqueuedPublicFunctionCalls...)
		return true
	})
	slices.SortStableFunc(res, func(a, b PublicExecutionRequest) int {
		switch {
		case a.SideEffectCounter > b.SideEffectCounter:
			return -1
		case a.SideEffectCounter < b.SideEffectCounter:
			return 1
		}
		return 0
	})
	return res
}

// CollectPublicTeardownFunctionCall returns the only teardown call set in
// the tree, or an empty request if none is set.
func CollectPublicTeardownFunctionCall(r *Result) (PublicExecutionRequest, error) {
	found := []PublicExecutionRequest{}
	Walk(r, func(node *Result) bool {
		if !node.PublicTeardownFunctionCall.IsEmpty() {
			found = append(found, node.PublicTeardownFunctionCall)
		}
		return true
	})
	switch len(found) {
	case 0:
		return PublicExecutionRequest{}, nil
	case 1:
		return found[0], nil
	}
	return PublicExecutionRequest{}, ErrMultipleTeardownCalls
}

// FinalMinRevertibleSideEffectCounter returns the min revertible side
// effect counter of the trace: the last non zero value set by a nested
// call, or the value of r itself.
func FinalMinRevertibleSideEffectCounter(r *Result) uint32 {
	counter := r.CallStackItem.PublicInputs.MinRevertibleSideEffectCounter
	for _, nested := range r.NestedExecutions {
		if c := FinalMinRevertibleSideEffectCounter(nested); c != 0 {
			counter = c
		}
	}
	return counter
}
