package execution

import (
	"fmt"

	"github.com/vocdoni/kernel-prover/types"
)

// Summary holds the indices derived from a whole execution tree. It is
// computed once, before any circuit runs, and is read only afterwards.
type Summary struct {
	NoteHashLeafIndexMap           map[types.Fr]uint64
	NoteHashNullifierCounterMap    map[uint32]uint32
	EnqueuedPublicCalls            []PublicExecutionRequest
	PublicTeardownCall             PublicExecutionRequest
	HasPublicCalls                 bool
	ValidationRequestsSplitCounter uint32
}

// Summarize computes the derived indices of the tree rooted at r. It is a
// pure function of the tree.
func Summarize(r *Result) (*Summary, error) {
	if r == nil {
		return nil, fmt.Errorf("nil execution result")
	}
	teardown, err := CollectPublicTeardownFunctionCall(r)
	if err != nil {
		return nil, err
	}
	s := &Summary{
		NoteHashLeafIndexMap:        CollectNoteHashLeafIndexMap(r),
		NoteHashNullifierCounterMap: CollectNoteHashNullifierCounterMap(r),
		EnqueuedPublicCalls:         CollectEnqueuedPublicFunctionCalls(r),
		PublicTeardownCall:          teardown,
	}
	s.HasPublicCalls = len(s.EnqueuedPublicCalls) > 0 || !s.PublicTeardownCall.IsEmpty()
	if s.HasPublicCalls {
		s.ValidationRequestsSplitCounter = FinalMinRevertibleSideEffectCounter(r)
	}
	return s, nil
}
