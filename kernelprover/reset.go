package kernelprover

import (
	"context"
	"slices"

	"github.com/vocdoni/kernel-prover/circuits"
	"github.com/vocdoni/kernel-prover/execution"
	"github.com/vocdoni/kernel-prover/types"
)

type valueSet map[types.Fr]struct{}

func (s valueSet) add(values ...types.Fr) {
	for _, v := range values {
		s[v] = struct{}{}
	}
}

func (s valueSet) has(v types.Fr) bool {
	_, ok := s[v]
	return ok
}

// pendingEffects are the values emitted and read by the calls still in the
// execution stack.
type pendingEffects struct {
	noteHashes     valueSet
	nullifiers     valueSet
	noteHashReads  valueSet
	nullifierReads valueSet
}

func collectPendingEffects(stack []*execution.Result) *pendingEffects {
	p := &pendingEffects{
		noteHashes:     valueSet{},
		nullifiers:     valueSet{},
		noteHashReads:  valueSet{},
		nullifierReads: valueSet{},
	}
	for _, root := range stack {
		execution.Walk(root, func(node *execution.Result) bool {
			pi := node.PublicInputs()
			for _, nh := range pi.NoteHashes {
				p.noteHashes.add(nh.Value)
			}
			for _, n := range pi.Nullifiers {
				p.nullifiers.add(n.Value)
			}
			for _, r := range pi.NoteHashReadRequests {
				p.noteHashReads.add(r.Value)
			}
			for _, r := range pi.NullifierReadRequests {
				p.nullifierReads.add(r.Value)
			}
			return true
		})
	}
	return p
}

// resetBuilder decides whether the current kernel output needs a reset
// circuit and builds its inputs. A builder describes one state of the chain
// and must be replaced after every reset.
type resetBuilder struct {
	previous     *circuits.KernelOutput
	next         *circuits.PrivateCircuitPublicInputs
	pending      *pendingEffects
	counterMap   map[uint32]uint32
	splitCounter uint32
	caps         circuits.Capacities
}

// newResetBuilder returns a builder for previous, the latest kernel output.
// stack holds the calls not processed yet, with the next one last. An empty
// stack means the final reset before the tail circuit.
func newResetBuilder(
	previous *circuits.KernelOutput,
	stack []*execution.Result,
	noteHashNullifierCounterMap map[uint32]uint32,
	splitCounter uint32,
	caps circuits.Capacities,
) *resetBuilder {
	b := &resetBuilder{
		previous:     previous,
		pending:      collectPendingEffects(stack),
		counterMap:   noteHashNullifierCounterMap,
		splitCounter: splitCounter,
		caps:         caps,
	}
	if len(stack) > 0 {
		b.next = stack[len(stack)-1].PublicInputs()
	}
	return b
}

func (b *resetBuilder) isFinal() bool {
	return b.next == nil
}

// needsReset reports whether a reset circuit has to run before the next
// kernel circuit. Before an inner circuit that is only when the next call
// would overflow the accumulated arrays; before the tail every request must
// be validated and every transient pair squashed.
func (b *resetBuilder) needsReset() bool {
	pi := &b.previous.PublicInputs
	if !b.isFinal() {
		return len(pi.ValidationRequests.NoteHashReadRequests)+len(b.next.NoteHashReadRequests) > b.caps.NoteHashReadRequests ||
			len(pi.ValidationRequests.NullifierReadRequests)+len(b.next.NullifierReadRequests) > b.caps.NullifierReadRequests ||
			len(pi.ValidationRequests.KeyValidationRequests)+len(b.next.KeyValidationRequests) > b.caps.KeyValidationRequests ||
			len(pi.End.NoteHashes)+len(b.next.NoteHashes) > b.caps.NoteHashes ||
			len(pi.End.Nullifiers)+len(b.next.Nullifiers) > b.caps.Nullifiers
	}
	if pi.ValidationRequests.PendingCount() > 0 {
		return true
	}
	return len(b.transientDataHints(valueSet{}, valueSet{})) > 0
}

// build returns the inputs of the reset circuit for the current state.
func (b *resetBuilder) build(
	ctx context.Context,
	oracle ProvingDataOracle,
	noteHashLeafIndexMap map[types.Fr]uint64,
) (*circuits.PrivateKernelResetCircuitPrivateInputs, error) {
	pi := &b.previous.PublicInputs
	hints := circuits.ResetHints{ValidationRequestsSplitCounter: b.splitCounter}
	// values read by requests that stay pending after this reset
	heldNoteHashes, heldNullifiers := valueSet{}, valueSet{}
	heldNoteHashes.add(b.futureReads(b.pending.noteHashReads)...)
	heldNullifiers.add(b.futureReads(b.pending.nullifierReads)...)

	for i, r := range pi.ValidationRequests.NoteHashReadRequests {
		if j := pendingNoteHashIndex(pi.End.NoteHashes, r); j >= 0 {
			hints.NoteHashPendingReads = append(hints.NoteHashPendingReads, circuits.PendingReadHint{
				ReadRequestIndex: i,
				PendingIndex:     j,
			})
			continue
		}
		if !b.isFinal() && b.pending.noteHashes.has(r.ReadRequest.Value) {
			heldNoteHashes.add(r.ReadRequest.Value)
			continue
		}
		leafIndex, ok := noteHashLeafIndexMap[r.ReadRequest.Value]
		if !ok {
			return nil, ErrLookupFailure.Withf("no leaf index for note hash %s", r.ReadRequest.Value)
		}
		w, err := nonNil(oracle.GetNoteHashMembershipWitness(ctx, leafIndex))
		if err != nil {
			return nil, ErrLookupFailure.Withf("note hash membership witness at %d", leafIndex).WithErr(err)
		}
		hints.NoteHashSettledReads = append(hints.NoteHashSettledReads, circuits.SettledNoteHashReadHint{
			ReadRequestIndex: i,
			Membership:       *w,
			Value:            r.ReadRequest.Value,
		})
	}

	for i, r := range pi.ValidationRequests.NullifierReadRequests {
		if j := pendingNullifierIndex(pi.End.Nullifiers, r); j >= 0 {
			hints.NullifierPendingReads = append(hints.NullifierPendingReads, circuits.PendingReadHint{
				ReadRequestIndex: i,
				PendingIndex:     j,
			})
			continue
		}
		if !b.isFinal() && b.pending.nullifiers.has(r.ReadRequest.Value) {
			heldNullifiers.add(r.ReadRequest.Value)
			continue
		}
		w, err := nonNil(oracle.GetNullifierMembershipWitness(ctx, r.ReadRequest.Value))
		if err != nil {
			return nil, ErrLookupFailure.Withf("nullifier membership witness of %s", r.ReadRequest.Value).WithErr(err)
		}
		hints.NullifierSettledReads = append(hints.NullifierSettledReads, circuits.SettledNullifierReadHint{
			ReadRequestIndex: i,
			Membership:       *w,
		})
	}

	for i, r := range pi.ValidationRequests.KeyValidationRequests {
		skM, err := oracle.GetMasterSecretKey(ctx, r.Request.PkMHash)
		if err != nil {
			return nil, ErrLookupFailure.Withf("master secret key of %s", r.Request.PkMHash).WithErr(err)
		}
		hints.KeyValidationHints = append(hints.KeyValidationHints, circuits.KeyValidationHint{
			RequestIndex: i,
			SkM:          skM,
		})
	}

	hints.TransientDataHints = b.transientDataHints(heldNoteHashes, heldNullifiers)

	dimensions := hints.Dimensions()
	if dimensions.Total() == 0 {
		return nil, ErrCircuitSimulation.WithErr(ErrResetNotPossible)
	}
	previousKernel, err := previousKernelData(ctx, oracle, b.previous)
	if err != nil {
		return nil, err
	}
	return &circuits.PrivateKernelResetCircuitPrivateInputs{
		PreviousKernel: *previousKernel,
		Hints:          hints,
		Dimensions:     dimensions,
	}, nil
}

// futureReads returns the values read by calls still in the stack. They are
// empty for the final reset.
func (b *resetBuilder) futureReads(reads valueSet) []types.Fr {
	if b.isFinal() {
		return nil
	}
	values := make([]types.Fr, 0, len(reads))
	for v := range reads {
		values = append(values, v)
	}
	return values
}

// transientDataHints pairs note hashes with the nullifiers that consume them
// in the same transaction. Pairs whose values are still to be read, or that
// fall on different sides of the split counter, are kept.
func (b *resetBuilder) transientDataHints(heldNoteHashes, heldNullifiers valueSet) []circuits.TransientDataHint {
	end := &b.previous.PublicInputs.End
	hints := []circuits.TransientDataHint{}
	used := map[int]bool{}
	for i, nh := range end.NoteHashes {
		nullifierCounter, ok := b.counterMap[nh.NoteHash.Counter]
		if !ok {
			continue
		}
		j := slices.IndexFunc(end.Nullifiers, func(n circuits.ScopedNullifier) bool {
			return n.Nullifier.Counter == nullifierCounter
		})
		if j < 0 || used[j] {
			continue
		}
		n := end.Nullifiers[j]
		if n.ContractAddress != nh.ContractAddress ||
			n.Nullifier.NoteHash != nh.NoteHash.Value ||
			n.Nullifier.Counter <= nh.NoteHash.Counter {
			continue
		}
		if (nh.NoteHash.Counter >= b.splitCounter) != (n.Nullifier.Counter >= b.splitCounter) {
			continue
		}
		if heldNoteHashes.has(nh.NoteHash.Value) || heldNullifiers.has(n.Nullifier.Value) {
			continue
		}
		used[j] = true
		hints = append(hints, circuits.TransientDataHint{NoteHashIndex: i, NullifierIndex: j})
	}
	return hints
}

func pendingNoteHashIndex(noteHashes []circuits.ScopedNoteHash, r circuits.ScopedReadRequest) int {
	return slices.IndexFunc(noteHashes, func(nh circuits.ScopedNoteHash) bool {
		return nh.NoteHash.Value == r.ReadRequest.Value &&
			nh.ContractAddress == r.ContractAddress &&
			nh.NoteHash.Counter < r.ReadRequest.Counter
	})
}

func pendingNullifierIndex(nullifiers []circuits.ScopedNullifier, r circuits.ScopedReadRequest) int {
	return slices.IndexFunc(nullifiers, func(n circuits.ScopedNullifier) bool {
		return n.Nullifier.Value == r.ReadRequest.Value &&
			n.ContractAddress == r.ContractAddress &&
			n.Nullifier.Counter < r.ReadRequest.Counter
	})
}
