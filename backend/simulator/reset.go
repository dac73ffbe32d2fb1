package simulator

import (
	"context"
	"fmt"

	"github.com/vocdoni/kernel-prover/circuits"
	"github.com/vocdoni/kernel-prover/trees"
	"github.com/vocdoni/kernel-prover/types"
)

// indexSet tracks the array positions consumed by the hints of a reset.
type indexSet map[int]bool

func (s indexSet) take(kind string, i, length int) error {
	if i < 0 || i >= length {
		return fmt.Errorf("%s index %d out of range %d", kind, i, length)
	}
	if s[i] {
		return fmt.Errorf("%s index %d used twice", kind, i)
	}
	s[i] = true
	return nil
}

func keep[T any](items []T, removed indexSet) []T {
	res := make([]T, 0, len(items))
	for i, item := range items {
		if !removed[i] {
			res = append(res, item)
		}
	}
	return res
}

// SimulateProofReset validates the read requests and key validation
// requests the hints resolve, and squashes the transient pairs they point
// to. Side effects are never reordered.
func (s *Simulator) SimulateProofReset(ctx context.Context, in *circuits.PrivateKernelResetCircuitPrivateInputs) (*circuits.KernelOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.verifyPreviousKernel(&in.PreviousKernel); err != nil {
		return nil, err
	}
	hints := &in.Hints
	if in.Dimensions != hints.Dimensions() {
		return nil, fmt.Errorf("reset dimensions %+v do not match hints %+v", in.Dimensions, hints.Dimensions())
	}
	if in.Dimensions.Total() == 0 {
		return nil, fmt.Errorf("empty reset")
	}
	pi := in.PreviousKernel.PublicInputs.Clone()
	vr := &pi.ValidationRequests
	if vr.SplitCounter != nil && *vr.SplitCounter != hints.ValidationRequestsSplitCounter {
		return nil, fmt.Errorf("split counter changed from %d to %d", *vr.SplitCounter, hints.ValidationRequestsSplitCounter)
	}

	noteHashReads, nullifierReads, keyRequests := indexSet{}, indexSet{}, indexSet{}
	if err := s.validateNoteHashReads(&pi, hints, noteHashReads); err != nil {
		return nil, err
	}
	if err := s.validateNullifierReads(&pi, hints, nullifierReads); err != nil {
		return nil, err
	}
	for _, h := range hints.KeyValidationHints {
		if err := keyRequests.take("key validation request", h.RequestIndex, len(vr.KeyValidationRequests)); err != nil {
			return nil, err
		}
		req := vr.KeyValidationRequests[h.RequestIndex]
		pkMHash, err := types.MasterPublicKeyHash(h.SkM)
		if err != nil {
			return nil, err
		}
		if pkMHash != req.Request.PkMHash {
			return nil, fmt.Errorf("master key does not match public key hash %s", req.Request.PkMHash)
		}
		skApp, err := types.AppSecretKey(h.SkM, req.ContractAddress)
		if err != nil {
			return nil, err
		}
		if skApp != req.Request.SkApp {
			return nil, fmt.Errorf("app secret key mismatch for %s", req.ContractAddress)
		}
	}

	// requests left pending must not read squashed values
	heldNoteHashes := map[types.Fr]bool{}
	for i, r := range vr.NoteHashReadRequests {
		if !noteHashReads[i] {
			heldNoteHashes[r.ReadRequest.Value] = true
		}
	}
	heldNullifiers := map[types.Fr]bool{}
	for i, r := range vr.NullifierReadRequests {
		if !nullifierReads[i] {
			heldNullifiers[r.ReadRequest.Value] = true
		}
	}
	squashedNoteHashes, squashedNullifiers := indexSet{}, indexSet{}
	for _, h := range hints.TransientDataHints {
		if err := squashedNoteHashes.take("note hash", h.NoteHashIndex, len(pi.End.NoteHashes)); err != nil {
			return nil, err
		}
		if err := squashedNullifiers.take("nullifier", h.NullifierIndex, len(pi.End.Nullifiers)); err != nil {
			return nil, err
		}
		nh, n := pi.End.NoteHashes[h.NoteHashIndex], pi.End.Nullifiers[h.NullifierIndex]
		if n.Nullifier.NoteHash != nh.NoteHash.Value || n.ContractAddress != nh.ContractAddress {
			return nil, fmt.Errorf("nullifier %s does not consume note hash %s", n.Nullifier.Value, nh.NoteHash.Value)
		}
		if n.Nullifier.Counter <= nh.NoteHash.Counter {
			return nil, fmt.Errorf("nullifier %s emitted before note hash %s", n.Nullifier.Value, nh.NoteHash.Value)
		}
		split := hints.ValidationRequestsSplitCounter
		if (nh.NoteHash.Counter >= split) != (n.Nullifier.Counter >= split) {
			return nil, fmt.Errorf("transient pair crosses split counter %d", split)
		}
		if heldNoteHashes[nh.NoteHash.Value] || heldNullifiers[n.Nullifier.Value] {
			return nil, fmt.Errorf("squashed value %s is still read", nh.NoteHash.Value)
		}
	}

	vr.NoteHashReadRequests = keep(vr.NoteHashReadRequests, noteHashReads)
	vr.NullifierReadRequests = keep(vr.NullifierReadRequests, nullifierReads)
	vr.KeyValidationRequests = keep(vr.KeyValidationRequests, keyRequests)
	pi.End.NoteHashes = keep(pi.End.NoteHashes, squashedNoteHashes)
	pi.End.Nullifiers = keep(pi.End.Nullifiers, squashedNullifiers)
	split := hints.ValidationRequestsSplitCounter
	vr.SplitCounter = &split
	return s.kernelOutput(CircuitReset, in, pi)
}

func (s *Simulator) validateNoteHashReads(pi *circuits.PrivateKernelCircuitPublicInputs, hints *circuits.ResetHints, used indexSet) error {
	reads := pi.ValidationRequests.NoteHashReadRequests
	for _, h := range hints.NoteHashPendingReads {
		if err := used.take("note hash read request", h.ReadRequestIndex, len(reads)); err != nil {
			return err
		}
		if h.PendingIndex < 0 || h.PendingIndex >= len(pi.End.NoteHashes) {
			return fmt.Errorf("pending note hash index %d out of range", h.PendingIndex)
		}
		r, nh := reads[h.ReadRequestIndex], pi.End.NoteHashes[h.PendingIndex]
		if nh.NoteHash.Value != r.ReadRequest.Value || nh.ContractAddress != r.ContractAddress ||
			nh.NoteHash.Counter >= r.ReadRequest.Counter {
			return fmt.Errorf("note hash read request %d not satisfied by pending note hash %d",
				h.ReadRequestIndex, h.PendingIndex)
		}
	}
	var root types.Fr
	if s.state != nil && len(hints.NoteHashSettledReads) > 0 {
		var err error
		if root, err = s.state.NoteHashRoot(); err != nil {
			return err
		}
	}
	for _, h := range hints.NoteHashSettledReads {
		if err := used.take("note hash read request", h.ReadRequestIndex, len(reads)); err != nil {
			return err
		}
		if reads[h.ReadRequestIndex].ReadRequest.Value != h.Value {
			return fmt.Errorf("settled note hash read %d value mismatch", h.ReadRequestIndex)
		}
		if err := s.verifySettled(types.NoteHashTreeHeight, root, h.Value, &h.Membership); err != nil {
			return fmt.Errorf("settled note hash read %d: %w", h.ReadRequestIndex, err)
		}
	}
	return nil
}

func (s *Simulator) validateNullifierReads(pi *circuits.PrivateKernelCircuitPublicInputs, hints *circuits.ResetHints, used indexSet) error {
	reads := pi.ValidationRequests.NullifierReadRequests
	for _, h := range hints.NullifierPendingReads {
		if err := used.take("nullifier read request", h.ReadRequestIndex, len(reads)); err != nil {
			return err
		}
		if h.PendingIndex < 0 || h.PendingIndex >= len(pi.End.Nullifiers) {
			return fmt.Errorf("pending nullifier index %d out of range", h.PendingIndex)
		}
		r, n := reads[h.ReadRequestIndex], pi.End.Nullifiers[h.PendingIndex]
		if n.Nullifier.Value != r.ReadRequest.Value || n.ContractAddress != r.ContractAddress ||
			n.Nullifier.Counter >= r.ReadRequest.Counter {
			return fmt.Errorf("nullifier read request %d not satisfied by pending nullifier %d",
				h.ReadRequestIndex, h.PendingIndex)
		}
	}
	var root types.Fr
	if s.state != nil && len(hints.NullifierSettledReads) > 0 {
		var err error
		if root, err = s.state.NullifierRoot(); err != nil {
			return err
		}
	}
	for _, h := range hints.NullifierSettledReads {
		if err := used.take("nullifier read request", h.ReadRequestIndex, len(reads)); err != nil {
			return err
		}
		value := reads[h.ReadRequestIndex].ReadRequest.Value
		if h.Membership.Nullifier != value {
			return fmt.Errorf("settled nullifier read %d value mismatch", h.ReadRequestIndex)
		}
		if err := s.verifySettled(types.NullifierTreeHeight, root, value, &h.Membership.Witness); err != nil {
			return fmt.Errorf("settled nullifier read %d: %w", h.ReadRequestIndex, err)
		}
	}
	return nil
}

// verifySettled checks the membership witness of a settled value. Without a
// world state only the shape of the witness is checked.
func (s *Simulator) verifySettled(height int, root, value types.Fr, w *types.MembershipWitness) error {
	if err := w.CheckHeight(height); err != nil {
		return err
	}
	if s.state == nil {
		return nil
	}
	ok, err := trees.Verify(height, root, value, w)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("value %s not in tree", value)
	}
	return nil
}
