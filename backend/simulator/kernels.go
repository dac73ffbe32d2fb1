package simulator

import (
	"context"
	"fmt"
	"slices"

	"github.com/vocdoni/kernel-prover/circuits"
	"github.com/vocdoni/kernel-prover/protocolcontracts"
	"github.com/vocdoni/kernel-prover/types"
)

// verifyPrivateCall checks the call data against the kernel constants.
func verifyPrivateCall(call *circuits.PrivateCallData, protocolContractTreeRoot types.Fr) error {
	item := &call.CallStackItem
	if !item.FunctionData.IsPrivate {
		return fmt.Errorf("call to %s is not private", item.FunctionData.Selector)
	}
	if item.PublicInputs.CallContext.ContractAddress != item.ContractAddress {
		return fmt.Errorf("call context address %s does not match contract %s",
			item.PublicInputs.CallContext.ContractAddress, item.ContractAddress)
	}
	if item.PublicInputs.CallContext.FunctionSelector != item.FunctionData.Selector {
		return fmt.Errorf("call context selector %s does not match function %s",
			item.PublicInputs.CallContext.FunctionSelector, item.FunctionData.Selector)
	}
	if call.VerificationKey.IsEmpty() {
		return fmt.Errorf("missing app verification key")
	}
	if err := call.FunctionLeafMembershipWitness.CheckHeight(types.FunctionTreeHeight); err != nil {
		return fmt.Errorf("invalid function leaf membership witness: %w", err)
	}
	if !call.AcirHash.IsZero() {
		return fmt.Errorf("unexpected acir hash %s", call.AcirHash)
	}
	if len(call.ProtocolContractSiblingPath) != types.ProtocolContractTreeHeight {
		return fmt.Errorf("invalid protocol contract sibling path length %d", len(call.ProtocolContractSiblingPath))
	}
	if protocolcontracts.IsProtocolContract(item.ContractAddress) {
		ok, err := protocolcontracts.Verify(protocolContractTreeRoot, item.ContractAddress, call.ProtocolContractSiblingPath)
		if err != nil {
			return fmt.Errorf("invalid protocol contract sibling path: %w", err)
		}
		if !ok {
			return fmt.Errorf("protocol contract %s not in tree", item.ContractAddress)
		}
	} else if slices.ContainsFunc(call.ProtocolContractSiblingPath, func(f types.Fr) bool { return !f.IsZero() }) {
		return fmt.Errorf("non zero protocol contract sibling path for %s", item.ContractAddress)
	}
	return nil
}

func checkCounters[T circuits.Ordered](kind string, items []T, start, end uint32) error {
	for _, item := range items {
		if c := item.SideEffectCounter(); c < start || c > end {
			return fmt.Errorf("%s counter %d out of call range [%d, %d]", kind, c, start, end)
		}
	}
	return nil
}

// accumulate folds the side effects and requests of a call into pi.
func (s *Simulator) accumulate(pi *circuits.PrivateKernelCircuitPublicInputs, item *circuits.PrivateCallStackItem) error {
	app := &item.PublicInputs
	contract := item.ContractAddress
	start, end := app.StartSideEffectCounter, app.EndSideEffectCounter
	if start > end {
		return fmt.Errorf("start counter %d after end counter %d", start, end)
	}
	if err := checkCounters("note hash", app.NoteHashes, start, end); err != nil {
		return err
	}
	if err := checkCounters("nullifier", app.Nullifiers, start, end); err != nil {
		return err
	}
	if err := checkCounters("note hash read request", app.NoteHashReadRequests, start, end); err != nil {
		return err
	}
	if err := checkCounters("nullifier read request", app.NullifierReadRequests, start, end); err != nil {
		return err
	}
	if err := checkCounters("key validation request", app.KeyValidationRequests, start, end); err != nil {
		return err
	}
	if err := checkCounters("public call request", app.PublicCallRequests, start, end); err != nil {
		return err
	}

	vr := &pi.ValidationRequests
	vr.NoteHashReadRequests = append(vr.NoteHashReadRequests, circuits.ScopeReadRequests(app.NoteHashReadRequests, contract)...)
	vr.NullifierReadRequests = append(vr.NullifierReadRequests, circuits.ScopeReadRequests(app.NullifierReadRequests, contract)...)
	vr.KeyValidationRequests = append(vr.KeyValidationRequests, circuits.ScopeKeyValidationRequests(app.KeyValidationRequests, contract)...)
	pi.End.NoteHashes = append(pi.End.NoteHashes, circuits.ScopeNoteHashes(app.NoteHashes, contract)...)
	pi.End.Nullifiers = append(pi.End.Nullifiers, circuits.ScopeNullifiers(app.Nullifiers, contract)...)
	pi.End.PublicCallRequests = append(pi.End.PublicCallRequests, app.PublicCallRequests...)

	if !app.PublicTeardownCallRequest.IsEmpty() {
		if !pi.PublicTeardownCallRequest.IsEmpty() {
			return fmt.Errorf("public teardown call request already set")
		}
		pi.PublicTeardownCallRequest = app.PublicTeardownCallRequest
	}
	if app.MinRevertibleSideEffectCounter != 0 {
		if pi.MinRevertibleSideEffectCounter != 0 {
			return fmt.Errorf("min revertible side effect counter already set")
		}
		pi.MinRevertibleSideEffectCounter = app.MinRevertibleSideEffectCounter
	}
	if app.IsFeePayer {
		if !pi.FeePayer.IsZero() {
			return fmt.Errorf("fee payer already set to %s", pi.FeePayer)
		}
		pi.FeePayer = contract
	}
	pi.EndSideEffectCounter = max(pi.EndSideEffectCounter, end)
	return s.checkCapacities(pi)
}

func (s *Simulator) checkCapacities(pi *circuits.PrivateKernelCircuitPublicInputs) error {
	checks := []struct {
		name string
		len  int
		cap  int
	}{
		{"note hashes", len(pi.End.NoteHashes), s.caps.NoteHashes},
		{"nullifiers", len(pi.End.Nullifiers), s.caps.Nullifiers},
		{"public call requests", len(pi.End.PublicCallRequests), s.caps.PublicCallRequests},
		{"note hash read requests", len(pi.ValidationRequests.NoteHashReadRequests), s.caps.NoteHashReadRequests},
		{"nullifier read requests", len(pi.ValidationRequests.NullifierReadRequests), s.caps.NullifierReadRequests},
		{"key validation requests", len(pi.ValidationRequests.KeyValidationRequests), s.caps.KeyValidationRequests},
	}
	for _, c := range checks {
		if c.len > c.cap {
			return fmt.Errorf("too many %s: %d > %d", c.name, c.len, c.cap)
		}
	}
	return nil
}

// verifyPreviousKernel checks that the previous kernel ran one of the
// circuits that may precede the current one.
func (s *Simulator) verifyPreviousKernel(prev *circuits.PrivateKernelData) error {
	if prev.PublicInputs.Constants.VKTreeRoot != s.vkTree.Root() {
		return fmt.Errorf("unknown vk tree root %s", prev.PublicInputs.Constants.VKTreeRoot)
	}
	if err := circuits.VerifyKernelVK(s.vkTree.Root(), prev); err != nil {
		return err
	}
	for _, name := range []string{CircuitInit, CircuitInner, CircuitReset} {
		if vk, _ := s.vkTree.Key(name); vk.Equal(&prev.VerificationKey) {
			return nil
		}
	}
	return fmt.Errorf("previous kernel vk %s cannot be followed", prev.VerificationKey.Hash)
}

// SimulateProofInit runs the first kernel circuit of a transaction. It binds
// the first call to the tx request and emits the tx request hash as the
// first nullifier.
func (s *Simulator) SimulateProofInit(ctx context.Context, in *circuits.PrivateKernelInitCircuitPrivateInputs) (*circuits.KernelOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if in.VKTreeRoot != s.vkTree.Root() {
		return nil, fmt.Errorf("unknown vk tree root %s", in.VKTreeRoot)
	}
	protocolRoot, err := protocolcontracts.Root()
	if err != nil {
		return nil, err
	}
	if in.ProtocolContractTreeRoot != protocolRoot {
		return nil, fmt.Errorf("unknown protocol contract tree root %s", in.ProtocolContractTreeRoot)
	}
	item := &in.PrivateCall.CallStackItem
	if item.ContractAddress != in.TxRequest.Origin {
		return nil, fmt.Errorf("first call to %s does not match origin %s", item.ContractAddress, in.TxRequest.Origin)
	}
	if item.FunctionData != in.TxRequest.FunctionData {
		return nil, fmt.Errorf("first call function does not match the tx request")
	}
	if item.PublicInputs.ArgsHash != in.TxRequest.ArgsHash {
		return nil, fmt.Errorf("first call args hash does not match the tx request")
	}
	if err := verifyPrivateCall(&in.PrivateCall, protocolRoot); err != nil {
		return nil, err
	}
	txHash, err := in.TxRequest.Hash()
	if err != nil {
		return nil, err
	}

	pi := circuits.EmptyPrivateKernelCircuitPublicInputs()
	pi.Constants = circuits.TxConstantData{
		TxContext:                in.TxRequest.TxContext,
		VKTreeRoot:               in.VKTreeRoot,
		ProtocolContractTreeRoot: in.ProtocolContractTreeRoot,
	}
	pi.End.Nullifiers = append(pi.End.Nullifiers, circuits.ScopedNullifier{
		Nullifier: circuits.Nullifier{Value: txHash},
	})
	if err := s.accumulate(&pi, item); err != nil {
		return nil, err
	}
	return s.kernelOutput(CircuitInit, in, pi)
}

// SimulateProofInner folds one more call into the previous kernel output.
func (s *Simulator) SimulateProofInner(ctx context.Context, in *circuits.PrivateKernelInnerCircuitPrivateInputs) (*circuits.KernelOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.verifyPreviousKernel(&in.PreviousKernel); err != nil {
		return nil, err
	}
	if err := verifyPrivateCall(&in.PrivateCall, in.PreviousKernel.PublicInputs.Constants.ProtocolContractTreeRoot); err != nil {
		return nil, err
	}
	pi := in.PreviousKernel.PublicInputs.Clone()
	if err := s.accumulate(&pi, &in.PrivateCall.CallStackItem); err != nil {
		return nil, err
	}
	return s.kernelOutput(CircuitInner, in, pi)
}

// SimulateProofTail finalizes the chain. Transactions with public calls have
// their side effects split at the min revertible side effect counter.
func (s *Simulator) SimulateProofTail(ctx context.Context, in *circuits.PrivateKernelTailCircuitPrivateInputs) (*circuits.TailOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.verifyPreviousKernel(&in.PreviousKernel); err != nil {
		return nil, err
	}
	pi := &in.PreviousKernel.PublicInputs
	if n := pi.ValidationRequests.PendingCount(); n > 0 {
		return nil, fmt.Errorf("%d validation requests still pending", n)
	}
	if sc := pi.ValidationRequests.SplitCounter; sc != nil && *sc != in.ValidationRequestsSplitCounter {
		return nil, fmt.Errorf("split counter %d does not match validated split counter %d",
			in.ValidationRequestsSplitCounter, *sc)
	}
	out := circuits.PrivateKernelTailCircuitPublicInputs{
		Constants:                      pi.Constants,
		FeePayer:                       pi.FeePayer,
		MinRevertibleSideEffectCounter: pi.MinRevertibleSideEffectCounter,
		ValidationRequestsSplitCounter: in.ValidationRequestsSplitCounter,
	}
	name := CircuitTail
	if len(pi.End.PublicCallRequests) > 0 || !pi.PublicTeardownCallRequest.IsEmpty() {
		if in.ValidationRequestsSplitCounter != pi.MinRevertibleSideEffectCounter {
			return nil, fmt.Errorf("split counter %d does not match min revertible side effect counter %d",
				in.ValidationRequestsSplitCounter, pi.MinRevertibleSideEffectCounter)
		}
		name = CircuitTailToPublic
		nonRevertible, revertible := splitAccumulatedData(&pi.End, pi.MinRevertibleSideEffectCounter)
		out.ForPublic = &circuits.PublicInputsForPublic{
			NonRevertibleAccumulatedData: nonRevertible,
			RevertibleAccumulatedData:    revertible,
			PublicTeardownCallRequest:    pi.PublicTeardownCallRequest,
		}
	} else {
		if in.ValidationRequestsSplitCounter != 0 {
			return nil, fmt.Errorf("unexpected split counter %d without public calls", in.ValidationRequestsSplitCounter)
		}
		all, _ := splitAccumulatedData(&pi.End, ^uint32(0))
		out.ForRollup = &circuits.PublicInputsForRollup{End: all}
	}

	vk, ok := s.vkTree.Key(name)
	if !ok {
		return nil, fmt.Errorf("unknown kernel circuit %s", name)
	}
	w, err := witness(in, out)
	if err != nil {
		return nil, err
	}
	res := &circuits.TailOutput{}
	res.PublicInputs = out
	res.VerificationKey = *vk
	res.OutputWitness = w
	res.Bytecode = KernelBytecode(name)
	return res, nil
}

// splitAccumulatedData splits the side effects into those with a counter
// below split and the rest, keeping their order.
func splitAccumulatedData(end *circuits.PrivateAccumulatedData, split uint32) (below, rest circuits.CombinedAccumulatedData) {
	below = circuits.CombinedAccumulatedData{
		NoteHashes: []types.Fr{}, Nullifiers: []types.Fr{}, PublicCallRequests: []circuits.PublicCallRequest{},
	}
	rest = circuits.CombinedAccumulatedData{
		NoteHashes: []types.Fr{}, Nullifiers: []types.Fr{}, PublicCallRequests: []circuits.PublicCallRequest{},
	}
	for _, nh := range end.NoteHashes {
		if nh.NoteHash.Counter < split {
			below.NoteHashes = append(below.NoteHashes, nh.NoteHash.Value)
		} else {
			rest.NoteHashes = append(rest.NoteHashes, nh.NoteHash.Value)
		}
	}
	for _, n := range end.Nullifiers {
		if n.Nullifier.Counter < split {
			below.Nullifiers = append(below.Nullifiers, n.Nullifier.Value)
		} else {
			rest.Nullifiers = append(rest.Nullifiers, n.Nullifier.Value)
		}
	}
	for _, r := range end.PublicCallRequests {
		if r.Counter < split {
			below.PublicCallRequests = append(below.PublicCallRequests, r)
		} else {
			rest.PublicCallRequests = append(rest.PublicCallRequests, r)
		}
	}
	return below, rest
}
