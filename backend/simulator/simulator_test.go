package simulator

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/kernel-prover/circuits"
	"github.com/vocdoni/kernel-prover/protocolcontracts"
	"github.com/vocdoni/kernel-prover/types"
)

var contract = types.NewAztecAddress(0x1000)

func privateCall(c *qt.C, start, end uint32, edit func(*circuits.PrivateCircuitPublicInputs)) circuits.PrivateCallData {
	vk, err := types.VerificationKeyFromBytes([]byte("app"))
	c.Assert(err, qt.IsNil)
	call := circuits.PrivateCallData{
		CallStackItem: circuits.PrivateCallStackItem{
			ContractAddress: contract,
			FunctionData:    circuits.FunctionData{Selector: 1, IsPrivate: true},
			PublicInputs: circuits.PrivateCircuitPublicInputs{
				CallContext:            circuits.CallContext{ContractAddress: contract, FunctionSelector: 1},
				ArgsHash:               types.NewFr(10),
				StartSideEffectCounter: start,
				EndSideEffectCounter:   end,
			},
		},
		VerificationKey:               *vk,
		FunctionLeafMembershipWitness: types.MembershipWitness{SiblingPath: types.ZeroSiblingPath(types.FunctionTreeHeight)},
		ProtocolContractSiblingPath:   types.ZeroSiblingPath(types.ProtocolContractTreeHeight),
	}
	if edit != nil {
		edit(&call.CallStackItem.PublicInputs)
	}
	return call
}

func initInputs(c *qt.C, s *Simulator, call circuits.PrivateCallData) *circuits.PrivateKernelInitCircuitPrivateInputs {
	root, err := protocolcontracts.Root()
	c.Assert(err, qt.IsNil)
	return &circuits.PrivateKernelInitCircuitPrivateInputs{
		TxRequest: circuits.TxRequest{
			Origin:       call.CallStackItem.ContractAddress,
			FunctionData: call.CallStackItem.FunctionData,
			ArgsHash:     call.CallStackItem.PublicInputs.ArgsHash,
		},
		VKTreeRoot:               s.VKTree().Root(),
		ProtocolContractTreeRoot: root,
		PrivateCall:              call,
	}
}

func previousKernel(c *qt.C, s *Simulator, out *circuits.KernelOutput) circuits.PrivateKernelData {
	w, err := s.VKTree().MembershipWitness(&out.VerificationKey)
	c.Assert(err, qt.IsNil)
	return circuits.PrivateKernelData{
		PublicInputs:    out.PublicInputs,
		VerificationKey: out.VerificationKey,
		VKIndex:         w.LeafIndex,
		VKPath:          w.SiblingPath,
	}
}

func TestKernelVerificationKeys(t *testing.T) {
	c := qt.New(t)
	s, err := New()
	c.Assert(err, qt.IsNil)
	seen := map[types.Fr]bool{}
	for _, name := range Circuits {
		vk, ok := s.VKTree().Key(name)
		c.Assert(ok, qt.IsTrue)
		c.Assert(seen[vk.Hash], qt.IsFalse)
		seen[vk.Hash] = true
	}
}

func TestInit(t *testing.T) {
	c := qt.New(t)
	s, err := New()
	c.Assert(err, qt.IsNil)
	ctx := context.Background()

	in := initInputs(c, s, privateCall(c, 1, 3, func(pi *circuits.PrivateCircuitPublicInputs) {
		pi.NoteHashes = []circuits.NoteHash{{Value: types.NewFr(5), Counter: 2}}
		pi.IsFeePayer = true
	}))
	out, err := s.SimulateProofInit(ctx, in)
	c.Assert(err, qt.IsNil)
	c.Assert(out.PublicInputs.End.NoteHashes, qt.HasLen, 1)
	c.Assert(out.PublicInputs.End.NoteHashes[0].ContractAddress, qt.Equals, contract)
	c.Assert(out.PublicInputs.End.Nullifiers, qt.HasLen, 1)
	c.Assert(out.PublicInputs.FeePayer, qt.Equals, contract)
	c.Assert(out.PublicInputs.EndSideEffectCounter, qt.Equals, uint32(3))
	c.Assert(out.Bytecode, qt.DeepEquals, KernelBytecode(CircuitInit))
	c.Assert(out.OutputWitness, qt.HasLen, 2)

	// same inputs, same witness
	again, err := s.SimulateProofInit(ctx, in)
	c.Assert(err, qt.IsNil)
	c.Assert(again.OutputWitness, qt.DeepEquals, out.OutputWitness)

	bad := *in
	bad.TxRequest.ArgsHash = types.NewFr(11)
	_, err = s.SimulateProofInit(ctx, &bad)
	c.Assert(err, qt.ErrorMatches, "first call args hash.*")

	bad = *in
	bad.VKTreeRoot = types.NewFr(1)
	_, err = s.SimulateProofInit(ctx, &bad)
	c.Assert(err, qt.ErrorMatches, "unknown vk tree root.*")

	outOfRange := initInputs(c, s, privateCall(c, 1, 3, func(pi *circuits.PrivateCircuitPublicInputs) {
		pi.Nullifiers = []circuits.Nullifier{{Value: types.NewFr(5), Counter: 9}}
	}))
	_, err = s.SimulateProofInit(ctx, outOfRange)
	c.Assert(err, qt.ErrorMatches, "nullifier counter 9 out of call range.*")
}

func TestCapacities(t *testing.T) {
	c := qt.New(t)
	caps := circuits.DefaultCapacities()
	caps.NoteHashes = 1
	s, err := New(WithCapacities(caps))
	c.Assert(err, qt.IsNil)

	in := initInputs(c, s, privateCall(c, 1, 3, func(pi *circuits.PrivateCircuitPublicInputs) {
		pi.NoteHashes = []circuits.NoteHash{{Value: types.NewFr(5), Counter: 2}, {Value: types.NewFr(6), Counter: 3}}
	}))
	_, err = s.SimulateProofInit(context.Background(), in)
	c.Assert(err, qt.ErrorMatches, "too many note hashes: 2 > 1")
}

func TestReset(t *testing.T) {
	c := qt.New(t)
	s, err := New()
	c.Assert(err, qt.IsNil)
	ctx := context.Background()

	note := types.NewFr(5)
	out, err := s.SimulateProofInit(ctx, initInputs(c, s, privateCall(c, 1, 4, func(pi *circuits.PrivateCircuitPublicInputs) {
		pi.NoteHashes = []circuits.NoteHash{{Value: note, Counter: 2}}
		pi.NoteHashReadRequests = []circuits.ReadRequest{{Value: note, Counter: 3}}
		pi.Nullifiers = []circuits.Nullifier{{Value: types.NewFr(6), Counter: 4, NoteHash: note}}
	})))
	c.Assert(err, qt.IsNil)

	reset := func(hints circuits.ResetHints) (*circuits.KernelOutput, error) {
		return s.SimulateProofReset(ctx, &circuits.PrivateKernelResetCircuitPrivateInputs{
			PreviousKernel: previousKernel(c, s, out),
			Hints:          hints,
			Dimensions:     hints.Dimensions(),
		})
	}

	_, err = reset(circuits.ResetHints{})
	c.Assert(err, qt.ErrorMatches, "empty reset")

	_, err = reset(circuits.ResetHints{
		NoteHashPendingReads: []circuits.PendingReadHint{{ReadRequestIndex: 0, PendingIndex: 1}},
	})
	c.Assert(err, qt.ErrorMatches, "pending note hash index 1 out of range")

	// squashing a note hash that is still read is rejected
	_, err = reset(circuits.ResetHints{
		TransientDataHints: []circuits.TransientDataHint{{NoteHashIndex: 0, NullifierIndex: 1}},
	})
	c.Assert(err, qt.ErrorMatches, "squashed value .* is still read")

	res, err := reset(circuits.ResetHints{
		NoteHashPendingReads: []circuits.PendingReadHint{{ReadRequestIndex: 0, PendingIndex: 0}},
		TransientDataHints:   []circuits.TransientDataHint{{NoteHashIndex: 0, NullifierIndex: 1}},
	})
	c.Assert(err, qt.IsNil)
	c.Assert(res.PublicInputs.ValidationRequests.PendingCount(), qt.Equals, 0)
	c.Assert(res.PublicInputs.End.NoteHashes, qt.HasLen, 0)
	c.Assert(res.PublicInputs.End.Nullifiers, qt.HasLen, 1)
	c.Assert(*res.PublicInputs.ValidationRequests.SplitCounter, qt.Equals, uint32(0))
	// the previous output is left untouched
	c.Assert(out.PublicInputs.End.NoteHashes, qt.HasLen, 1)

	// dimensions must describe the hints
	_, err = s.SimulateProofReset(ctx, &circuits.PrivateKernelResetCircuitPrivateInputs{
		PreviousKernel: previousKernel(c, s, out),
		Hints: circuits.ResetHints{
			NoteHashPendingReads: []circuits.PendingReadHint{{ReadRequestIndex: 0, PendingIndex: 0}},
		},
	})
	c.Assert(err, qt.ErrorMatches, "reset dimensions .* do not match hints .*")
}

func TestTail(t *testing.T) {
	c := qt.New(t)
	s, err := New()
	c.Assert(err, qt.IsNil)
	ctx := context.Background()

	pending, err := s.SimulateProofInit(ctx, initInputs(c, s, privateCall(c, 1, 3, func(pi *circuits.PrivateCircuitPublicInputs) {
		pi.NullifierReadRequests = []circuits.ReadRequest{{Value: types.NewFr(1), Counter: 2}}
	})))
	c.Assert(err, qt.IsNil)
	_, err = s.SimulateProofTail(ctx, &circuits.PrivateKernelTailCircuitPrivateInputs{
		PreviousKernel: previousKernel(c, s, pending),
	})
	c.Assert(err, qt.ErrorMatches, "1 validation requests still pending")

	out, err := s.SimulateProofInit(ctx, initInputs(c, s, privateCall(c, 1, 3, nil)))
	c.Assert(err, qt.IsNil)
	_, err = s.SimulateProofTail(ctx, &circuits.PrivateKernelTailCircuitPrivateInputs{
		PreviousKernel:                 previousKernel(c, s, out),
		ValidationRequestsSplitCounter: 2,
	})
	c.Assert(err, qt.ErrorMatches, "unexpected split counter 2 without public calls")

	tail, err := s.SimulateProofTail(ctx, &circuits.PrivateKernelTailCircuitPrivateInputs{
		PreviousKernel: previousKernel(c, s, out),
	})
	c.Assert(err, qt.IsNil)
	c.Assert(tail.PublicInputs.ForRollup, qt.IsNotNil)
	c.Assert(tail.PublicInputs.ForPublic, qt.IsNil)

	// a tail output cannot be extended
	tailVK := tail.VerificationKey
	w, err := s.VKTree().MembershipWitness(&tailVK)
	c.Assert(err, qt.IsNil)
	_, err = s.SimulateProofTail(ctx, &circuits.PrivateKernelTailCircuitPrivateInputs{
		PreviousKernel: circuits.PrivateKernelData{
			PublicInputs:    out.PublicInputs,
			VerificationKey: tailVK,
			VKIndex:         w.LeafIndex,
			VKPath:          w.SiblingPath,
		},
	})
	c.Assert(err, qt.ErrorMatches, "previous kernel vk .* cannot be followed")
}

func TestChainEntries(t *testing.T) {
	c := qt.New(t)
	_, err := ChainEntries([]types.HexBytes{{1}}, nil)
	c.Assert(err, qt.ErrorMatches, "got 1 bytecodes and 0 witnesses")

	a, err := ChainEntries([]types.HexBytes{{1}, {2}}, []types.WitnessMap{{0: types.NewFr(1)}, {0: types.NewFr(2)}})
	c.Assert(err, qt.IsNil)
	b, err := ChainEntries([]types.HexBytes{{2}, {1}}, []types.WitnessMap{{0: types.NewFr(2)}, {0: types.NewFr(1)}})
	c.Assert(err, qt.IsNil)
	c.Assert(a[0], qt.Equals, b[1])
	c.Assert(a[1], qt.Equals, b[0])
}
