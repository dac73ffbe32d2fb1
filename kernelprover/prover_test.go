package kernelprover

import (
	"context"
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/kernel-prover/backend/simulator"
	"github.com/vocdoni/kernel-prover/circuits"
	"github.com/vocdoni/kernel-prover/execution"
	"github.com/vocdoni/kernel-prover/oracle"
	"github.com/vocdoni/kernel-prover/types"
)

// chainLength is the number of circuits run for n calls and r resets: one
// app circuit per call, the init, n-1 inner, the resets and the tail.
func chainLength(n, r int) int {
	return n + 1 + (n - 1) + r + 1
}

func TestSingleCall(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t, circuits.Capacities{})
	root := newCall(testContract, 1, 1, 2)

	out, err := env.prove(root)
	c.Assert(err, qt.IsNil)
	c.Assert(env.prover.bytecodes, qt.HasLen, 3)
	c.Assert(env.prover.circuits[circuitReset], qt.Equals, 0)
	c.Assert(env.prover.functions, qt.DeepEquals, []string{"Test:entrypoint"})
	c.Assert(out.PublicInputs.ValidationRequestsSplitCounter, qt.Equals, uint32(0))
	c.Assert(out.PublicInputs.HasPublicCalls(), qt.IsFalse)
	c.Assert(out.ClientIvcProof.IsEmpty(), qt.IsFalse)

	// the tx request hash is the only nullifier
	txHash, err := txRequestFor(root).Hash()
	c.Assert(err, qt.IsNil)
	c.Assert(out.PublicInputs.ForRollup.End.Nullifiers, qt.DeepEquals, []types.Fr{txHash})
	c.Assert(out.PublicInputs.ForRollup.End.NoteHashes, qt.HasLen, 0)

	// chain order: app, init, tail
	c.Assert(env.prover.bytecodes[0], qt.DeepEquals, root.Acir)
	c.Assert(env.prover.bytecodes[1], qt.DeepEquals, simulator.KernelBytecode(simulator.CircuitInit))
	c.Assert(env.prover.bytecodes[2], qt.DeepEquals, simulator.KernelBytecode(simulator.CircuitTail))
	c.Assert(env.prover.witnesses[0], qt.DeepEquals, root.PartialWitness)
}

func TestPreOrderTraversal(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t, circuits.Capacities{})
	a1 := newCall(testContract, 3, 3, 4)
	a := newCall(testContract, 2, 2, 5, a1)
	b := newCall(authRegistry, 9, 6, 7)
	root := newCall(testContract, 1, 1, 8, a, b)

	_, err := env.prove(root)
	c.Assert(err, qt.IsNil)
	c.Assert(env.prover.functions, qt.DeepEquals, []string{
		"Test:entrypoint", "Test:a", "Test:a1", "AuthRegistry:consume",
	})
	c.Assert(env.prover.circuits[circuitInit], qt.Equals, 1)
	c.Assert(env.prover.circuits[circuitInner], qt.Equals, 3)
	c.Assert(env.prover.circuits[circuitTail], qt.Equals, 1)
	c.Assert(env.prover.bytecodes, qt.HasLen, chainLength(4, 0))

	// every app circuit is followed by its kernel circuit
	c.Assert(env.prover.bytecodes[0], qt.DeepEquals, root.Acir)
	c.Assert(env.prover.bytecodes[2], qt.DeepEquals, a.Acir)
	c.Assert(env.prover.bytecodes[4], qt.DeepEquals, a1.Acir)
	c.Assert(env.prover.bytecodes[6], qt.DeepEquals, b.Acir)
	for _, i := range []int{3, 5, 7} {
		c.Assert(env.prover.bytecodes[i], qt.DeepEquals, simulator.KernelBytecode(simulator.CircuitInner))
	}

	recorded, err := env.stg.RecordedInputs(TagInnerInputs)
	c.Assert(err, qt.IsNil)
	c.Assert(recorded, qt.HasLen, 3)
	recorded, err = env.stg.RecordedInputs(TagInitInputs)
	c.Assert(err, qt.IsNil)
	c.Assert(recorded, qt.HasLen, 1)
	recorded, err = env.stg.RecordedInputs(TagTailInputs)
	c.Assert(err, qt.IsNil)
	c.Assert(recorded, qt.HasLen, 1)
}

func TestResetsOnCapacity(t *testing.T) {
	c := qt.New(t)
	caps := circuits.DefaultCapacities()
	caps.NoteHashReadRequests = 2
	env := newTestEnv(t, caps)

	note := types.NewFr(500)
	reads := func(counters ...uint32) []circuits.ReadRequest {
		res := []circuits.ReadRequest{}
		for _, counter := range counters {
			res = append(res, circuits.ReadRequest{Value: note, Counter: counter})
		}
		return res
	}
	a := newCall(testContract, 2, 3, 5)
	a.PublicInputs().NoteHashReadRequests = reads(4, 5)
	b := newCall(testContract, 4, 6, 8)
	b.PublicInputs().NoteHashReadRequests = reads(7, 8)
	root := newCall(testContract, 1, 1, 9, a, b)
	root.PublicInputs().NoteHashes = []circuits.NoteHash{{Value: note, Counter: 2}}

	out, err := env.prove(root)
	c.Assert(err, qt.IsNil)
	// one reset before b, one before the tail
	c.Assert(env.prover.circuits[circuitReset], qt.Equals, 2)
	c.Assert(env.prover.bytecodes, qt.HasLen, chainLength(3, 2))
	c.Assert(env.prover.bytecodes[4], qt.DeepEquals, simulator.KernelBytecode(simulator.CircuitReset))
	c.Assert(out.PublicInputs.ForRollup.End.NoteHashes, qt.DeepEquals, []types.Fr{note})

	recorded, err := env.stg.RecordedInputs(TagResetInputs)
	c.Assert(err, qt.IsNil)
	c.Assert(recorded, qt.HasLen, 2)
}

func TestTransientSquashing(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t, circuits.Capacities{})

	note := types.NewFr(600)
	a := newCall(testContract, 2, 3, 4)
	a.PublicInputs().Nullifiers = []circuits.Nullifier{{Value: types.NewFr(601), Counter: 4, NoteHash: note}}
	root := newCall(testContract, 1, 1, 5, a)
	root.PublicInputs().NoteHashes = []circuits.NoteHash{{Value: note, Counter: 2}}
	root.NoteHashNullifierCounterMap = map[uint32]uint32{2: 4}

	out, err := env.prove(root)
	c.Assert(err, qt.IsNil)
	c.Assert(env.prover.circuits[circuitReset], qt.Equals, 1)
	c.Assert(env.prover.bytecodes, qt.HasLen, chainLength(2, 1))
	c.Assert(out.PublicInputs.ForRollup.End.NoteHashes, qt.HasLen, 0)
	c.Assert(out.PublicInputs.ForRollup.End.Nullifiers, qt.HasLen, 1)
}

func TestSettledReads(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t, circuits.Capacities{})

	settledNote, settledNullifier := types.NewFr(700), types.NewFr(701)
	_, err := env.state.AddNoteHashes(types.NewFr(1), settledNote)
	c.Assert(err, qt.IsNil)
	c.Assert(env.state.AddNullifiers(settledNullifier), qt.IsNil)

	skM := types.NewFr(42)
	pkMHash, err := types.MasterPublicKeyHash(skM)
	c.Assert(err, qt.IsNil)
	skApp, err := types.AppSecretKey(skM, testContract)
	c.Assert(err, qt.IsNil)
	c.Assert(env.stg.SetMasterSecretKey(pkMHash, skM), qt.IsNil)

	root := newCall(testContract, 1, 1, 5)
	root.PublicInputs().NoteHashReadRequests = []circuits.ReadRequest{{Value: settledNote, Counter: 2}}
	root.PublicInputs().NullifierReadRequests = []circuits.ReadRequest{{Value: settledNullifier, Counter: 3}}
	root.PublicInputs().KeyValidationRequests = []circuits.KeyValidationRequest{{PkMHash: pkMHash, SkApp: skApp, Counter: 4}}
	root.NoteHashLeafIndexMap = map[types.Fr]uint64{settledNote: 1}

	_, err = env.prove(root)
	c.Assert(err, qt.IsNil)
	c.Assert(env.prover.circuits[circuitReset], qt.Equals, 1)
	c.Assert(env.prover.bytecodes, qt.HasLen, chainLength(1, 1))

	// a wrong leaf index does not verify against the note hash tree
	env = newTestEnv(t, circuits.Capacities{})
	_, err = env.state.AddNoteHashes(types.NewFr(1), settledNote)
	c.Assert(err, qt.IsNil)
	root = newCall(testContract, 1, 1, 5)
	root.PublicInputs().NoteHashReadRequests = []circuits.ReadRequest{{Value: settledNote, Counter: 2}}
	root.NoteHashLeafIndexMap = map[types.Fr]uint64{settledNote: 0}
	_, err = env.prove(root)
	c.Assert(err, qt.ErrorIs, ErrCircuitSimulation)
}

func TestMissingLeafIndex(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t, circuits.Capacities{})
	root := newCall(testContract, 1, 1, 3)
	root.PublicInputs().NoteHashReadRequests = []circuits.ReadRequest{{Value: types.NewFr(800), Counter: 2}}

	out, err := env.prove(root)
	c.Assert(err, qt.ErrorIs, ErrLookupFailure)
	c.Assert(out, qt.IsNil)
}

func TestFailingOracle(t *testing.T) {
	c := qt.New(t)
	errBoom := errors.New("boom")
	lookups := []string{"function", "address", "class", "vk", "noteHash", "nullifier", "masterKey"}
	for _, fail := range lookups {
		env := newTestEnv(t, circuits.Capacities{})
		root := env.settledReads(c)
		env.kp.oracle = &failingOracle{ProvingDataOracle: env.oracle, fail: fail, err: errBoom}

		out, err := env.prove(root)
		c.Assert(err, qt.ErrorIs, ErrLookupFailure, qt.Commentf(fail))
		c.Assert(err, qt.ErrorIs, errBoom, qt.Commentf(fail))
		c.Assert(out, qt.IsNil)
		c.Assert(env.prover.circuits[circuitTail], qt.Equals, 0)
	}

	// lookups returning nothing, without an error, fail the same way
	for _, fail := range lookups[:len(lookups)-1] {
		env := newTestEnv(t, circuits.Capacities{})
		root := env.settledReads(c)
		env.kp.oracle = &failingOracle{ProvingDataOracle: env.oracle, fail: fail}

		out, err := env.prove(root)
		c.Assert(err, qt.ErrorIs, ErrLookupFailure, qt.Commentf(fail))
		c.Assert(err, qt.ErrorIs, errNoResult, qt.Commentf(fail))
		c.Assert(out, qt.IsNil)
	}

	// without failures the same trace is proved
	env := newTestEnv(t, circuits.Capacities{})
	_, err := env.prove(env.settledReads(c))
	c.Assert(err, qt.IsNil)

	// unknown functions cannot be named
	env = newTestEnv(t, circuits.Capacities{})
	out, err := env.prove(newCall(testContract, 77, 1, 2))
	c.Assert(err, qt.ErrorIs, ErrLookupFailure)
	c.Assert(err, qt.ErrorIs, oracle.ErrFunctionNotFound)
	c.Assert(out, qt.IsNil)
}

func TestMissingAppVerificationKey(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t, circuits.Capacities{})
	env.prover.nilAppVK = true

	out, err := env.prove(newCall(testContract, 1, 1, 2))
	c.Assert(err, qt.ErrorIs, ErrCircuitSimulation)
	c.Assert(err, qt.ErrorIs, errNoResult)
	c.Assert(out, qt.IsNil)
	c.Assert(env.prover.circuits[circuitInit], qt.Equals, 0)
}

func TestCompositionFailure(t *testing.T) {
	c := qt.New(t)
	errBoom := errors.New("boom")
	env := newTestEnv(t, circuits.Capacities{})
	env.prover.composeErr = errBoom
	root := newCall(testContract, 1, 1, 4, newCall(testContract, 2, 2, 3))

	out, err := env.prove(root)
	c.Assert(err, qt.ErrorIs, ErrComposition)
	c.Assert(err, qt.ErrorIs, errBoom)
	c.Assert(err, qt.Not(qt.ErrorIs), ErrCircuitSimulation)
	c.Assert(out, qt.IsNil)
	// every circuit ran before the composition
	c.Assert(env.prover.circuits[circuitTail], qt.Equals, 1)
	c.Assert(env.prover.bytecodes, qt.HasLen, chainLength(2, 0))
}

func TestHeldReadRequest(t *testing.T) {
	c := qt.New(t)
	caps := circuits.DefaultCapacities()
	caps.NoteHashReadRequests = 2
	env := newTestEnv(t, caps)

	settled, emitted := types.NewFr(1000), types.NewFr(1001)
	_, err := env.state.AddNoteHashes(types.NewFr(1), settled)
	c.Assert(err, qt.IsNil)

	a := newCall(testContract, 2, 3, 5)
	a.PublicInputs().NoteHashReadRequests = []circuits.ReadRequest{{Value: settled, Counter: 4}}
	// b emits the note hash root reads after b returns
	b := newCall(testContract, 4, 6, 9)
	b.PublicInputs().NoteHashes = []circuits.NoteHash{{Value: emitted, Counter: 7}}
	root := newCall(testContract, 1, 1, 12, a, b)
	root.PublicInputs().NoteHashReadRequests = []circuits.ReadRequest{
		{Value: settled, Counter: 2},
		{Value: emitted, Counter: 11},
	}
	root.NoteHashLeafIndexMap = map[types.Fr]uint64{settled: 1}

	out, err := env.prove(root)
	c.Assert(err, qt.IsNil)
	c.Assert(env.prover.circuits[circuitReset], qt.Equals, 2)
	c.Assert(env.prover.bytecodes, qt.HasLen, chainLength(3, 2))
	c.Assert(out.PublicInputs.ForRollup.End.NoteHashes, qt.DeepEquals, []types.Fr{emitted})

	// the read of the value b emits stays pending through the first reset
	first := env.prover.resets[0]
	c.Assert(first.Hints.NoteHashSettledReads, qt.HasLen, 1)
	c.Assert(first.Hints.NoteHashSettledReads[0].Value, qt.Equals, settled)
	c.Assert(first.Hints.NoteHashPendingReads, qt.HasLen, 0)

	// and is validated against b's note hash by the final one
	last := env.prover.resets[1]
	c.Assert(last.Hints.NoteHashPendingReads, qt.HasLen, 1)
	c.Assert(last.Hints.NoteHashSettledReads, qt.HasLen, 1)
}

func TestTransientPairStillRead(t *testing.T) {
	c := qt.New(t)
	caps := circuits.DefaultCapacities()
	caps.NoteHashReadRequests = 1
	env := newTestEnv(t, caps)

	settled, note := types.NewFr(1100), types.NewFr(1101)
	_, err := env.state.AddNoteHashes(types.NewFr(1), settled)
	c.Assert(err, qt.IsNil)

	a := newCall(testContract, 2, 3, 5)
	a.PublicInputs().Nullifiers = []circuits.Nullifier{{Value: types.NewFr(1102), Counter: 4, NoteHash: note}}
	a.PublicInputs().NoteHashReadRequests = []circuits.ReadRequest{{Value: settled, Counter: 5}}
	b := newCall(testContract, 4, 6, 9)
	b.PublicInputs().NoteHashReadRequests = []circuits.ReadRequest{{Value: note, Counter: 7}}
	root := newCall(testContract, 1, 1, 12, a, b)
	root.PublicInputs().NoteHashes = []circuits.NoteHash{{Value: note, Counter: 2}}
	root.NoteHashNullifierCounterMap = map[uint32]uint32{2: 4}
	root.NoteHashLeafIndexMap = map[types.Fr]uint64{settled: 1}

	out, err := env.prove(root)
	c.Assert(err, qt.IsNil)
	c.Assert(env.prover.circuits[circuitReset], qt.Equals, 2)
	c.Assert(env.prover.bytecodes, qt.HasLen, chainLength(3, 2))

	// b still reads the note hash, so the pair is kept by the reset before b
	c.Assert(env.prover.resets[0].Hints.TransientDataHints, qt.HasLen, 0)
	c.Assert(env.prover.resets[0].Hints.NoteHashSettledReads, qt.HasLen, 1)
	// and squashed by the final reset, once the read is validated
	c.Assert(env.prover.resets[1].Hints.NoteHashPendingReads, qt.HasLen, 1)
	c.Assert(env.prover.resets[1].Hints.TransientDataHints, qt.HasLen, 1)
	c.Assert(out.PublicInputs.ForRollup.End.NoteHashes, qt.HasLen, 0)
	c.Assert(out.PublicInputs.ForRollup.End.Nullifiers, qt.HasLen, 1)
}

func TestLongChainComposes(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t, circuits.Capacities{})
	env.prover.compose = true

	// 32 nested calls give a chain longer than two composition segments
	nested := []*execution.Result{}
	for i := range uint32(32) {
		nested = append(nested, newCall(testContract, 2, 2+2*i, 3+2*i))
	}
	root := newCall(testContract, 1, 1, 66, nested...)

	out, err := env.prove(root)
	c.Assert(err, qt.IsNil)
	c.Assert(env.prover.bytecodes, qt.HasLen, chainLength(33, 0))
	c.Assert(simulator.VerifyClientIvcProof(out.ClientIvcProof, env.prover.bytecodes, env.prover.witnesses), qt.IsNil)
}

func TestPublicCalls(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t, circuits.Capacities{})

	publicCall := execution.PublicExecutionRequest{
		CallContext: circuits.CallContext{
			MsgSender:        testContract,
			ContractAddress:  types.NewAztecAddress(0x2000),
			FunctionSelector: 7,
		},
		Args:              types.FrSlice(1, 2),
		SideEffectCounter: 4,
	}
	request, err := publicCall.CallRequest()
	c.Assert(err, qt.IsNil)

	root := newCall(testContract, 1, 1, 6)
	pi := root.PublicInputs()
	pi.MinRevertibleSideEffectCounter = 3
	pi.NoteHashes = []circuits.NoteHash{
		{Value: types.NewFr(900), Counter: 2},
		{Value: types.NewFr(901), Counter: 5},
	}
	pi.PublicCallRequests = []circuits.PublicCallRequest{request}
	root.EnqueuedPublicFunctionCalls = []execution.PublicExecutionRequest{publicCall}

	out, err := env.prove(root)
	c.Assert(err, qt.IsNil)
	c.Assert(out.PublicInputs.HasPublicCalls(), qt.IsTrue)
	c.Assert(out.PublicInputs.ValidationRequestsSplitCounter, qt.Equals, uint32(3))
	c.Assert(out.PublicInputs.ValidationRequestsSplitCounter, qt.Equals, out.PublicInputs.MinRevertibleSideEffectCounter)
	c.Assert(out.Bytecode, qt.DeepEquals, simulator.KernelBytecode(simulator.CircuitTailToPublic))

	forPublic := out.PublicInputs.ForPublic
	c.Assert(forPublic.NonRevertibleAccumulatedData.NoteHashes, qt.DeepEquals, []types.Fr{types.NewFr(900)})
	c.Assert(forPublic.RevertibleAccumulatedData.NoteHashes, qt.DeepEquals, []types.Fr{types.NewFr(901)})
	c.Assert(forPublic.RevertibleAccumulatedData.PublicCallRequests, qt.DeepEquals, []circuits.PublicCallRequest{request})
	c.Assert(forPublic.NonRevertibleAccumulatedData.Nullifiers, qt.HasLen, 1)
}

func TestResetNotPossible(t *testing.T) {
	c := qt.New(t)
	caps := circuits.DefaultCapacities()
	caps.NoteHashes = 1
	env := newTestEnv(t, caps)

	a := newCall(testContract, 2, 3, 4)
	a.PublicInputs().NoteHashes = []circuits.NoteHash{{Value: types.NewFr(2), Counter: 4}}
	root := newCall(testContract, 1, 1, 5, a)
	root.PublicInputs().NoteHashes = []circuits.NoteHash{{Value: types.NewFr(1), Counter: 2}}

	out, err := env.prove(root)
	c.Assert(err, qt.ErrorIs, ErrCircuitSimulation)
	c.Assert(err, qt.ErrorIs, ErrResetNotPossible)
	c.Assert(out, qt.IsNil)
	c.Assert(env.prover.circuits[circuitReset], qt.Equals, 0)
}

func TestDerivedIndicesIdempotent(t *testing.T) {
	c := qt.New(t)
	a := newCall(testContract, 2, 2, 3)
	a.NoteHashLeafIndexMap = map[types.Fr]uint64{types.NewFr(1): 4}
	root := newCall(testContract, 1, 1, 4, a)
	root.NoteHashNullifierCounterMap = map[uint32]uint32{1: 3}

	first, err := execution.Summarize(root)
	c.Assert(err, qt.IsNil)
	second, err := execution.Summarize(root)
	c.Assert(err, qt.IsNil)
	c.Assert(first, qt.DeepEquals, second)
}

func TestCanceledContext(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t, circuits.Capacities{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	root := newCall(testContract, 1, 1, 2)
	out, err := env.kp.Prove(ctx, txRequestFor(root), root)
	c.Assert(err, qt.ErrorIs, context.Canceled)
	c.Assert(out, qt.IsNil)
}

func TestComposedProofVerifies(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(t, circuits.Capacities{})
	env.prover.compose = true
	root := newCall(testContract, 1, 1, 4, newCall(testContract, 2, 2, 3))

	out, err := env.prove(root)
	c.Assert(err, qt.IsNil)
	c.Assert(env.prover.bytecodes, qt.HasLen, chainLength(2, 0))
	c.Assert(simulator.VerifyClientIvcProof(out.ClientIvcProof, env.prover.bytecodes, env.prover.witnesses), qt.IsNil)

	// the composition is bound to the chain order
	bytecodes := append([]types.HexBytes{}, env.prover.bytecodes...)
	bytecodes[0], bytecodes[2] = bytecodes[2], bytecodes[0]
	witnesses := append([]types.WitnessMap{}, env.prover.witnesses...)
	witnesses[0], witnesses[2] = witnesses[2], witnesses[0]
	c.Assert(simulator.VerifyClientIvcProof(out.ClientIvcProof, bytecodes, witnesses), qt.IsNotNil)
}

func TestNew(t *testing.T) {
	c := qt.New(t)
	_, err := New(nil)
	c.Assert(err, qt.IsNotNil)
	env := newTestEnv(t, circuits.Capacities{})
	_, err = New(&Config{Oracle: env.oracle, Prover: env.prover})
	c.Assert(err, qt.ErrorMatches, "missing vk tree root")
}
