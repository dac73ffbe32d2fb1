package kernelprover

import (
	"context"
	"fmt"
	"sync"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/kernel-prover/backend/simulator"
	"github.com/vocdoni/kernel-prover/circuits"
	"github.com/vocdoni/kernel-prover/execution"
	"github.com/vocdoni/kernel-prover/oracle"
	"github.com/vocdoni/kernel-prover/protocolcontracts"
	"github.com/vocdoni/kernel-prover/state"
	"github.com/vocdoni/kernel-prover/storage"
	"github.com/vocdoni/kernel-prover/types"
	"go.vocdoni.io/dvote/db/metadb"
)

var (
	testContract  = types.NewAztecAddress(0x1000)
	authRegistry  = protocolcontracts.Address(0)
	testFunctions = map[types.FunctionSelector]string{1: "entrypoint", 2: "a", 3: "a1", 4: "b", 5: "c"}
)

// recordingProver records the calls the kernel prover makes. Unless compose
// is set, it returns a dummy client IVC proof to keep tests fast. composeErr
// makes the composition fail and nilAppVK makes app verification keys come
// back empty.
type recordingProver struct {
	PrivateKernelProver
	compose    bool
	composeErr error
	nilAppVK   bool

	mu        sync.Mutex
	functions []string
	circuits  map[string]int
	resets    []*circuits.PrivateKernelResetCircuitPrivateInputs
	bytecodes []types.HexBytes
	witnesses []types.WitnessMap
}

func (p *recordingProver) count(circuit string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.circuits[circuit]++
}

func (p *recordingProver) ComputeAppCircuitVerificationKey(ctx context.Context, bytecode types.HexBytes, name string) (*types.VerificationKey, error) {
	p.mu.Lock()
	p.functions = append(p.functions, name)
	p.mu.Unlock()
	if p.nilAppVK {
		return nil, nil
	}
	return p.PrivateKernelProver.ComputeAppCircuitVerificationKey(ctx, bytecode, name)
}

func (p *recordingProver) SimulateProofInit(ctx context.Context, in *circuits.PrivateKernelInitCircuitPrivateInputs) (*circuits.KernelOutput, error) {
	p.count(circuitInit)
	return p.PrivateKernelProver.SimulateProofInit(ctx, in)
}

func (p *recordingProver) SimulateProofInner(ctx context.Context, in *circuits.PrivateKernelInnerCircuitPrivateInputs) (*circuits.KernelOutput, error) {
	p.count(circuitInner)
	return p.PrivateKernelProver.SimulateProofInner(ctx, in)
}

func (p *recordingProver) SimulateProofReset(ctx context.Context, in *circuits.PrivateKernelResetCircuitPrivateInputs) (*circuits.KernelOutput, error) {
	p.count(circuitReset)
	p.mu.Lock()
	p.resets = append(p.resets, in)
	p.mu.Unlock()
	return p.PrivateKernelProver.SimulateProofReset(ctx, in)
}

func (p *recordingProver) SimulateProofTail(ctx context.Context, in *circuits.PrivateKernelTailCircuitPrivateInputs) (*circuits.TailOutput, error) {
	p.count(circuitTail)
	return p.PrivateKernelProver.SimulateProofTail(ctx, in)
}

func (p *recordingProver) CreateClientIvcProof(ctx context.Context, bytecodes []types.HexBytes, witnesses []types.WitnessMap) (*circuits.ClientIvcProof, error) {
	p.mu.Lock()
	p.bytecodes, p.witnesses = bytecodes, witnesses
	p.mu.Unlock()
	if p.composeErr != nil {
		return nil, p.composeErr
	}
	if p.compose {
		return p.PrivateKernelProver.CreateClientIvcProof(ctx, bytecodes, witnesses)
	}
	return &circuits.ClientIvcProof{Proof: types.HexBytes{1}, VerificationKey: types.HexBytes{1}}, nil
}

type testEnv struct {
	stg    *storage.Storage
	state  *state.State
	oracle *oracle.Oracle
	prover *recordingProver
	kp     *KernelProver
}

func newTestEnv(t *testing.T, caps circuits.Capacities) *testEnv {
	c := qt.New(t)
	database := metadb.NewTest(t)
	st, err := state.New(database, []byte("ws/"))
	c.Assert(err, qt.IsNil)
	if caps == (circuits.Capacities{}) {
		caps = circuits.DefaultCapacities()
	}
	sim, err := simulator.New(simulator.WithCapacities(caps), simulator.WithState(st))
	c.Assert(err, qt.IsNil)

	env := &testEnv{
		stg:    storage.New(database),
		state:  st,
		prover: &recordingProver{PrivateKernelProver: sim, circuits: map[string]int{}},
	}
	env.oracle = oracle.New(env.stg, st, sim.VKTree())
	env.register(c, "Test", testContract, testFunctions)
	env.register(c, "AuthRegistry", authRegistry, map[types.FunctionSelector]string{9: "consume"})

	env.kp, err = New(&Config{
		Oracle:     env.oracle,
		Prover:     env.prover,
		VKTreeRoot: sim.VKTree().Root(),
		Capacities: caps,
		Recorder:   env.stg,
	})
	c.Assert(err, qt.IsNil)
	return env
}

func (e *testEnv) register(c *qt.C, name string, address types.AztecAddress, fns map[types.FunctionSelector]string) {
	class := &storage.ContractClass{
		Name:                     name,
		ArtifactHash:             types.NewFr(address.ToField().Uint64()),
		PublicBytecodeCommitment: types.NewFr(1),
	}
	for selector, fnName := range fns {
		vk, err := types.VerificationKeyFromBytes(acirOf(address, selector))
		c.Assert(err, qt.IsNil)
		class.PrivateFunctions = append(class.PrivateFunctions, storage.PrivateFunction{
			Selector: selector,
			VKHash:   vk.Hash,
			Name:     fnName,
		})
	}
	_, err := e.oracle.RegisterContract(class, &storage.ContractInstance{Address: address})
	c.Assert(err, qt.IsNil)
}

func (e *testEnv) prove(result *execution.Result) (*circuits.TailOutput, error) {
	return e.kp.Prove(context.Background(), txRequestFor(result), result)
}

func acirOf(address types.AztecAddress, selector types.FunctionSelector) types.HexBytes {
	return types.HexBytes(fmt.Sprintf("acir:%s:%s", address, selector))
}

// newCall returns a private call with the side effect counter range
// [start, end] and no side effects.
func newCall(address types.AztecAddress, selector types.FunctionSelector, start, end uint32, nested ...*execution.Result) *execution.Result {
	return &execution.Result{
		Acir:           acirOf(address, selector),
		PartialWitness: types.WitnessMap{0: types.NewFr(uint64(start)), 1: types.NewFr(uint64(end))},
		CallStackItem: circuits.PrivateCallStackItem{
			ContractAddress: address,
			FunctionData:    circuits.FunctionData{Selector: selector, IsPrivate: true},
			PublicInputs: circuits.PrivateCircuitPublicInputs{
				CallContext: circuits.CallContext{
					ContractAddress:  address,
					FunctionSelector: selector,
				},
				ArgsHash:               types.NewFr(uint64(selector) + 100),
				StartSideEffectCounter: start,
				EndSideEffectCounter:   end,
			},
		},
		NestedExecutions: nested,
	}
}

func txRequestFor(root *execution.Result) *circuits.TxRequest {
	return &circuits.TxRequest{
		Origin:       root.ContractAddress(),
		FunctionData: root.CallStackItem.FunctionData,
		ArgsHash:     root.PublicInputs().ArgsHash,
		TxContext:    circuits.TxContext{ChainID: types.NewFr(1), Version: types.NewFr(1)},
	}
}

// failingOracle fails the lookup named by fail. With a nil err the lookup
// returns no result and no error.
type failingOracle struct {
	ProvingDataOracle
	fail string
	err  error
}

func (o *failingOracle) GetFunctionMembershipWitness(ctx context.Context, address types.AztecAddress, selector types.FunctionSelector) (*types.MembershipWitness, error) {
	if o.fail == "function" {
		return nil, o.err
	}
	return o.ProvingDataOracle.GetFunctionMembershipWitness(ctx, address, selector)
}

func (o *failingOracle) GetContractAddressPreimage(ctx context.Context, address types.AztecAddress) (*circuits.ContractAddressPreimage, error) {
	if o.fail == "address" {
		return nil, o.err
	}
	return o.ProvingDataOracle.GetContractAddressPreimage(ctx, address)
}

func (o *failingOracle) GetContractClassIDPreimage(ctx context.Context, classID types.Fr) (*circuits.ContractClassIDPreimage, error) {
	if o.fail == "class" {
		return nil, o.err
	}
	return o.ProvingDataOracle.GetContractClassIDPreimage(ctx, classID)
}

func (o *failingOracle) GetVKMembershipWitness(ctx context.Context, vk types.VerificationKey) (*types.MembershipWitness, error) {
	if o.fail == "vk" {
		return nil, o.err
	}
	return o.ProvingDataOracle.GetVKMembershipWitness(ctx, vk)
}

func (o *failingOracle) GetNoteHashMembershipWitness(ctx context.Context, leafIndex uint64) (*types.MembershipWitness, error) {
	if o.fail == "noteHash" {
		return nil, o.err
	}
	return o.ProvingDataOracle.GetNoteHashMembershipWitness(ctx, leafIndex)
}

func (o *failingOracle) GetNullifierMembershipWitness(ctx context.Context, nullifier types.Fr) (*circuits.NullifierMembershipWitness, error) {
	if o.fail == "nullifier" {
		return nil, o.err
	}
	return o.ProvingDataOracle.GetNullifierMembershipWitness(ctx, nullifier)
}

func (o *failingOracle) GetMasterSecretKey(ctx context.Context, pkMHash types.Fr) (types.Fr, error) {
	if o.fail == "masterKey" {
		return types.Fr{}, o.err
	}
	return o.ProvingDataOracle.GetMasterSecretKey(ctx, pkMHash)
}

// settledReads adds a settled note hash, a settled nullifier and a master
// key to the environment and returns a call reading all of them, with a
// nested call.
func (e *testEnv) settledReads(c *qt.C) *execution.Result {
	settledNote, settledNullifier := types.NewFr(700), types.NewFr(701)
	_, err := e.state.AddNoteHashes(types.NewFr(1), settledNote)
	c.Assert(err, qt.IsNil)
	c.Assert(e.state.AddNullifiers(settledNullifier), qt.IsNil)

	skM := types.NewFr(42)
	pkMHash, err := types.MasterPublicKeyHash(skM)
	c.Assert(err, qt.IsNil)
	skApp, err := types.AppSecretKey(skM, testContract)
	c.Assert(err, qt.IsNil)
	c.Assert(e.stg.SetMasterSecretKey(pkMHash, skM), qt.IsNil)

	root := newCall(testContract, 1, 1, 7, newCall(testContract, 2, 5, 6))
	root.PublicInputs().NoteHashReadRequests = []circuits.ReadRequest{{Value: settledNote, Counter: 2}}
	root.PublicInputs().NullifierReadRequests = []circuits.ReadRequest{{Value: settledNullifier, Counter: 3}}
	root.PublicInputs().KeyValidationRequests = []circuits.KeyValidationRequest{{PkMHash: pkMHash, SkApp: skApp, Counter: 4}}
	root.NoteHashLeafIndexMap = map[types.Fr]uint64{settledNote: 1}
	return root
}
