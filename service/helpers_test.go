package service

import (
	"context"
	"fmt"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/kernel-prover/backend/simulator"
	"github.com/vocdoni/kernel-prover/circuits"
	"github.com/vocdoni/kernel-prover/execution"
	"github.com/vocdoni/kernel-prover/kernelprover"
	"github.com/vocdoni/kernel-prover/oracle"
	"github.com/vocdoni/kernel-prover/state"
	"github.com/vocdoni/kernel-prover/storage"
	"github.com/vocdoni/kernel-prover/types"
	"go.vocdoni.io/dvote/db/metadb"
)

var testContract = types.NewAztecAddress(0x1000)

// fastProver skips the client IVC composition of the simulator.
type fastProver struct {
	*simulator.Simulator
}

func (fastProver) CreateClientIvcProof(context.Context, []types.HexBytes, []types.WitnessMap) (*circuits.ClientIvcProof, error) {
	return &circuits.ClientIvcProof{Proof: types.HexBytes{1}, VerificationKey: types.HexBytes{1}}, nil
}

type testEnv struct {
	stg    *storage.Storage
	oracle *oracle.Oracle
	kp     *kernelprover.KernelProver
}

func newTestEnv(t *testing.T) *testEnv {
	c := qt.New(t)
	database := metadb.NewTest(t)
	st, err := state.New(database, []byte("ws/"))
	c.Assert(err, qt.IsNil)
	sim, err := simulator.New(simulator.WithState(st))
	c.Assert(err, qt.IsNil)
	env := &testEnv{stg: storage.New(database)}
	env.oracle = oracle.New(env.stg, st, sim.VKTree())

	class := &storage.ContractClass{Name: "Test", ArtifactHash: types.NewFr(1)}
	for selector, name := range map[types.FunctionSelector]string{1: "entrypoint", 2: "transfer"} {
		vk, err := types.VerificationKeyFromBytes(acirOf(selector))
		c.Assert(err, qt.IsNil)
		class.PrivateFunctions = append(class.PrivateFunctions, storage.PrivateFunction{
			Selector: selector,
			VKHash:   vk.Hash,
			Name:     name,
		})
	}
	_, err = env.oracle.RegisterContract(class, &storage.ContractInstance{Address: testContract})
	c.Assert(err, qt.IsNil)

	env.kp, err = kernelprover.New(&kernelprover.Config{
		Oracle:     env.oracle,
		Prover:     fastProver{sim},
		VKTreeRoot: sim.VKTree().Root(),
	})
	c.Assert(err, qt.IsNil)
	return env
}

func acirOf(selector types.FunctionSelector) types.HexBytes {
	return types.HexBytes(fmt.Sprintf("acir:%s", selector))
}

// newJob returns a transaction with a single private call to selector.
func newJob(selector types.FunctionSelector) (*circuits.TxRequest, *execution.Result) {
	result := &execution.Result{
		Acir:           acirOf(selector),
		PartialWitness: types.WitnessMap{0: types.NewFr(1)},
		CallStackItem: circuits.PrivateCallStackItem{
			ContractAddress: testContract,
			FunctionData:    circuits.FunctionData{Selector: selector, IsPrivate: true},
			PublicInputs: circuits.PrivateCircuitPublicInputs{
				CallContext: circuits.CallContext{
					ContractAddress:  testContract,
					FunctionSelector: selector,
				},
				ArgsHash:               types.NewFr(uint64(selector) + 100),
				StartSideEffectCounter: 1,
				EndSideEffectCounter:   2,
			},
		},
	}
	return &circuits.TxRequest{
		Origin:       testContract,
		FunctionData: result.CallStackItem.FunctionData,
		ArgsHash:     result.PublicInputs().ArgsHash,
		TxContext:    circuits.TxContext{ChainID: types.NewFr(1), Version: types.NewFr(1)},
	}, result
}
