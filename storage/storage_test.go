package storage

import (
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/kernel-prover/circuits"
	"github.com/vocdoni/kernel-prover/execution"
	"github.com/vocdoni/kernel-prover/types"
	"go.vocdoni.io/dvote/db/metadb"
)

func testJob(address uint64) (*circuits.TxRequest, *execution.Result) {
	addr := types.NewAztecAddress(address)
	txReq := &circuits.TxRequest{
		Origin:       addr,
		FunctionData: circuits.FunctionData{Selector: 1, IsPrivate: true},
		ArgsHash:     types.NewFr(address),
	}
	result := &execution.Result{
		Acir:           types.HexBytes{0x01, 0x02},
		PartialWitness: types.WitnessMap{0: types.NewFr(5)},
		CallStackItem: circuits.PrivateCallStackItem{
			ContractAddress: addr,
			FunctionData:    txReq.FunctionData,
		},
		NoteHashLeafIndexMap:        map[types.Fr]uint64{types.NewFr(9): 3},
		NoteHashNullifierCounterMap: map[uint32]uint32{1: 2},
	}
	return txReq, result
}

func TestContracts(t *testing.T) {
	c := qt.New(t)
	stg := New(metadb.NewTest(t))

	class := &ContractClass{
		ID:           types.NewFr(77),
		Name:         "Token",
		ArtifactHash: types.NewFr(1),
		PrivateFunctions: []PrivateFunction{
			{Selector: 0xaabbccdd, VKHash: types.NewFr(2), Name: "transfer"},
		},
	}
	c.Assert(stg.SetContractClass(class), qt.IsNil)
	got, err := stg.ContractClass(class.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, class)

	_, err = stg.ContractClass(types.NewFr(78))
	c.Assert(err, qt.ErrorIs, ErrNotFound)

	instance := &ContractInstance{
		Address:         types.NewAztecAddress(1234),
		ContractClassID: class.ID,
		Salt:            types.NewFr(3),
	}
	c.Assert(stg.SetContractInstance(instance), qt.IsNil)
	gotInstance, err := stg.ContractInstance(instance.Address)
	c.Assert(err, qt.IsNil)
	c.Assert(gotInstance, qt.DeepEquals, instance)

	c.Assert(stg.SetMasterSecretKey(types.NewFr(10), types.NewFr(11)), qt.IsNil)
	skM, err := stg.MasterSecretKey(types.NewFr(10))
	c.Assert(err, qt.IsNil)
	c.Assert(skM, qt.Equals, types.NewFr(11))
	_, err = stg.MasterSecretKey(types.NewFr(12))
	c.Assert(err, qt.ErrorIs, ErrNotFound)
}

func TestJobQueue(t *testing.T) {
	c := qt.New(t)
	stg := New(metadb.NewTest(t))

	_, err := stg.NextJob()
	c.Assert(err, qt.ErrorIs, ErrNoMoreElements)

	id1, err := stg.PushJob(testJob(1))
	c.Assert(err, qt.IsNil)
	id2, err := stg.PushJob(testJob(2))
	c.Assert(err, qt.IsNil)

	pending, err := stg.PendingJobs()
	c.Assert(err, qt.IsNil)
	c.Assert(pending, qt.Equals, 2)

	// jobs are returned in push order and reserved
	job, err := stg.NextJob()
	c.Assert(err, qt.IsNil)
	c.Assert(job.ID, qt.Equals, id1)
	c.Assert(job.Status, qt.Equals, JobRunning)
	c.Assert(job.ExecutionResult.NoteHashLeafIndexMap, qt.DeepEquals, map[types.Fr]uint64{types.NewFr(9): 3})

	job2, err := stg.NextJob()
	c.Assert(err, qt.IsNil)
	c.Assert(job2.ID, qt.Equals, id2)
	_, err = stg.NextJob()
	c.Assert(err, qt.ErrorIs, ErrNoMoreElements)

	output := &circuits.TailOutput{}
	output.PublicInputs.ValidationRequestsSplitCounter = 4
	c.Assert(stg.MarkJobDone(id1, output), qt.IsNil)
	c.Assert(stg.MarkJobFailed(id2, errors.New("boom")), qt.IsNil)

	done, err := stg.Job(id1)
	c.Assert(err, qt.IsNil)
	c.Assert(done.Status, qt.Equals, JobDone)
	c.Assert(done.Output.PublicInputs.ValidationRequestsSplitCounter, qt.Equals, uint32(4))

	failed, err := stg.Job(id2)
	c.Assert(err, qt.IsNil)
	c.Assert(failed.Status, qt.Equals, JobFailed)
	c.Assert(failed.Error, qt.Equals, "boom")

	pending, err = stg.PendingJobs()
	c.Assert(err, qt.IsNil)
	c.Assert(pending, qt.Equals, 0)

	_, err = stg.Job("unknown")
	c.Assert(err, qt.ErrorIs, ErrNotFound)
}

func TestReleaseJobs(t *testing.T) {
	c := qt.New(t)
	stg := New(metadb.NewTest(t))

	id, err := stg.PushJob(testJob(1))
	c.Assert(err, qt.IsNil)
	_, err = stg.NextJob()
	c.Assert(err, qt.IsNil)
	_, err = stg.NextJob()
	c.Assert(err, qt.ErrorIs, ErrNoMoreElements)

	released, err := stg.ReleaseJobs()
	c.Assert(err, qt.IsNil)
	c.Assert(released, qt.Equals, 1)
	job, err := stg.Job(id)
	c.Assert(err, qt.IsNil)
	c.Assert(job.Status, qt.Equals, JobPending)

	job, err = stg.NextJob()
	c.Assert(err, qt.IsNil)
	c.Assert(job.ID, qt.Equals, id)
}

func TestRecordInputs(t *testing.T) {
	c := qt.New(t)
	stg := New(metadb.NewTest(t))

	stg.RecordInputs("private-kernel-inputs-tail", &circuits.PrivateKernelTailCircuitPrivateInputs{
		ValidationRequestsSplitCounter: 1,
	})
	stg.RecordInputs("private-kernel-inputs-tail", &circuits.PrivateKernelTailCircuitPrivateInputs{
		ValidationRequestsSplitCounter: 2,
	})
	stg.RecordInputs("private-kernel-inputs-init", &circuits.PrivateKernelInitCircuitPrivateInputs{})

	recorded, err := stg.RecordedInputs("private-kernel-inputs-tail")
	c.Assert(err, qt.IsNil)
	c.Assert(recorded, qt.HasLen, 2)
	inputs := &circuits.PrivateKernelTailCircuitPrivateInputs{}
	c.Assert(Decode(recorded[1], inputs), qt.IsNil)
	c.Assert(inputs.ValidationRequestsSplitCounter, qt.Equals, uint32(2))
}
