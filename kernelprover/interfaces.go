package kernelprover

import (
	"context"

	"github.com/vocdoni/kernel-prover/circuits"
	"github.com/vocdoni/kernel-prover/types"
)

// ProvingDataOracle serves the data the kernel circuits need and that is not
// part of the execution trace.
type ProvingDataOracle interface {
	// GetDebugFunctionName returns a human readable name of a function.
	GetDebugFunctionName(ctx context.Context, address types.AztecAddress, selector types.FunctionSelector) (string, error)
	// GetFunctionMembershipWitness returns the witness of a function in the
	// private function tree of its contract class.
	GetFunctionMembershipWitness(ctx context.Context, address types.AztecAddress, selector types.FunctionSelector) (*types.MembershipWitness, error)
	// GetContractAddressPreimage returns the values a contract address is
	// derived from.
	GetContractAddressPreimage(ctx context.Context, address types.AztecAddress) (*circuits.ContractAddressPreimage, error)
	// GetContractClassIDPreimage returns the values a class id is derived
	// from.
	GetContractClassIDPreimage(ctx context.Context, classID types.Fr) (*circuits.ContractClassIDPreimage, error)
	// GetVKMembershipWitness returns the witness of a kernel verification key
	// in the VK tree.
	GetVKMembershipWitness(ctx context.Context, vk types.VerificationKey) (*types.MembershipWitness, error)
	// GetNoteHashMembershipWitness returns the witness of a settled note
	// hash.
	GetNoteHashMembershipWitness(ctx context.Context, leafIndex uint64) (*types.MembershipWitness, error)
	// GetNullifierMembershipWitness returns the witness of a settled
	// nullifier.
	GetNullifierMembershipWitness(ctx context.Context, nullifier types.Fr) (*circuits.NullifierMembershipWitness, error)
	// GetMasterSecretKey returns the master secret key of a public key hash.
	GetMasterSecretKey(ctx context.Context, pkMHash types.Fr) (types.Fr, error)
}

// PrivateKernelProver simulates the kernel circuits and composes their
// executions into a client IVC proof.
type PrivateKernelProver interface {
	ComputeAppCircuitVerificationKey(ctx context.Context, bytecode types.HexBytes, functionName string) (*types.VerificationKey, error)
	SimulateProofInit(ctx context.Context, inputs *circuits.PrivateKernelInitCircuitPrivateInputs) (*circuits.KernelOutput, error)
	SimulateProofInner(ctx context.Context, inputs *circuits.PrivateKernelInnerCircuitPrivateInputs) (*circuits.KernelOutput, error)
	SimulateProofReset(ctx context.Context, inputs *circuits.PrivateKernelResetCircuitPrivateInputs) (*circuits.KernelOutput, error)
	SimulateProofTail(ctx context.Context, inputs *circuits.PrivateKernelTailCircuitPrivateInputs) (*circuits.TailOutput, error)
	CreateClientIvcProof(ctx context.Context, bytecodes []types.HexBytes, witnesses []types.WitnessMap) (*circuits.ClientIvcProof, error)
}

// InputsRecorder receives every circuit input built by the prover, under a
// tag naming the circuit.
type InputsRecorder interface {
	RecordInputs(tag string, inputs any)
}

// Tags under which circuit inputs are recorded.
const (
	TagInitInputs  = "private-kernel-inputs-init"
	TagInnerInputs = "private-kernel-inputs-inner"
	TagResetInputs = "private-kernel-inputs-reset"
	TagTailInputs  = "private-kernel-inputs-ordering"
)
