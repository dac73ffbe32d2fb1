package kernelprover

import (
	"context"

	"github.com/vocdoni/kernel-prover/circuits"
	"github.com/vocdoni/kernel-prover/execution"
	"github.com/vocdoni/kernel-prover/protocolcontracts"
	"github.com/vocdoni/kernel-prover/types"
)

// buildPrivateCallData gathers everything the kernel needs to verify the
// call represented by node, whose app circuit has the verification key vk.
func buildPrivateCallData(ctx context.Context, oracle ProvingDataOracle, node *execution.Result, vk *types.VerificationKey) (*circuits.PrivateCallData, error) {
	address, selector := node.ContractAddress(), node.Selector()

	functionWitness, err := nonNil(oracle.GetFunctionMembershipWitness(ctx, address, selector))
	if err != nil {
		return nil, ErrLookupFailure.Withf("function membership witness of %s at %s", selector, address).WithErr(err)
	}
	addressPreimage, err := nonNil(oracle.GetContractAddressPreimage(ctx, address))
	if err != nil {
		return nil, ErrLookupFailure.Withf("address preimage of %s", address).WithErr(err)
	}
	classPreimage, err := nonNil(oracle.GetContractClassIDPreimage(ctx, addressPreimage.ContractClassID))
	if err != nil {
		return nil, ErrLookupFailure.Withf("class id preimage of %s", addressPreimage.ContractClassID).WithErr(err)
	}

	protocolContractSiblingPath := types.ZeroSiblingPath(types.ProtocolContractTreeHeight)
	if protocolcontracts.IsProtocolContract(address) {
		if protocolContractSiblingPath, err = protocolcontracts.SiblingPath(address); err != nil {
			return nil, ErrLookupFailure.Withf("protocol contract sibling path of %s", address).WithErr(err)
		}
	}

	return &circuits.PrivateCallData{
		CallStackItem:                         node.CallStackItem,
		VerificationKey:                       *vk,
		PublicKeysHash:                        addressPreimage.PublicKeysHash,
		ContractClassArtifactHash:             classPreimage.ArtifactHash,
		ContractClassPublicBytecodeCommitment: classPreimage.PublicBytecodeCommitment,
		SaltedInitializationHash:              addressPreimage.SaltedInitializationHash,
		FunctionLeafMembershipWitness:         *functionWitness,
		ProtocolContractSiblingPath:           protocolContractSiblingPath,
		// placeholder until app circuits are hashed
		AcirHash: types.ZeroFr,
	}, nil
}
