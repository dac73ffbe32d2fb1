// Package oracle implements the proving data oracle of the kernel prover on
// top of the local storage, the world state, the VK tree and the protocol
// contract registry.
package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/vocdoni/kernel-prover/circuits"
	"github.com/vocdoni/kernel-prover/log"
	"github.com/vocdoni/kernel-prover/state"
	"github.com/vocdoni/kernel-prover/storage"
	"github.com/vocdoni/kernel-prover/types"
)

var (
	// ErrContractNotFound is returned for addresses with no instance.
	ErrContractNotFound = errors.New("contract not found")
	// ErrContractClassNotFound is returned for unknown class ids.
	ErrContractClassNotFound = errors.New("contract class not found")
	// ErrFunctionNotFound is returned for selectors not in a class.
	ErrFunctionNotFound = errors.New("function not found")
	// ErrKeyNotFound is returned when a master key is unknown.
	ErrKeyNotFound = errors.New("master secret key not found")
)

// Oracle answers the lookups the kernel prover needs. It is safe for
// concurrent use.
type Oracle struct {
	stg    *storage.Storage
	state  *state.State
	vkTree *circuits.VKTree
}

// New returns an oracle over the provided storage, world state and VK tree.
func New(stg *storage.Storage, st *state.State, vkTree *circuits.VKTree) *Oracle {
	return &Oracle{stg: stg, state: st, vkTree: vkTree}
}

// RegisterContract stores a contract class and an instance of it. The class
// id is computed from the class preimage. If the instance address is zero it
// is derived from the instance preimage, otherwise it is kept, which is how
// protocol contracts are registered at their canonical address.
func (o *Oracle) RegisterContract(class *storage.ContractClass, instance *storage.ContractInstance) (*storage.ContractInstance, error) {
	tree, _, err := FunctionTree(class.PrivateFunctions)
	if err != nil {
		return nil, err
	}
	root, err := tree.Root()
	if err != nil {
		return nil, err
	}
	if class.ID, err = ContractClassID(class.ArtifactHash, root, class.PublicBytecodeCommitment); err != nil {
		return nil, err
	}
	instance.ContractClassID = class.ID
	if instance.Address.IsZero() {
		salted, err := SaltedInitializationHash(instance)
		if err != nil {
			return nil, err
		}
		if instance.Address, err = ContractAddress(class.ID, salted, instance.PublicKeysHash); err != nil {
			return nil, err
		}
	}
	if err := o.stg.SetContractClass(class); err != nil {
		return nil, fmt.Errorf("could not store contract class: %w", err)
	}
	if err := o.stg.SetContractInstance(instance); err != nil {
		return nil, fmt.Errorf("could not store contract instance: %w", err)
	}
	log.Debugw("contract registered",
		"address", instance.Address.String(),
		"class", class.ID.String(),
		"name", class.Name,
		"functions", len(class.PrivateFunctions))
	return instance, nil
}

func (o *Oracle) instance(address types.AztecAddress) (*storage.ContractInstance, error) {
	instance, err := o.stg.ContractInstance(address)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrContractNotFound, address)
	}
	return instance, err
}

func (o *Oracle) class(id types.Fr) (*storage.ContractClass, error) {
	class, err := o.stg.ContractClass(id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrContractClassNotFound, id)
	}
	return class, err
}

func (o *Oracle) classOf(address types.AztecAddress) (*storage.ContractClass, error) {
	instance, err := o.instance(address)
	if err != nil {
		return nil, err
	}
	return o.class(instance.ContractClassID)
}

// GetDebugFunctionName returns "<contract name>:<function name>".
func (o *Oracle) GetDebugFunctionName(ctx context.Context, address types.AztecAddress, selector types.FunctionSelector) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	class, err := o.classOf(address)
	if err != nil {
		return "", err
	}
	for _, fn := range class.PrivateFunctions {
		if fn.Selector == selector {
			return fmt.Sprintf("%s:%s", class.Name, fn.Name), nil
		}
	}
	return "", fmt.Errorf("%w: %s in %s", ErrFunctionNotFound, selector, class.Name)
}

// GetFunctionMembershipWitness returns the witness of the function in the
// private function tree of the contract class.
func (o *Oracle) GetFunctionMembershipWitness(ctx context.Context, address types.AztecAddress, selector types.FunctionSelector) (*types.MembershipWitness, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	class, err := o.classOf(address)
	if err != nil {
		return nil, err
	}
	tree, sorted, err := FunctionTree(class.PrivateFunctions)
	if err != nil {
		return nil, err
	}
	for i, fn := range sorted {
		if fn.Selector == selector {
			return tree.Witness(uint64(i))
		}
	}
	return nil, fmt.Errorf("%w: %s in %s", ErrFunctionNotFound, selector, class.Name)
}

// GetContractAddressPreimage returns the values the address is derived from.
func (o *Oracle) GetContractAddressPreimage(ctx context.Context, address types.AztecAddress) (*circuits.ContractAddressPreimage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	instance, err := o.instance(address)
	if err != nil {
		return nil, err
	}
	salted, err := SaltedInitializationHash(instance)
	if err != nil {
		return nil, err
	}
	return &circuits.ContractAddressPreimage{
		ContractClassID:          instance.ContractClassID,
		PublicKeysHash:           instance.PublicKeysHash,
		SaltedInitializationHash: salted,
	}, nil
}

// GetContractClassIDPreimage returns the values the class id is derived
// from.
func (o *Oracle) GetContractClassIDPreimage(ctx context.Context, classID types.Fr) (*circuits.ContractClassIDPreimage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	class, err := o.class(classID)
	if err != nil {
		return nil, err
	}
	tree, _, err := FunctionTree(class.PrivateFunctions)
	if err != nil {
		return nil, err
	}
	root, err := tree.Root()
	if err != nil {
		return nil, err
	}
	return &circuits.ContractClassIDPreimage{
		ArtifactHash:             class.ArtifactHash,
		PrivateFunctionsRoot:     root,
		PublicBytecodeCommitment: class.PublicBytecodeCommitment,
	}, nil
}

// GetVKMembershipWitness returns the witness of a kernel verification key in
// the VK tree.
func (o *Oracle) GetVKMembershipWitness(ctx context.Context, vk types.VerificationKey) (*types.MembershipWitness, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return o.vkTree.MembershipWitness(&vk)
}

// GetNoteHashMembershipWitness returns the witness of the settled note hash
// at leafIndex.
func (o *Oracle) GetNoteHashMembershipWitness(ctx context.Context, leafIndex uint64) (*types.MembershipWitness, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return o.state.NoteHashMembershipWitness(leafIndex)
}

// GetNullifierMembershipWitness returns the witness of a settled nullifier.
func (o *Oracle) GetNullifierMembershipWitness(ctx context.Context, nullifier types.Fr) (*circuits.NullifierMembershipWitness, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return o.state.NullifierMembershipWitness(nullifier)
}

// GetMasterSecretKey returns the master secret key of the public key whose
// hash is pkMHash.
func (o *Oracle) GetMasterSecretKey(ctx context.Context, pkMHash types.Fr) (types.Fr, error) {
	if err := ctx.Err(); err != nil {
		return types.Fr{}, err
	}
	skM, err := o.stg.MasterSecretKey(pkMHash)
	if errors.Is(err, storage.ErrNotFound) {
		return types.Fr{}, fmt.Errorf("%w: %s", ErrKeyNotFound, pkMHash)
	}
	return skM, err
}

// RegisterMasterSecretKey stores skM indexed by the hash of its master
// public key, which is returned.
func (o *Oracle) RegisterMasterSecretKey(skM types.Fr) (types.Fr, error) {
	pkMHash, err := types.MasterPublicKeyHash(skM)
	if err != nil {
		return types.Fr{}, err
	}
	if err := o.stg.SetMasterSecretKey(pkMHash, skM); err != nil {
		return types.Fr{}, fmt.Errorf("could not store master key: %w", err)
	}
	return pkMHash, nil
}

// VKTree returns the VK tree the oracle serves witnesses from.
func (o *Oracle) VKTree() *circuits.VKTree {
	return o.vkTree
}

// State returns the world state the oracle serves witnesses from.
func (o *Oracle) State() *state.State {
	return o.state
}
