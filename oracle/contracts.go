package oracle

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/vocdoni/kernel-prover/storage"
	"github.com/vocdoni/kernel-prover/trees"
	"github.com/vocdoni/kernel-prover/types"
)

// FunctionLeaf returns the leaf of a private function in its class function
// tree.
func FunctionLeaf(selector types.FunctionSelector, vkHash types.Fr) (types.Fr, error) {
	return types.PoseidonHashWithSeparator(types.GeneratorIndexFunctionLeaf, selector.ToField(), vkHash)
}

// sortedFunctions returns the private functions ordered by selector, which
// is the order of the function tree leaves.
func sortedFunctions(fns []storage.PrivateFunction) []storage.PrivateFunction {
	sorted := slices.Clone(fns)
	slices.SortFunc(sorted, func(a, b storage.PrivateFunction) int {
		return cmp.Compare(a.Selector, b.Selector)
	})
	return sorted
}

// FunctionTree builds the tree of private functions of a class. It returns
// the tree and the functions in leaf order.
func FunctionTree(fns []storage.PrivateFunction) (*trees.Tree, []storage.PrivateFunction, error) {
	if len(fns) > 1<<types.FunctionTreeHeight {
		return nil, nil, fmt.Errorf("too many private functions: %d", len(fns))
	}
	sorted := sortedFunctions(fns)
	leaves := make([]types.Fr, len(sorted))
	for i, fn := range sorted {
		if i > 0 && sorted[i-1].Selector == fn.Selector {
			return nil, nil, fmt.Errorf("duplicated function selector %s", fn.Selector)
		}
		leaf, err := FunctionLeaf(fn.Selector, fn.VKHash)
		if err != nil {
			return nil, nil, err
		}
		leaves[i] = leaf
	}
	tree, err := trees.FromLeaves(types.FunctionTreeHeight, leaves...)
	if err != nil {
		return nil, nil, err
	}
	return tree, sorted, nil
}

// ContractClassID computes the id of a class from its preimage.
func ContractClassID(artifactHash, privateFunctionsRoot, publicBytecodeCommitment types.Fr) (types.Fr, error) {
	return types.PoseidonHashWithSeparator(types.GeneratorIndexContractClassID,
		artifactHash, privateFunctionsRoot, publicBytecodeCommitment)
}

// SaltedInitializationHash binds the initialization of an instance to its
// salt and deployer.
func SaltedInitializationHash(instance *storage.ContractInstance) (types.Fr, error) {
	return types.PoseidonHashWithSeparator(types.GeneratorIndexPartialAddress,
		instance.Salt, instance.InitializationHash, instance.Deployer.ToField())
}

// ContractAddress derives the address of an instance.
func ContractAddress(classID, saltedInitializationHash, publicKeysHash types.Fr) (types.AztecAddress, error) {
	partial, err := types.PoseidonHashWithSeparator(types.GeneratorIndexPartialAddress, classID, saltedInitializationHash)
	if err != nil {
		return types.AztecAddress{}, err
	}
	addr, err := types.PoseidonHashWithSeparator(types.GeneratorIndexContractLeaf, publicKeysHash, partial)
	if err != nil {
		return types.AztecAddress{}, err
	}
	return types.AztecAddress(addr), nil
}
