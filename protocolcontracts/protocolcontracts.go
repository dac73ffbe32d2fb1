// Package protocolcontracts holds the registry of canonical protocol
// contracts and the tree committing to them.
package protocolcontracts

import (
	"errors"
	"fmt"
	"sync"

	"github.com/vocdoni/kernel-prover/trees"
	"github.com/vocdoni/kernel-prover/types"
)

// ErrNotProtocolContract is returned when asking for the sibling path of an
// address that is not a protocol contract.
var ErrNotProtocolContract = errors.New("not a protocol contract")

// Names of the protocol contracts, in tree order. The canonical address of
// each contract is its position plus one.
var Names = []string{
	"AuthRegistry",
	"ContractInstanceDeployer",
	"ContractClassRegisterer",
	"MultiCallEntrypoint",
	"FeeJuice",
	"Router",
}

var (
	once  sync.Once
	tree  *trees.Tree
	root  types.Fr
	index map[types.AztecAddress]uint64
	err   error
)

func build() {
	index = make(map[types.AztecAddress]uint64, len(Names))
	leaves := make([]types.Fr, len(Names))
	for i := range Names {
		addr := Address(i)
		index[addr] = uint64(i)
		leaves[i] = addr.ToField()
	}
	if tree, err = trees.FromLeaves(types.ProtocolContractTreeHeight, leaves...); err != nil {
		err = fmt.Errorf("could not build protocol contract tree: %w", err)
		return
	}
	root, err = tree.Root()
}

func load() error {
	once.Do(build)
	return err
}

// Address returns the canonical address of the protocol contract at
// position i of Names.
func Address(i int) types.AztecAddress {
	return types.NewAztecAddress(uint64(i) + 1)
}

// AddressOf returns the canonical address of the named protocol contract.
func AddressOf(name string) (types.AztecAddress, bool) {
	for i, n := range Names {
		if n == name {
			return Address(i), true
		}
	}
	return types.AztecAddress{}, false
}

// IsProtocolContract reports whether address is a canonical protocol
// contract address.
func IsProtocolContract(address types.AztecAddress) bool {
	if load() != nil {
		return false
	}
	_, ok := index[address]
	return ok
}

// Root returns the root of the protocol contract tree.
func Root() (types.Fr, error) {
	if err := load(); err != nil {
		return types.Fr{}, err
	}
	return root, nil
}

// SiblingPath returns the sibling path of a protocol contract in the tree.
func SiblingPath(address types.AztecAddress) ([]types.Fr, error) {
	if err := load(); err != nil {
		return nil, err
	}
	i, ok := index[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotProtocolContract, address)
	}
	w, err := tree.Witness(i)
	if err != nil {
		return nil, err
	}
	return w.SiblingPath, nil
}

// Verify checks that address is a leaf of the protocol contract tree with
// the provided root at the position the sibling path proves.
func Verify(root types.Fr, address types.AztecAddress, siblingPath []types.Fr) (bool, error) {
	if err := load(); err != nil {
		return false, err
	}
	i, ok := index[address]
	if !ok {
		return false, nil
	}
	return trees.Verify(types.ProtocolContractTreeHeight, root, address.ToField(),
		&types.MembershipWitness{LeafIndex: i, SiblingPath: siblingPath})
}
