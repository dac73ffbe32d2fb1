package circuits

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vocdoni/kernel-prover/trees"
	"github.com/vocdoni/kernel-prover/types"
)

// ErrUnknownVerificationKey is returned when a key is not part of the VK tree.
var ErrUnknownVerificationKey = errors.New("verification key not in vk tree")

// NamedVerificationKey is a kernel verification key and the circuit it
// belongs to.
type NamedVerificationKey struct {
	Name string                `json:"name"`
	VK   types.VerificationKey `json:"vk"`
}

// VKTree is the tree of the kernel circuits verification keys. It is
// immutable once built.
type VKTree struct {
	tree  *trees.Tree
	root  types.Fr
	index map[types.Fr]uint64
	names map[string]types.VerificationKey
}

// NewVKTree builds the tree with the keys at consecutive indexes, in order.
func NewVKTree(vks ...NamedVerificationKey) (*VKTree, error) {
	if len(vks) > 1<<types.VKTreeHeight {
		return nil, fmt.Errorf("too many verification keys: %d", len(vks))
	}
	t := &VKTree{
		index: make(map[types.Fr]uint64, len(vks)),
		names: make(map[string]types.VerificationKey, len(vks)),
	}
	leaves := make([]types.Fr, 0, len(vks))
	for i, named := range vks {
		if named.VK.IsEmpty() {
			return nil, fmt.Errorf("empty verification key for %s", named.Name)
		}
		if _, ok := t.index[named.VK.Hash]; ok {
			return nil, fmt.Errorf("duplicated verification key for %s", named.Name)
		}
		t.index[named.VK.Hash] = uint64(i)
		t.names[named.Name] = named.VK
		leaves = append(leaves, named.VK.Hash)
	}
	var err error
	if t.tree, err = trees.FromLeaves(types.VKTreeHeight, leaves...); err != nil {
		return nil, err
	}
	if t.root, err = t.tree.Root(); err != nil {
		return nil, err
	}
	return t, nil
}

// ParseVKTree builds a VK tree from the JSON encoded list of named keys.
func ParseVKTree(data []byte) (*VKTree, error) {
	vks := []NamedVerificationKey{}
	if err := json.Unmarshal(data, &vks); err != nil {
		return nil, fmt.Errorf("could not decode verification keys: %w", err)
	}
	return NewVKTree(vks...)
}

// Root returns the root of the tree.
func (t *VKTree) Root() types.Fr {
	return t.root
}

// Key returns the verification key registered under name.
func (t *VKTree) Key(name string) (*types.VerificationKey, bool) {
	vk, ok := t.names[name]
	return &vk, ok
}

// Contains reports whether vk is a leaf of the tree.
func (t *VKTree) Contains(vk *types.VerificationKey) bool {
	if vk.IsEmpty() {
		return false
	}
	_, ok := t.index[vk.Hash]
	return ok
}

// MembershipWitness returns the leaf index and sibling path of vk.
func (t *VKTree) MembershipWitness(vk *types.VerificationKey) (*types.MembershipWitness, error) {
	if vk.IsEmpty() {
		return nil, ErrUnknownVerificationKey
	}
	idx, ok := t.index[vk.Hash]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVerificationKey, vk.Hash)
	}
	return t.tree.Witness(idx)
}

// VerifyKernelVK checks that the kernel data carries a verification key included in
// the tree with the provided root.
func VerifyKernelVK(root types.Fr, data *PrivateKernelData) error {
	ok, err := trees.Verify(types.VKTreeHeight, root, data.VerificationKey.Hash, &types.MembershipWitness{
		LeafIndex:   data.VKIndex,
		SiblingPath: data.VKPath,
	})
	if err != nil {
		return fmt.Errorf("invalid vk membership witness: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVerificationKey, data.VerificationKey.Hash)
	}
	return nil
}
