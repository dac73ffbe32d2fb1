// Package trees implements fixed height, index addressed Merkle trees on top
// of arbo. Leaves are field elements stored at their leaf index, and
// membership witnesses are padded to the tree height so they can be fed to
// circuits that expect a fixed size sibling path.
package trees

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/vocdoni/arbo"
	"github.com/vocdoni/arbo/memdb"
	"github.com/vocdoni/kernel-prover/types"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

var (
	// ErrLeafNotFound is returned when there is no leaf at the requested index.
	ErrLeafNotFound = errors.New("leaf not found")
	// ErrTreeFull is returned when appending to a tree with no free leaves.
	ErrTreeFull = errors.New("tree is full")

	// HashFunction is the hash used by every tree.
	HashFunction = arbo.HashFunctionPoseidon

	nodesPrefix = []byte("n/")
	metaPrefix  = []byte("m/")
	keySize     = []byte("size")
)

// Tree is an append-only Merkle tree of a fixed height.
type Tree struct {
	mu     sync.Mutex
	tree   *arbo.Tree
	db     db.Database
	height int
}

// New creates or opens a tree of the provided height stored in database.
func New(database db.Database, height int) (*Tree, error) {
	if height <= 0 || height > 64 {
		return nil, fmt.Errorf("invalid tree height %d", height)
	}
	tree, err := arbo.NewTree(arbo.Config{
		Database:     prefixeddb.NewPrefixedDatabase(database, nodesPrefix),
		MaxLevels:    height,
		HashFunction: HashFunction,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create tree: %w", err)
	}
	return &Tree{
		tree:   tree,
		db:     prefixeddb.NewPrefixedDatabase(database, metaPrefix),
		height: height,
	}, nil
}

// NewInMemory creates a tree backed by an in-memory database.
func NewInMemory(height int) (*Tree, error) {
	return New(memdb.New(), height)
}

// FromLeaves creates an in-memory tree containing leaves at consecutive
// indexes starting at zero.
func FromLeaves(height int, leaves ...types.Fr) (*Tree, error) {
	t, err := NewInMemory(height)
	if err != nil {
		return nil, err
	}
	if len(leaves) == 0 {
		return t, nil
	}
	if _, err := t.Append(leaves...); err != nil {
		return nil, err
	}
	return t, nil
}

// Height returns the height of the tree.
func (t *Tree) Height() int {
	return t.height
}

// Size returns the number of leaves appended to the tree.
func (t *Tree) Size() (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.size()
}

func (t *Tree) size() (uint64, error) {
	data, err := t.db.Get(keySize)
	if errors.Is(err, db.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(data), nil
}

func (t *Tree) setSize(size uint64) error {
	wTx := t.db.WriteTx()
	defer wTx.Discard()
	if err := wTx.Set(keySize, binary.BigEndian.AppendUint64(nil, size)); err != nil {
		return err
	}
	return wTx.Commit()
}

// Append inserts the leaves at the next free indexes and returns the index of
// the first one.
func (t *Tree) Append(leaves ...types.Fr) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	first, err := t.size()
	if err != nil {
		return 0, err
	}
	if first+uint64(len(leaves)) > t.capacity() {
		return 0, ErrTreeFull
	}
	for i, leaf := range leaves {
		if err := t.tree.Add(t.key(first+uint64(i)), leafValue(leaf)); err != nil {
			return 0, fmt.Errorf("could not add leaf %d: %w", first+uint64(i), err)
		}
	}
	return first, t.setSize(first + uint64(len(leaves)))
}

// Set writes a leaf at the provided index, replacing the previous value.
func (t *Tree) Set(index uint64, leaf types.Fr) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index >= t.capacity() {
		return fmt.Errorf("index %d out of range for height %d", index, t.height)
	}
	key := t.key(index)
	if _, _, err := t.tree.Get(key); err != nil {
		if !errors.Is(err, arbo.ErrKeyNotFound) {
			return err
		}
		if err := t.tree.Add(key, leafValue(leaf)); err != nil {
			return err
		}
	} else if err := t.tree.Update(key, leafValue(leaf)); err != nil {
		return err
	}
	size, err := t.size()
	if err != nil {
		return err
	}
	if index >= size {
		return t.setSize(index + 1)
	}
	return nil
}

// Leaf returns the leaf stored at index.
func (t *Tree) Leaf(index uint64) (types.Fr, error) {
	_, v, err := t.tree.Get(t.key(index))
	if errors.Is(err, arbo.ErrKeyNotFound) {
		return types.Fr{}, ErrLeafNotFound
	}
	if err != nil {
		return types.Fr{}, err
	}
	return types.FrFromBigInt(arbo.BytesToBigInt(v)), nil
}

// Root returns the current root of the tree.
func (t *Tree) Root() (types.Fr, error) {
	root, err := t.tree.Root()
	if err != nil {
		return types.Fr{}, err
	}
	return types.FrFromBigInt(arbo.BytesToBigInt(root)), nil
}

// Witness returns the membership witness of the leaf at index. The sibling
// path is padded with zeros up to the tree height.
func (t *Tree) Witness(index uint64) (*types.MembershipWitness, error) {
	_, _, packedSiblings, exists, err := t.tree.GenProof(t.key(index))
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrLeafNotFound
	}
	siblings, err := arbo.UnpackSiblings(HashFunction, packedSiblings)
	if err != nil {
		return nil, err
	}
	return &types.MembershipWitness{
		LeafIndex:   index,
		SiblingPath: padSiblings(siblings, t.height),
	}, nil
}

func (t *Tree) capacity() uint64 {
	return uint64(1) << uint(t.height)
}

func (t *Tree) key(index uint64) []byte {
	return indexKey(index, t.height)
}

// Verify checks that leaf is included at w.LeafIndex in a tree of the given
// height with the provided root.
func Verify(height int, root, leaf types.Fr, w *types.MembershipWitness) (bool, error) {
	if err := w.CheckHeight(height); err != nil {
		return false, err
	}
	siblings := [][]byte{}
	last := 0
	for i, s := range w.SiblingPath {
		siblings = append(siblings, frBytes(s))
		if !s.IsZero() {
			last = i + 1
		}
	}
	packed, err := arbo.PackSiblings(HashFunction, siblings[:last])
	if err != nil {
		return false, err
	}
	return arbo.CheckProof(HashFunction, indexKey(w.LeafIndex, height), leafValue(leaf), frBytes(root), packed)
}

func padSiblings(unpacked [][]byte, height int) []types.Fr {
	padded := make([]types.Fr, height)
	for i := range min(height, len(unpacked)) {
		padded[i] = types.FrFromBigInt(arbo.BytesToBigInt(unpacked[i]))
	}
	return padded
}

func indexKey(index uint64, height int) []byte {
	return arbo.BigIntToBytes((height+7)/8, new(big.Int).SetUint64(index))
}

func frBytes(f types.Fr) []byte {
	return arbo.BigIntToBytes(HashFunction.Len(), f.BigInt())
}

func leafValue(leaf types.Fr) []byte {
	return frBytes(leaf)
}
