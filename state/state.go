// Package state keeps the settled world state the kernel reads from: the
// note hash tree and the nullifier tree.
package state

import (
	"errors"
	"fmt"
	"sync"

	"github.com/vocdoni/kernel-prover/circuits"
	"github.com/vocdoni/kernel-prover/trees"
	"github.com/vocdoni/kernel-prover/types"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

var (
	// ErrNullifierNotFound is returned when a nullifier is not settled.
	ErrNullifierNotFound = errors.New("nullifier not found")
	// ErrNullifierExists is returned when inserting a settled nullifier.
	ErrNullifierExists = errors.New("nullifier already exists")

	noteHashTreePrefix   = []byte("nh/")
	nullifierTreePrefix  = []byte("nf/")
	nullifierIndexPrefix = []byte("ni/")
)

// State holds the note hash and nullifier trees stored in the database.
type State struct {
	mu         sync.Mutex
	db         db.Database
	noteHashes *trees.Tree
	nullifiers *trees.Tree
}

// New creates or opens the world state stored in the passed database. The
// prefix is used for every key the state writes.
func New(database db.Database, prefix []byte) (*State, error) {
	pdb := prefixeddb.NewPrefixedDatabase(database, prefix)
	noteHashes, err := trees.New(prefixeddb.NewPrefixedDatabase(pdb, noteHashTreePrefix), types.NoteHashTreeHeight)
	if err != nil {
		return nil, fmt.Errorf("could not open note hash tree: %w", err)
	}
	nullifiers, err := trees.New(prefixeddb.NewPrefixedDatabase(pdb, nullifierTreePrefix), types.NullifierTreeHeight)
	if err != nil {
		return nil, fmt.Errorf("could not open nullifier tree: %w", err)
	}
	return &State{
		db:         prefixeddb.NewPrefixedDatabase(pdb, nullifierIndexPrefix),
		noteHashes: noteHashes,
		nullifiers: nullifiers,
	}, nil
}

// AddNoteHashes appends settled note hashes and returns the leaf index of
// the first one.
func (s *State) AddNoteHashes(noteHashes ...types.Fr) (uint64, error) {
	return s.noteHashes.Append(noteHashes...)
}

// AddNullifiers appends settled nullifiers. It fails if any of them exists.
func (s *State) AddNullifiers(nullifiers ...types.Fr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range nullifiers {
		if _, err := s.nullifierIndex(n); err == nil {
			return fmt.Errorf("%w: %s", ErrNullifierExists, n)
		}
	}
	first, err := s.nullifiers.Append(nullifiers...)
	if err != nil {
		return err
	}
	wTx := s.db.WriteTx()
	defer wTx.Discard()
	for i, n := range nullifiers {
		if err := wTx.Set(n.Bytes(), types.NewFr(first+uint64(i)).Bytes()); err != nil {
			return err
		}
	}
	return wTx.Commit()
}

func (s *State) nullifierIndex(nullifier types.Fr) (uint64, error) {
	data, err := s.db.Get(nullifier.Bytes())
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, ErrNullifierNotFound
		}
		return 0, err
	}
	idx, err := types.FrFromBytes(data)
	if err != nil {
		return 0, err
	}
	return idx.Uint64(), nil
}

// NoteHashRoot returns the root of the note hash tree.
func (s *State) NoteHashRoot() (types.Fr, error) {
	return s.noteHashes.Root()
}

// NullifierRoot returns the root of the nullifier tree.
func (s *State) NullifierRoot() (types.Fr, error) {
	return s.nullifiers.Root()
}

// NoteHash returns the note hash at leafIndex.
func (s *State) NoteHash(leafIndex uint64) (types.Fr, error) {
	return s.noteHashes.Leaf(leafIndex)
}

// NoteHashMembershipWitness returns the membership witness of the note hash
// at leafIndex.
func (s *State) NoteHashMembershipWitness(leafIndex uint64) (*types.MembershipWitness, error) {
	return s.noteHashes.Witness(leafIndex)
}

// NullifierMembershipWitness returns the membership witness of a settled
// nullifier.
func (s *State) NullifierMembershipWitness(nullifier types.Fr) (*circuits.NullifierMembershipWitness, error) {
	idx, err := s.nullifierIndex(nullifier)
	if err != nil {
		return nil, err
	}
	w, err := s.nullifiers.Witness(idx)
	if err != nil {
		return nil, err
	}
	return &circuits.NullifierMembershipWitness{Nullifier: nullifier, Witness: *w}, nil
}
