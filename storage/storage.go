// storage package contains everything the prover persists, and the queue of
// proving jobs consumed by the prover service. Keys are prefixed by kind:
//   - 'ci/' for contract instances
//   - 'cc/' for contract classes
//   - 'mk/' for master secret keys
//   - 'j/' for proving jobs
//   - 'jq/' for the pending proving jobs queue
//   - 'jr/' for the reservations of the queued proving jobs
//   - 'ti/' for recorded circuit inputs
package storage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

var (
	// ErrNotFound is returned when the requested element does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNoMoreElements is returned when a queue has no elements left to
	// process.
	ErrNoMoreElements = errors.New("no more elements")

	contractInstancePrefix = []byte("ci/")
	contractClassPrefix    = []byte("cc/")
	masterKeyPrefix        = []byte("mk/")
	jobPrefix              = []byte("j/")
	jobQueuePrefix         = []byte("jq/")
	jobReservationPrefix   = []byte("jr/")
	circuitInputsPrefix    = []byte("ti/")
)

// Storage wraps a key-value database.
type Storage struct {
	db         db.Database
	globalLock sync.Mutex
}

// New creates a new Storage instance.
func New(db db.Database) *Storage {
	return &Storage{db: db}
}

// Close closes the storage.
func (s *Storage) Close() {
	s.db.Close()
}

// DB returns the underlying database, so other components can keep their
// own prefixed data in it.
func (s *Storage) DB() db.Database {
	return s.db
}

// setArtifact encodes and stores v under prefix+key.
func (s *Storage) setArtifact(prefix, key []byte, v any) error {
	data, err := encodeArtifact(v)
	if err != nil {
		return err
	}
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), prefix)
	defer wTx.Discard()
	if err := wTx.Set(key, data); err != nil {
		return err
	}
	return wTx.Commit()
}

// getArtifact decodes the value stored under prefix+key into out. It returns
// ErrNotFound if the key does not exist.
func (s *Storage) getArtifact(prefix, key []byte, out any) error {
	data, err := prefixeddb.NewPrefixedReader(s.db, prefix).Get(key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return ErrNotFound
		}
		return err
	}
	if err := decodeArtifact(data, out); err != nil {
		return fmt.Errorf("decode artifact: %w", err)
	}
	return nil
}

// deleteArtifact removes prefix+key. It returns ErrNotFound if the key does
// not exist.
func (s *Storage) deleteArtifact(prefix, key []byte) error {
	rd := prefixeddb.NewPrefixedReader(s.db, prefix)
	if _, err := rd.Get(key); err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return ErrNotFound
		}
		return err
	}
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), prefix)
	defer wTx.Discard()
	if err := wTx.Delete(key); err != nil {
		return err
	}
	return wTx.Commit()
}

// reservation is the value stored for a reserved queue element.
type reservation struct {
	Timestamp int64 `cbor:"0,keyasint"`
}

func (s *Storage) setReservation(prefix, key []byte) error {
	return s.setArtifact(prefix, key, &reservation{Timestamp: time.Now().Unix()})
}

func (s *Storage) isReserved(prefix, key []byte) bool {
	_, err := prefixeddb.NewPrefixedReader(s.db, prefix).Get(key)
	return err == nil
}

// clearReservations deletes every reservation under prefix and returns the
// released keys.
func (s *Storage) clearReservations(prefix []byte) ([][]byte, error) {
	keys := [][]byte{}
	rd := prefixeddb.NewPrefixedReader(s.db, prefix)
	if err := rd.Iterate(nil, func(k, _ []byte) bool {
		keys = append(keys, append([]byte(nil), k...))
		return true
	}); err != nil {
		return nil, err
	}
	for _, k := range keys {
		if err := s.deleteArtifact(prefix, k); err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return keys, nil
}
