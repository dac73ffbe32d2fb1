package storage

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/vocdoni/kernel-prover/log"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

func circuitInputsTagPrefix(tag string) []byte {
	return append(append([]byte(nil), circuitInputsPrefix...), []byte(tag+"/")...)
}

// RecordInputs stores the inputs of a circuit under tag, for offline replay.
// Recording never interrupts proving, so failures are only logged.
func (s *Storage) RecordInputs(tag string, inputs any) {
	id, err := uuid.NewV7()
	if err != nil {
		log.Warnw("could not record circuit inputs", "tag", tag, "error", err.Error())
		return
	}
	if err := s.setArtifact(circuitInputsTagPrefix(tag), []byte(id.String()), inputs); err != nil {
		log.Warnw("could not record circuit inputs", "tag", tag, "error", err.Error())
	}
}

// RecordedInputs returns the encoded inputs recorded under tag, oldest
// first. Use Decode to deserialize them.
func (s *Storage) RecordedInputs(tag string) ([][]byte, error) {
	res := [][]byte{}
	rd := prefixeddb.NewPrefixedReader(s.db, circuitInputsTagPrefix(tag))
	if err := rd.Iterate(nil, func(_, v []byte) bool {
		res = append(res, append([]byte(nil), v...))
		return true
	}); err != nil {
		return nil, fmt.Errorf("iterate recorded inputs: %w", err)
	}
	return res, nil
}
