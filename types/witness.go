package types

import (
	"maps"
	"slices"
)

// WitnessMap is a partial witness assignment of a circuit, indexed by the
// witness index.
type WitnessMap map[uint32]Fr

// Indexes returns the witness indexes in ascending order.
func (w WitnessMap) Indexes() []uint32 {
	return slices.Sorted(maps.Keys(w))
}

// Clone returns a copy of the witness map.
func (w WitnessMap) Clone() WitnessMap {
	return maps.Clone(w)
}
