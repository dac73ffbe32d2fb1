package types

import "fmt"

// MembershipWitness proves that a leaf belongs to a fixed height tree.
type MembershipWitness struct {
	LeafIndex   uint64 `json:"leafIndex"`
	SiblingPath []Fr   `json:"siblingPath"`
}

// ZeroSiblingPath returns an all zero sibling path of the given height.
func ZeroSiblingPath(height int) []Fr {
	return make([]Fr, height)
}

// CheckHeight returns an error if the sibling path length differs from the
// tree height.
func (m *MembershipWitness) CheckHeight(height int) error {
	if m == nil {
		return fmt.Errorf("missing membership witness")
	}
	if len(m.SiblingPath) != height {
		return fmt.Errorf("sibling path length %d does not match tree height %d",
			len(m.SiblingPath), height)
	}
	if m.LeafIndex >= 1<<uint(height) {
		return fmt.Errorf("leaf index %d out of range for height %d", m.LeafIndex, height)
	}
	return nil
}
