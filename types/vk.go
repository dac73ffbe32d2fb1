package types

import (
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// VerificationKey is a circuit verification key expressed as field elements,
// together with its hash.
type VerificationKey struct {
	Key  []Fr `json:"key"`
	Hash Fr   `json:"hash"`
}

// NewVerificationKey returns the verification key for the provided fields,
// computing its hash.
func NewVerificationKey(fields []Fr) (*VerificationKey, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty verification key")
	}
	hash, err := PoseidonHashWithSeparator(GeneratorIndexVK, fields...)
	if err != nil {
		return nil, fmt.Errorf("could not hash verification key: %w", err)
	}
	return &VerificationKey{Key: fields, Hash: hash}, nil
}

// VerificationKeyFromBytes derives a verification key from an opaque binary
// verification key by splitting its keccak digest and size into fields.
func VerificationKeyFromBytes(b []byte) (*VerificationKey, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("empty verification key bytes")
	}
	digest := crypto.Keccak256(b)
	hi, err := FrFromBytes(digest[:16])
	if err != nil {
		return nil, err
	}
	lo, err := FrFromBytes(digest[16:])
	if err != nil {
		return nil, err
	}
	return NewVerificationKey([]Fr{NewFr(uint64(len(b))), hi, lo})
}

// IsEmpty reports whether the key has no fields.
func (vk *VerificationKey) IsEmpty() bool {
	return vk == nil || len(vk.Key) == 0
}

// Equal reports whether both keys are the same.
func (vk *VerificationKey) Equal(o *VerificationKey) bool {
	if vk.IsEmpty() || o.IsEmpty() {
		return vk.IsEmpty() == o.IsEmpty()
	}
	return vk.Hash == o.Hash
}
