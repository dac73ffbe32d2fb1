package types

import (
	"math/big"

	"github.com/vocdoni/kernel-prover/crypto/hash/poseidon"
)

// PoseidonHash hashes a list of field elements.
func PoseidonHash(inputs ...Fr) (Fr, error) {
	bigs := make([]*big.Int, len(inputs))
	for i, in := range inputs {
		bigs[i] = in.BigInt()
	}
	h, err := poseidon.MultiPoseidon(bigs...)
	if err != nil {
		return Fr{}, err
	}
	return FrFromBigInt(h), nil
}

// PoseidonHashWithSeparator hashes the inputs prefixed by a domain separator.
func PoseidonHashWithSeparator(separator uint64, inputs ...Fr) (Fr, error) {
	return PoseidonHash(append([]Fr{NewFr(separator)}, inputs...)...)
}
