package poseidon

import (
	"fmt"
	"math/big"
	"slices"

	"github.com/iden3/go-iden3-crypto/poseidon"
)

// maxInputs is the number of inputs accepted by MultiPoseidon, 16 chunks of
// 16 elements.
const maxInputs = 256

// MultiPoseidon hashes up to 256 field elements. The inputs are hashed in
// chunks of 16 and the chunk hashes are hashed together when there is more
// than one chunk.
func MultiPoseidon(inputs ...*big.Int) (*big.Int, error) {
	if len(inputs) > maxInputs {
		return nil, fmt.Errorf("too many inputs: %d > %d", len(inputs), maxInputs)
	} else if len(inputs) == 0 {
		return nil, fmt.Errorf("no inputs provided")
	}
	hashes := []*big.Int{}
	for chunk := range slices.Chunk(inputs, 16) {
		hash, err := poseidon.Hash(chunk)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, hash)
	}
	if len(hashes) == 1 {
		return hashes[0], nil
	}
	return poseidon.Hash(hashes)
}
