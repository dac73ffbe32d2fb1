// Package ivc composes an ordered chain of circuit executions into groth16
// proofs over BN254. Every chain entry is reduced to a field element digest
// and the digests are folded with MiMC in order. Chains are split in
// segments of SegmentLength entries, each proved by its own ChainCircuit
// that starts from the accumulator left by the previous segment, so a chain
// has no maximum length.
package ivc

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// SegmentLength is the number of entries folded by one segment proof.
const SegmentLength = 32

// ChainCircuit proves that Digest is the MiMC fold of the first Length
// entries, starting from the accumulator Initial. Active flags must be a
// prefix of ones.
type ChainCircuit struct {
	Entries [SegmentLength]frontend.Variable `gnark:",secret"`
	Active  [SegmentLength]frontend.Variable `gnark:",secret"`
	Initial frontend.Variable                `gnark:",public"`
	Length  frontend.Variable                `gnark:",public"`
	Digest  frontend.Variable                `gnark:",public"`
}

func (c *ChainCircuit) Define(api frontend.API) error {
	hFn, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	acc := c.Initial
	count := frontend.Variable(0)
	for i := range SegmentLength {
		api.AssertIsBoolean(c.Active[i])
		if i > 0 {
			// an inactive entry can not be followed by an active one
			api.AssertIsEqual(api.Mul(c.Active[i], api.Sub(1, c.Active[i-1])), 0)
		}
		hFn.Reset()
		hFn.Write(acc, c.Entries[i])
		acc = api.Select(c.Active[i], hFn.Sum(), acc)
		count = api.Add(count, c.Active[i])
	}
	api.AssertIsEqual(count, c.Length)
	api.AssertIsEqual(acc, c.Digest)
	return nil
}
