package ivc

import (
	"bytes"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/fxamacker/cbor/v2"
	"github.com/vocdoni/kernel-prover/log"
	"github.com/vocdoni/kernel-prover/types"
)

// Proof is a composed chain proof: one groth16 proof per segment, all
// verified with the same key.
type Proof struct {
	Segments     [][]byte
	VerifyingKey []byte
	Digest       types.Fr
	Length       int
}

// Bytes encodes the segment proofs as a single blob.
func (p *Proof) Bytes() ([]byte, error) {
	return cbor.Marshal(p.Segments)
}

// Composer compiles the chain circuit and runs the trusted setup once, on
// first use. It is safe for concurrent use.
type Composer struct {
	once sync.Once
	err  error
	ccs  constraint.ConstraintSystem
	pk   groth16.ProvingKey
	vk   groth16.VerifyingKey
	vkb  []byte
}

var defaultComposer = &Composer{}

// Default returns the process wide composer.
func Default() *Composer {
	return defaultComposer
}

func (c *Composer) setup() error {
	c.once.Do(func() {
		start := time.Now()
		c.ccs, c.err = frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &ChainCircuit{})
		if c.err != nil {
			c.err = fmt.Errorf("could not compile chain circuit: %w", c.err)
			return
		}
		c.pk, c.vk, c.err = groth16.Setup(c.ccs)
		if c.err != nil {
			c.err = fmt.Errorf("could not setup chain circuit: %w", c.err)
			return
		}
		buf := &bytes.Buffer{}
		if _, c.err = c.vk.WriteTo(buf); c.err != nil {
			return
		}
		c.vkb = buf.Bytes()
		log.Debugw("chain circuit ready",
			"constraints", c.ccs.GetNbConstraints(),
			"took", time.Since(start).String())
	})
	return c.err
}

// Digest folds the entries with MiMC in order, as the chain circuit does,
// starting from a zero accumulator.
func Digest(entries []types.Fr) (types.Fr, error) {
	return fold(types.ZeroFr, entries)
}

func fold(acc types.Fr, entries []types.Fr) (types.Fr, error) {
	for _, entry := range entries {
		hFn := mimc.NewMiMC()
		if _, err := hFn.Write(acc[:]); err != nil {
			return types.Fr{}, err
		}
		if _, err := hFn.Write(entry[:]); err != nil {
			return types.Fr{}, err
		}
		next, err := types.FrFromBytes(hFn.Sum(nil))
		if err != nil {
			return types.Fr{}, err
		}
		acc = next
	}
	return acc, nil
}

// Assignment returns the full witness assignment of one segment folding
// entries on top of the accumulator initial, and the resulting accumulator.
func Assignment(initial types.Fr, entries []types.Fr) (*ChainCircuit, types.Fr, error) {
	if len(entries) == 0 {
		return nil, types.Fr{}, fmt.Errorf("empty segment")
	}
	if len(entries) > SegmentLength {
		return nil, types.Fr{}, fmt.Errorf("segment too long: %d > %d", len(entries), SegmentLength)
	}
	digest, err := fold(initial, entries)
	if err != nil {
		return nil, types.Fr{}, err
	}
	assignment := &ChainCircuit{
		Initial: initial.BigInt(),
		Length:  len(entries),
		Digest:  digest.BigInt(),
	}
	for i := range SegmentLength {
		if i < len(entries) {
			assignment.Entries[i] = entries[i].BigInt()
			assignment.Active[i] = 1
		} else {
			assignment.Entries[i] = 0
			assignment.Active[i] = 0
		}
	}
	return assignment, digest, nil
}

// Prove composes the entries into a chain proof. Chains longer than
// SegmentLength are proved segment by segment, each one starting from the
// digest of the previous.
func (c *Composer) Prove(entries []types.Fr) (*Proof, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("empty chain")
	}
	if err := c.setup(); err != nil {
		return nil, err
	}
	proof := &Proof{
		VerifyingKey: bytes.Clone(c.vkb),
		Digest:       types.ZeroFr,
		Length:       len(entries),
	}
	for segment := range slices.Chunk(entries, SegmentLength) {
		assignment, digest, err := Assignment(proof.Digest, segment)
		if err != nil {
			return nil, err
		}
		witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
		if err != nil {
			return nil, fmt.Errorf("could not build chain witness: %w", err)
		}
		segmentProof, err := groth16.Prove(c.ccs, c.pk, witness)
		if err != nil {
			return nil, fmt.Errorf("could not prove chain segment %d: %w", len(proof.Segments), err)
		}
		buf := &bytes.Buffer{}
		if _, err := segmentProof.WriteTo(buf); err != nil {
			return nil, err
		}
		proof.Segments = append(proof.Segments, buf.Bytes())
		proof.Digest = digest
	}
	return proof, nil
}

// Verify checks that the encoded proof attests the composition of entries,
// in order.
func Verify(proofBytes, vkBytes []byte, entries []types.Fr) error {
	if len(entries) == 0 {
		return fmt.Errorf("empty chain")
	}
	segments := [][]byte{}
	if err := cbor.Unmarshal(proofBytes, &segments); err != nil {
		return fmt.Errorf("could not decode proof: %w", err)
	}
	if expected := (len(entries) + SegmentLength - 1) / SegmentLength; len(segments) != expected {
		return fmt.Errorf("got %d segment proofs for %d entries, expected %d", len(segments), len(entries), expected)
	}
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(bytes.NewReader(vkBytes)); err != nil {
		return fmt.Errorf("could not decode verifying key: %w", err)
	}
	acc := types.ZeroFr
	i := 0
	for segment := range slices.Chunk(entries, SegmentLength) {
		digest, err := fold(acc, segment)
		if err != nil {
			return err
		}
		proof := groth16.NewProof(ecc.BN254)
		if _, err := proof.ReadFrom(bytes.NewReader(segments[i])); err != nil {
			return fmt.Errorf("could not decode segment proof %d: %w", i, err)
		}
		public := &ChainCircuit{
			Initial: acc.BigInt(),
			Length:  len(segment),
			Digest:  digest.BigInt(),
		}
		for j := range SegmentLength {
			public.Entries[j], public.Active[j] = 0, 0
		}
		publicWitness, err := frontend.NewWitness(public, ecc.BN254.ScalarField(), frontend.PublicOnly())
		if err != nil {
			return err
		}
		if err := groth16.Verify(proof, vk, publicWitness); err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
		acc = digest
		i++
	}
	return nil
}

// EntryDigest reduces arbitrary data into a chain entry.
func EntryDigest(data []byte) types.Fr {
	var e fr.Element
	e.SetBytes(data)
	return types.FrFromElement(e)
}
