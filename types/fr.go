package types

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/vocdoni/kernel-prover/util"
)

// FrSize is the size in bytes of a serialized field element.
const FrSize = fr.Bytes

// Fr is an element of the BN254 scalar field, stored as its canonical
// big-endian representation. The zero value is the field element 0.
type Fr [FrSize]byte

// ZeroFr is the zero field element.
var ZeroFr = Fr{}

// ErrFrOutOfRange is returned when decoding a value that is not lower than
// the field modulus.
var ErrFrOutOfRange = errors.New("value out of the field range")

// NewFr returns the field element for the provided integer.
func NewFr(v uint64) Fr {
	var e fr.Element
	e.SetUint64(v)
	return FrFromElement(e)
}

// FrFromElement converts a gnark-crypto field element into a Fr.
func FrFromElement(e fr.Element) Fr {
	return Fr(e.Bytes())
}

// FrFromBigInt returns the field element that represents the provided
// integer, reduced modulo the scalar field order.
func FrFromBigInt(b *big.Int) Fr {
	var e fr.Element
	e.SetBigInt(b)
	return FrFromElement(e)
}

// RandomFr returns a uniformly random field element.
func RandomFr() Fr {
	return FrFromBigInt(new(big.Int).SetBytes(util.RandomBytes(FrSize + 16)))
}

// FrFromBytes interprets b as a big-endian integer and reduces it into the
// field. It fails if b is longer than FrSize.
func FrFromBytes(b []byte) (Fr, error) {
	if len(b) > FrSize {
		return Fr{}, fmt.Errorf("field element too long: %d bytes", len(b))
	}
	return FrFromBigInt(new(big.Int).SetBytes(b)), nil
}

// FrFromHex parses a hex string, with or without 0x prefix. Values not
// lower than the field modulus are rejected, so every element has a single
// hex encoding.
func FrFromHex(s string) (Fr, error) {
	s = util.TrimHex(s)
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Fr{}, fmt.Errorf("invalid field element hex %q: %w", s, err)
	}
	if len(b) > FrSize {
		return Fr{}, fmt.Errorf("field element too long: %d bytes", len(b))
	}
	if new(big.Int).SetBytes(b).Cmp(fr.Modulus()) >= 0 {
		return Fr{}, fmt.Errorf("%w: 0x%s", ErrFrOutOfRange, s)
	}
	return FrFromBytes(b)
}

// Element returns the gnark-crypto representation of f.
func (f Fr) Element() fr.Element {
	var e fr.Element
	e.SetBytes(f[:])
	return e
}

// BigInt returns f as a big integer.
func (f Fr) BigInt() *big.Int {
	return new(big.Int).SetBytes(f[:])
}

// Uint64 returns the low 64 bits of f.
func (f Fr) Uint64() uint64 {
	return f.BigInt().Uint64()
}

// Bytes returns a copy of the big-endian representation of f.
func (f Fr) Bytes() []byte {
	return bytes.Clone(f[:])
}

// IsZero reports whether f is the zero element.
func (f Fr) IsZero() bool {
	return f == ZeroFr
}

// Equal reports whether f and o are the same element.
func (f Fr) Equal(o Fr) bool {
	return f == o
}

// String returns the 0x prefixed hex representation of f.
func (f Fr) String() string {
	return hexutil.Encode(f[:])
}

// MarshalText implements encoding.TextMarshaler.
func (f Fr) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Fr) UnmarshalText(text []byte) error {
	v, err := FrFromHex(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// FrSlice converts a list of integers into field elements.
func FrSlice(values ...uint64) []Fr {
	res := make([]Fr, len(values))
	for i, v := range values {
		res[i] = NewFr(v)
	}
	return res
}
