package types

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/vocdoni/kernel-prover/util"
)

// AztecAddress identifies a contract. It is a field element.
type AztecAddress Fr

// NewAztecAddress returns the address for a small integer, which is how
// canonical protocol contracts are addressed.
func NewAztecAddress(v uint64) AztecAddress {
	return AztecAddress(NewFr(v))
}

// AztecAddressFromHex parses a hex encoded address.
func AztecAddressFromHex(s string) (AztecAddress, error) {
	f, err := FrFromHex(s)
	return AztecAddress(f), err
}

// ToField returns the address as a field element.
func (a AztecAddress) ToField() Fr {
	return Fr(a)
}

// IsZero reports whether the address is empty.
func (a AztecAddress) IsZero() bool {
	return Fr(a).IsZero()
}

func (a AztecAddress) String() string {
	return Fr(a).String()
}

// MarshalText implements encoding.TextMarshaler.
func (a AztecAddress) MarshalText() ([]byte, error) {
	return Fr(a).MarshalText()
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *AztecAddress) UnmarshalText(text []byte) error {
	return (*Fr)(a).UnmarshalText(text)
}

// FunctionSelector is the 4 byte identifier of a contract function.
type FunctionSelector uint32

// FunctionSelectorFromHex parses a 0x prefixed selector.
func FunctionSelectorFromHex(s string) (FunctionSelector, error) {
	v, err := strconv.ParseUint(util.TrimHex(s), 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid function selector %q: %w", s, err)
	}
	return FunctionSelector(v), nil
}

// ToField returns the selector as a field element.
func (s FunctionSelector) ToField() Fr {
	return NewFr(uint64(s))
}

// Bytes returns the big-endian 4 byte representation.
func (s FunctionSelector) Bytes() []byte {
	return binary.BigEndian.AppendUint32(nil, uint32(s))
}

func (s FunctionSelector) String() string {
	return fmt.Sprintf("0x%08x", uint32(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s FunctionSelector) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *FunctionSelector) UnmarshalText(text []byte) error {
	v, err := FunctionSelectorFromHex(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
