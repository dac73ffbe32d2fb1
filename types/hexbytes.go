package types

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/vocdoni/kernel-prover/util"
)

// HexBytes is a []byte which encodes as a 0x prefixed hexadecimal string.
type HexBytes []byte

func (b HexBytes) String() string {
	return "0x" + hex.EncodeToString(b)
}

// MarshalText implements encoding.TextMarshaler.
func (b HexBytes) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *HexBytes) UnmarshalText(data []byte) error {
	s := util.TrimHex(strings.TrimSpace(string(data)))
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid hex bytes: %w", err)
	}
	*b = decoded
	return nil
}
