package storage

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// encodeArtifact serializes a using deterministic CBOR.
func encodeArtifact(a any) ([]byte, error) {
	data, err := encMode.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return data, nil
}

func decodeArtifact(data []byte, out any) error {
	return cbor.Unmarshal(data, out)
}

// EncodeDeterministic serializes v using deterministic CBOR, so equal values
// always produce the same bytes.
func EncodeDeterministic(v any) ([]byte, error) {
	return encodeArtifact(v)
}

// Decode deserializes data produced by EncodeDeterministic into out.
func Decode(data []byte, out any) error {
	return decodeArtifact(data, out)
}
