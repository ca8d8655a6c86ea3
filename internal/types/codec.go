package types

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Headers and bodies travel in two encodings of the same value: indented JSON
// for inspection and msgpack maps for inter-process exchange. Field names are
// identical in both.

// EncodeText renders v as indented JSON.
func EncodeText[T any](v T) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode text: %w", err)
	}
	return data, nil
}

// DecodeText parses JSON produced by EncodeText (or any compatible producer).
func DecodeText[T any](data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("failed to decode text: %w", err)
	}
	return v, nil
}

// EncodeBinary renders v as a msgpack map. Map keys are sorted so equal values
// always produce identical bytes.
func EncodeBinary[T any](v T) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode binary: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeBinary parses msgpack produced by EncodeBinary.
func DecodeBinary[T any](data []byte) (T, error) {
	var v T
	if err := msgpack.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("failed to decode binary: %w", err)
	}
	return v, nil
}

// TextFromBinary converts the canonical binary form to its text form.
func TextFromBinary[T any](data []byte) ([]byte, error) {
	v, err := DecodeBinary[T](data)
	if err != nil {
		return nil, err
	}
	return EncodeText(v)
}

// BinaryFromText converts the text form back to the canonical binary form.
func BinaryFromText[T any](data []byte) ([]byte, error) {
	v, err := DecodeText[T](data)
	if err != nil {
		return nil, err
	}
	return EncodeBinary(v)
}

// DecodeBid accepts a bid in either encoding: a JSON object when the payload
// starts with '{' (after leading whitespace), msgpack otherwise.
func DecodeBid(data []byte) (ExplorationBid, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return ExplorationBid{}, fmt.Errorf("empty bid response")
	}
	if trimmed[0] == '{' {
		return DecodeText[ExplorationBid](trimmed)
	}
	return DecodeBinary[ExplorationBid](data)
}
