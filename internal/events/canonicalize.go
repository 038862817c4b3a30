package events

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// DecodeToMap parses raw JSON into a generic map, the form Canonicalize
// operates on. Using json.Number preserves the original
// numeric representation so canonicalization doesn't perturb integers that
// happen to parse into float64.
func DecodeToMap(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}

	return m, nil
}

// Canonicalize renders data as key-sorted, minimally-separated JSON: no
// whitespace, object keys sorted lexicographically at every nesting level.
// It is used only to compute raw_payload_hash, never for persistence or wire
// transport, so it doesn't need to round-trip through the typed Event model.
func Canonicalize(data map[string]any) []byte {
	var buf bytes.Buffer

	writeValue(&buf, data)

	return buf.Bytes()
}

// Hash returns the SHA-256 hex digest of canonical bytes.
func Hash(canonical []byte) string {
	sum := sha256.Sum256(canonical)

	return hex.EncodeToString(sum[:])
}

func writeValue(buf *bytes.Buffer, v any) {
	switch val := v.(type) {
	case map[string]any:
		writeObject(buf, val)
	case []any:
		writeArray(buf, val)
	default:
		// json.Number, string, bool, nil all marshal deterministically on
		// their own; no separators to normalize.
		b, _ := json.Marshal(val) //nolint:errcheck // scalar values from a decoded document never fail to marshal
		buf.Write(b)
	}
}

func writeObject(buf *bytes.Buffer, obj map[string]any) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	buf.WriteByte('{')

	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}

		keyBytes, _ := json.Marshal(k) //nolint:errcheck // map keys are always valid strings
		buf.Write(keyBytes)
		buf.WriteByte(':')
		writeValue(buf, obj[k])
	}

	buf.WriteByte('}')
}

func writeArray(buf *bytes.Buffer, arr []any) {
	buf.WriteByte('[')

	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}

		writeValue(buf, elem)
	}

	buf.WriteByte(']')
}
