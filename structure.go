package strux

import (
	"fmt"

	"github.com/hengadev/strux/internal/codec"
)

// EncodeStructure renders a nested serialized structure as deterministic CBOR
// bytes, suitable for wire transport or content hashing. The same logical
// structure always encodes to identical bytes.
func EncodeStructure(structure any) ([]byte, error) {
	data, err := codec.Marshal(normalizeForEncoding(structure))
	if err != nil {
		return nil, fmt.Errorf("encode structure: %w", err)
	}
	return data, nil
}

// DecodeStructure reverses EncodeStructure. Integers come back as int where
// they fit, mappings as map[string]any, sequences as []any, so the result can
// be handed straight to Deserialize.
func DecodeStructure(data []byte) (any, error) {
	var structure any
	if err := codec.Unmarshal(data, &structure); err != nil {
		return nil, fmt.Errorf("decode structure: %w", err)
	}
	return normalizeDecoded(structure), nil
}

// normalizeForEncoding replaces Path values with their tagged string form so
// the type survives CBOR, which has no path notion.
func normalizeForEncoding(v any) any {
	switch t := v.(type) {
	case Path:
		return encodePrimitiveString(t)
	case nil:
		return encodePrimitiveString(nil)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeForEncoding(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalizeForEncoding(e)
		}
		return out
	default:
		return v
	}
}

// normalizeDecoded undoes CBOR decoding artifacts: tagged primitive strings
// become their typed values, uint64/int64 become int where they fit.
func normalizeDecoded(v any) any {
	switch t := v.(type) {
	case string:
		return decodePrimitiveString(t)
	case uint64:
		return int(t)
	case int64:
		return int(t)
	case []any:
		for i, e := range t {
			t[i] = normalizeDecoded(e)
		}
		return t
	case map[string]any:
		for k, e := range t {
			// Tag values stay plain strings.
			if isReservedKey(k) {
				continue
			}
			t[k] = normalizeDecoded(e)
		}
		return t
	default:
		return v
	}
}
