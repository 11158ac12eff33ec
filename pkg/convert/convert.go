// Package convert provides type coercion helpers for MuninDB.
//
// Property values and embeddings cross two boundaries where Go's static
// types blur: JSON decoding (every number becomes float64) and caller-built
// maps (numbers arrive as int, int64, float32, ...). This package
// consolidates the coercions so equality checks and embedding decoding
// behave the same in every engine.
//
// Key Functions:
//   - ToFloat64: numeric types to float64 (strings are NOT coerced)
//   - ToFloat32Slice: strict slice conversion for embeddings
//
// Both return a success boolean (or nil slice) so callers can handle
// non-numeric input gracefully.
//
// ELI12:
//
// Computers store numbers in lots of shapes: 57, 57.0, a 57 that came out
// of a JSON file. This package turns all of those into one shape so that
// when you ask "is age 57?", the store says yes no matter which shape the
// 57 arrived in. It refuses to guess about text: "57" the word is not 57
// the number.
package convert

import "encoding/json"

// ToFloat64 converts numeric types to float64.
// Returns (value, true) on success, (0, false) on failure.
//
// This is the STANDARD numeric coercion used for property-value equality:
// a stored 57 (int) and a JSON-decoded 57.0 (float64) compare equal after
// passing through it.
//
// Strings are deliberately not parsed: the property value "57" is a
// string, not the number 57, and attribute search must not conflate them.
//
// Supported types:
//   - float64 (returned as-is)
//   - float32 (converted)
//   - int, int32, int64, uint, uint32, uint64
//   - json.Number (parsed)
func ToFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint64:
		return float64(val), true
	case uint32:
		return float64(val), true
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f, true
		}
	}
	return 0, false
}

// ToFloat32Slice converts slice types to []float32, the embedding format.
// Returns nil if the input is not a slice or if ANY element is non-numeric.
//
// The all-or-nothing rule matters here: an embedding that silently dropped
// one bad element would change dimensionality and corrupt every distance
// computed from it. Better to fail the whole conversion.
//
// Supported types:
//   - []float32 (returned as-is)
//   - []float64 (each element converted; the JSON decode shape)
//   - []interface{} (each element converted via ToFloat64)
func ToFloat32Slice(v interface{}) []float32 {
	switch val := v.(type) {
	case []float32:
		return val
	case []float64:
		result := make([]float32, len(val))
		for i, f := range val {
			result[i] = float32(f)
		}
		return result
	case []interface{}:
		result := make([]float32, len(val))
		for i, item := range val {
			f, ok := ToFloat64(item)
			if !ok {
				return nil
			}
			result[i] = float32(f)
		}
		return result
	}
	return nil
}
