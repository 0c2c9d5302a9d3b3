package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// FromJSON decodes JSON bytes into a Value.
// Numbers keep their lexical form (3.0 stays "3.0" until normalized).
// A UTF-8 BOM is tolerated, matching the baseline files on disk.
func FromJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(stripBOM(data)))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after JSON value")
	}
	return fromAny(raw)
}

// RecordsFromJSON decodes a JSON array of records.
func RecordsFromJSON(data []byte) ([]Object, error) {
	v, err := FromJSON(data)
	if err != nil {
		return nil, err
	}
	arr, ok := v.(Array)
	if !ok {
		return nil, fmt.Errorf("expected a JSON array of records, got %T", v)
	}
	records := make([]Object, 0, len(arr))
	for i, elem := range arr {
		obj, ok := elem.(Object)
		if !ok {
			return nil, fmt.Errorf("record %d is not an object", i)
		}
		records = append(records, obj)
	}
	return records, nil
}

func fromAny(raw any) (Value, error) {
	switch v := raw.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(v), nil
	case string:
		return String(v), nil
	case json.Number:
		return Number(v), nil
	case []any:
		arr := make(Array, len(v))
		for i, elem := range v {
			ev, err := fromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = ev
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(v))
		for k, elem := range v {
			ev, err := fromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = ev
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported JSON value type %T", raw)
	}
}

// NormalizeNumbers rewrites every number whose lexical form ends in a
// trailing ".0" to its integer equivalent, recursively. This absorbs
// numeric-type drift introduced by the transport layer (3.0 vs 3)
// without masking genuine value differences.
func NormalizeNumbers(v Value) Value {
	switch val := v.(type) {
	case Number:
		if s := string(val); strings.HasSuffix(s, ".0") {
			return Number(s[:len(s)-2])
		}
		return val
	case Array:
		out := make(Array, len(val))
		for i, elem := range val {
			out[i] = NormalizeNumbers(elem)
		}
		return out
	case Object:
		out := make(Object, len(val))
		for k, elem := range val {
			out[k] = NormalizeNumbers(elem)
		}
		return out
	default:
		return v
	}
}

func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
}
