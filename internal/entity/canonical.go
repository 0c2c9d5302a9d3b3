package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const indentStep = "  "

// MarshalCanonical serializes a value to its canonical textual form:
// two-space indentation, object keys in ascending byte order, no HTML
// escaping, non-ASCII characters left literal. Two semantically equal
// record sets always produce byte-identical canonical forms, which is
// what comparison and baseline files rely on.
func MarshalCanonical(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := marshalCanonical(&buf, v, ""); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalRecords serializes a record set to canonical form.
func MarshalRecords(records []Object) ([]byte, error) {
	arr := make(Array, len(records))
	for i, r := range records {
		arr[i] = r
	}
	return MarshalCanonical(arr)
}

func marshalCanonical(buf *bytes.Buffer, v Value, indent string) error {
	switch val := v.(type) {
	case nil:
		return fmt.Errorf("untyped nil value")
	case Null:
		buf.WriteString("null")
	case Bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Number:
		buf.WriteString(string(val))
	case String:
		s, err := marshalCanonicalString(string(val))
		if err != nil {
			return err
		}
		buf.Write(s)
	case Array:
		if len(val) == 0 {
			buf.WriteString("[]")
			return nil
		}
		inner := indent + indentStep
		buf.WriteString("[\n")
		for i, elem := range val {
			buf.WriteString(inner)
			if err := marshalCanonical(buf, elem, inner); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
			if i < len(val)-1 {
				buf.WriteByte(',')
			}
			buf.WriteByte('\n')
		}
		buf.WriteString(indent)
		buf.WriteByte(']')
	case Object:
		if len(val) == 0 {
			buf.WriteString("{}")
			return nil
		}
		inner := indent + indentStep
		keys := val.SortedKeys()
		buf.WriteString("{\n")
		for i, k := range keys {
			buf.WriteString(inner)
			ks, err := marshalCanonicalString(k)
			if err != nil {
				return err
			}
			buf.Write(ks)
			buf.WriteString(": ")
			if err := marshalCanonical(buf, val[k], inner); err != nil {
				return fmt.Errorf("[%q]: %w", k, err)
			}
			if i < len(keys)-1 {
				buf.WriteByte(',')
			}
			buf.WriteByte('\n')
		}
		buf.WriteString(indent)
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported value type %T", v)
	}
	return nil
}

// marshalCanonicalString encodes a string without HTML escaping.
// Only quote, backslash and control characters are escaped.
func marshalCanonicalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	// json.Encoder appends a trailing newline.
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
