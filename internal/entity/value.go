// Package entity models the semi-structured records produced by pipes.
//
// Records are represented as a sealed tagged union rather than raw
// map[string]any so that filtering, normalization and canonical
// serialization are total functions over a closed set of shapes.
package entity

import (
	"encoding/json"
	"sort"
	"strconv"
)

// Value is a sealed interface over the record value shapes.
// Only Null, Bool, Number, String, Array and Object implement it.
type Value interface {
	value() // sealed
}

// Null represents a JSON null.
type Null struct{}

func (Null) value() {}

// Bool represents a boolean value.
type Bool bool

func (Bool) value() {}

// Number represents a numeric value in its original lexical form.
// Keeping the wire text (rather than float64) makes numeric
// normalization and round-tripping deterministic.
type Number json.Number

func (Number) value() {}

// String represents a string value.
type String string

func (String) value() {}

// Array represents an ordered sequence of values.
type Array []Value

func (Array) value() {}

// Object represents a record: string keys to values.
type Object map[string]Value

func (Object) value() {}

// Int creates a Number from an integer.
func Int(n int64) Number {
	return Number(strconv.FormatInt(n, 10))
}

// ID returns the record's identity key, or "" if it has none.
func (o Object) ID() string {
	if s, ok := o["_id"].(String); ok {
		return string(s)
	}
	return ""
}

// SortedKeys returns the object's keys in ascending byte order.
func (o Object) SortedKeys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SortByID orders a record set by identity key, ascending.
// Identity keys are unique within a dataset, so ties cannot occur.
func SortByID(records []Object) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].ID() < records[j].ID()
	})
}

// Equal reports deep equality of two values.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Number:
		bv, ok := b.(Number)
		return ok && av == bv
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		bv, ok := b.(Object)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bval, ok := bv[k]
			if !ok || !Equal(v, bval) {
				return false
			}
		}
		return true
	}
	return false
}
