package entity

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter strips internal fields and blacklisted paths from a record
// prior to comparison. The input is never mutated; the result shares no
// containers with it.
//
// Rules, applied to every map key recursively:
//   - a key prefixed with "_" is dropped, except the identity key "_id"
//     and a "_deleted" tombstone whose value is boolean true
//   - a key whose dotted path from the root matches a blacklist glob is
//     dropped regardless of prefix
//
// Sequence elements inherit their parent path. Scalars pass through.
// Filtering is idempotent: Filter(Filter(x)) == Filter(x).
func Filter(record Object, blacklist []string) Object {
	v, _ := filterValue(Object(record), nil, blacklist).(Object)
	return v
}

func filterValue(v Value, path []string, blacklist []string) Value {
	switch val := v.(type) {
	case Object:
		out := make(Object, len(val))
		for key, elem := range val {
			keyPath := append(path[:len(path):len(path)], key)
			if strings.HasPrefix(key, "_") {
				if key == "_id" || (key == "_deleted" && isTrue(elem)) {
					out[key] = elem
				}
				continue
			}
			if pathBlacklisted(keyPath, blacklist) {
				continue
			}
			out[key] = filterValue(elem, keyPath, blacklist)
		}
		return out
	case Array:
		out := make(Array, len(val))
		for i, elem := range val {
			out[i] = filterValue(elem, path, blacklist)
		}
		return out
	default:
		return v
	}
}

func isTrue(v Value) bool {
	b, ok := v.(Bool)
	return ok && bool(b)
}

// pathBlacklisted reports whether the dotted path matches any of the
// blacklist globs. A pattern that covers a whole subtree ("meta.*")
// also matches the subtree root itself, so the emptied parent is not
// left behind in the filtered record.
func pathBlacklisted(path []string, blacklist []string) bool {
	if len(blacklist) == 0 {
		return false
	}
	dotted := strings.Join(path, ".")
	for _, pattern := range blacklist {
		if ok, err := doublestar.Match(pattern, dotted); err == nil && ok {
			return true
		}
		if ok, err := doublestar.Match(pattern, dotted+"."); err == nil && ok {
			return true
		}
	}
	return false
}
