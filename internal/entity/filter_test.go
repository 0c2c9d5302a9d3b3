package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRecord(t *testing.T, s string) Object {
	t.Helper()
	v, err := FromJSON([]byte(s))
	require.NoError(t, err)
	obj, ok := v.(Object)
	require.True(t, ok)
	return obj
}

func TestFilterDropsInternalKeys(t *testing.T) {
	record := mustRecord(t, `{
		"_id": "x",
		"_updated": 42,
		"_previous": 41,
		"value": 1
	}`)

	got := Filter(record, nil)

	assert.True(t, Equal(mustRecord(t, `{"_id": "x", "value": 1}`), got))
}

func TestFilterKeepsTombstone(t *testing.T) {
	tests := []struct {
		name     string
		record   string
		expected string
	}{
		{
			"deleted true is preserved",
			`{"_id": "x", "_deleted": true}`,
			`{"_id": "x", "_deleted": true}`,
		},
		{
			"deleted false is dropped",
			`{"_id": "x", "_deleted": false}`,
			`{"_id": "x"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(mustRecord(t, tt.record), nil)
			assert.True(t, Equal(mustRecord(t, tt.expected), got), "got %#v", got)
		})
	}
}

func TestFilterBlacklist(t *testing.T) {
	record := mustRecord(t, `{"_id": "x", "meta": {"ts": 123}, "val": 1}`)

	got := Filter(record, []string{"meta.*"})

	assert.True(t, Equal(mustRecord(t, `{"_id": "x", "val": 1}`), got), "got %#v", got)
}

func TestFilterBlacklistExactPath(t *testing.T) {
	record := mustRecord(t, `{"_id": "x", "meta": {"ts": 123, "origin": "api"}}`)

	got := Filter(record, []string{"meta.ts"})

	assert.True(t, Equal(mustRecord(t, `{"_id": "x", "meta": {"origin": "api"}}`), got), "got %#v", got)
}

func TestFilterRecursesIntoSequences(t *testing.T) {
	record := mustRecord(t, `{
		"_id": "x",
		"items": [{"_hash": "h1", "v": 1}, {"_hash": "h2", "v": 2}]
	}`)

	got := Filter(record, nil)

	assert.True(t, Equal(mustRecord(t, `{"_id": "x", "items": [{"v": 1}, {"v": 2}]}`), got))
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	record := mustRecord(t, `{"_id": "x", "_trace": 1, "nested": {"_gone": true, "kept": 2}}`)
	original := mustRecord(t, `{"_id": "x", "_trace": 1, "nested": {"_gone": true, "kept": 2}}`)

	Filter(record, nil)

	assert.True(t, Equal(original, record), "input record was mutated")
}

func TestFilterIdempotent(t *testing.T) {
	record := mustRecord(t, `{
		"_id": "x",
		"_updated": 9,
		"meta": {"ts": 1},
		"items": [{"_hash": "h", "v": 1.0}],
		"val": "s"
	}`)
	blacklist := []string{"meta.*"}

	once := Filter(record, blacklist)
	twice := Filter(once, blacklist)

	assert.True(t, Equal(once, twice))
}
