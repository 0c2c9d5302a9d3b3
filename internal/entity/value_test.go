package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromJSONShapes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Value
	}{
		{"null", `null`, Null{}},
		{"bool", `true`, Bool(true)},
		{"int", `42`, Number("42")},
		{"float keeps lexical form", `3.0`, Number("3.0")},
		{"string", `"hello"`, String("hello")},
		{"empty array", `[]`, Array{}},
		{"empty object", `{}`, Object{}},
		{
			"nested",
			`{"a": [1, "x"], "b": {"c": false}}`,
			Object{
				"a": Array{Number("1"), String("x")},
				"b": Object{"c": Bool(false)},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := FromJSON([]byte(tt.input))
			require.NoError(t, err)
			assert.True(t, Equal(tt.expected, v), "got %#v", v)
		})
	}
}

func TestFromJSONStripsBOM(t *testing.T) {
	v, err := FromJSON([]byte("\xEF\xBB\xBF{\"a\": 1}"))
	require.NoError(t, err)
	assert.True(t, Equal(Object{"a": Number("1")}, v))
}

func TestFromJSONRejectsTrailingData(t *testing.T) {
	_, err := FromJSON([]byte(`{} {}`))
	require.Error(t, err)
}

func TestRecordsFromJSON(t *testing.T) {
	records, err := RecordsFromJSON([]byte(`[{"_id": "a"}, {"_id": "b"}]`))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].ID())
	assert.Equal(t, "b", records[1].ID())
}

func TestRecordsFromJSONRejectsNonArray(t *testing.T) {
	_, err := RecordsFromJSON([]byte(`{"_id": "a"}`))
	require.Error(t, err)
}

func TestSortByID(t *testing.T) {
	records := []Object{
		{"_id": String("c")},
		{"_id": String("a")},
		{"_id": String("b")},
	}
	SortByID(records)

	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID()
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestNormalizeNumbers(t *testing.T) {
	tests := []struct {
		name     string
		input    Value
		expected Value
	}{
		{"trailing .0 becomes int", Number("3.0"), Number("3")},
		{"negative", Number("-2.0"), Number("-2")},
		{"genuine fraction unchanged", Number("3.14"), Number("3.14")},
		{"two decimal places unchanged", Number("3.10"), Number("3.10")},
		{"plain int unchanged", Number("7"), Number("7")},
		{
			"recurses through nested structures",
			Object{"a": Array{Number("1.0"), Object{"b": Number("2.0")}}},
			Object{"a": Array{Number("1"), Object{"b": Number("2")}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, Equal(tt.expected, NormalizeNumbers(tt.input)))
		})
	}
}

func TestEqual(t *testing.T) {
	a := Object{"x": Array{Number("1"), String("s")}}
	b := Object{"x": Array{Number("1"), String("s")}}
	c := Object{"x": Array{Number("1"), String("t")}}

	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, c))
	assert.False(t, Equal(Number("1"), String("1")))
}
