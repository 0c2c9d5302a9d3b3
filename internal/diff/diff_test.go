package diff

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnifiedIdenticalTextsProduceNoDiff(t *testing.T) {
	assert.Empty(t, Unified("a\nb\n", "a\nb\n", "expected", "current"))
}

func TestUnifiedReportsChangedLines(t *testing.T) {
	a := "one\ntwo\nthree\n"
	b := "one\nTWO\nthree\n"

	out := Unified(a, b, "expected.json", "current-output.json")

	assert.Contains(t, out, "--- expected.json")
	assert.Contains(t, out, "+++ current-output.json")
	assert.Contains(t, out, "-two")
	assert.Contains(t, out, "+TWO")
}

func TestUnifiedIsStable(t *testing.T) {
	a := strings.Repeat("line\n", 10) + "x\n"
	b := strings.Repeat("line\n", 10) + "y\n"

	first := Unified(a, b, "a", "b")
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Unified(a, b, "a", "b"))
	}
}
