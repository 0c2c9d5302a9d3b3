package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func pipeWith(source, sink map[string]any) Pipe {
	return Pipe{
		ID: "p",
		Config: PipeConfig{
			Effective: map[string]any{"source": source, "sink": sink},
		},
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		pipe     Pipe
		expected PipeType
	}{
		{
			"embedded source is input",
			pipeWith(map[string]any{"type": "embedded"}, map[string]any{"type": "dataset", "dataset": "d"}),
			PipeInput,
		},
		{
			"endpoint sink suffix",
			pipeWith(map[string]any{"type": "dataset", "dataset": "d"}, map[string]any{"type": "csv_endpoint"}),
			PipeEndpoint,
		},
		{
			"dataset to dataset is internal",
			pipeWith(map[string]any{"type": "dataset", "dataset": "a"}, map[string]any{"type": "dataset", "dataset": "b"}),
			PipeInternal,
		},
		{
			"multiple source datasets to dataset is internal",
			pipeWith(map[string]any{"type": "merge", "datasets": []any{"a", "b"}}, map[string]any{"type": "dataset", "dataset": "c"}),
			PipeInternal,
		},
		{
			"sink without dataset is output",
			pipeWith(map[string]any{"type": "dataset", "dataset": "a"}, map[string]any{"type": "rest"}),
			PipeOutput,
		},
		{
			"empty sink dataset counts as absent",
			pipeWith(map[string]any{"type": "dataset", "dataset": "a"}, map[string]any{"type": "dataset", "dataset": ""}),
			PipeOutput,
		},
		{
			"sink dataset without source dataset is internal",
			pipeWith(map[string]any{"type": "rest"}, map[string]any{"type": "dataset", "dataset": "b"}),
			PipeInternal,
		},
		{
			"no configuration at all is output",
			Pipe{ID: "p"},
			PipeOutput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.pipe))
		})
	}
}

// Totality: every syntactically valid configuration lands in exactly
// one class, and classification is deterministic.
func TestClassifyTotalAndDeterministic(t *testing.T) {
	sources := []map[string]any{
		nil,
		{"type": "embedded"},
		{"type": "dataset", "dataset": "a"},
		{"type": "merge", "datasets": []any{"a"}},
		{"type": "rest"},
	}
	sinks := []map[string]any{
		nil,
		{"type": "json_endpoint"},
		{"type": "dataset", "dataset": "b"},
		{"type": "dataset"},
		{"type": "rest"},
	}

	for _, src := range sources {
		for _, snk := range sinks {
			p := pipeWith(src, snk)
			first := Classify(p)
			assert.Contains(t, []PipeType{PipeInput, PipeEndpoint, PipeInternal, PipeOutput}, first)
			assert.Equal(t, first, Classify(p))
		}
	}
}
