package node

import (
	"context"
	"net/http"
	"strings"

	"github.com/roach88/pipesync/internal/entity"
)

// Pipe is a named unit of data flow with a source and sink
// configuration. Referenced, never owned, by this tool.
type Pipe struct {
	ID     string     `json:"_id"`
	Config PipeConfig `json:"config"`
}

// PipeConfig holds the stored and effective configuration of a pipe.
type PipeConfig struct {
	Effective map[string]any `json:"effective"`
	Original  map[string]any `json:"original"`
}

// PipeType classifies a pipe by its effective source/sink
// configuration.
type PipeType int

const (
	PipeInput    PipeType = iota // source type is "embedded"
	PipeEndpoint                 // sink type ends in "_endpoint"
	PipeInternal                 // both source and sink reference datasets
	PipeOutput                   // sink has no dataset (terminal fan-out)
)

func (t PipeType) String() string {
	switch t {
	case PipeInput:
		return "input"
	case PipeEndpoint:
		return "endpoint"
	case PipeInternal:
		return "internal"
	case PipeOutput:
		return "output"
	}
	return "unknown"
}

// Classify assigns exactly one type to any pipe. It is a pure function
// of the pipe's effective configuration: total and deterministic.
func Classify(p Pipe) PipeType {
	source, _ := p.Config.Effective["source"].(map[string]any)
	sink, _ := p.Config.Effective["sink"].(map[string]any)
	sourceType, _ := source["type"].(string)
	sinkType, _ := sink["type"].(string)

	if sourceType == "embedded" {
		return PipeInput
	}
	if strings.HasSuffix(sinkType, "_endpoint") {
		return PipeEndpoint
	}
	if (present(source["dataset"]) || present(source["datasets"])) && present(sink["dataset"]) {
		return PipeInternal
	}
	if !present(sink["dataset"]) {
		return PipeOutput
	}
	return PipeInternal
}

// present mirrors the truthiness the classification rules are written
// in terms of: an absent, empty or blank reference does not count.
func present(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	case []any:
		return len(val) > 0
	case bool:
		return val
	default:
		return true
	}
}

// Pipes returns every pipe on the node.
func (c *Client) Pipes(ctx context.Context) ([]Pipe, error) {
	var pipes []Pipe
	if err := c.getJSON(ctx, "/pipes", nil, &pipes); err != nil {
		return nil, err
	}
	return pipes, nil
}

// OutputPipes returns the verification surface: every pipe classified
// as output or endpoint, keyed by pipe identifier.
func (c *Client) OutputPipes(ctx context.Context) (map[string]Pipe, error) {
	pipes, err := c.Pipes(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Pipe)
	for _, p := range pipes {
		switch Classify(p) {
		case PipeOutput, PipeEndpoint:
			out[p.ID] = p
		}
	}
	return out, nil
}

// Entities fetches the current record set of a pipe, with numeric
// normalization applied.
func (c *Client) Entities(ctx context.Context, pipeID string) ([]entity.Object, error) {
	data, err := c.do(ctx, http.MethodGet, "/pipes/"+pipeID+"/entities", nil, nil, "", "application/json")
	if err != nil {
		return nil, err
	}
	records, err := entity.RecordsFromJSON(data)
	if err != nil {
		return nil, err
	}
	for i, r := range records {
		records[i] = entity.NormalizeNumbers(r).(entity.Object)
	}
	return records, nil
}

// PublishedData fetches a pipe's published output in the given format
// as raw bytes, with optional query parameters.
func (c *Client) PublishedData(ctx context.Context, pipeID, format string, params map[string]string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, "/publishers/"+pipeID+"/"+format, params, nil, "", "")
}
