// Package verify compares the current output of every output-capable
// pipe against recorded baselines, and rewrites those baselines in
// update mode.
package verify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/roach88/pipesync/internal/diff"
	"github.com/roach88/pipesync/internal/entity"
	"github.com/roach88/pipesync/internal/node"
	"github.com/roach88/pipesync/internal/spec"
)

// currentLabel names the fetched side in diff output.
const currentLabel = "current-output"

// Platform is the subset of the node API the verifier needs.
// *node.Client implements it.
type Platform interface {
	OutputPipes(ctx context.Context) (map[string]node.Pipe, error)
	Entities(ctx context.Context, pipeID string) ([]entity.Object, error)
	PublishedData(ctx context.Context, pipeID, format string, params map[string]string) ([]byte, error)
}

// Verifier drives a verification or update pass over all test specs.
type Verifier struct {
	platform Platform
	registry *spec.Registry
	log      *slog.Logger

	// Single restricts the pass to one pipe identifier when non-empty.
	Single string
}

// New creates a verifier.
func New(platform Platform, registry *spec.Registry, log *slog.Logger) *Verifier {
	return &Verifier{platform: platform, registry: registry, log: log}
}

// Verify compares expected output with current output for every spec.
// The returned error is reserved for fatal conditions (spec load
// failure, pipe enumeration failure); comparison failures are in the
// summary.
func (v *Verifier) Verify(ctx context.Context) (*Summary, error) {
	pipes, specs, err := v.loadSpecs(ctx, false)
	if err != nil {
		return nil, err
	}

	summary := &Summary{}
	for _, pipeID := range sortedIDs(pipes) {
		pipe := pipes[pipeID]
		v.log.Debug("verifying pipe", "pipe", pipeID)

		for _, ts := range specs[pipeID] {
			if ts.Ignore {
				v.log.Debug("skipping ignored test spec", "spec", ts.Name)
				continue
			}
			result := v.compare(ctx, pipe, ts)
			if !result.Passed {
				v.log.Error("pipe verify failed", "pipe", result.Pipe, "spec", result.SpecFile, "reason", result.Reason)
				if result.Diff != "" {
					v.log.Info("diff:\n" + result.Diff)
				}
			}
			summary.add(result)
		}
	}
	return summary, nil
}

// Update stores current output as the new expected output for every
// spec, synthesizing placeholder specs for uncovered pipes. Returns
// the number of baselines written.
func (v *Verifier) Update(ctx context.Context) (int, error) {
	pipes, specs, err := v.loadSpecs(ctx, true)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, pipeID := range sortedIDs(pipes) {
		pipe := pipes[pipeID]
		for _, ts := range specs[pipeID] {
			if ts.Ignore {
				v.log.Debug("skipping ignored test spec", "spec", ts.Name)
				continue
			}
			v.log.Debug("updating baseline", "spec", ts.Name, "pipe", pipeID)

			data, err := v.currentOutput(ctx, pipe, ts)
			if err != nil {
				return updated, err
			}
			if err := ts.WriteBaseline(data); err != nil {
				return updated, err
			}
			updated++
		}
	}
	return updated, nil
}

func (v *Verifier) loadSpecs(ctx context.Context, reconcile bool) (map[string]node.Pipe, map[string][]*spec.TestSpec, error) {
	pipes, err := v.platform.OutputPipes(ctx)
	if err != nil {
		return nil, nil, err
	}
	if v.Single != "" {
		all := pipes
		pipes = map[string]node.Pipe{}
		if p, ok := all[v.Single]; ok {
			pipes[v.Single] = p
		}
	}

	var specs map[string][]*spec.TestSpec
	if reconcile {
		specs, err = v.registry.Reconcile(sortedIDs(pipes))
	} else {
		specs, err = v.registry.Load(sortedIDs(pipes))
	}
	if err != nil {
		return nil, nil, err
	}
	return pipes, specs, nil
}

// compare dispatches on the spec's endpoint kind.
func (v *Verifier) compare(ctx context.Context, pipe node.Pipe, ts *spec.TestSpec) Result {
	switch ts.Endpoint {
	case spec.EndpointJSON:
		return v.compareStructured(ctx, pipe, ts)
	case spec.EndpointXML:
		return v.compareXML(ctx, pipe, ts)
	default:
		return v.compareRaw(ctx, pipe, ts)
	}
}

func (v *Verifier) compareStructured(ctx context.Context, pipe node.Pipe, ts *spec.TestSpec) Result {
	result := Result{Pipe: ts.Pipe, SpecFile: ts.SpecFile}

	expected, err := ts.ExpectedRecords()
	if err != nil {
		result.Reason = fmt.Sprintf("cannot read baseline: %v", err)
		return result
	}
	fetched, err := v.platform.Entities(ctx, pipe.ID)
	if err != nil {
		result.Reason = (&FetchError{Pipe: pipe.ID, Err: err}).Error()
		return result
	}

	current := make([]entity.Object, len(fetched))
	for i, record := range fetched {
		current[i] = entity.Filter(record, ts.Blacklist)
	}
	entity.SortByID(current)
	entity.SortByID(expected)

	expectedJSON, err := entity.MarshalRecords(expected)
	if err != nil {
		result.Reason = fmt.Sprintf("cannot serialize expected records: %v", err)
		return result
	}
	currentJSON, err := entity.MarshalRecords(current)
	if err != nil {
		result.Reason = fmt.Sprintf("cannot serialize current records: %v", err)
		return result
	}

	// Cardinality first: unequal-length failures are legible on their
	// own, before any content diff.
	if len(current) != len(expected) {
		result.Reason = fmt.Sprintf("length mismatch: expected %d got %d", len(expected), len(current))
		result.Diff = diff.Unified(string(expectedJSON), string(currentJSON), ts.File, currentLabel+".json")
		return result
	}

	if !bytes.Equal(expectedJSON, currentJSON) {
		result.Reason = "content mismatch"
		result.Diff = diff.Unified(string(expectedJSON), string(currentJSON), ts.File, currentLabel+".json")
		return result
	}
	result.Passed = true
	return result
}

func (v *Verifier) compareXML(ctx context.Context, pipe node.Pipe, ts *spec.TestSpec) Result {
	result := Result{Pipe: ts.Pipe, SpecFile: ts.SpecFile}

	expected, err := ts.ExpectedData()
	if err != nil {
		result.Reason = fmt.Sprintf("cannot read baseline: %v", err)
		return result
	}
	current, err := v.platform.PublishedData(ctx, pipe.ID, spec.EndpointXML, ts.Parameters)
	if err != nil {
		result.Reason = (&FetchError{Pipe: pipe.ID, Err: err}).Error()
		return result
	}

	expectedCanon, errExpected := canonicalXML(expected)
	currentCanon, errCurrent := canonicalXML(current)
	if errExpected != nil || errCurrent != nil {
		// Degrade to byte equality. This can report false differences
		// for XML data that differs only in formatting.
		v.log.Debug("failed to parse expected and/or current output as XML, falling back to byte comparison",
			"spec", ts.Name)
		if !bytes.Equal(expected, current) {
			result.Reason = "content mismatch (byte-level comparison; XML canonicalization failed, difference may be formatting only)"
			return result
		}
		result.Passed = true
		return result
	}

	if expectedCanon != currentCanon {
		result.Reason = "content mismatch"
		result.Diff = diff.Unified(expectedCanon, currentCanon, ts.File, currentLabel+".xml")
		return result
	}
	result.Passed = true
	return result
}

func (v *Verifier) compareRaw(ctx context.Context, pipe node.Pipe, ts *spec.TestSpec) Result {
	result := Result{Pipe: ts.Pipe, SpecFile: ts.SpecFile}

	expected, err := ts.ExpectedData()
	if err != nil {
		result.Reason = fmt.Sprintf("cannot read baseline: %v", err)
		return result
	}
	current, err := v.platform.PublishedData(ctx, pipe.ID, ts.Endpoint, ts.Parameters)
	if err != nil {
		result.Reason = (&FetchError{Pipe: pipe.ID, Err: err}).Error()
		return result
	}

	if bytes.Equal(expected, current) {
		result.Passed = true
		return result
	}

	result.Reason = "content mismatch"
	if expectedText, currentText, ok := decodeForDiff(expected, current); ok {
		result.Diff = diff.Unified(expectedText, currentText, ts.File, currentLabel+".txt")
	} else {
		v.log.Warn("unable to decode expected and/or current data as text, no diff available",
			"spec", ts.Name)
	}
	return result
}

// decodeForDiff tries an ordered list of decodings so a textual diff
// can be shown: UTF-8 first, then Latin-1 (a lossless single-byte
// decode that always succeeds).
func decodeForDiff(a, b []byte) (string, string, bool) {
	decoders := []func([]byte) (string, bool){
		func(data []byte) (string, bool) {
			if !utf8.Valid(data) {
				return "", false
			}
			return string(data), true
		},
		func(data []byte) (string, bool) {
			decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
			if err != nil {
				return "", false
			}
			return string(decoded), true
		},
	}
	for _, decode := range decoders {
		aText, okA := decode(a)
		bText, okB := decode(b)
		if okA && okB {
			return aText, bText, true
		}
	}
	return "", "", false
}

// currentOutput fetches the canonical bytes update mode writes as the
// new baseline.
func (v *Verifier) currentOutput(ctx context.Context, pipe node.Pipe, ts *spec.TestSpec) ([]byte, error) {
	switch ts.Endpoint {
	case spec.EndpointJSON:
		fetched, err := v.platform.Entities(ctx, pipe.ID)
		if err != nil {
			return nil, &FetchError{Pipe: pipe.ID, Err: err}
		}
		current := make([]entity.Object, len(fetched))
		for i, record := range fetched {
			current[i] = entity.Filter(record, ts.Blacklist)
		}
		entity.SortByID(current)
		data, err := entity.MarshalRecords(current)
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case spec.EndpointXML:
		data, err := v.platform.PublishedData(ctx, pipe.ID, spec.EndpointXML, ts.Parameters)
		if err != nil {
			return nil, &FetchError{Pipe: pipe.ID, Err: err}
		}
		canon, err := canonicalXML(data)
		if err != nil {
			return nil, fmt.Errorf("cannot canonicalize XML output of pipe %q: %w", pipe.ID, err)
		}
		return []byte(canon), nil
	default:
		data, err := v.platform.PublishedData(ctx, pipe.ID, ts.Endpoint, ts.Parameters)
		if err != nil {
			return nil, &FetchError{Pipe: pipe.ID, Err: err}
		}
		return data, nil
	}
}

func sortedIDs(pipes map[string]node.Pipe) []string {
	ids := make([]string, 0, len(pipes))
	for id := range pipes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
