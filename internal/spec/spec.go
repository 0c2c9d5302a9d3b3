// Package spec loads and validates per-pipe test specifications.
//
// A test specification is a single JSON object in a *.test.json file
// under the baseline directory. It binds exactly one pipe to a recorded
// baseline artifact and controls how the pipe's output is fetched and
// compared.
package spec

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/roach88/pipesync/internal/entity"
)

// Endpoint kinds. EndpointJSON is the structured record-set kind; any
// other value is treated as an opaque byte format and passed through to
// the platform as the published-data format name.
const (
	EndpointJSON = "json"
	EndpointXML  = "xml"
)

// TestSpec is one verification unit bound to exactly one pipe.
// Immutable after construction.
type TestSpec struct {
	Name       string            // path-derived identifier
	SpecFile   string            // the *.test.json file this was parsed from
	Dir        string            // baseline directory
	Pipe       string            // target pipe; derived from Name unless overridden
	Endpoint   string            // "json", "xml", or a raw format name
	File       string            // baseline artifact filename, relative to Dir
	Blacklist  []string          // glob patterns over dotted field paths
	Ignore     bool              // baseline file must not exist
	Parameters map[string]string // optional query parameters for the fetch
}

// LoadError reports a malformed or missing specification. It is fatal:
// a partial spec set would produce a misleading pass report.
type LoadError struct {
	File    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("test spec %s: %s: %v", e.File, e.Message, e.Err)
	}
	return fmt.Sprintf("test spec %s: %s", e.File, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// specFile mirrors the JSON shape of a *.test.json file.
type specFile struct {
	Name       string         `json:"name"`
	Pipe       string         `json:"pipe"`
	File       string         `json:"file"`
	Endpoint   string         `json:"endpoint"`
	Blacklist  []string       `json:"blacklist"`
	Ignore     bool           `json:"ignore"`
	Parameters map[string]any `json:"parameters"`
}

// Parse reads and validates a single *.test.json file.
func Parse(path string) (*TestSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "cannot read spec file", Err: err}
	}
	if err := ValidateSchema(stripBOM(data)); err != nil {
		return nil, &LoadError{File: path, Message: "not a valid test spec object", Err: err}
	}

	var raw specFile
	if err := json.Unmarshal(stripBOM(data), &raw); err != nil {
		return nil, &LoadError{File: path, Message: "cannot decode spec file", Err: err}
	}

	name := strings.TrimSuffix(filepath.Base(path), ".test.json")
	ts := &TestSpec{
		Name:     name,
		SpecFile: path,
		Dir:      filepath.Dir(path),
		Pipe:     name,
		Endpoint: EndpointJSON,
		File:     name + ".json",
	}
	if raw.Name != "" {
		ts.Name = raw.Name
	}
	if raw.Pipe != "" {
		ts.Pipe = raw.Pipe
	} else if i := strings.LastIndex(ts.Name, "/"); i > -1 {
		ts.Pipe = ts.Name[i+1:]
	}
	if raw.File != "" {
		ts.File = raw.File
	}
	if raw.Endpoint != "" {
		ts.Endpoint = raw.Endpoint
	}
	ts.Blacklist = raw.Blacklist
	ts.Ignore = raw.Ignore
	if len(raw.Parameters) > 0 {
		ts.Parameters = make(map[string]string, len(raw.Parameters))
		for k, v := range raw.Parameters {
			ts.Parameters[k] = paramString(v)
		}
	}
	return ts, nil
}

// BaselinePath returns the path of the recorded baseline artifact.
func (t *TestSpec) BaselinePath() string {
	if filepath.IsAbs(t.File) {
		return t.File
	}
	return filepath.Join(t.Dir, t.File)
}

// ExpectedData reads the baseline artifact as raw bytes.
func (t *TestSpec) ExpectedData() ([]byte, error) {
	return os.ReadFile(t.BaselinePath())
}

// ExpectedRecords reads the baseline artifact as a structured record
// set, with numeric normalization applied.
func (t *TestSpec) ExpectedRecords() ([]entity.Object, error) {
	data, err := t.ExpectedData()
	if err != nil {
		return nil, err
	}
	records, err := entity.RecordsFromJSON(data)
	if err != nil {
		return nil, fmt.Errorf("baseline %s: %w", t.BaselinePath(), err)
	}
	for i, r := range records {
		records[i] = entity.NormalizeNumbers(r).(entity.Object)
	}
	return records, nil
}

// WriteBaseline replaces the baseline artifact with new data.
func (t *TestSpec) WriteBaseline(data []byte) error {
	return os.WriteFile(t.BaselinePath(), data, 0o644)
}

func paramString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

func stripBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}
