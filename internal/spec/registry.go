package spec

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// ErrNoSpecs is returned when the baseline directory holds no test
// specs at all. Both verify and update require at least one spec to
// act on.
var ErrNoSpecs = errors.New("found no test specs (*.test.json) to run")

// Registry discovers test specs in a baseline directory and reconciles
// them against the live set of output-capable pipes.
type Registry struct {
	dir string
	log *slog.Logger
}

// NewRegistry creates a registry over the given baseline directory.
func NewRegistry(dir string, log *slog.Logger) *Registry {
	return &Registry{dir: dir, log: log}
}

// Dir returns the baseline directory.
func (r *Registry) Dir() string {
	return r.dir
}

// Load parses every spec in the baseline directory and returns them
// keyed by pipe identifier. pipeIDs is the live set of output-capable
// pipes; a spec referencing a pipe outside that set is stale and is
// logged and skipped. A malformed spec is a hard error that stops the
// whole run.
func (r *Registry) Load(pipeIDs []string) (map[string][]*TestSpec, error) {
	return r.load(pipeIDs, false)
}

// Reconcile behaves like Load, but additionally deletes baselines for
// ignored specs and synthesizes an empty placeholder spec for every
// output-capable pipe lacking one, so pipe set and spec set converge.
func (r *Registry) Reconcile(pipeIDs []string) (map[string][]*TestSpec, error) {
	return r.load(pipeIDs, true)
}

func (r *Registry) load(pipeIDs []string, reconcile bool) (map[string][]*TestSpec, error) {
	files, err := filepath.Glob(filepath.Join(r.dir, "*.test.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	live := make(map[string]bool, len(pipeIDs))
	for _, id := range pipeIDs {
		live[id] = true
	}

	specs := make(map[string][]*TestSpec)
	for _, file := range files {
		r.log.Debug("processing spec file", "file", file)

		ts, err := Parse(file)
		if err != nil {
			return nil, err
		}

		if ts.Ignore {
			// The spec asserts the baseline must not exist.
			if _, err := os.Stat(ts.BaselinePath()); err == nil {
				if reconcile {
					r.log.Debug("removing baseline for ignored spec", "file", ts.BaselinePath())
					if err := os.Remove(ts.BaselinePath()); err != nil {
						return nil, &LoadError{File: file, Message: "cannot remove ignored baseline", Err: err}
					}
				} else {
					r.log.Warn("pipe is ignored, but baseline file still exists",
						"pipe", ts.Pipe, "file", ts.BaselinePath())
				}
			}
		} else if !live[ts.Pipe] {
			r.log.Error("test spec references non-existing output pipe - remove it",
				"pipe", ts.Pipe, "file", file)
			continue
		}

		specs[ts.Pipe] = append(specs[ts.Pipe], ts)
	}

	if reconcile {
		sorted := append([]string(nil), pipeIDs...)
		sort.Strings(sorted)
		for _, id := range sorted {
			if _, ok := specs[id]; ok {
				continue
			}
			r.log.Warn("found no spec for pipe - creating empty spec file", "pipe", id)

			file := filepath.Join(r.dir, id+".test.json")
			if err := os.WriteFile(file, []byte("{\n}"), 0o644); err != nil {
				return nil, &LoadError{File: file, Message: "cannot write placeholder spec", Err: err}
			}
			ts, err := Parse(file)
			if err != nil {
				return nil, err
			}
			specs[id] = []*TestSpec{ts}
		}
	}

	if len(specs) == 0 {
		return nil, ErrNoSpecs
	}
	return specs, nil
}
