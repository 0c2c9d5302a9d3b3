package archive

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/pipesync/internal/diff"
)

// DivergenceKind says how a file differs between local and remote.
type DivergenceKind int

const (
	LocalOnly  DivergenceKind = iota // present locally, missing remotely
	RemoteOnly                       // present remotely, missing locally
	ContentDiff                      // present in both with different content
)

func (k DivergenceKind) String() string {
	switch k {
	case LocalOnly:
		return "local-only"
	case RemoteOnly:
		return "remote-only"
	case ContentDiff:
		return "content-diff"
	}
	return "unknown"
}

// Divergence is one per-file discrepancy between local and remote
// configuration.
type Divergence struct {
	File string
	Kind DivergenceKind
	Diff string // unified diff for ContentDiff, empty otherwise
}

// Compare computes the symmetric set difference of file names between
// the local and remote archives, and a content diff for files present
// in both. The result is binary: in sync, or a lexicographically
// ordered list of every divergence. There is no partial state.
func Compare(local, remote *Archive) (bool, []Divergence) {
	names := map[string]bool{}
	for _, n := range local.Names() {
		names[n] = true
	}
	for _, n := range remote.Names() {
		names[n] = true
	}
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	var divergences []Divergence
	for _, name := range sorted {
		localData, inLocal := local.Read(name)
		remoteData, inRemote := remote.Read(name)
		switch {
		case !inRemote:
			divergences = append(divergences, Divergence{File: name, Kind: LocalOnly})
		case !inLocal:
			divergences = append(divergences, Divergence{File: name, Kind: RemoteOnly})
		case string(localData) != string(remoteData):
			divergences = append(divergences, Divergence{
				File: name,
				Kind: ContentDiff,
				Diff: diff.Unified(string(localData), string(remoteData), name, name),
			})
		}
	}
	return len(divergences) == 0, divergences
}

// Report renders divergences as a human-readable sync report.
func Report(divergences []Divergence) string {
	if len(divergences) == 0 {
		return "Node config is up-to-date with local config.\n"
	}
	var b strings.Builder
	for _, d := range divergences {
		switch d.Kind {
		case LocalOnly:
			fmt.Fprintf(&b, "Local file '%s' was not found on the node\n", d.File)
		case RemoteOnly:
			fmt.Fprintf(&b, "Node file '%s' was not found locally\n", d.File)
		case ContentDiff:
			fmt.Fprintf(&b, "File '%s' differs from the node:\n%s", d.File, d.Diff)
		}
	}
	b.WriteString("Node config is NOT in sync with local config.\n")
	return b.String()
}
