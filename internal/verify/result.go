package verify

import "fmt"

// Result is the outcome of comparing one test spec against the
// pipe's current output.
type Result struct {
	Pipe     string
	SpecFile string
	Passed   bool
	Reason   string // empty when passed
	Diff     string // unified diff text, empty when no textual diff applies
}

// Summary aggregates every per-spec result of a verification run.
// Failures never abort the run early: every spec for every pipe is
// attempted, then the run either reports success for all specs or
// enumerates every failure.
type Summary struct {
	Results []Result
}

func (s *Summary) add(r Result) {
	s.Results = append(s.Results, r)
}

// Total is the number of specs compared.
func (s *Summary) Total() int {
	return len(s.Results)
}

// Failed returns every failing result, in run order.
func (s *Summary) Failed() []Result {
	var failed []Result
	for _, r := range s.Results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// Passed reports whether the whole run passed.
func (s *Summary) Passed() bool {
	return len(s.Failed()) == 0
}

// FetchError is a transport or API failure while retrieving current
// output. It is recorded as a spec failure and never aborts sibling
// comparisons.
type FetchError struct {
	Pipe string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching output of pipe %q: %v", e.Pipe, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
