// Package report formats the bench subcommand's fixture pass/fail
// results as JSON, grounded on cmd/z80opt/main.go's result.WriteJSON
// call sites (the function itself is not present in the retrieved
// pkg/result slice, so its encoding/json shape is inferred from those
// call sites and from pkg/result/table.go's sorted-summary style).
package report

import (
	"encoding/json"
	"io"
	"sort"
)

// FixtureResult is one §8 fixture's pass/fail outcome.
type FixtureResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Summary is the bench subcommand's full report: every fixture result,
// plus the counts the CLI prints to stdout in non-JSON mode.
type Summary struct {
	Results []FixtureResult `json:"results"`
	Passed  int             `json:"passed"`
	Failed  int             `json:"failed"`
}

// NewSummary builds a Summary from a slice of results, sorting them by
// name so JSON output is deterministic across runs, the same
// determinism concern table.go's Rules() addresses by sorting before
// returning.
func NewSummary(results []FixtureResult) Summary {
	sorted := make([]FixtureResult, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	s := Summary{Results: sorted}
	for _, r := range sorted {
		if r.Passed {
			s.Passed++
		} else {
			s.Failed++
		}
	}
	return s
}

// WriteJSON writes the summary to w as indented JSON.
func WriteJSON(w io.Writer, s Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// ReadJSON reads a summary previously written by WriteJSON, used by
// tests that round-trip a report.
func ReadJSON(r io.Reader) (Summary, error) {
	var s Summary
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return Summary{}, err
	}
	return s, nil
}
