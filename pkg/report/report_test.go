package report

import (
	"bytes"
	"testing"
)

func TestNewSummarySortsAndCounts(t *testing.T) {
	s := NewSummary([]FixtureResult{
		{Name: "vpsubw", Passed: true},
		{Name: "entry-stub", Passed: false, Detail: "length mismatch"},
		{Name: "vpaddw", Passed: true},
	})
	if len(s.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(s.Results))
	}
	if s.Results[0].Name != "entry-stub" {
		t.Errorf("Results[0].Name = %q, want entry-stub (sorted first)", s.Results[0].Name)
	}
	if s.Passed != 2 || s.Failed != 1 {
		t.Errorf("Passed/Failed = %d/%d, want 2/1", s.Passed, s.Failed)
	}
}

func TestWriteReadJSONRoundTrip(t *testing.T) {
	s := NewSummary([]FixtureResult{{Name: "vmovdqa64", Passed: true}})

	var buf bytes.Buffer
	if err := WriteJSON(&buf, s); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	got, err := ReadJSON(&buf)
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got.Passed != 1 || len(got.Results) != 1 || got.Results[0].Name != "vmovdqa64" {
		t.Errorf("round trip mismatch: %+v", got)
	}
}
