// Package testutil provides shared assertion helpers for the simulator's
// test packages. It does not import sim, so any package can use it.
package testutil

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"testing"
)

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// ReadCSV parses every record from r, failing the test on malformed input.
func ReadCSV(t *testing.T, r io.Reader) [][]string {
	t.Helper()
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse CSV: %v", err)
	}
	return records
}

// ParseFloat parses a CSV cell, failing the test if it is not a number.
func ParseFloat(t *testing.T, cell string) float64 {
	t.Helper()
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		t.Fatalf("Failed to parse %q as float: %v", cell, err)
	}
	return v
}
