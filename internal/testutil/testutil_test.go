package testutil

import (
	"strings"
	"testing"
)

func TestAssertFloat64Equal_WithinTolerance(t *testing.T) {
	AssertFloat64Equal(t, "exact", 1.0, 1.0, 0)
	AssertFloat64Equal(t, "zero", 0, 0, 0)
	AssertFloat64Equal(t, "close", 100, 100.5, 0.01)
}

func TestReadCSV_ParsesRecords(t *testing.T) {
	records := ReadCSV(t, strings.NewReader("time,S\n0,10\n1.5,9\n"))
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if got := ParseFloat(t, records[2][0]); got != 1.5 {
		t.Errorf("expected 1.5, got %v", got)
	}
}
