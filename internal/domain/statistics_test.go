package domain

import (
	"testing"
)

func TestComputeStatistics_Empty(t *testing.T) {
	stats := ComputeStatistics(999, nil)

	if stats.Count != 0 {
		t.Errorf("expected count 0, got %d", stats.Count)
	}
	if stats.Min != nil || stats.Max != nil || stats.Average != nil {
		t.Errorf("expected nil aggregates for empty band, got %+v", stats)
	}
	if stats.SmartBandID != 999 {
		t.Errorf("expected smart band 999, got %d", stats.SmartBandID)
	}
}

func TestComputeStatistics(t *testing.T) {
	var readings []*HeartRateReading
	for _, p := range []int{60, 90, 120} {
		r, _ := NewHeartRateReading(3, p)
		readings = append(readings, r)
	}

	stats := ComputeStatistics(3, readings)

	if stats.Count != 3 {
		t.Errorf("expected count 3, got %d", stats.Count)
	}
	if *stats.Min != 60 {
		t.Errorf("expected min 60, got %d", *stats.Min)
	}
	if *stats.Max != 120 {
		t.Errorf("expected max 120, got %d", *stats.Max)
	}
	if *stats.Average != 90 {
		t.Errorf("expected average 90, got %v", *stats.Average)
	}
}
