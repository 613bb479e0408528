package jobqueue

import (
	"testing"
	"time"

	"alcyxob/stride-planner/internal/clock"
)

func TestStatusFields_UsesGivenTime(t *testing.T) {
	clk := clock.NewFixed(time.Date(2026, 3, 1, 9, 30, 0, 0, time.FixedZone("CET", 3600)))
	got := statusFields(StateRunning, clk.Now())
	want := []interface{}{"state", "running", "updatedAt", "2026-03-01T08:30:00Z"}
	if len(got) != len(want) {
		t.Fatalf("fields = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("field %d = %v, want %v", i, got[i], want[i])
		}
	}
}
