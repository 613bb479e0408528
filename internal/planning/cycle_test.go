package planning

import (
	"testing"
	"time"

	"alcyxob/stride-planner/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func intPtr(v int) *int { return &v }

func TestCyclePhaseAt_Scenario28(t *testing.T) {
	anchor := date(2026, 1, 1)
	length := intPtr(28)

	tests := []struct {
		day       time.Time
		wantPhase domain.CyclePhase
		wantDay   int
	}{
		{date(2026, 1, 1), domain.PhaseMenstrual, 1},
		{date(2026, 1, 3), domain.PhaseMenstrual, 3},
		{date(2026, 1, 5), domain.PhaseMenstrual, 5},
		{date(2026, 1, 6), domain.PhaseFollicular, 6},
		{date(2026, 1, 10), domain.PhaseFollicular, 10},
		{date(2026, 1, 15), domain.PhaseOvulatory, 15},
		{date(2026, 1, 16), domain.PhaseOvulatory, 16},
		{date(2026, 1, 18), domain.PhaseLuteal, 18},
		{date(2026, 1, 25), domain.PhaseLuteal, 25},
		{date(2026, 1, 28), domain.PhaseLuteal, 28},
		{date(2026, 1, 29), domain.PhaseMenstrual, 1},
		{date(2025, 12, 31), domain.PhaseLuteal, 28},
	}
	for _, tt := range tests {
		got := CyclePhaseAt(tt.day, &anchor, length, domain.RegularityRegular)
		if !got.Known || got.Phase != tt.wantPhase || got.DayInCycle != tt.wantDay {
			t.Errorf("CyclePhaseAt(%s) = %+v, want %s day %d", tt.day.Format("2006-01-02"), got, tt.wantPhase, tt.wantDay)
		}
	}

	got := CyclePhaseAt(date(2026, 1, 3), &anchor, length, domain.RegularityRegular)
	if got.MenstruationDay != 3 {
		t.Errorf("MenstruationDay = %d, want 3", got.MenstruationDay)
	}
	if got := CyclePhaseAt(date(2026, 1, 10), &anchor, length, domain.RegularityRegular); got.MenstruationDay != 0 {
		t.Errorf("MenstruationDay outside menstrual = %d, want 0", got.MenstruationDay)
	}
}

func TestCyclePhaseAt_Unknown(t *testing.T) {
	anchor := date(2026, 1, 1)
	tests := []struct {
		name       string
		anchor     *time.Time
		length     *int
		regularity domain.CycleRegularity
	}{
		{"no anchor", nil, intPtr(28), domain.RegularityRegular},
		{"no length", &anchor, nil, domain.RegularityRegular},
		{"do not track", &anchor, intPtr(28), domain.RegularityDoNotTrack},
		{"too short", &anchor, intPtr(20), domain.RegularityRegular},
		{"too long", &anchor, intPtr(46), domain.RegularityRegular},
	}
	for _, tt := range tests {
		got := CyclePhaseAt(date(2026, 2, 1), tt.anchor, tt.length, tt.regularity)
		if got.Known || got.Phase != domain.PhaseUnknown || got.Snapshot() != nil {
			t.Errorf("%s: got %+v, want unknown", tt.name, got)
		}
	}
}

func TestPhaseBounds_PartitionEveryLength(t *testing.T) {
	for length := domain.MinCycleLength; length <= domain.MaxCycleLength; length++ {
		bounds := PhaseBounds(length)
		next := 1
		for _, r := range bounds {
			if r.FirstDay != next {
				t.Fatalf("length %d: %s starts at %d, want %d", length, r.Phase, r.FirstDay, next)
			}
			if r.LastDay < r.FirstDay {
				t.Fatalf("length %d: %s is empty (%d..%d)", length, r.Phase, r.FirstDay, r.LastDay)
			}
			next = r.LastDay + 1
		}
		if next != length+1 {
			t.Fatalf("length %d: ranges end at %d", length, next-1)
		}
	}
}

func TestCyclePhaseAt_RangeAndPeriodicity(t *testing.T) {
	anchor := date(2025, 11, 17)
	start := date(2024, 1, 1)
	for length := domain.MinCycleLength; length <= domain.MaxCycleLength; length++ {
		l := length
		for i := 0; i < 400; i += 7 {
			d := start.AddDate(0, 0, i)
			got := CyclePhaseAt(d, &anchor, &l, domain.RegularityIrregular)
			if got.DayInCycle < 1 || got.DayInCycle > length {
				t.Fatalf("length %d date %s: day %d out of range", length, d.Format("2006-01-02"), got.DayInCycle)
			}
			for _, k := range []int{-3, -1, 1, 2} {
				shifted := CyclePhaseAt(d.AddDate(0, 0, k*length), &anchor, &l, domain.RegularityIrregular)
				if shifted.Phase != got.Phase || shifted.DayInCycle != got.DayInCycle {
					t.Fatalf("length %d: phase(%s) = %s but shifted by %d cycles = %s",
						length, d.Format("2006-01-02"), got.Phase, k, shifted.Phase)
				}
			}
		}
	}
}

func TestCyclePhaseAt_IgnoresTimeOfDayAndZone(t *testing.T) {
	anchor := date(2026, 1, 1)
	loc := time.FixedZone("UTC-8", -8*3600)
	late := time.Date(2026, 1, 3, 23, 30, 0, 0, loc)
	got := CyclePhaseAt(late, &anchor, intPtr(28), domain.RegularityRegular)
	if got.DayInCycle != 3 {
		t.Errorf("DayInCycle = %d, want 3 (calendar day in its own zone)", got.DayInCycle)
	}
}

func TestNextPeriodStart(t *testing.T) {
	anchor := date(2026, 1, 1)
	tests := []struct {
		on   time.Time
		want time.Time
	}{
		{date(2026, 1, 1), date(2026, 1, 1)},
		{date(2026, 1, 2), date(2026, 1, 29)},
		{date(2026, 1, 28), date(2026, 1, 29)},
		{date(2025, 12, 20), date(2026, 1, 1)},
	}
	for _, tt := range tests {
		if got := NextPeriodStart(tt.on, anchor, 28); !got.Equal(tt.want) {
			t.Errorf("NextPeriodStart(%s) = %s, want %s", tt.on.Format("2006-01-02"), got.Format("2006-01-02"), tt.want.Format("2006-01-02"))
		}
	}
}

func TestInReductionWindow(t *testing.T) {
	anchor := date(2026, 1, 1)
	runner := &domain.Runner{CycleAnchor: &anchor, CycleLength: intPtr(28), Regularity: domain.RegularityRegular}
	w := domain.PeriodReduction{DaysBefore: 2, DaysAfter: 1}

	tests := []struct {
		on   time.Time
		want bool
	}{
		{date(2026, 1, 1), true},   // start day
		{date(2026, 1, 2), true},   // one after
		{date(2026, 1, 3), false},  // two after
		{date(2026, 1, 26), false}, // three before next start
		{date(2026, 1, 27), true},  // two before
		{date(2026, 1, 28), true},  // one before
	}
	for _, tt := range tests {
		if got := InReductionWindow(runner, w, tt.on); got != tt.want {
			t.Errorf("InReductionWindow(%s) = %v, want %v", tt.on.Format("2006-01-02"), got, tt.want)
		}
	}

	optedOut := *runner
	optedOut.Regularity = domain.RegularityDoNotTrack
	if InReductionWindow(&optedOut, w, date(2026, 1, 1)) {
		t.Error("window reported for a runner who opted out of tracking")
	}
}
