package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"alcyxob/stride-planner/internal/domain"
	"alcyxob/stride-planner/internal/logger"
	"alcyxob/stride-planner/internal/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestRenderICS(t *testing.T) {
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	done := now
	plan := &domain.TrainingPlan{Name: "Spring, Half; v2"}
	views := []SessionView{
		{
			Session: domain.TrainingSession{ID: primitive.NewObjectID(), ScheduledDate: day(2026, 1, 4), WorkoutType: domain.WorkoutLong, Title: "Long run", TargetDistanceKm: 14, TargetIntensity: 4, CompletedAt: &done},
			Stage:   domain.StageBase,
			Phase:   domain.PhaseMenstrual, DayInCycle: 4,
		},
		{
			Session: domain.TrainingSession{ID: primitive.NewObjectID(), ScheduledDate: day(2026, 1, 5), WorkoutType: domain.WorkoutEasy, Title: "Easy run", Skipped: true, Description: strings.Repeat("relaxed pace ", 10)},
			Phase:   domain.PhaseUnknown,
		},
	}

	out := string(RenderICS(plan, views, now))
	for _, want := range []string{
		"BEGIN:VCALENDAR\r\n",
		"X-WR-CALNAME:Spring\\, Half\\; v2\r\n",
		"DTSTART;VALUE=DATE:20260104\r\n",
		"DTEND;VALUE=DATE:20260105\r\n",
		"SUMMARY:Long run 14.0 km\r\n",
		"STATUS:CONFIRMED\r\n",
		"STATUS:CANCELLED\r\n",
		"DTSTAMP:20260101T080000Z\r\n",
		"END:VCALENDAR\r\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("calendar missing %q", want)
		}
	}
	if n := strings.Count(out, "BEGIN:VEVENT"); n != 2 {
		t.Errorf("%d events, want 2", n)
	}
	for _, l := range strings.Split(out, "\r\n") {
		if len(l) > 75 {
			t.Errorf("line longer than 75 octets: %q", l)
		}
	}
}

func TestFoldICS(t *testing.T) {
	long := strings.Repeat("é", 60) // 120 octets
	parts := strings.Split(foldICS(long), "\r\n ")
	if len(parts) < 2 {
		t.Fatalf("not folded: %q", parts)
	}
	if strings.Join(parts, "") != long {
		t.Error("folding changed the content")
	}
	for i, p := range parts {
		if !utf8.ValidString(p) {
			t.Errorf("segment %d splits a rune: %q", i, p)
		}
		if limit := 75 - min(i, 1); len(p) > limit {
			t.Errorf("segment %d is %d octets, limit %d", i, len(p), limit)
		}
	}
}

func TestExportPlan(t *testing.T) {
	f := newFixture(t)
	agg := f.activePlan(t, f.cycleRunner(t))
	store := storage.NewMemoryStorage()
	svc := NewCalendarService(logger.NewNop(), f.clock, f.reads, f.store.Plans(), store)
	ctx := context.Background()

	export, err := svc.ExportPlan(ctx, agg.Plan.RunnerID, agg.Plan.ID)
	if err != nil {
		t.Fatal(err)
	}
	if export.Sessions != len(agg.Sessions) || !strings.HasPrefix(export.URL, "memory:") {
		t.Errorf("export = %+v", export)
	}
	prefix := "calendars/" + agg.Plan.RunnerID.Hex() + "/" + agg.Plan.ID.Hex() + "/"
	if !strings.HasPrefix(export.ObjectKey, prefix) || !strings.HasSuffix(export.ObjectKey, ".ics") {
		t.Errorf("key = %q", export.ObjectKey)
	}
	obj, ok := store.Get(export.ObjectKey)
	if !ok || !strings.HasPrefix(obj.ContentType, "text/calendar") {
		t.Fatalf("stored object = %+v, %v", obj, ok)
	}
	if n := strings.Count(string(obj.Body), "BEGIN:VEVENT"); n != len(agg.Sessions) {
		t.Errorf("%d events uploaded, want %d", n, len(agg.Sessions))
	}

	if _, err := svc.ExportPlan(ctx, primitive.NewObjectID(), agg.Plan.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("stranger err = %v, want ErrNotFound", err)
	}
}
