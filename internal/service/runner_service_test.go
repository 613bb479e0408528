package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"alcyxob/stride-planner/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestUpdateCycleProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	past, future := day(2025, 12, 10), day(2026, 2, 1)

	tests := []struct {
		name    string
		profile CycleProfile
		wantErr bool
		aware   bool
	}{
		{"regular", CycleProfile{Anchor: &past, Length: intPtr(30)}, false, true},
		{"irregular", CycleProfile{Anchor: &past, Length: intPtr(26), Regularity: domain.RegularityIrregular}, false, true},
		{"do not track clears values", CycleProfile{Anchor: &past, Length: intPtr(28), Regularity: domain.RegularityDoNotTrack}, false, false},
		{"anchor only", CycleProfile{Anchor: &past}, false, false},
		{"too short", CycleProfile{Anchor: &past, Length: intPtr(15)}, true, false},
		{"too long", CycleProfile{Anchor: &past, Length: intPtr(60)}, true, false},
		{"future anchor", CycleProfile{Anchor: &future, Length: intPtr(28)}, true, false},
		{"unknown regularity", CycleProfile{Regularity: "sometimes"}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runnerID := primitive.NewObjectID()
			runner, err := f.runners.UpdateCycleProfile(ctx, runnerID, tt.profile)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Errorf("err = %v, want ErrValidation", err)
				}
				if _, gerr := f.runners.GetRunner(ctx, runnerID); !errors.Is(gerr, ErrNotFound) {
					t.Errorf("rejected profile was stored: %v", gerr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if runner.CycleAware() != tt.aware {
				t.Errorf("CycleAware() = %v, want %v", runner.CycleAware(), tt.aware)
			}
			stored, err := f.runners.GetRunner(ctx, runnerID)
			if err != nil {
				t.Fatal(err)
			}
			if stored.CycleAware() != tt.aware {
				t.Errorf("stored CycleAware() = %v, want %v", stored.CycleAware(), tt.aware)
			}
			if tt.profile.Regularity == domain.RegularityDoNotTrack && (stored.CycleAnchor != nil || stored.CycleLength != nil) {
				t.Errorf("do_not_track kept %v / %v", stored.CycleAnchor, stored.CycleLength)
			}
		})
	}
}

func TestUpdateCycleProfile_UpdatesExisting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	runnerID := f.cycleRunner(t)

	if _, err := f.runners.UpdateCycleProfile(ctx, runnerID, CycleProfile{Regularity: domain.RegularityDoNotTrack}); err != nil {
		t.Fatal(err)
	}
	stored, _ := f.runners.GetRunner(ctx, runnerID)
	if stored.CycleAware() || stored.Regularity != domain.RegularityDoNotTrack {
		t.Errorf("runner = %+v, want tracking off", stored)
	}
}

func TestRegisterRace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	runnerID := primitive.NewObjectID()
	goal := 105 * time.Minute
	negative := -time.Minute

	race, err := f.runners.RegisterRace(ctx, runnerID, RaceInput{Name: "  City 10k ", Date: time.Date(2026, 5, 3, 9, 30, 0, 0, time.UTC), DistanceKm: 10, GoalTime: &goal})
	if err != nil {
		t.Fatal(err)
	}
	if race.Name != "City 10k" || !race.Date.Equal(day(2026, 5, 3)) || race.RunnerID != runnerID {
		t.Errorf("race = %+v", race)
	}

	bad := []RaceInput{
		{Name: "", Date: day(2026, 5, 3), DistanceKm: 10},
		{Name: "No date", DistanceKm: 10},
		{Name: "No distance", Date: day(2026, 5, 3)},
		{Name: "Negative goal", Date: day(2026, 5, 3), DistanceKm: 10, GoalTime: &negative},
	}
	for _, in := range bad {
		if _, err := f.runners.RegisterRace(ctx, runnerID, in); !errors.Is(err, ErrValidation) {
			t.Errorf("%q: err = %v, want ErrValidation", in.Name, err)
		}
	}
}

func TestRecordRaceResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	runnerID := primitive.NewObjectID()
	race := f.race(t, runnerID, day(2026, 3, 1))

	if _, err := f.runners.RecordRaceResult(ctx, runnerID, race.ID, 100*time.Minute, ""); !errors.Is(err, ErrRaceNotFinished) {
		t.Errorf("before race err = %v, want ErrRaceNotFinished", err)
	}

	f.clock.Set(time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC))
	if _, err := f.runners.RecordRaceResult(ctx, primitive.NewObjectID(), race.ID, 100*time.Minute, ""); !errors.Is(err, ErrValidation) {
		t.Errorf("stranger err = %v, want ErrValidation", err)
	}
	if _, err := f.runners.RecordRaceResult(ctx, runnerID, race.ID, 0, ""); !errors.Is(err, ErrValidation) {
		t.Errorf("zero finish err = %v, want ErrValidation", err)
	}
	got, err := f.runners.RecordRaceResult(ctx, runnerID, race.ID, 98*time.Minute, "negative split")
	if err != nil {
		t.Fatal(err)
	}
	stored, _ := f.store.Races().GetByID(ctx, race.ID)
	if got.Result == nil || stored.Result == nil || stored.Result.FinishTime != 98*time.Minute {
		t.Errorf("result = %+v, stored %+v", got.Result, stored.Result)
	}
}
