package generator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"alcyxob/stride-planner/internal/domain"
	"alcyxob/stride-planner/internal/logger"
)

func TestHTTPClient_GenerateSessions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/sessions:generate" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Race == nil || req.Race.Name != "City 10K" {
			t.Errorf("race = %+v", req.Race)
		}
		_ = json.NewEncoder(w).Encode(generateResponse{Sessions: []SessionDraft{
			{ScheduledDate: date(2026, 3, 1), WorkoutType: domain.WorkoutEasy, TargetDistanceKm: 5, TargetIntensity: 3},
		}})
	}))
	defer srv.Close()

	c := NewHTTPClient(logger.NewNop(), srv.URL+"/", time.Second)
	drafts, err := c.GenerateSessions(context.Background(), nil, &domain.Race{Name: "City 10K"}, PlanWindow{})
	if err != nil {
		t.Fatal(err)
	}
	if len(drafts) != 1 || drafts[0].TargetDistanceKm != 5 {
		t.Errorf("drafts = %+v", drafts)
	}
}

func TestHTTPClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewHTTPClient(logger.NewNop(), srv.URL, time.Second)
	if _, err := c.AdaptSessions(context.Background(), &domain.TrainingPlan{}, nil, Trigger{}); err == nil {
		t.Fatal("expected error on 503")
	}
}
