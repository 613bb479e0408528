package jobqueue

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryQueue_EnqueueClaimStatus(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()

	if s, err := q.GetStatus(ctx, "missing"); err != nil || s != StateUnknown {
		t.Fatalf("GetStatus(missing) = %s, %v; want unknown, nil", s, err)
	}
	if err := q.Enqueue(ctx, Job{Kind: KindAdaptPlan}); err == nil {
		t.Error("Enqueue without token succeeded")
	}

	for _, tok := range []string{"a", "b"} {
		if err := q.Enqueue(ctx, Job{Token: tok, Kind: KindAdaptPlan, PlanID: "p"}); err != nil {
			t.Fatal(err)
		}
	}
	if s, _ := q.GetStatus(ctx, "a"); s != StateQueued {
		t.Errorf("status after enqueue = %s, want queued", s)
	}

	first, err := q.Claim(ctx, time.Second)
	if err != nil || first == nil || first.Token != "a" {
		t.Fatalf("first Claim = %+v, %v; want token a", first, err)
	}
	second, _ := q.Claim(ctx, time.Second)
	if second == nil || second.Token != "b" {
		t.Fatalf("second Claim = %+v, want token b", second)
	}

	if err := q.SetStatus(ctx, "a", StateSucceeded); err != nil {
		t.Fatal(err)
	}
	if s, _ := q.GetStatus(ctx, "a"); s != StateSucceeded || s.InFlight() {
		t.Errorf("status = %s, want succeeded and not in flight", s)
	}
}

func TestMemoryQueue_ClaimTimesOut(t *testing.T) {
	q := NewMemoryQueue()
	job, err := q.Claim(context.Background(), 10*time.Millisecond)
	if job != nil || err != nil {
		t.Fatalf("Claim on empty queue = %+v, %v; want nil, nil", job, err)
	}
}

func TestMemoryQueue_ClaimWakesOnEnqueue(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	done := make(chan *Job, 1)
	go func() {
		job, _ := q.Claim(ctx, 5*time.Second)
		done <- job
	}()
	time.Sleep(10 * time.Millisecond)
	_ = q.Enqueue(ctx, Job{Token: "late", Kind: KindAdaptPlan})

	select {
	case job := <-done:
		if job == nil || job.Token != "late" {
			t.Fatalf("woken Claim = %+v", job)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Claim did not wake up")
	}
}

func TestMemoryQueue_Closed(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	_ = q.Close()
	if err := q.Enqueue(ctx, Job{Token: "x"}); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Enqueue after Close err = %v", err)
	}
	if _, err := q.Claim(ctx, time.Millisecond); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Claim after Close err = %v", err)
	}
}

func TestState_InFlight(t *testing.T) {
	tests := []struct {
		s    State
		want bool
	}{
		{StateQueued, true},
		{StateRunning, true},
		{StateSucceeded, false},
		{StateFailed, false},
		{StateUnknown, false},
	}
	for _, tt := range tests {
		if got := tt.s.InFlight(); got != tt.want {
			t.Errorf("%s.InFlight() = %v, want %v", tt.s, got, tt.want)
		}
	}
}
