package logger

import "testing"

func TestSanitizeKVs(t *testing.T) {
	got := sanitizeKVs([]interface{}{"plan_id", "abc", "jwt_token", "xyz", "job_token", "j-1", "dangling"})
	want := []interface{}{"plan_id", "abc", "jwt_token", "[REDACTED]", "job_token", "j-1", "dangling"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("kv[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestNewNop(t *testing.T) {
	l := NewNop().With("component", "test")
	l.Info("hello", "secret", "s")
}
