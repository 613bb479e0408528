package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"alcyxob/stride-planner/internal/clock"

	"github.com/spf13/cobra"
)

// executeCommand runs a cobra command with args and returns captured output
func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

var testToday = time.Date(2026, 1, 3, 21, 30, 0, 0, time.UTC)

func newTestRoot() *cobra.Command {
	return NewRootCmd(clock.NewFixed(testToday))
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := newTestRoot()
	want := map[string]bool{"phase": false, "stage": false, "archive": false, "complete": false, "sweep": false, "token": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestPhaseCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "menstrual",
			args: []string{"phase", "--anchor", "2026-01-01", "--length", "28", "--date", "2026-01-03"},
			want: []string{"2026-01-03: menstrual, day 3 of 28", "menstruation day 3", "next period starts 2026-01-29"},
		},
		{
			name: "luteal",
			args: []string{"phase", "--anchor", "2026-01-01", "--length", "28", "--date", "2026-01-25"},
			want: []string{"luteal, day 25 of 28"},
		},
		{
			name: "before anchor wraps",
			args: []string{"phase", "--anchor", "2026-01-29", "--length", "28", "--date", "2026-01-25"},
			want: []string{"day 25 of 28"},
		},
		{
			name: "not tracked",
			args: []string{"phase", "--anchor", "2026-01-01", "--date", "2026-01-03", "--regularity", "do_not_track"},
			want: []string{"phase unknown"},
		},
		{
			name: "length out of range",
			args: []string{"phase", "--anchor", "2026-01-01", "--length", "12", "--date", "2026-01-03"},
			want: []string{"phase unknown"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := executeCommand(newTestRoot(), tt.args...)
			if err != nil {
				t.Fatalf("execute: %v\n%s", err, out)
			}
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output %q missing %q", out, w)
				}
			}
		})
	}
}

func TestPhaseCommand_BadAnchor(t *testing.T) {
	if _, err := executeCommand(newTestRoot(), "phase", "--anchor", "01/01/2026"); err == nil {
		t.Fatal("expected error for malformed anchor")
	}
}

func TestStageCommand(t *testing.T) {
	tests := []struct {
		date string
		want string
	}{
		{"2026-01-01", "base (0.0% through)"},
		{"2026-01-26", "build"},
		{"2026-03-02", "peak"},
		{"2026-04-10", "taper (100.0% through)"},
		{"2026-05-01", "outside the plan window"},
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			out, err := executeCommand(newTestRoot(), "stage", "--start", "2026-01-01", "--end", "2026-04-10", "--date", tt.date)
			if err != nil {
				t.Fatalf("execute: %v", err)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("output %q, want it to contain %q", out, tt.want)
			}
		})
	}
}

func TestArchiveCommand_RejectsBadID(t *testing.T) {
	if _, err := executeCommand(newTestRoot(), "archive", "not-a-hex-id"); err == nil || !strings.Contains(err.Error(), "invalid plan id") {
		t.Fatalf("err = %v, want invalid plan id", err)
	}
}

func TestDateDefaultsToClockDay(t *testing.T) {
	out, err := executeCommand(newTestRoot(), "phase", "--anchor", "2026-01-01", "--length", "28")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "2026-01-03: menstrual, day 3 of 28") {
		t.Errorf("output %q, want the fixed clock's day", out)
	}

	out, err = executeCommand(newTestRoot(), "stage", "--start", "2026-01-01", "--end", "2026-04-10")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.HasPrefix(out, "2026-01-03: base") {
		t.Errorf("output %q, want the fixed clock's day", out)
	}
}
