package ui

import (
	"errors"
	"strings"
	"testing"

	"github.com/talekeeper/storysync/internal/remote"
)

func TestRenderStatus_KeepsText(t *testing.T) {
	tests := []struct {
		st   remote.Status
		want string
	}{
		{remote.Available, "available"},
		{remote.Unavailable, "unavailable"},
		{remote.Status{State: remote.StateNoAccount}, "noAccount"},
		{remote.ErrorStatus(errors.New("boom")), "error(boom)"},
	}
	for _, tt := range tests {
		if got := RenderStatus(tt.st); !strings.Contains(got, tt.want) {
			t.Errorf("RenderStatus(%v) = %q, want it to contain %q", tt.st, got, tt.want)
		}
	}
}

func TestRenderTable(t *testing.T) {
	out := RenderTable([][]string{
		{"ID", "TITLE"},
		{"a", "The Brave Fox"},
		{"long-id", "Moon"},
	})
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), out)
	}
	// Second column starts at the same offset on every row.
	col := strings.Index(lines[1], "The Brave Fox")
	if col != strings.Index(lines[2], "Moon") {
		t.Errorf("columns not aligned:\n%s", out)
	}
	if RenderTable(nil) != "" {
		t.Error("empty table should render empty")
	}
}
