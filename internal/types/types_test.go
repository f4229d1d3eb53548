package types

import (
	"testing"
	"time"
)

func TestParseStatus(t *testing.T) {
	cases := map[string]BugStatus{
		"Open":        StatusOpen,
		"open":        StatusOpen,
		"IN PROGRESS": StatusInProgress,
		"in progress": StatusInProgress,
		" Testing ":   StatusTesting,
		"resolved":    StatusResolved,
		"Closed":      StatusClosed,
	}
	for raw, want := range cases {
		got, err := ParseStatus(raw)
		if err != nil {
			t.Errorf("ParseStatus(%q) unexpected error: %v", raw, err)
			continue
		}
		if got != want {
			t.Errorf("ParseStatus(%q) = %v, want %v", raw, got, want)
		}
	}

	for _, bad := range []string{"", "Done", "WontFix", "in-progress"} {
		if _, err := ParseStatus(bad); err == nil {
			t.Errorf("ParseStatus(%q) should fail", bad)
		}
	}
}

func TestUnresolved(t *testing.T) {
	for _, s := range []BugStatus{StatusOpen, StatusInProgress, StatusTesting} {
		if !s.Unresolved() {
			t.Errorf("%v should be unresolved", s)
		}
	}
	for _, s := range []BugStatus{StatusResolved, StatusClosed} {
		if s.Unresolved() {
			t.Errorf("%v should not be unresolved", s)
		}
	}
}

func TestTimestampNote(t *testing.T) {
	at := time.Date(2025, 6, 1, 14, 30, 5, 0, time.UTC)
	got := TimestampNote("fixed the race", at)
	want := "2025-06-01 14:30:05 - fixed the race"
	if got != want {
		t.Errorf("TimestampNote = %q, want %q", got, want)
	}
}

func TestTurnConstructors(t *testing.T) {
	msg := MessageTurn(RoleUser, "hello")
	if msg.Type != "message" || msg.Role != RoleUser || msg.Content != "hello" {
		t.Errorf("unexpected message turn: %+v", msg)
	}

	call := ToolCallTurn("verify_developer", map[string]any{"name": "Alice"})
	if call.Type != "tool_call" || call.Tool != "verify_developer" {
		t.Errorf("unexpected tool call turn: %+v", call)
	}
}
