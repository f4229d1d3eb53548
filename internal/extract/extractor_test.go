package extract

import (
	"context"
	"errors"
	"testing"

	"bugbot/internal/types"
)

type stubCompleter struct {
	response string
	err      error
}

func (s *stubCompleter) CompleteCapped(ctx context.Context, system, user string, maxTokens int) (string, error) {
	return s.response, s.err
}

func intPtr(v int) *int                            { return &v }
func strPtr(v string) *string                      { return &v }
func boolPtr(v bool) *bool                         { return &v }
func statusPtr(s types.BugStatus) *types.BugStatus { return &s }

func TestParseExtractionFullRecord(t *testing.T) {
	info := ParseExtraction(`{"developer_id": 3, "bug_id": 101, "progress_note": "fixed the race", "status": "Testing", "solved": false}`)
	if info == nil {
		t.Fatal("expected parse to succeed")
	}
	if info.DeveloperID == nil || *info.DeveloperID != 3 {
		t.Errorf("developer_id = %v, want 3", info.DeveloperID)
	}
	if info.BugID == nil || *info.BugID != 101 {
		t.Errorf("bug_id = %v, want 101", info.BugID)
	}
	if info.ProgressNote == nil || *info.ProgressNote != "fixed the race" {
		t.Errorf("progress_note = %v", info.ProgressNote)
	}
	if info.Status == nil || *info.Status != types.StatusTesting {
		t.Errorf("status = %v, want Testing", info.Status)
	}
	if info.Solved == nil || *info.Solved {
		t.Errorf("solved = %v, want false", info.Solved)
	}
}

func TestParseExtractionPartial(t *testing.T) {
	info := ParseExtraction(`{"developer_id": null, "bug_id": 7, "progress_note": null, "status": null, "solved": null}`)
	if info == nil {
		t.Fatal("expected parse to succeed")
	}
	if info.BugID == nil || *info.BugID != 7 {
		t.Errorf("bug_id = %v, want 7", info.BugID)
	}
	if info.DeveloperID != nil || info.ProgressNote != nil || info.Status != nil || info.Solved != nil {
		t.Error("expected all other fields nil")
	}
}

func TestParseExtractionFencedJSON(t *testing.T) {
	resp := "Here is the extraction:\n```json\n{\"bug_id\": 42}\n```"
	info := ParseExtraction(resp)
	if info == nil || info.BugID == nil || *info.BugID != 42 {
		t.Fatalf("expected bug_id 42, got %+v", info)
	}
}

func TestParseExtractionRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"invalid status":   `{"status": "Done"}`,
		"negative dev id":  `{"developer_id": -1}`,
		"zero bug id":      `{"bug_id": 0}`,
		"fractional id":    `{"bug_id": 1.5}`,
		"no json at all":   `sorry, I could not extract anything`,
		"truncated object": `{"bug_id": 7`,
	}
	for name, resp := range cases {
		if got := ParseExtraction(resp); got != nil {
			t.Errorf("%s: expected nil, got %+v", name, got)
		}
	}
}

func TestParseExtractionStatusCaseInsensitive(t *testing.T) {
	info := ParseExtraction(`{"status": "in progress"}`)
	if info == nil || info.Status == nil || *info.Status != types.StatusInProgress {
		t.Fatalf("expected In Progress, got %+v", info)
	}
}

func TestExtractNilOnServiceFailure(t *testing.T) {
	engine := NewEngine(&stubCompleter{err: errors.New("service unavailable")}, PolicyClarify)
	if got := engine.Extract(context.Background(), nil); got != nil {
		t.Errorf("expected nil on service failure, got %+v", got)
	}
}

func TestExtractNilOnMalformedResponse(t *testing.T) {
	engine := NewEngine(&stubCompleter{response: "not json"}, PolicyClarify)
	if got := engine.Extract(context.Background(), nil); got != nil {
		t.Errorf("expected nil on malformed response, got %+v", got)
	}
}

func TestExtractAppliesPolicy(t *testing.T) {
	engine := NewEngine(&stubCompleter{response: `{"status": "Open", "solved": true}`}, PolicyClarify)
	info := engine.Extract(context.Background(), []types.ConversationTurn{
		types.MessageTurn(types.RoleUser, "bug 5 is open but I solved it"),
	})
	if info == nil {
		t.Fatal("expected extraction to succeed")
	}
	if info.Status != nil || info.Solved != nil {
		t.Errorf("clarify policy should drop both fields, got status=%v solved=%v", info.Status, info.Solved)
	}
}

func TestMergeIntoWriteOnce(t *testing.T) {
	pending := &ExtractedInfo{
		DeveloperID:  intPtr(1),
		ProgressNote: strPtr("original note"),
	}
	update := &ExtractedInfo{
		DeveloperID:  intPtr(9),
		BugID:        intPtr(4),
		ProgressNote: strPtr("replacement note"),
	}
	update.MergeInto(pending)

	if *pending.DeveloperID != 1 {
		t.Errorf("developer_id overwritten: got %d", *pending.DeveloperID)
	}
	if *pending.ProgressNote != "original note" {
		t.Errorf("progress_note overwritten: got %q", *pending.ProgressNote)
	}
	if pending.BugID == nil || *pending.BugID != 4 {
		t.Errorf("bug_id not filled in: got %v", pending.BugID)
	}
}

func TestMergeIntoLastWriteWins(t *testing.T) {
	pending := &ExtractedInfo{
		Status: statusPtr(types.StatusOpen),
		Solved: boolPtr(false),
	}
	update := &ExtractedInfo{
		Status: statusPtr(types.StatusResolved),
		Solved: boolPtr(true),
	}
	update.MergeInto(pending)

	if *pending.Status != types.StatusResolved {
		t.Errorf("status = %v, want Resolved", *pending.Status)
	}
	if !*pending.Solved {
		t.Error("solved = false, want true")
	}
}

func TestPolicyOffKeepsContradiction(t *testing.T) {
	info := &ExtractedInfo{Status: statusPtr(types.StatusOpen), Solved: boolPtr(true)}
	PolicyOff.Apply(info)
	if info.Status == nil || *info.Status != types.StatusOpen || info.Solved == nil || !*info.Solved {
		t.Errorf("off policy mutated fields: %+v", info)
	}
}

func TestPolicyForceUnsolved(t *testing.T) {
	info := &ExtractedInfo{Status: statusPtr(types.StatusTesting), Solved: boolPtr(true)}
	PolicyForceUnsolved.Apply(info)
	if *info.Solved {
		t.Error("expected solved forced to false")
	}
	if *info.Status != types.StatusTesting {
		t.Errorf("status should be untouched, got %v", *info.Status)
	}
}

func TestPolicyUpgradeStatus(t *testing.T) {
	info := &ExtractedInfo{Status: statusPtr(types.StatusInProgress), Solved: boolPtr(true)}
	PolicyUpgradeStatus.Apply(info)
	if *info.Status != types.StatusResolved {
		t.Errorf("status = %v, want Resolved", *info.Status)
	}
	if !*info.Solved {
		t.Error("solved should be untouched")
	}
}

func TestPolicyIgnoresConsistentRecords(t *testing.T) {
	info := &ExtractedInfo{Status: statusPtr(types.StatusResolved), Solved: boolPtr(true)}
	PolicyClarify.Apply(info)
	if info.Status == nil || info.Solved == nil {
		t.Error("consistent record should pass through untouched")
	}

	info = &ExtractedInfo{Status: statusPtr(types.StatusOpen), Solved: boolPtr(false)}
	PolicyClarify.Apply(info)
	if info.Status == nil || info.Solved == nil {
		t.Error("solved=false never conflicts")
	}
}

func TestParsePolicyRoundTrip(t *testing.T) {
	for _, p := range []ConsistencyPolicy{PolicyOff, PolicyForceUnsolved, PolicyUpgradeStatus, PolicyClarify} {
		if got := ParsePolicy(p.String()); got != p {
			t.Errorf("ParsePolicy(%q) = %v, want %v", p.String(), got, p)
		}
	}
	if got := ParsePolicy("bogus"); got != PolicyClarify {
		t.Errorf("unknown policy should default to clarify, got %v", got)
	}
}
