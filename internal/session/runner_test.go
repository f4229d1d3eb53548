package session

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"bugbot/internal/types"
)

// scriptedConversation terminates after a fixed number of turns.
type scriptedConversation struct {
	turnsToLive int
	turns       []string
	trace       []types.ConversationTurn
}

func (c *scriptedConversation) RecordGreeting(greeting string) {
	c.trace = append(c.trace, types.MessageTurn(types.RoleAssistant, greeting))
}

func (c *scriptedConversation) HandleUserTurn(ctx context.Context, userText string) (string, error) {
	c.turns = append(c.turns, userText)
	c.trace = append(c.trace, types.MessageTurn(types.RoleUser, userText))
	reply := "noted"
	c.trace = append(c.trace, types.MessageTurn(types.RoleAssistant, reply))
	return reply, nil
}

func (c *scriptedConversation) Terminated() bool {
	return len(c.turns) >= c.turnsToLive
}

func (c *scriptedConversation) Trace() []types.ConversationTurn { return c.trace }

func (c *scriptedConversation) Output() types.SessionOutput {
	return types.SessionOutput{
		Success: true,
		Reports: []types.BugReport{{BugID: 7, ProgressNote: "note", Status: types.StatusResolved, Solved: true}},
	}
}

func TestRunPersistsArtifacts(t *testing.T) {
	dir := t.TempDir()
	conv := &scriptedConversation{turnsToLive: 2}
	in := strings.NewReader("hello\nbug 7 is done\n")
	var out bytes.Buffer

	r := NewWithIO(conv, dir, in, &out)
	output, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !output.Success {
		t.Error("expected successful output")
	}
	if len(conv.turns) != 2 {
		t.Fatalf("expected 2 turns handled, got %d", len(conv.turns))
	}

	tracePath := filepath.Join(dir, "traces", "trace_1.json")
	data, err := os.ReadFile(tracePath)
	if err != nil {
		t.Fatalf("trace artifact missing: %v", err)
	}
	var trace []types.ConversationTurn
	if err := json.Unmarshal(data, &trace); err != nil {
		t.Fatalf("trace artifact not valid JSON: %v", err)
	}
	if len(trace) == 0 || trace[0].Role != types.RoleAssistant {
		t.Errorf("trace should open with the greeting, got %+v", trace)
	}

	outputPath := filepath.Join(dir, "outputs", "output_1.json")
	data, err = os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("output artifact missing: %v", err)
	}
	var persisted types.SessionOutput
	if err := json.Unmarshal(data, &persisted); err != nil {
		t.Fatalf("output artifact not valid JSON: %v", err)
	}
	if len(persisted.Reports) != 1 || persisted.Reports[0].BugID != 7 {
		t.Errorf("unexpected persisted output: %+v", persisted)
	}
}

func TestRunNumbersArtifactsSequentially(t *testing.T) {
	dir := t.TempDir()

	for i := 0; i < 3; i++ {
		conv := &scriptedConversation{turnsToLive: 1}
		r := NewWithIO(conv, dir, strings.NewReader("hi\n"), &bytes.Buffer{})
		if _, err := r.Run(context.Background()); err != nil {
			t.Fatalf("run %d failed: %v", i, err)
		}
	}

	for i := 1; i <= 3; i++ {
		tracePath := filepath.Join(dir, "traces", "trace_"+strconv.Itoa(i)+".json")
		if _, err := os.Stat(tracePath); err != nil {
			t.Errorf("expected %s to exist: %v", tracePath, err)
		}
	}
}

func TestQuitEndsSessionEarly(t *testing.T) {
	dir := t.TempDir()
	conv := &scriptedConversation{turnsToLive: 100}
	in := strings.NewReader("hello\nquit\nnever seen\n")
	var out bytes.Buffer

	r := NewWithIO(conv, dir, in, &out)
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(conv.turns) != 1 {
		t.Errorf("quit should stop the loop after 1 turn, got %d", len(conv.turns))
	}
	if _, err := os.Stat(filepath.Join(dir, "outputs", "output_1.json")); err != nil {
		t.Error("quit must still persist the output artifact")
	}
}

func TestEOFEndsSession(t *testing.T) {
	dir := t.TempDir()
	conv := &scriptedConversation{turnsToLive: 100}
	r := NewWithIO(conv, dir, strings.NewReader(""), &bytes.Buffer{})

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(conv.turns) != 0 {
		t.Errorf("expected no turns on immediate EOF, got %d", len(conv.turns))
	}
}
