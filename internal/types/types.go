// Package types holds the shared data model for the bug reporting bot:
// developers, bugs, reports, and conversation turns. Kept free of
// dependencies on other internal packages so every layer can import it.
package types

import (
	"fmt"
	"strings"
	"time"
)

// Developer is a roster entry. Immutable for the lifetime of a session.
type Developer struct {
	ID   int    `json:"developer_id"`
	Name string `json:"name"`
}

// BugStatus is the five-value bug lifecycle status.
type BugStatus string

const (
	StatusOpen       BugStatus = "Open"
	StatusInProgress BugStatus = "In Progress"
	StatusTesting    BugStatus = "Testing"
	StatusResolved   BugStatus = "Resolved"
	StatusClosed     BugStatus = "Closed"
)

// ValidStatuses lists every accepted status, in lifecycle order.
var ValidStatuses = []BugStatus{
	StatusOpen,
	StatusInProgress,
	StatusTesting,
	StatusResolved,
	StatusClosed,
}

// Valid reports whether s is one of the five accepted statuses.
func (s BugStatus) Valid() bool {
	for _, v := range ValidStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Unresolved reports whether the status implies work is still pending.
// An unresolved status combined with solved=true is a contradiction the
// extraction layer must repair or clarify.
func (s BugStatus) Unresolved() bool {
	return s == StatusOpen || s == StatusInProgress || s == StatusTesting
}

// ParseStatus normalizes a raw status string against the enum.
// Matching is case-insensitive and whitespace-tolerant; anything outside
// the five accepted values is an error.
func ParseStatus(raw string) (BugStatus, error) {
	trimmed := strings.TrimSpace(raw)
	for _, v := range ValidStatuses {
		if strings.EqualFold(trimmed, string(v)) {
			return v, nil
		}
	}
	return "", fmt.Errorf("invalid bug status %q", raw)
}

// Bug is a tracked defect assigned to a developer. ProgressNotes is an
// append-only log; mutations happen only through Store.AppendProgress.
type Bug struct {
	ID            int       `json:"bug_id"`
	AssignedDev   int       `json:"assigned_dev"`
	Description   string    `json:"description"`
	Status        BugStatus `json:"status"`
	Solved        bool      `json:"solved"`
	ProgressNotes string    `json:"progress_notes"`
}

// BugReport is the committed output unit for one bug discussed during a
// session. Immutable once appended to the session's completed reports.
type BugReport struct {
	BugID        int       `json:"bug_id"`
	ProgressNote string    `json:"progress_note"`
	Status       BugStatus `json:"status"`
	Solved       bool      `json:"solved"`
}

// TimestampNote prefixes a progress note with the commit time, matching
// the "2006-01-02 15:04:05 - note" format stored in progress logs.
func TimestampNote(note string, at time.Time) string {
	return at.Format("2006-01-02 15:04:05") + " - " + note
}

// SessionOutput is the final structured result persisted at session end.
type SessionOutput struct {
	Success       bool        `json:"success"`
	Reports       []BugReport `json:"reports"`
	MissingFields []string    `json:"missing_fields,omitempty"`
	Diagnostic    string      `json:"diagnostic,omitempty"`
}

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ConversationTurn is one entry in the session's ordered audit trail.
// Message turns carry Role/Content; tool invocations carry
// Type="tool_call" plus Tool/Input so the trace captures every side
// effect the model requested.
type ConversationTurn struct {
	Type    string         `json:"type"` // "message" or "tool_call"
	Role    string         `json:"role,omitempty"`
	Content string         `json:"content,omitempty"`
	Tool    string         `json:"tool,omitempty"`
	Input   map[string]any `json:"input,omitempty"`
}

// MessageTurn builds a plain message trace entry.
func MessageTurn(role, content string) ConversationTurn {
	return ConversationTurn{Type: "message", Role: role, Content: content}
}

// ToolCallTurn builds a tool-invocation trace entry.
func ToolCallTurn(tool string, input map[string]any) ConversationTurn {
	return ConversationTurn{Type: "tool_call", Tool: tool, Input: input}
}
