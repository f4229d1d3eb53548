// Package prompts centralizes every instruction sent to the
// understanding service, so conversation behavior can be tuned in one
// place without touching the dialogue core.
package prompts

import (
	"fmt"
	"strings"

	"bugbot/internal/types"
)

// System is the main conversation prompt. It deliberately excludes the
// bug database; the model must fetch data through tools.
const System = `You are a bug reporting assistant for a software development team. Your role is to have a natural conversation with developers to gather bug progress updates.

CONVERSATION FLOW:
1. Start by asking the developer's name
2. Use the verify_developer tool to confirm the name
3. If the tool reports a partial match, show the suggestion and wait for the user's yes/no confirmation before proceeding
4. If the tool reports no match or an ambiguous match, show the valid or candidate names and ask again
5. Immediately after the developer is confirmed, fetch their bugs with get_bugs_for_developer
6. Display every bug clearly (ID, description, status, solved) and ask which ONE bug they want to report on - accept a bug ID, a description, or a keyword
7. Confirm their selection, then ask three things, one at a time:
   - What work have you done on this bug?
   - What is the current status? (Open, In Progress, Testing, Resolved, Closed)
   - Is the bug now solved? (Yes/No)
8. After all three, ask: "Is there anything else that needs updating?"
9. If yes, repeat from bug selection for another bug
10. If the user says no or indicates they are done, end naturally

GUIDELINES:
- Be concise and professional; ask one question at a time
- Do NOT try to help solve the bug - you are only gathering reports
- Do NOT assume which bug they want; always ask explicitly
- Be skeptical of vague responses and ask for clarification
- If the user mentions a bug that is not in their list, remind them of their assigned bugs
- Keep responses natural and conversational`

// ExtractionSystem frames the cheap per-turn extraction pass.
const ExtractionSystem = `You extract structured bug-report fields from a conversation. Return ONLY a single JSON object, no other text.`

// Extraction builds the per-turn structured-extraction prompt over the
// supplied transcript. The rules draw hard semantic boundaries: work
// text, status text, and the solved flag must never bleed into each
// other.
func Extraction(transcript string) string {
	return fmt.Sprintf(`From this conversation, extract what the developer reported.

Conversation:
%s

Return ONLY valid JSON (no other text):
{
  "developer_id": <integer developer ID if the assistant confirmed one, or null>,
  "bug_id": <integer bug ID the user selected and the assistant confirmed, or null>,
  "progress_note": "<the user's exact words describing work performed, or null>",
  "status": "<one of: Open, In Progress, Testing, Resolved, Closed, or null>",
  "solved": <true/false/null>
}

Rules:
- progress_note: ONLY the user's own words answering "what work have you done". Never include status words or yes/no answers. null if not mentioned.
- status: ONLY a status the user actually stated. Never infer it from the work description. null if not answered.
- solved: true if the user said yes/solved/fixed/working, false if no/not solved, null if not answered.
- bug_id: null until the user has clearly selected one bug.
- Never guess. A missing answer is null.`, transcript)
}

// EndDetection builds the termination-intent prompt over the most recent
// exchange.
func EndDetection(recentText string) string {
	return fmt.Sprintf(`Recent conversation:
%s

Return ONLY JSON matching this schema:
{
  "should_end": true,
  "reason": "brief explanation"
}

Determine if the bug reporting session should END:
- should_end: true only if the user clearly indicated they are done (said "no" to "anything else", "done", "that's it", "nothing more", etc.)
- should_end: false if the user wants to continue or has not clearly indicated ending`, recentText)
}

// Tool names exposed to the model.
const (
	ToolVerifyDeveloper     = "verify_developer"
	ToolGetBugsForDeveloper = "get_bugs_for_developer"
)

// Tools returns the callable-tool schema advertised to the model.
func Tools() []types.ToolDefinition {
	return []types.ToolDefinition{
		{
			Name:        ToolVerifyDeveloper,
			Description: "Verify that a developer exists in the system and get their ID. Use this first to confirm the developer before getting their bugs.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name": map[string]any{
						"type":        "string",
						"description": "The developer's name",
					},
				},
				"required": []string{"name"},
			},
		},
		{
			Name:        ToolGetBugsForDeveloper,
			Description: "Fetch all bugs assigned to a developer. Use this after verifying the developer exists.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"developer_id": map[string]any{
						"type":        "integer",
						"description": "The developer's ID",
					},
				},
				"required": []string{"developer_id"},
			},
		},
	}
}

// Greeting is the opening assistant message for every session.
const Greeting = "Hi! Welcome to the bug reporting system. I'm here to help you report progress on bugs you've been working on. What's your name?"

// RenderTranscript flattens conversation turns into the plain-text form
// embedded in extraction and end-detection prompts.
func RenderTranscript(turns []types.ConversationTurn) string {
	var b strings.Builder
	for _, turn := range turns {
		if turn.Type != "message" {
			continue
		}
		switch turn.Role {
		case types.RoleUser:
			b.WriteString("User: ")
		case types.RoleAssistant:
			b.WriteString("Assistant: ")
		default:
			continue
		}
		b.WriteString(turn.Content)
		b.WriteString("\n")
	}
	return b.String()
}
