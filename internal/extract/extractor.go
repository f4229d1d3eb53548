// Package extract turns a raw conversation transcript into a candidate
// structured record via a single structured-extraction call per turn.
// Extraction failure is silent: the caller simply retries next turn.
package extract

import (
	"context"
	"encoding/json"
	"strings"

	"bugbot/internal/config"
	"bugbot/internal/llm"
	"bugbot/internal/logging"
	"bugbot/internal/prompts"
	"bugbot/internal/types"
)

// Completer is the minimal slice of the understanding service the engine
// needs. Mirrors types.LLMClient to keep test doubles small.
type Completer interface {
	CompleteCapped(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error)
}

// ExtractedInfo is the validated candidate record produced from one
// extraction pass. Every field is independently optional; nil means the
// conversation has not supplied it yet.
type ExtractedInfo struct {
	DeveloperID  *int             `json:"developer_id"`
	BugID        *int             `json:"bug_id"`
	ProgressNote *string          `json:"progress_note"`
	Status       *types.BugStatus `json:"status"`
	Solved       *bool            `json:"solved"`
}

// Empty reports whether the pass yielded nothing at all.
func (e *ExtractedInfo) Empty() bool {
	return e.DeveloperID == nil && e.BugID == nil && e.ProgressNote == nil &&
		e.Status == nil && e.Solved == nil
}

// rawExtraction is the untrusted wire shape. Fields are loosely typed so
// a sloppy model response (string ids, mixed case status) can still be
// salvaged during validation.
type rawExtraction struct {
	DeveloperID  *json.Number `json:"developer_id"`
	BugID        *json.Number `json:"bug_id"`
	ProgressNote *string      `json:"progress_note"`
	Status       *string      `json:"status"`
	Solved       *bool        `json:"solved"`
}

// Engine performs per-turn structured extraction.
type Engine struct {
	client Completer
	policy ConsistencyPolicy
}

// NewEngine creates an extraction engine with the given consistency
// policy.
func NewEngine(client Completer, policy ConsistencyPolicy) *Engine {
	return &Engine{client: client, policy: policy}
}

// Extract runs one structured-extraction pass over the transcript.
// Returns nil on any service, parse, or validation failure; malformed
// output is discarded, never propagated.
func (e *Engine) Extract(ctx context.Context, transcript []types.ConversationTurn) *ExtractedInfo {
	timer := logging.StartTimer(logging.CategoryExtraction, "Extract")
	defer timer.Stop()

	prompt := prompts.Extraction(prompts.RenderTranscript(transcript))
	response, err := e.client.CompleteCapped(ctx, prompts.ExtractionSystem, prompt, config.ExtractionMaxTokens)
	if err != nil {
		logging.Extraction("extraction call failed, retrying next turn: %v", err)
		return nil
	}

	info := ParseExtraction(response)
	if info == nil {
		logging.Extraction("extraction response malformed, discarded")
		return nil
	}

	info = e.policy.Apply(info)
	logging.ExtractionDebug("extracted: dev=%v bug=%v note=%v status=%v solved=%v",
		info.DeveloperID != nil, info.BugID != nil, info.ProgressNote != nil,
		info.Status != nil, info.Solved != nil)
	return info
}

// ParseExtraction validates a raw model response against the
// ExtractedInfo schema. Returns nil when no valid JSON object is found
// or a present field fails validation.
func ParseExtraction(response string) *ExtractedInfo {
	payload := llm.ExtractLastJSON(response)
	if payload == "" {
		return nil
	}

	dec := json.NewDecoder(strings.NewReader(payload))
	dec.UseNumber()
	var raw rawExtraction
	if err := dec.Decode(&raw); err != nil {
		return nil
	}

	info := &ExtractedInfo{Solved: raw.Solved}

	if raw.DeveloperID != nil {
		id, ok := positiveInt(*raw.DeveloperID)
		if !ok {
			return nil
		}
		info.DeveloperID = &id
	}
	if raw.BugID != nil {
		id, ok := positiveInt(*raw.BugID)
		if !ok {
			return nil
		}
		info.BugID = &id
	}
	if raw.ProgressNote != nil && *raw.ProgressNote != "" {
		info.ProgressNote = raw.ProgressNote
	}
	if raw.Status != nil && *raw.Status != "" {
		status, err := types.ParseStatus(*raw.Status)
		if err != nil {
			// A status outside the enum invalidates the whole pass: the
			// model did not follow the schema, so nothing it returned is
			// trustworthy.
			return nil
		}
		info.Status = &status
	}

	return info
}

func positiveInt(n json.Number) (int, bool) {
	v, err := n.Int64()
	if err != nil || v <= 0 {
		return 0, false
	}
	return int(v), true
}

// MergeInto folds a successful extraction into the pending selection
// according to the merge policy: identity fields (developer_id, bug_id,
// progress_note) are write-once; status and solved are last-write-wins
// so the developer can correct them mid-conversation.
func (e *ExtractedInfo) MergeInto(pending *ExtractedInfo) {
	if pending.DeveloperID == nil && e.DeveloperID != nil {
		pending.DeveloperID = e.DeveloperID
	}
	if pending.BugID == nil && e.BugID != nil {
		pending.BugID = e.BugID
	}
	if pending.ProgressNote == nil && e.ProgressNote != nil {
		pending.ProgressNote = e.ProgressNote
	}
	if e.Status != nil {
		pending.Status = e.Status
	}
	if e.Solved != nil {
		pending.Solved = e.Solved
	}
}
