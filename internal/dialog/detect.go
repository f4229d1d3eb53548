package dialog

import (
	"context"
	"encoding/json"
	"strings"

	"bugbot/internal/config"
	"bugbot/internal/llm"
	"bugbot/internal/logging"
	"bugbot/internal/prompts"
)

// endPhrases are the deterministic fast path for termination intent.
// Matching is exact on the normalized message, not substring, so "no,
// wait, one more thing" does not end the session.
var endPhrases = map[string]bool{
	"no":           true,
	"nope":         true,
	"done":         true,
	"i'm done":     true,
	"im done":      true,
	"that's it":    true,
	"thats it":     true,
	"that's all":   true,
	"thats all":    true,
	"nothing else": true,
	"nothing more": true,
	"no thanks":    true,
	"no thank you": true,
	"all done":     true,
	"goodbye":      true,
	"bye":          true,
}

var affirmativePhrases = map[string]bool{
	"yes":          true,
	"y":            true,
	"yeah":         true,
	"yep":          true,
	"yup":          true,
	"sure":         true,
	"correct":      true,
	"right":        true,
	"that's right": true,
	"thats right":  true,
	"yes please":   true,
	"exactly":      true,
}

var negativePhrases = map[string]bool{
	"no":        true,
	"n":         true,
	"nope":      true,
	"nah":       true,
	"wrong":     true,
	"incorrect": true,
}

func normalizePhrase(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	return strings.TrimRight(s, ".!?,")
}

func isEndPhrase(text string) bool {
	return endPhrases[normalizePhrase(text)]
}

func isAffirmative(text string) bool {
	return affirmativePhrases[normalizePhrase(text)]
}

func isNegative(text string) bool {
	return negativePhrases[normalizePhrase(text)]
}

type endJudgment struct {
	ShouldEnd bool `json:"should_end"`
}

// shouldEndSession asks the model for a binary judgment on ambiguous
// continuation phrasing. Defaults to continuing the interview on any
// service or parse failure; truncating a session is worse than one
// extra question.
func (o *Orchestrator) shouldEndSession(ctx context.Context, recentText string) bool {
	response, err := o.client.CompleteCapped(ctx, "", prompts.EndDetection(recentText), config.EndDetectionMaxTokens)
	if err != nil {
		logging.DialogWarn("end detection failed, continuing session: %v", err)
		return false
	}

	payload := llm.ExtractLastJSON(response)
	if payload == "" {
		return false
	}
	var judgment endJudgment
	if err := json.Unmarshal([]byte(payload), &judgment); err != nil {
		return false
	}
	logging.DialogDebug("end detection: should_end=%v for %q", judgment.ShouldEnd, recentText)
	return judgment.ShouldEnd
}
