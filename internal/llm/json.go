package llm

import (
	"encoding/json"
	"strings"
)

// ExtractLastJSON finds the last top-level JSON object in a string.
// It handles cases where the LLM wraps JSON in markdown code fences or
// surrounds it with commentary, and braces inside string values do not
// confuse it.
func ExtractLastJSON(s string) string {
	cleaned := StripMarkdownCodeFences(s)

	last := ""
	for i := 0; i < len(cleaned); i++ {
		if cleaned[i] != '{' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(cleaned[i:]))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			continue
		}
		last = string(raw)
		// Skip past the decoded object so its nested objects are not
		// revisited.
		i += int(dec.InputOffset()) - 1
	}
	return last
}

// StripMarkdownCodeFences removes markdown code fence wrapping from a
// string. Handles ```json, ```, and variations with language specifiers.
func StripMarkdownCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)

	if strings.HasPrefix(trimmed, "```") {
		firstNewline := strings.Index(trimmed, "\n")
		if firstNewline != -1 {
			lastFence := strings.LastIndex(trimmed, "```")
			if lastFence > firstNewline {
				return strings.TrimSpace(trimmed[firstNewline+1 : lastFence])
			}
		}
	}

	return s
}
