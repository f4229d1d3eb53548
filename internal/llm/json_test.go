package llm

import "testing"

func TestExtractLastJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`},
		{"prose around object", `Sure, here you go: {"a": 1} hope that helps`, `{"a": 1}`},
		{"fenced", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"takes last object", `first {"a": 1} then {"b": 2}`, `{"b": 2}`},
		{"nested braces", `{"outer": {"inner": true}}`, `{"outer": {"inner": true}}`},
		{"no json", "sorry, nothing to report", ""},
		{"unbalanced", `{"a": 1`, ""},
		{"brace in string value", `{"progress_note": "closed the stray } in the parser"}`, `{"progress_note": "closed the stray } in the parser"}`},
		{"braces in prose", `notes {not json} then {"a": 1}`, `{"a": 1}`},
	}

	for _, tc := range cases {
		if got := ExtractLastJSON(tc.in); got != tc.want {
			t.Errorf("%s: ExtractLastJSON(%q) = %q, want %q", tc.name, tc.in, got, tc.want)
		}
	}
}

func TestStripMarkdownCodeFences(t *testing.T) {
	in := "```json\n{\"a\": 1}\n```"
	if got := StripMarkdownCodeFences(in); got != `{"a": 1}` {
		t.Errorf("got %q", got)
	}

	plain := `{"a": 1}`
	if got := StripMarkdownCodeFences(plain); got != plain {
		t.Errorf("unfenced input should pass through, got %q", got)
	}
}
