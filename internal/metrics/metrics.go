// Package metrics analyzes persisted session artifacts and computes
// aggregate performance numbers: success rate, turn efficiency, safety
// of invalid-selection handling, and reporting focus.
package metrics

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"bugbot/internal/config"
	"bugbot/internal/types"
)

// Calculator computes metrics over every trace and output artifact in a
// results directory.
type Calculator struct {
	traces  map[int][]types.ConversationTurn
	outputs map[int]types.SessionOutput
}

// Load reads all trace_N.json and output_N.json artifacts under
// resultsDir. Files that fail to parse are skipped rather than failing
// the whole analysis.
func Load(resultsDir string) (*Calculator, error) {
	c := &Calculator{
		traces:  make(map[int][]types.ConversationTurn),
		outputs: make(map[int]types.SessionOutput),
	}

	tracesDir := filepath.Join(resultsDir, "traces")
	entries, err := os.ReadDir(tracesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read traces directory: %w", err)
	}
	for _, entry := range entries {
		var n int
		if _, err := fmt.Sscanf(entry.Name(), "trace_%d.json", &n); err != nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join(tracesDir, entry.Name()))
		if err != nil {
			continue
		}
		var trace []types.ConversationTurn
		if err := json.Unmarshal(data, &trace); err != nil {
			continue
		}
		c.traces[n] = trace
	}

	outputsDir := filepath.Join(resultsDir, "outputs")
	entries, err = os.ReadDir(outputsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read outputs directory: %w", err)
	}
	for _, entry := range entries {
		var n int
		if _, err := fmt.Sscanf(entry.Name(), "output_%d.json", &n); err != nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join(outputsDir, entry.Name()))
		if err != nil {
			continue
		}
		var output types.SessionOutput
		if err := json.Unmarshal(data, &output); err != nil {
			continue
		}
		c.outputs[n] = output
	}

	return c, nil
}

// Sessions returns how many traces were loaded.
func (c *Calculator) Sessions() int { return len(c.traces) }

// SuccessRate returns the percentage of sessions whose output reported
// success.
func (c *Calculator) SuccessRate() float64 {
	if len(c.outputs) == 0 {
		return 0
	}
	successful := 0
	for _, output := range c.outputs {
		if output.Success {
			successful++
		}
	}
	return float64(successful) / float64(len(c.outputs)) * 100
}

// Efficiency summarizes turn usage against the turn budget.
type Efficiency struct {
	AverageTurns      float64 `json:"average_turns"`
	MinTurns          int     `json:"min_turns"`
	MaxTurns          int     `json:"max_turns"`
	StdevTurns        float64 `json:"stdev_turns"`
	EfficiencyPercent float64 `json:"efficiency_percentage"`
	TurnsRemainingAvg float64 `json:"turns_remaining_avg"`
}

// Efficiency computes turn usage statistics across all traces. Only
// user turns count against the budget.
func (c *Calculator) Efficiency() Efficiency {
	if len(c.traces) == 0 {
		return Efficiency{}
	}

	var counts []int
	for _, trace := range c.traces {
		n := 0
		for _, turn := range trace {
			if turn.Role == types.RoleUser {
				n++
			}
		}
		counts = append(counts, n)
	}
	sort.Ints(counts)

	sum := 0
	for _, n := range counts {
		sum += n
	}
	avg := float64(sum) / float64(len(counts))

	variance := 0.0
	if len(counts) > 1 {
		for _, n := range counts {
			d := float64(n) - avg
			variance += d * d
		}
		variance /= float64(len(counts) - 1)
	}

	budget := float64(config.MaxConversationTurns)
	return Efficiency{
		AverageTurns:      round2(avg),
		MinTurns:          counts[0],
		MaxTurns:          counts[len(counts)-1],
		StdevTurns:        round2(math.Sqrt(variance)),
		EfficiencyPercent: round2(avg / budget * 100),
		TurnsRemainingAvg: round2(budget - avg),
	}
}

// Safety summarizes how invalid selections were handled.
type Safety struct {
	InvalidAttempts   int     `json:"total_invalid_attempts"`
	CorrectRejections int     `json:"correct_rejections"`
	SafetyRate        float64 `json:"safety_rate"`
}

// Safety scans assistant messages for rejection phrasing following
// invalid user input. A session with no invalid attempts is perfectly
// safe.
func (c *Calculator) Safety() Safety {
	s := Safety{}
	for _, trace := range c.traces {
		for _, turn := range trace {
			if turn.Role != types.RoleAssistant {
				continue
			}
			content := strings.ToLower(turn.Content)
			if strings.Contains(content, "not assigned") ||
				(strings.Contains(content, "couldn't find") && strings.Contains(content, "valid")) ||
				strings.Contains(content, "no bug with id") {
				s.InvalidAttempts++
				s.CorrectRejections++
			}
		}
	}
	if s.InvalidAttempts == 0 {
		s.SafetyRate = 100
	} else {
		s.SafetyRate = round2(float64(s.CorrectRejections) / float64(s.InvalidAttempts) * 100)
	}
	return s
}

// Relevance summarizes whether assistant messages stayed on reporting
// rather than drifting into troubleshooting.
type Relevance struct {
	TotalBotMessages int     `json:"total_bot_messages"`
	ReportingFocused int     `json:"reporting_focused"`
	Troubleshooting  int     `json:"troubleshooting_attempts"`
	OffTopic         int     `json:"off_topic"`
	RelevanceRate    float64 `json:"relevance_rate"`
}

var reportingKeywords = []string{"work", "done", "progress", "status", "solved", "complete", "report"}

var troubleshootingKeywords = []string{"why", "debug", "error", "fix", "issue", "problem", "help solve", "solution"}

// Relevance classifies every assistant message by keyword.
func (c *Calculator) Relevance() Relevance {
	r := Relevance{}
	for _, trace := range c.traces {
		for _, turn := range trace {
			if turn.Role != types.RoleAssistant {
				continue
			}
			r.TotalBotMessages++
			content := strings.ToLower(turn.Content)
			switch {
			case containsAny(content, troubleshootingKeywords):
				r.Troubleshooting++
			case containsAny(content, reportingKeywords),
				strings.Contains(content, "bug"),
				strings.Contains(content, "assigned"):
				r.ReportingFocused++
			default:
				r.OffTopic++
			}
		}
	}
	if r.TotalBotMessages > 0 {
		r.RelevanceRate = round2(float64(r.ReportingFocused) / float64(r.TotalBotMessages) * 100)
	}
	return r
}

// ToolUsage counts tool invocations across all traces, by tool name.
func (c *Calculator) ToolUsage() map[string]int {
	usage := make(map[string]int)
	for _, trace := range c.traces {
		for _, turn := range trace {
			if turn.Type == "tool_call" {
				usage[turn.Tool]++
			}
		}
	}
	return usage
}

// Report renders a human-readable summary of every metric.
func (c *Calculator) Report() string {
	var b strings.Builder
	rule := strings.Repeat("=", 72)

	fmt.Fprintf(&b, "%s\nBUG REPORTING BOT - PERFORMANCE METRICS\n%s\n\n", rule, rule)
	fmt.Fprintf(&b, "Sessions analyzed: %d (traces=%d outputs=%d)\n\n", c.Sessions(), len(c.traces), len(c.outputs))

	fmt.Fprintf(&b, "Success rate: %.2f%%\n\n", c.SuccessRate())

	eff := c.Efficiency()
	fmt.Fprintf(&b, "Efficiency:\n")
	fmt.Fprintf(&b, "  average turns: %.2f (of %d allowed)\n", eff.AverageTurns, config.MaxConversationTurns)
	fmt.Fprintf(&b, "  min/max turns: %d/%d\n", eff.MinTurns, eff.MaxTurns)
	fmt.Fprintf(&b, "  stdev:         %.2f\n", eff.StdevTurns)
	fmt.Fprintf(&b, "  budget used:   %.2f%%\n\n", eff.EfficiencyPercent)

	safety := c.Safety()
	fmt.Fprintf(&b, "Safety: %d invalid attempts, %d rejected (%.2f%%)\n\n",
		safety.InvalidAttempts, safety.CorrectRejections, safety.SafetyRate)

	rel := c.Relevance()
	fmt.Fprintf(&b, "Relevance: %.2f%% reporting-focused (%d troubleshooting, %d off-topic of %d messages)\n\n",
		rel.RelevanceRate, rel.Troubleshooting, rel.OffTopic, rel.TotalBotMessages)

	usage := c.ToolUsage()
	if len(usage) > 0 {
		fmt.Fprintf(&b, "Tool usage:\n")
		names := make([]string, 0, len(usage))
		for name := range usage {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "  %s: %d\n", name, usage[name])
		}
	}

	return b.String()
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
