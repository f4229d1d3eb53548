package dialog

import (
	"context"
	"encoding/json"
	"fmt"

	"bugbot/internal/config"
	"bugbot/internal/logging"
	"bugbot/internal/prompts"
	"bugbot/internal/resolve"
	"bugbot/internal/types"
)

// errToolLoopExceeded signals that the model kept requesting tools past
// the per-turn ceiling. The turn degrades to a canned reply; the
// session continues.
var errToolLoopExceeded = fmt.Errorf("tool loop exceeded %d iterations", config.MaxToolIterations)

// runToolLoop asks the model for the next reply, executing any tool
// calls it requests and feeding results back until a turn produces
// plain text. Tool side effects (developer verification, bug list
// fetch) update the orchestrator's own state as they happen.
func (o *Orchestrator) runToolLoop(ctx context.Context) (string, error) {
	system := prompts.System + o.stateGuidance()

	for i := 0; i < config.MaxToolIterations; i++ {
		resp, err := o.client.CompleteWithTools(ctx, system, o.history, prompts.Tools())
		if err != nil {
			return "", err
		}

		if len(resp.ToolCalls) == 0 {
			return resp.Text, nil
		}

		o.history = append(o.history, types.ChatMessage{
			Role:      types.RoleAssistant,
			Content:   resp.Text,
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			o.trace = append(o.trace, types.ToolCallTurn(call.Name, call.Input))
			result := o.executeTool(call)
			logging.Tools("executed %s: error=%v", call.Name, result.IsError)
			o.history = append(o.history, types.ChatMessage{
				Role:       types.RoleTool,
				Content:    result.Content,
				ToolCallID: call.ID,
			})
		}
	}

	logging.ToolsWarn("model requested tools past the per-turn ceiling, giving up on this round")
	return "", errToolLoopExceeded
}

func (o *Orchestrator) executeTool(call types.ToolCall) types.ToolResult {
	switch call.Name {
	case prompts.ToolVerifyDeveloper:
		return o.toolVerifyDeveloper(call)
	case prompts.ToolGetBugsForDeveloper:
		return o.toolGetBugs(call)
	default:
		return types.ToolResult{
			ToolUseID: call.ID,
			Content:   fmt.Sprintf("unknown tool %q", call.Name),
			IsError:   true,
		}
	}
}

// toolVerifyDeveloper resolves a name against the roster. An exact
// match resolves the developer immediately; a single fuzzy match is
// parked for user confirmation rather than silently accepted.
func (o *Orchestrator) toolVerifyDeveloper(call types.ToolCall) types.ToolResult {
	name, _ := call.Input["name"].(string)
	if name == "" {
		return errResult(call.ID, "missing required argument: name")
	}

	outcome := resolve.Resolve(name, o.roster)
	switch outcome.Kind {
	case resolve.Exact:
		o.resolveDeveloper(outcome.DeveloperID, outcome.Name)
		return jsonResult(call.ID, map[string]any{
			"found":        true,
			"developer_id": outcome.DeveloperID,
			"name":         outcome.Name,
		})
	case resolve.PartialNeedsConfirmation:
		confirmed := outcome
		o.pendingConfirm = &confirmed
		return jsonResult(call.ID, map[string]any{
			"found":              false,
			"needs_confirmation": true,
			"candidate":          outcome.Name,
		})
	case resolve.Ambiguous:
		return jsonResult(call.ID, map[string]any{
			"found":      false,
			"ambiguous":  true,
			"candidates": outcome.Candidates,
		})
	default:
		return jsonResult(call.ID, map[string]any{
			"found":       false,
			"known_names": outcome.Candidates,
		})
	}
}

func (o *Orchestrator) toolGetBugs(call types.ToolCall) types.ToolResult {
	devID, ok := numericArg(call.Input, "developer_id")
	if !ok {
		return errResult(call.ID, "missing required argument: developer_id")
	}

	bugs, err := o.store.GetBugsForDeveloper(devID)
	if err != nil {
		logging.StoreError("bug list fetch failed for developer %d: %v", devID, err)
		return errResult(call.ID, "storage lookup failed")
	}

	// Cache the list when it belongs to the resolved developer so bug
	// selection can match against it without another round trip.
	if o.developer != nil && o.developer.ID == devID {
		o.bugs = bugs
	}

	summaries := make([]map[string]any, len(bugs))
	for i, bug := range bugs {
		summaries[i] = map[string]any{
			"bug_id":      bug.ID,
			"description": bug.Description,
			"status":      bug.Status,
			"solved":      bug.Solved,
		}
	}
	return jsonResult(call.ID, map[string]any{"bugs": summaries})
}

// numericArg pulls an integer out of a decoded JSON argument map, where
// numbers arrive as float64.
func numericArg(input map[string]any, key string) (int, bool) {
	switch v := input[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n), true
		}
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n, true
		}
	}
	return 0, false
}

func jsonResult(id string, payload map[string]any) types.ToolResult {
	data, err := json.Marshal(payload)
	if err != nil {
		return errResult(id, "failed to encode tool result")
	}
	return types.ToolResult{ToolUseID: id, Content: string(data)}
}

func errResult(id, msg string) types.ToolResult {
	return types.ToolResult{ToolUseID: id, Content: msg, IsError: true}
}
