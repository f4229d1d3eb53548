package dialog

import (
	"fmt"
	"strings"
)

// stateGuidance is appended to the system prompt each turn so the model
// knows which single question to ask next. The state machine owns the
// flow; the model only phrases it.
func (o *Orchestrator) stateGuidance() string {
	var b strings.Builder
	b.WriteString("\n\nCURRENT INTERVIEW STATE: ")
	b.WriteString(o.state.String())
	b.WriteString("\n")

	if o.notice != "" {
		b.WriteString("IMPORTANT: ")
		b.WriteString(o.notice)
		b.WriteString("\n")
	}

	switch o.state {
	case StateAwaitingDeveloper:
		if o.pendingConfirm != nil {
			fmt.Fprintf(&b, "You found a close name match: %s. Ask the user to confirm yes or no that this is them. Do not call tools again until they answer.\n", o.pendingConfirm.Name)
		} else {
			b.WriteString("You do not yet know who you are speaking with. Ask for their name, then verify it with the verify_developer tool.\n")
		}
	case StateAwaitingBugSelection:
		fmt.Fprintf(&b, "The developer is verified as %s (id %d). Present their assigned bugs (use get_bugs_for_developer if you have not already) and ask which one they want to report on.\n", o.developer.Name, o.developer.ID)
	case StateAwaitingWorkNote:
		b.WriteString("A bug is selected. Ask what work they did on it. Ask only this one question.\n")
	case StateAwaitingStatus:
		b.WriteString("Ask for the bug's current status (Open, In Progress, Testing, Resolved, or Closed). Ask only this one question.\n")
	case StateAwaitingSolved:
		b.WriteString("Ask whether the bug is fully solved, yes or no. Ask only this one question.\n")
	case StateAwaitingContinuation:
		fmt.Fprintf(&b, "A report was just saved (%d so far this session). Ask whether they have another bug to report.\n", len(o.completed))
	}

	return b.String()
}

// fallbackReply is the canned question used when the understanding
// service is unavailable. The interview loses no ground; it simply
// re-asks the current state's question in plain words.
func (o *Orchestrator) fallbackReply() string {
	switch o.state {
	case StateAwaitingDeveloper:
		if o.pendingConfirm != nil {
			return fmt.Sprintf("Did you mean %s? Please answer yes or no.", o.pendingConfirm.Name)
		}
		return "Sorry, I didn't catch that. Could you tell me your name?"
	case StateAwaitingBugSelection:
		return "Which bug would you like to report progress on? You can give me its ID or describe it."
	case StateAwaitingWorkNote:
		return "What work did you do on this bug?"
	case StateAwaitingStatus:
		return "What's the current status of the bug? (Open, In Progress, Testing, Resolved, or Closed)"
	case StateAwaitingSolved:
		return "Is the bug fully solved? Yes or no."
	case StateAwaitingContinuation:
		return "Is there another bug you'd like to report on?"
	default:
		return "Could you repeat that?"
	}
}

// closingMessage summarizes the session for both natural and forced
// termination.
func (o *Orchestrator) closingMessage(forced bool) string {
	var b strings.Builder
	if forced {
		b.WriteString("We've reached the session limit, so I'll wrap up here. ")
	}
	switch len(o.completed) {
	case 0:
		b.WriteString("No bug reports were recorded this session. Thanks for your time!")
	case 1:
		b.WriteString("I've recorded your report for 1 bug. Thanks for the update!")
	default:
		fmt.Fprintf(&b, "I've recorded your reports for %d bugs. Thanks for the updates!", len(o.completed))
	}
	return b.String()
}
