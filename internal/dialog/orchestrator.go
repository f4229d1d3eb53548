// Package dialog implements the interview state machine: it tracks the
// conversation, decides which question comes next, drives tool calls
// and extraction, and commits completed bug reports to the store.
package dialog

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bugbot/internal/config"
	"bugbot/internal/extract"
	"bugbot/internal/logging"
	"bugbot/internal/resolve"
	"bugbot/internal/types"
)

// Orchestrator owns one session's conversation state. Not safe for
// concurrent use; a session is strictly sequential.
type Orchestrator struct {
	client types.LLMClient
	store  types.BugStore
	engine *extract.Engine

	maxTurns int
	now      func() time.Time

	state     State
	turnCount int
	history   []types.ChatMessage
	trace     []types.ConversationTurn

	roster         []types.Developer
	developer      *types.Developer
	pendingConfirm *resolve.Outcome
	bugs           []types.Bug

	pending      extract.ExtractedInfo
	completed    []types.BugReport
	reportedBugs map[int]bool

	// lastCommitMark is the trace index right after the most recent
	// commit; extraction only reads turns past it so committed answers
	// cannot leak into the next report.
	lastCommitMark int

	// notice carries a one-shot correction for the next reply, such as
	// an ownership violation explanation.
	notice     string
	diagnostic string
}

// New builds an orchestrator for a fresh session. The roster is loaded
// once up front; it is immutable for the session's lifetime.
func New(client types.LLMClient, store types.BugStore, engine *extract.Engine, maxTurns int) (*Orchestrator, error) {
	roster, err := store.ListDevelopers()
	if err != nil {
		return nil, fmt.Errorf("failed to load developer roster: %w", err)
	}
	if maxTurns <= 0 {
		maxTurns = config.MaxConversationTurns
	}

	return &Orchestrator{
		client:       client,
		store:        store,
		engine:       engine,
		maxTurns:     maxTurns,
		now:          time.Now,
		state:        StateAwaitingDeveloper,
		roster:       roster,
		reportedBugs: make(map[int]bool),
	}, nil
}

// State returns the current interview state.
func (o *Orchestrator) State() State { return o.state }

// Terminated reports whether the session is over.
func (o *Orchestrator) Terminated() bool { return o.state == StateTerminated }

// Trace returns the ordered audit trail accumulated so far.
func (o *Orchestrator) Trace() []types.ConversationTurn { return o.trace }

// CompletedReports returns the reports committed so far, in commit
// order.
func (o *Orchestrator) CompletedReports() []types.BugReport { return o.completed }

// TurnCount returns the number of accepted user messages.
func (o *Orchestrator) TurnCount() int { return o.turnCount }

// RecordGreeting traces the opening assistant message so the audit
// trail starts with it.
func (o *Orchestrator) RecordGreeting(greeting string) {
	o.trace = append(o.trace, types.MessageTurn(types.RoleAssistant, greeting))
	o.history = append(o.history, types.ChatMessage{Role: types.RoleAssistant, Content: greeting})
}

// HandleUserTurn processes one user message end to end: termination
// checks, extraction, state transitions, tool-driven reply generation,
// and report commits. It returns the assistant's reply. Service
// failures never end the session; they degrade to a canned re-ask.
func (o *Orchestrator) HandleUserTurn(ctx context.Context, userText string) (string, error) {
	if o.state == StateTerminated {
		return o.closingMessage(false), nil
	}

	o.turnCount++
	o.notice = ""
	o.trace = append(o.trace, types.MessageTurn(types.RoleUser, userText))
	o.history = append(o.history, types.ChatMessage{Role: types.RoleUser, Content: userText})
	logging.Dialog("turn %d/%d state=%s", o.turnCount, o.maxTurns, o.state)

	// The turn budget forces termination within the same turn that
	// reaches it. Whatever is mid-flight in the pending selection is
	// discarded, never half-committed.
	if o.turnCount >= o.maxTurns {
		return o.terminate(true), nil
	}

	if o.state == StateAwaitingContinuation && o.continuationEnds(ctx, userText) {
		return o.terminate(false), nil
	}

	o.advance(ctx, userText)

	if o.state == StateTerminated {
		return o.lastReply(), nil
	}

	reply, err := o.runToolLoop(ctx)
	if err != nil {
		logging.DialogWarn("reply generation failed, using fallback: %v", err)
		reply = o.fallbackReply()
	}
	if strings.TrimSpace(reply) == "" {
		reply = o.fallbackReply()
	}

	// Tool calls during the reply round may have resolved the developer
	// or surfaced the bug list, so transitions are re-evaluated before
	// the reply is recorded.
	o.advanceAfterTools(ctx, userText)

	o.trace = append(o.trace, types.MessageTurn(types.RoleAssistant, reply))
	o.history = append(o.history, types.ChatMessage{Role: types.RoleAssistant, Content: reply})
	return reply, nil
}

// continuationEnds decides whether a reply to "anything else?" ends the
// session: keyword fast path first, model judgment for ambiguous
// phrasing, continue on any doubt.
func (o *Orchestrator) continuationEnds(ctx context.Context, userText string) bool {
	if isEndPhrase(userText) {
		return true
	}
	if isAffirmative(userText) {
		return false
	}
	return o.shouldEndSession(ctx, userText)
}

// advance runs the deterministic transitions that depend only on the
// user's message: confirmation answers, extraction merge, bug
// selection, fast-forward, and commit.
func (o *Orchestrator) advance(ctx context.Context, userText string) {
	if o.state == StateAwaitingDeveloper && o.pendingConfirm != nil {
		o.handleConfirmation(userText)
	}

	if o.state == StateAwaitingContinuation {
		// Anything that didn't end the session means another report is
		// coming; the developer stays resolved.
		o.state = StateAwaitingBugSelection
	}

	if o.developer != nil {
		if info := o.engine.Extract(ctx, o.trace[o.lastCommitMark:]); info != nil {
			o.mergeExtraction(info)
		}
		o.trySelectBug(userText)
	}

	o.fastForward()
	o.maybeCommit()
}

// advanceAfterTools re-evaluates transitions once tool side effects
// from the reply round have landed.
func (o *Orchestrator) advanceAfterTools(ctx context.Context, userText string) {
	if o.developer != nil && o.pending.BugID == nil {
		o.trySelectBug(userText)
	}
	o.fastForward()
	o.maybeCommit()
}

// handleConfirmation settles a parked fuzzy name match with the user's
// yes/no answer. Anything that is neither restarts resolution from the
// model's next verify attempt.
func (o *Orchestrator) handleConfirmation(userText string) {
	candidate := o.pendingConfirm
	switch {
	case isAffirmative(userText):
		o.pendingConfirm = nil
		o.resolveDeveloper(candidate.DeveloperID, candidate.Name)
		logging.Dialog("developer %d confirmed by user", candidate.DeveloperID)
	case isNegative(userText):
		o.pendingConfirm = nil
		o.notice = fmt.Sprintf("The user said %s is not them. Ask for their name again.", candidate.Name)
		logging.Dialog("developer candidate %q rejected by user", candidate.Name)
	}
}

// resolveDeveloper pins the session to a verified developer and
// prefetches their bug list.
func (o *Orchestrator) resolveDeveloper(id int, name string) {
	o.developer = &types.Developer{ID: id, Name: name}
	o.pendingConfirm = nil
	devID := id
	o.pending.DeveloperID = &devID
	if bugs, err := o.store.GetBugsForDeveloper(id); err == nil {
		o.bugs = bugs
	} else {
		logging.StoreError("prefetch of bug list failed for developer %d: %v", id, err)
	}
	if o.state == StateAwaitingDeveloper {
		o.state = StateAwaitingBugSelection
	}
}

// mergeExtraction folds one extraction pass into the pending selection.
// A bug id that contradicts the current selection is treated as an
// explicit correction: the whole pending selection resets to the new
// bug. A pass naming an already-reported bug is an echo of a committed
// report and carries nothing new; none of its fields may touch the
// fresh selection.
func (o *Orchestrator) mergeExtraction(info *extract.ExtractedInfo) {
	if info.BugID != nil && o.reportedBugs[*info.BugID] {
		logging.Dialog("extraction echoed committed bug %d, discarding pass", *info.BugID)
		return
	}
	if info.BugID != nil && o.pending.BugID != nil && *info.BugID != *o.pending.BugID {
		logging.Dialog("bug correction: %d -> %d, resetting pending selection", *o.pending.BugID, *info.BugID)
		o.resetPending()
	}
	// The verified identity always outranks whatever the extraction
	// read out of the transcript.
	info.DeveloperID = nil
	info.MergeInto(&o.pending)
}

// trySelectBug attempts to pin the pending bug id from the extraction
// result, a numeric id in the message, or a fuzzy description match
// against the fetched list. Selection that fails the ownership check is
// rejected on the spot.
func (o *Orchestrator) trySelectBug(userText string) {
	if o.pending.BugID != nil {
		o.validateSelection()
		return
	}
	if o.state != StateAwaitingBugSelection {
		return
	}

	if id, ok := numericBugRef(userText, o.bugs); ok {
		o.pending.BugID = &id
		o.validateSelection()
		return
	}
	if bug := matchBugByDescription(userText, o.bugs); bug != nil {
		id := bug.ID
		o.pending.BugID = &id
		logging.DialogDebug("fuzzy description match selected bug %d", id)
		o.validateSelection()
	}
}

// validateSelection enforces the ownership check the moment a bug id
// lands in the pending selection, clearing it again if the bug is
// unknown or belongs to someone else.
func (o *Orchestrator) validateSelection() {
	if o.pending.BugID == nil || o.developer == nil {
		return
	}
	bugID := *o.pending.BugID

	if o.reportedBugs[bugID] {
		o.pending.BugID = nil
		o.notice = fmt.Sprintf("Bug %d was already reported this session. Ask the user to pick a different bug.", bugID)
		logging.Dialog("duplicate selection of bug %d rejected", bugID)
		return
	}

	bug, err := o.store.GetBug(bugID)
	if err != nil {
		o.pending.BugID = nil
		logging.StoreError("bug lookup failed for %d: %v", bugID, err)
		return
	}
	if bug == nil {
		o.pending.BugID = nil
		o.notice = fmt.Sprintf("There is no bug with id %d. Ask the user to pick one of their assigned bugs.", bugID)
		return
	}
	if bug.AssignedDev != o.developer.ID {
		o.pending.BugID = nil
		o.notice = fmt.Sprintf("Bug %d is not assigned to %s. Ask them to pick one of their own bugs.", bugID, o.developer.Name)
		logging.Dialog("ownership violation: bug %d belongs to developer %d, not %d", bugID, bug.AssignedDev, o.developer.ID)
	}
}

// fastForward moves the state to the first unsatisfied field. Fields
// may arrive out of order; states already satisfied are skipped.
func (o *Orchestrator) fastForward() {
	if o.state == StateTerminated || o.state == StateAwaitingContinuation {
		return
	}
	if o.developer == nil || o.pendingConfirm != nil {
		o.state = StateAwaitingDeveloper
		return
	}
	switch {
	case o.pending.BugID == nil:
		o.state = StateAwaitingBugSelection
	case o.pending.ProgressNote == nil:
		o.state = StateAwaitingWorkNote
	case o.pending.Status == nil:
		o.state = StateAwaitingStatus
	case o.pending.Solved == nil:
		o.state = StateAwaitingSolved
	default:
		o.state = StateReportReady
	}
}

// maybeCommit materializes the report once every field is present. The
// ownership check runs once more against the store right before the
// write; a violation sends the session back to bug selection with the
// rest of the pending fields intact.
func (o *Orchestrator) maybeCommit() {
	if o.state != StateReportReady {
		return
	}

	bugID := *o.pending.BugID
	bug, err := o.store.GetBug(bugID)
	if err != nil || bug == nil || bug.AssignedDev != o.developer.ID {
		o.pending.BugID = nil
		o.state = StateAwaitingBugSelection
		o.notice = fmt.Sprintf("Bug %d could not be verified as assigned to %s. Ask them to pick one of their own bugs.", bugID, o.developer.Name)
		logging.Dialog("commit blocked for bug %d: ownership check failed", bugID)
		return
	}

	note := *o.pending.ProgressNote
	status := *o.pending.Status
	solved := *o.pending.Solved

	ok, err := o.store.AppendProgress(bugID, note, status, solved)
	if err != nil || !ok {
		o.diagnostic = fmt.Sprintf("failed to persist report for bug %d", bugID)
		o.pending.BugID = nil
		o.state = StateAwaitingBugSelection
		logging.StoreError("append progress failed for bug %d: ok=%v err=%v", bugID, ok, err)
		return
	}

	report := types.BugReport{
		BugID:        bugID,
		ProgressNote: types.TimestampNote(note, o.now()),
		Status:       status,
		Solved:       solved,
	}
	o.completed = append(o.completed, report)
	o.reportedBugs[bugID] = true
	o.resetPending()
	o.lastCommitMark = len(o.trace)
	o.state = StateAwaitingContinuation
	logging.Dialog("report committed for bug %d (%d total)", bugID, len(o.completed))
}

// resetPending clears the in-progress selection. The resolved developer
// survives; their id is re-pinned immediately.
func (o *Orchestrator) resetPending() {
	o.pending = extract.ExtractedInfo{}
	if o.developer != nil {
		devID := o.developer.ID
		o.pending.DeveloperID = &devID
	}
}

// terminate ends the session, discarding any incomplete pending
// selection, and returns the closing message.
func (o *Orchestrator) terminate(forced bool) string {
	if forced {
		o.diagnostic = "turn budget exhausted"
		logging.Dialog("turn budget reached, forcing termination with %d committed reports", len(o.completed))
	}
	o.pendingConfirm = nil
	o.state = StateTerminated
	msg := o.closingMessage(forced)
	o.trace = append(o.trace, types.MessageTurn(types.RoleAssistant, msg))
	o.history = append(o.history, types.ChatMessage{Role: types.RoleAssistant, Content: msg})
	return msg
}

func (o *Orchestrator) lastReply() string {
	for i := len(o.trace) - 1; i >= 0; i-- {
		if o.trace[i].Role == types.RoleAssistant && o.trace[i].Content != "" {
			return o.trace[i].Content
		}
	}
	return o.closingMessage(false)
}

// Output assembles the final structured session result. Success means
// at least one report committed and the session ended without a fatal
// diagnostic.
func (o *Orchestrator) Output() types.SessionOutput {
	out := types.SessionOutput{
		Success:    len(o.completed) > 0 && o.diagnostic == "",
		Reports:    o.completed,
		Diagnostic: o.diagnostic,
	}
	if out.Reports == nil {
		out.Reports = []types.BugReport{}
	}
	if o.diagnostic != "" || len(o.completed) == 0 {
		out.MissingFields = o.missingFields()
	}
	return out
}

func (o *Orchestrator) missingFields() []string {
	var missing []string
	if o.pending.DeveloperID == nil {
		missing = append(missing, "developer_id")
	}
	if o.pending.BugID == nil {
		missing = append(missing, "bug_id")
	}
	if o.pending.ProgressNote == nil {
		missing = append(missing, "progress_note")
	}
	if o.pending.Status == nil {
		missing = append(missing, "status")
	}
	if o.pending.Solved == nil {
		missing = append(missing, "solved")
	}
	return missing
}

// numericBugRef scans the message for an integer that names one of the
// fetched bugs. The last matching number wins, so "I spent 8 hours on
// bug 7" selects bug 7 even when bug 8 is also assigned.
func numericBugRef(text string, bugs []types.Bug) (int, bool) {
	var found int
	matched := false
	for _, field := range strings.FieldsFunc(text, func(r rune) bool {
		return r < '0' || r > '9'
	}) {
		n, err := strconv.Atoi(field)
		if err != nil {
			continue
		}
		for _, bug := range bugs {
			if bug.ID == n {
				found = n
				matched = true
			}
		}
	}
	return found, matched
}

// matchBugByDescription fuzzy-matches the message against bug
// descriptions by counting shared significant words. A unique best
// match wins; ties select nothing.
func matchBugByDescription(text string, bugs []types.Bug) *types.Bug {
	words := significantWords(text)
	if len(words) == 0 {
		return nil
	}

	var best *types.Bug
	bestScore := 0
	tied := false
	for i := range bugs {
		score := 0
		descWords := significantWords(bugs[i].Description)
		for w := range words {
			if descWords[w] {
				score++
			}
		}
		if score > bestScore {
			best = &bugs[i]
			bestScore = score
			tied = false
		} else if score == bestScore && score > 0 {
			tied = true
		}
	}
	if best == nil || tied {
		return nil
	}
	return best
}

func significantWords(text string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?:;'\"()")
		if len(w) >= 4 {
			words[w] = true
		}
	}
	return words
}
