package dialog

// State is the interview's position in the report-collection flow.
type State int

const (
	// StateAwaitingDeveloper means the session has not yet identified
	// who it is talking to.
	StateAwaitingDeveloper State = iota
	// StateAwaitingBugSelection means the developer is resolved and a
	// bug must be chosen from their assigned list.
	StateAwaitingBugSelection
	// StateAwaitingWorkNote means a bug is selected and the work
	// description is still missing.
	StateAwaitingWorkNote
	// StateAwaitingStatus means the status field is still missing.
	StateAwaitingStatus
	// StateAwaitingSolved means the solved flag is still missing.
	StateAwaitingSolved
	// StateReportReady means all five fields are present and the report
	// is about to be validated and committed.
	StateReportReady
	// StateAwaitingContinuation means a report just committed and the
	// session is asking whether another bug needs reporting.
	StateAwaitingContinuation
	// StateTerminated means the session is over.
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateAwaitingDeveloper:
		return "awaiting_developer"
	case StateAwaitingBugSelection:
		return "awaiting_bug_selection"
	case StateAwaitingWorkNote:
		return "awaiting_work_note"
	case StateAwaitingStatus:
		return "awaiting_status"
	case StateAwaitingSolved:
		return "awaiting_solved"
	case StateReportReady:
		return "report_ready"
	case StateAwaitingContinuation:
		return "awaiting_continuation"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}
