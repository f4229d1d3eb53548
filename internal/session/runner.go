// Package session binds user input and output to the dialogue
// orchestrator and persists the trace and output artifacts when the
// conversation ends.
package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"bugbot/internal/logging"
	"bugbot/internal/prompts"
	"bugbot/internal/types"
)

var (
	botStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("35")).Bold(true)
	userStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("69")).Bold(true)
	mutedStyle = lipgloss.NewStyle().Faint(true)
)

// conversation is the slice of the orchestrator the runner drives.
type conversation interface {
	RecordGreeting(greeting string)
	HandleUserTurn(ctx context.Context, userText string) (string, error)
	Terminated() bool
	Trace() []types.ConversationTurn
	Output() types.SessionOutput
}

// Runner owns one interactive session from greeting to artifact
// persistence.
type Runner struct {
	orch       conversation
	in         io.Reader
	out        io.Writer
	resultsDir string
	sessionID  string
}

// New builds a runner reading stdin and writing stdout. Artifacts land
// under resultsDir.
func New(orch conversation, resultsDir string) *Runner {
	return &Runner{
		orch:       orch,
		in:         os.Stdin,
		out:        os.Stdout,
		resultsDir: resultsDir,
		sessionID:  uuid.NewString(),
	}
}

// NewWithIO builds a runner with explicit input and output streams.
func NewWithIO(orch conversation, resultsDir string, in io.Reader, out io.Writer) *Runner {
	r := New(orch, resultsDir)
	r.in = in
	r.out = out
	return r
}

// Run drives the conversation until termination, user quit, or input
// EOF, then writes the session artifacts. The returned output mirrors
// what was persisted.
func (r *Runner) Run(ctx context.Context) (types.SessionOutput, error) {
	logging.Session("session %s starting", r.sessionID)

	r.orch.RecordGreeting(prompts.Greeting)
	r.say(prompts.Greeting)

	reader := bufio.NewReader(r.in)
	for !r.orch.Terminated() {
		fmt.Fprint(r.out, userStyle.Render("You")+": ")
		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				logging.SessionError("input read failed: %v", err)
			}
			break
		}
		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if isQuit(input) {
			fmt.Fprintln(r.out, mutedStyle.Render("Session ended."))
			logging.Session("session %s quit by user", r.sessionID)
			break
		}

		reply, err := r.orch.HandleUserTurn(ctx, input)
		if err != nil {
			// Turn-level errors are session-local; the interview keeps
			// going with whatever was already committed.
			logging.SessionError("turn failed: %v", err)
			continue
		}
		r.say(reply)
	}

	output := r.orch.Output()
	if err := r.saveArtifacts(output); err != nil {
		logging.SessionError("failed to persist session artifacts: %v", err)
		return output, err
	}

	logging.Session("session %s finished: success=%v reports=%d", r.sessionID, output.Success, len(output.Reports))
	return output, nil
}

func (r *Runner) say(text string) {
	fmt.Fprintln(r.out, botStyle.Render("Bot")+": "+text)
}

func isQuit(input string) bool {
	switch strings.ToLower(input) {
	case "quit", "exit", "q":
		return true
	}
	return false
}
