// Package session implements the Session Supervisor: it owns a turn's
// lifecycle end to end (transcription handoff, reasoning loop, TTS
// pipeline), enforces the two timeout budgets, and persists the
// conversation transcript on every exit path.
package session

import (
	"time"

	"github.com/voxtide/agentcore/pkg/reasoning"
)

// Outcome is the sum type every Turn resolves to — never a raw error or a
// panic crossing the turn boundary.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeTimedOut  Outcome = "timed_out"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// Turn records one user-utterance/assistant-response exchange. ToolCalls is
// the ordered log of every tool dispatched during the turn, each paired
// with its result (or error).
type Turn struct {
	TurnID        string
	UserText      string
	AssistantText string
	ToolCalls     []reasoning.ToolInvocation
	StartedAt     time.Time
	EndedAt       time.Time
	Outcome       Outcome
}

// Duration reports how long the turn took; zero if it hasn't ended yet.
func (t Turn) Duration() time.Duration {
	if t.EndedAt.IsZero() {
		return 0
	}
	return t.EndedAt.Sub(t.StartedAt)
}
