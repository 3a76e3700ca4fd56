package backend

import (
	"context"
	"iter"
)

// TurnRequest describes one prompt submission to the agent.
type TurnRequest struct {
	Prompt string

	// SDKSessionID resumes an existing agent session when set. Left empty
	// the agent starts a fresh conversation and assigns a new id.
	SDKSessionID string

	Model        string
	SystemPrompt string
	AllowedTools []string
	Env          map[string]string
	WorkingDir   string
}

// Runner executes one agent turn and yields its event stream in arrival
// order. Implementations must honor ctx cancellation between events and
// stop yielding once the consumer returns false.
type Runner interface {
	Stream(ctx context.Context, req TurnRequest) iter.Seq2[*Event, error]
}
