package reasoning

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/voxtide/agentcore/pkg/orchestrator"
)

// MaxRounds bounds how many tool-calling round-trips a single turn may take
// before the loop gives up and returns whatever text it has (spec §4.5).
const MaxRounds = 5

// ErrRoundLimitExceeded is returned when the model keeps calling tools past
// MaxRounds without ever producing a final, tool-free response.
var ErrRoundLimitExceeded = errors.New("reasoning: exceeded maximum tool-calling rounds")

// TextSink receives assistant text fragments as they stream in, e.g.
// pipeline.Pipeline.IngestText via a thin adapter in pkg/session.
// ShouldEnd reports whether the sink has observed a control sentinel (e.g.
// END_CONVERSATION) that should end the session once the current turn
// drains.
type TextSink interface {
	Ingest(fragment string) bool
	ShouldEnd() bool
}

// RunResult is what a single Loop.Run call produces: the assembled text,
// how many rounds it took, the ordered log of every tool call dispatched
// across those rounds, and whether the sink observed an end-of-conversation
// sentinel.
type RunResult struct {
	Text      string
	Rounds    int
	ToolCalls []ToolInvocation
	ShouldEnd bool
}

// Loop drives the multi-round tool-calling conversation for a single turn:
// stream a round from the chat model, forward content fragments to the
// TextSink as they arrive, accumulate and dispatch any tool calls, append
// the results to history, and repeat until the model stops calling tools or
// MaxRounds is hit.
type Loop struct {
	Client   ChatClient
	Tools    *ToolRegistry
	Logger   orchestrator.Logger
	MaxRound int
}

// NewLoop wires a Loop with the spec's default round cap.
func NewLoop(client ChatClient, tools *ToolRegistry, logger orchestrator.Logger) *Loop {
	if logger == nil {
		logger = &orchestrator.NoOpLogger{}
	}
	return &Loop{Client: client, Tools: tools, Logger: logger, MaxRound: MaxRounds}
}

// Run executes the loop against history, streaming assistant text into
// sink. It returns a RunResult carrying the assembled text (tool-call
// rounds contribute no visible text), the round count spent, the ordered
// log of every tool call dispatched, and whether sink signaled
// end-of-conversation.
func (l *Loop) Run(ctx context.Context, history *ConversationHistory, sink TextSink) (RunResult, error) {
	result := RunResult{}

	for round := 1; round <= l.MaxRound; round++ {
		result.Rounds = round

		stream, err := l.Client.StreamChat(ctx, history.Messages(), l.Tools.Descriptors())
		if err != nil {
			return result, fmt.Errorf("opening chat stream: %w", err)
		}

		text, calls, err := l.drain(ctx, stream, sink)
		stream.Close()
		if err != nil {
			return result, err
		}

		if text != "" {
			result.Text += text
		}

		if len(calls) == 0 {
			history.Append(Message{Role: RoleAssistant, Content: text})
			if sink != nil {
				result.ShouldEnd = sink.ShouldEnd()
			}
			return result, nil
		}

		history.Append(Message{Role: RoleAssistant, Content: text, ToolCalls: calls})
		for _, call := range calls {
			toolResult := l.Tools.Dispatch(ctx, call)
			result.ToolCalls = append(result.ToolCalls, ToolInvocation{Call: call, Result: toolResult})
			history.Append(Message{Role: RoleTool, Content: toolResult.Content, ToolCallID: toolResult.ToolCallID})
		}
	}

	if sink != nil {
		result.ShouldEnd = sink.ShouldEnd()
	}
	return result, ErrRoundLimitExceeded
}

// drain reads stream to completion, forwarding content deltas to sink and
// accumulating tool-call deltas by index into complete ToolCalls.
func (l *Loop) drain(ctx context.Context, stream ChatStream, sink TextSink) (string, []ToolCall, error) {
	var text string
	byIndex := make(map[int]*ToolCall)

	for {
		ev, err := stream.Next(ctx)
		if err != nil {
			return text, nil, fmt.Errorf("reading chat stream: %w", err)
		}
		if ev.Done {
			break
		}
		if ev.ContentDelta != "" {
			text += ev.ContentDelta
			if sink != nil {
				sink.Ingest(ev.ContentDelta)
			}
		}
		if ev.ToolCallDelta != nil {
			d := ev.ToolCallDelta
			tc, ok := byIndex[d.Index]
			if !ok {
				tc = &ToolCall{}
				byIndex[d.Index] = tc
			}
			if d.ID != "" {
				tc.ID = d.ID
			}
			tc.Name += d.Name
			tc.ArgumentsJSON += d.ArgumentsJSON
		}
	}

	return text, orderedToolCalls(byIndex), nil
}

func orderedToolCalls(byIndex map[int]*ToolCall) []ToolCall {
	if len(byIndex) == 0 {
		return nil
	}
	indices := make([]int, 0, len(byIndex))
	for i := range byIndex {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	out := make([]ToolCall, 0, len(indices))
	for _, i := range indices {
		out = append(out, *byIndex[i])
	}
	return out
}
