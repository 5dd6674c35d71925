package reasoning

import "context"

// ChatEvent is one item of a ChatStream: either a fragment of assistant
// text, a fragment of a tool call, or the terminal "done" marker. Exactly
// one of ContentDelta/ToolCallDelta is non-zero on any non-terminal event.
type ChatEvent struct {
	ContentDelta  string
	ToolCallDelta *ToolCallDelta
	Done          bool
}

// ToolCallDelta is one fragment of a tool call as it streams in. Index
// identifies which tool call (in the round's call list) this fragment
// belongs to, per the OpenAI streaming delta convention; a single call's
// Name and ArgumentsJSON may each arrive split across several deltas.
type ToolCallDelta struct {
	Index         int
	ID            string
	Name          string
	ArgumentsJSON string
}

// ChatStream is a lazy, finite, non-restartable sequence of ChatEvents
// produced by one round of the remote chat model. Next returns
// io.EOF-shaped termination via the Done event rather than a sentinel
// error, so callers drain it with a simple loop:
//
//	for {
//	    ev, err := stream.Next(ctx)
//	    if err != nil { ... }
//	    if ev.Done { break }
//	    ...
//	}
type ChatStream interface {
	Next(ctx context.Context) (ChatEvent, error)
	Close() error
}

// ChatClient opens a new ChatStream for one round of the reasoning loop,
// given the current conversation history and the tools available to it.
type ChatClient interface {
	StreamChat(ctx context.Context, messages []Message, tools []ToolDescriptor) (ChatStream, error)
}
