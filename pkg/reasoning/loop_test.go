package reasoning

import (
	"context"
	"testing"
)

type fakeStream struct {
	events []ChatEvent
	pos    int
}

func (s *fakeStream) Next(ctx context.Context) (ChatEvent, error) {
	if s.pos >= len(s.events) {
		return ChatEvent{Done: true}, nil
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}

func (s *fakeStream) Close() error { return nil }

type scriptedClient struct {
	rounds [][]ChatEvent
	calls  int
}

func (c *scriptedClient) StreamChat(ctx context.Context, messages []Message, tools []ToolDescriptor) (ChatStream, error) {
	round := c.rounds[c.calls]
	c.calls++
	return &fakeStream{events: round}, nil
}

type collectingSink struct {
	fragments []string
	shouldEnd bool
}

func (s *collectingSink) Ingest(fragment string) bool {
	s.fragments = append(s.fragments, fragment)
	return true
}

func (s *collectingSink) ShouldEnd() bool {
	return s.shouldEnd
}

func TestLoopReturnsTextWhenNoToolCalls(t *testing.T) {
	client := &scriptedClient{rounds: [][]ChatEvent{
		{{ContentDelta: "Hello"}, {ContentDelta: " there"}, {Done: true}},
	}}
	loop := NewLoop(client, NewToolRegistry(), nil)
	history := NewConversationHistory(20)
	sink := &collectingSink{}

	result, err := loop.Run(context.Background(), history, sink)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "Hello there" {
		t.Errorf("expected accumulated text, got %q", result.Text)
	}
	if result.Rounds != 1 {
		t.Errorf("expected 1 round, got %d", result.Rounds)
	}
	if len(sink.fragments) != 2 {
		t.Errorf("expected fragments streamed to sink, got %v", sink.fragments)
	}
}

func TestLoopSurfacesShouldEndFromSink(t *testing.T) {
	client := &scriptedClient{rounds: [][]ChatEvent{
		{{ContentDelta: "bye"}, {Done: true}},
	}}
	loop := NewLoop(client, NewToolRegistry(), nil)
	history := NewConversationHistory(20)
	sink := &collectingSink{shouldEnd: true}

	result, err := loop.Run(context.Background(), history, sink)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.ShouldEnd {
		t.Errorf("expected ShouldEnd to be surfaced from the sink")
	}
}

func TestLoopDispatchesToolCallThenContinues(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(echoTool{})

	client := &scriptedClient{rounds: [][]ChatEvent{
		{
			{ToolCallDelta: &ToolCallDelta{Index: 0, ID: "call_1", Name: "echo", ArgumentsJSON: `{"text":"hi"}`}},
			{Done: true},
		},
		{{ContentDelta: "done"}, {Done: true}},
	}}
	loop := NewLoop(client, registry, nil)
	history := NewConversationHistory(20)

	result, err := loop.Run(context.Background(), history, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "done" {
		t.Errorf("expected final round text, got %q", result.Text)
	}
	if result.Rounds != 2 {
		t.Errorf("expected 2 rounds, got %d", result.Rounds)
	}
	if len(result.ToolCalls) != 1 || result.ToolCalls[0].Call.Name != "echo" {
		t.Errorf("expected the dispatched tool call surfaced in the result, got %+v", result.ToolCalls)
	}

	msgs := history.Messages()
	foundToolResult := false
	for _, m := range msgs {
		if m.Role == RoleTool {
			foundToolResult = true
		}
	}
	if !foundToolResult {
		t.Errorf("expected a tool result message appended to history")
	}
}

func TestLoopStopsAtRoundLimit(t *testing.T) {
	rounds := make([][]ChatEvent, MaxRounds)
	for i := range rounds {
		rounds[i] = []ChatEvent{
			{ToolCallDelta: &ToolCallDelta{Index: 0, ID: "call", Name: "echo", ArgumentsJSON: `{"text":"x"}`}},
			{Done: true},
		}
	}
	registry := NewToolRegistry()
	registry.Register(echoTool{})
	client := &scriptedClient{rounds: rounds}
	loop := NewLoop(client, registry, nil)

	result, err := loop.Run(context.Background(), NewConversationHistory(50), nil)
	if err != ErrRoundLimitExceeded {
		t.Fatalf("expected ErrRoundLimitExceeded, got %v", err)
	}
	if result.Rounds != MaxRounds {
		t.Errorf("expected exactly MaxRounds rounds spent, got %d", result.Rounds)
	}
}

func TestLoopAccumulatesToolCallDeltasAcrossFragments(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(echoTool{})

	client := &scriptedClient{rounds: [][]ChatEvent{
		{
			{ToolCallDelta: &ToolCallDelta{Index: 0, ID: "call_1", Name: "ec"}},
			{ToolCallDelta: &ToolCallDelta{Index: 0, Name: "ho"}},
			{ToolCallDelta: &ToolCallDelta{Index: 0, ArgumentsJSON: `{"text":`}},
			{ToolCallDelta: &ToolCallDelta{Index: 0, ArgumentsJSON: `"hi"}`}},
			{Done: true},
		},
		{{ContentDelta: "ok"}, {Done: true}},
	}}
	loop := NewLoop(client, registry, nil)
	_, err := loop.Run(context.Background(), NewConversationHistory(20), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
