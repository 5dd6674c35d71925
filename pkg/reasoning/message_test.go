package reasoning

import "testing"

func TestConversationHistoryKeepsSystemPromptWhenTrimming(t *testing.T) {
	h := NewConversationHistory(3)
	h.Append(Message{Role: RoleSystem, Content: "system prompt"})
	for i := 0; i < 5; i++ {
		h.Append(Message{Role: RoleUser, Content: "msg"})
	}

	msgs := h.Messages()
	if len(msgs) != 3 {
		t.Fatalf("expected history capped at 3, got %d", len(msgs))
	}
	if msgs[0].Role != RoleSystem {
		t.Errorf("expected system prompt to survive trimming, got role %v first", msgs[0].Role)
	}
}

func TestConversationHistoryClear(t *testing.T) {
	h := NewConversationHistory(10)
	h.Append(Message{Role: RoleUser, Content: "hi"})
	h.Clear()
	if h.Len() != 0 {
		t.Errorf("expected history empty after Clear, got %d", h.Len())
	}
}

func TestConversationHistoryMessagesIsACopy(t *testing.T) {
	h := NewConversationHistory(10)
	h.Append(Message{Role: RoleUser, Content: "hi"})
	msgs := h.Messages()
	msgs[0].Content = "mutated"
	if h.Messages()[0].Content != "hi" {
		t.Errorf("expected Messages() to return an independent copy")
	}
}
