package reasoning

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/ssestream"
	"github.com/openai/openai-go/v3/shared"
)

// OpenAIChatClient drives an OpenAI-compatible streaming chat-completion
// endpoint — the default, out-of-scope-internals remote chat model spec §6
// calls for. It is grounded on the same openai-go/v3 SDK surface the
// corpus uses for non-streaming completions, adapted here to pump events
// into the module's own ChatStream abstraction instead of exposing the raw
// SDK iterator.
type OpenAIChatClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIChatClient builds a client against apiKey/model, optionally
// pointed at a compatible baseURL (e.g. a local or third-party gateway).
func NewOpenAIChatClient(apiKey, model, baseURL string) *OpenAIChatClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAIChatClient{client: &client, model: model}
}

// StreamChat opens one round of the chat completion stream and starts
// pumping its events into a buffered channel, mirroring the teacher's
// channel-based chunk delivery (openailm.Client.StreamChat).
func (c *OpenAIChatClient) StreamChat(ctx context.Context, messages []Message, tools []ToolDescriptor) (ChatStream, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: convertMessages(messages),
	}
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}

	stream := c.client.Chat.Completions.NewStreaming(ctx, params)
	s := &openAIChatStream{events: make(chan ChatEvent, 64), errCh: make(chan error, 1)}

	go s.pump(stream)

	return s, nil
}

type openAIChatStream struct {
	events chan ChatEvent
	errCh  chan error
}

func (s *openAIChatStream) pump(stream *ssestream.Stream[openai.ChatCompletionChunk]) {
	defer close(s.events)

	for stream.Next() {
		event := stream.Current()
		if len(event.Choices) == 0 {
			continue
		}
		delta := event.Choices[0].Delta

		if delta.Content != "" {
			s.events <- ChatEvent{ContentDelta: delta.Content}
		}
		for i, tc := range delta.ToolCalls {
			idx := i
			if tc.Index != 0 {
				idx = int(tc.Index)
			}
			s.events <- ChatEvent{ToolCallDelta: &ToolCallDelta{
				Index:         idx,
				ID:            tc.ID,
				Name:          tc.Function.Name,
				ArgumentsJSON: tc.Function.Arguments,
			}}
		}
	}
	if err := stream.Err(); err != nil {
		s.errCh <- err
		return
	}
	s.events <- ChatEvent{Done: true}
}

func (s *openAIChatStream) Next(ctx context.Context) (ChatEvent, error) {
	select {
	case <-ctx.Done():
		return ChatEvent{}, ctx.Err()
	case err := <-s.errCh:
		return ChatEvent{}, fmt.Errorf("reasoning: chat stream failed: %w", err)
	case ev, ok := <-s.events:
		if !ok {
			return ChatEvent{Done: true}, nil
		}
		return ev, nil
	}
}

func (s *openAIChatStream) Close() error {
	return nil
}

func convertMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	items := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleTool:
			items = append(items, openai.ChatCompletionMessageParamUnion{
				OfTool: &openai.ChatCompletionToolMessageParam{
					Role:       "tool",
					ToolCallID: m.ToolCallID,
					Content: openai.ChatCompletionToolMessageParamContentUnion{
						OfString: openai.String(m.Content),
					},
				},
			})
		case RoleAssistant:
			if len(m.ToolCalls) > 0 {
				calls := make([]openai.ChatCompletionMessageToolCallUnionParam, 0, len(m.ToolCalls))
				for _, tc := range m.ToolCalls {
					calls = append(calls, openai.ChatCompletionMessageToolCallUnionParam{
						OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
							ID:   tc.ID,
							Type: "function",
							Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
								Name:      tc.Name,
								Arguments: tc.ArgumentsJSON,
							},
						},
					})
				}
				items = append(items, openai.ChatCompletionMessageParamUnion{
					OfAssistant: &openai.ChatCompletionAssistantMessageParam{
						Role:      "assistant",
						ToolCalls: calls,
					},
				})
			} else {
				items = append(items, openai.ChatCompletionMessageParamUnion{
					OfAssistant: &openai.ChatCompletionAssistantMessageParam{
						Role: "assistant",
						Content: openai.ChatCompletionAssistantMessageParamContentUnion{
							OfString: openai.String(m.Content),
						},
					},
				})
			}
		case RoleUser:
			items = append(items, openai.ChatCompletionMessageParamUnion{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Role: "user",
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(m.Content),
					},
				},
			})
		case RoleSystem:
			items = append(items, openai.ChatCompletionMessageParamUnion{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Role: "system",
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(m.Content),
					},
				},
			})
		}
	}
	return items
}

func convertTools(tools []ToolDescriptor) []openai.ChatCompletionToolUnionParam {
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.ChatCompletionToolUnionParam{
			OfFunction: &openai.ChatCompletionFunctionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        t.Function.Name,
					Description: openai.String(t.Function.Description),
					Parameters:  schemaToParameters(t.Function.Parameters),
				},
			},
		})
	}
	return out
}

// schemaToParameters round-trips a *jsonschema.Schema through JSON into the
// plain map[string]any the SDK's FunctionDefinitionParam.Parameters field
// expects — the two packages don't share a schema type.
func schemaToParameters(schema any) shared.FunctionParameters {
	if schema == nil {
		return nil
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var params shared.FunctionParameters
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil
	}
	return params
}
