package synth

import (
	"context"
	"fmt"
	"io"
	"sync"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/voxtide/agentcore/pkg/orchestrator"
)

// OpenAISynthesizer calls the OpenAI audio-speech endpoint via
// openai-go/v3, the same SDK chatstream_openai.go uses for the reasoning
// loop's chat completions.
type OpenAISynthesizer struct {
	client *openai.Client
	model  string

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewOpenAISynthesizer returns a synthesizer against apiKey using model
// (e.g. "tts-1").
func NewOpenAISynthesizer(apiKey, model string) *OpenAISynthesizer {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	if model == "" {
		model = "tts-1"
	}
	return &OpenAISynthesizer{client: &client, model: model}
}

func (o *OpenAISynthesizer) Synthesize(ctx context.Context, text string, voice orchestrator.Voice) ([]byte, error) {
	callCtx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.cancel = cancel
	o.mu.Unlock()
	defer cancel()

	resp, err := o.client.Audio.Speech.New(callCtx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(o.model),
		Input:          text,
		Voice:          openai.AudioSpeechNewParamsVoice(string(voice)),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatPCM,
	})
	if err != nil {
		if callCtx.Err() != nil {
			return nil, callCtx.Err()
		}
		return nil, fmt.Errorf("%w: openai speech request failed: %v", ErrVendorUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("synth: reading openai speech response: %w", err)
	}
	return data, nil
}

// Abort cancels the in-flight request, if any.
func (o *OpenAISynthesizer) Abort() {
	o.mu.Lock()
	cancel := o.cancel
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
