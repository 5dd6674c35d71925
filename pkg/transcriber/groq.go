package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/voxtide/agentcore/pkg/audio"
	"github.com/voxtide/agentcore/pkg/orchestrator"
)

// GroqTranscriber calls Groq's OpenAI-compatible transcription endpoint,
// adapted from the teacher's pkg/providers/stt/groq.go.
type GroqTranscriber struct {
	apiKey     string
	url        string
	model      string
	sampleRate int
}

// NewGroqTranscriber returns a transcriber against apiKey, defaulting to
// whisper-large-v3-turbo if model is empty.
func NewGroqTranscriber(apiKey, model string) *GroqTranscriber {
	if model == "" {
		model = "whisper-large-v3-turbo"
	}
	return &GroqTranscriber{
		apiKey:     apiKey,
		url:        "https://api.groq.com/openai/v1/audio/transcriptions",
		model:      model,
		sampleRate: 44100,
	}
}

// SetSampleRate overrides the WAV container sample rate.
func (t *GroqTranscriber) SetSampleRate(rate int) {
	t.sampleRate = rate
}

func (t *GroqTranscriber) Transcribe(ctx context.Context, pcm []byte, hint orchestrator.Language) (Result, error) {
	if len(pcm) == 0 {
		return Result{}, ErrEmptyAudio
	}
	wavData := audio.NewWavBuffer(pcm, t.sampleRate)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("model", t.model); err != nil {
		return Result{}, err
	}
	if hint != "" {
		if err := writer.WriteField("language", string(hint)); err != nil {
			return Result{}, err
		}
	}

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return Result{}, err
	}
	if _, err := io.Copy(part, bytes.NewReader(wavData)); err != nil {
		return Result{}, err
	}
	if err := writer.Close(); err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, body)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return Result{}, fmt.Errorf("transcriber: groq error (status %d): %v", resp.StatusCode, errResp)
	}

	var decoded struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Result{}, err
	}

	return Result{Text: decoded.Text, Language: hint}, nil
}
