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

// OpenAITranscriber calls the Whisper-compatible transcription endpoint,
// adapted from the teacher's pkg/providers/stt/openai.go to this module's
// Transcriber interface.
type OpenAITranscriber struct {
	apiKey     string
	url        string
	model      string
	sampleRate int
}

// NewOpenAITranscriber returns a transcriber against apiKey, defaulting to
// whisper-1 if model is empty.
func NewOpenAITranscriber(apiKey, model string) *OpenAITranscriber {
	if model == "" {
		model = "whisper-1"
	}
	return &OpenAITranscriber{
		apiKey:     apiKey,
		url:        "https://api.openai.com/v1/audio/transcriptions",
		model:      model,
		sampleRate: 44100,
	}
}

// SetSampleRate overrides the WAV container sample rate the PCM buffer is
// assumed to be recorded at.
func (t *OpenAITranscriber) SetSampleRate(rate int) {
	t.sampleRate = rate
}

func (t *OpenAITranscriber) Transcribe(ctx context.Context, pcm []byte, hint orchestrator.Language) (Result, error) {
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
	if _, err := part.Write(wavData); err != nil {
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
		respBody, _ := io.ReadAll(resp.Body)
		return Result{}, fmt.Errorf("transcriber: openai error: %s (status %d)", string(respBody), resp.StatusCode)
	}

	var decoded struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Result{}, err
	}

	return Result{Text: decoded.Text, Language: hint}, nil
}
