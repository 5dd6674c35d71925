package transcriber

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voxtide/agentcore/pkg/orchestrator"
)

func TestOpenAITranscriber(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		resp := struct {
			Text string `json:"text"`
		}{Text: "transcribed text"}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	tr := &OpenAITranscriber{apiKey: "test-key", url: server.URL, model: "whisper-1", sampleRate: 44100}

	result, err := tr.Transcribe(context.Background(), []byte{0, 0, 0, 0}, orchestrator.LanguageEn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "transcribed text" {
		t.Errorf("expected transcribed text, got %q", result.Text)
	}
}

func TestOpenAITranscriberRejectsEmptyAudio(t *testing.T) {
	tr := NewOpenAITranscriber("key", "")
	_, err := tr.Transcribe(context.Background(), nil, orchestrator.LanguageEn)
	if err != ErrEmptyAudio {
		t.Fatalf("expected ErrEmptyAudio, got %v", err)
	}
}

func TestOpenAITranscriberSurfacesHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	tr := &OpenAITranscriber{apiKey: "k", url: server.URL, model: "whisper-1", sampleRate: 44100}
	_, err := tr.Transcribe(context.Background(), []byte{1, 2}, "")
	if err == nil {
		t.Fatalf("expected an error on a non-200 response")
	}
}
