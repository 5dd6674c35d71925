package synth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/voxtide/agentcore/pkg/orchestrator"
)

func TestEdgeSynthesizerStreamsBinaryFramesUntilEOS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "closing")

		var req map[string]interface{}
		if err := wsjson.Read(r.Context(), conn, &req); err != nil {
			return
		}

		conn.Write(r.Context(), websocket.MessageBinary, []byte{1, 2, 3})
		conn.Write(r.Context(), websocket.MessageBinary, []byte{4, 5, 6})
		conn.Write(r.Context(), websocket.MessageText, []byte("EOS"))
	}))
	defer server.Close()

	e := &EdgeSynthesizer{host: strings.TrimPrefix(server.URL, "http://"), scheme: "ws"}

	audio, err := e.Synthesize(context.Background(), "hello", orchestrator.Voice("en-US-AriaNeural"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(audio) != 6 {
		t.Errorf("expected 6 bytes of audio, got %d", len(audio))
	}
	e.Close()
}

func TestEdgeSynthesizerSurfacesVendorError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "closing")

		var req map[string]interface{}
		if err := wsjson.Read(r.Context(), conn, &req); err != nil {
			return
		}
		conn.Write(r.Context(), websocket.MessageText, []byte("ERR:rate limited"))
	}))
	defer server.Close()

	e := &EdgeSynthesizer{host: strings.TrimPrefix(server.URL, "http://"), scheme: "ws"}
	_, err := e.Synthesize(context.Background(), "hello", orchestrator.Voice("en-US-AriaNeural"))
	if err == nil {
		t.Fatalf("expected a vendor error")
	}
}
