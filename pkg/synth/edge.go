package synth

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/voxtide/agentcore/pkg/orchestrator"
)

// EdgeSynthesizer drives Edge-TTS's websocket streaming protocol, adapted
// from the teacher's pkg/providers/tts/lokutor.go (same dial-once,
// reconnect-on-error connection shape, same binary-audio/text-control
// message split).
type EdgeSynthesizer struct {
	host   string
	scheme string

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
}

// NewEdgeSynthesizer returns a synthesizer against Microsoft's public
// Edge-TTS endpoint.
func NewEdgeSynthesizer() *EdgeSynthesizer {
	return &EdgeSynthesizer{host: "speech.platform.bing.com", scheme: "wss"}
}

func (e *EdgeSynthesizer) getConn(ctx context.Context) (*websocket.Conn, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.conn != nil {
		return e.conn, nil
	}

	u := url.URL{Scheme: e.scheme, Host: e.host, Path: "/consumer/speech/synthesize/readaloud/edge/v1"}
	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("synth: edge dial failed: %w", err)
	}
	e.conn = conn
	return conn, nil
}

func (e *EdgeSynthesizer) Synthesize(ctx context.Context, text string, voice orchestrator.Voice) ([]byte, error) {
	conn, err := e.getConn(ctx)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()
	defer cancel()

	req := map[string]interface{}{
		"text":  text,
		"voice": string(voice),
	}
	if err := wsjson.Write(callCtx, conn, req); err != nil {
		e.dropConn()
		return nil, fmt.Errorf("%w: edge write failed: %v", ErrVendorUnavailable, err)
	}

	var audio []byte
	for {
		messageType, payload, err := conn.Read(callCtx)
		if err != nil {
			e.dropConn()
			if callCtx.Err() != nil {
				return nil, callCtx.Err()
			}
			return nil, fmt.Errorf("%w: edge read failed: %v", ErrVendorUnavailable, err)
		}

		switch messageType {
		case websocket.MessageBinary:
			audio = append(audio, payload...)
		case websocket.MessageText:
			msg := string(payload)
			if msg == "EOS" {
				return audio, nil
			}
			if len(msg) >= 4 && msg[:4] == "ERR:" {
				return nil, fmt.Errorf("synth: edge vendor error: %s", msg)
			}
		}
	}
}

// Abort cancels whatever Synthesize call is currently in flight, letting a
// barge-in take effect without waiting for the vendor round trip to
// finish.
func (e *EdgeSynthesizer) Abort() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (e *EdgeSynthesizer) dropConn() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn != nil {
		e.conn.Close(websocket.StatusAbnormalClosure, "synth: resetting connection")
		e.conn = nil
	}
}

// Close releases the underlying websocket connection.
func (e *EdgeSynthesizer) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn != nil {
		err := e.conn.Close(websocket.StatusNormalClosure, "")
		e.conn = nil
		return err
	}
	return nil
}
