package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeTurnHandler struct {
	mu           sync.Mutex
	turns        [][]byte
	interrupts   int
	resets       int
	responseText string
	failNext     bool
}

func (f *fakeTurnHandler) HandleAudioTurn(ctx context.Context, pcm []byte, hint Language) (TurnOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns = append(f.turns, pcm)
	if f.failNext {
		f.failNext = false
		return TurnOutcome{}, errors.New("boom")
	}
	return TurnOutcome{AssistantText: f.responseText, Completed: true}, nil
}

func (f *fakeTurnHandler) Interrupt() {
	f.mu.Lock()
	f.interrupts++
	f.mu.Unlock()
}

func (f *fakeTurnHandler) ResetInterrupt() {
	f.mu.Lock()
	f.resets++
	f.mu.Unlock()
}

func (f *fakeTurnHandler) turnCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.turns)
}

func newTestCaptureStream(handler TurnHandler) *CaptureStream {
	cfg := DefaultConfig()
	// A low threshold and a single confirming frame keeps these tests fast
	// and deterministic: one loud chunk starts speech (three while the bot is
	// speaking, see CaptureStream.Write), and silence written in real time
	// past the 50ms limit ends it.
	vad := NewRMSVAD(0.02, 50*time.Millisecond)
	vad.SetMinConfirmed(1)
	return NewCaptureStream(context.Background(), handler, "sess-1", cfg, vad, nil)
}

func waitForTurns(t *testing.T, h *fakeTurnHandler, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.turnCount() >= n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d turn(s), got %d", n, h.turnCount())
}

func TestCaptureStreamRunsTurnAfterSpeechEnd(t *testing.T) {
	handler := &fakeTurnHandler{responseText: "hi there"}
	cs := newTestCaptureStream(handler)
	defer cs.Close()

	loud := generateSine(440, 50, 44100, 0.8)
	silence := make([]byte, len(loud))

	if err := cs.Write(loud); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Hold past the silence limit (50ms); the VAD measures it by wall clock,
	// so the writes are paced. waitForTurns then covers speechEndHold (300ms).
	for i := 0; i < 10; i++ {
		if err := cs.Write(silence); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	waitForTurns(t, handler, 1)
}

func TestCaptureStreamBargeInInterruptsHandlerWithoutStartingATurn(t *testing.T) {
	handler := &fakeTurnHandler{}
	cs := newTestCaptureStream(handler)
	defer cs.Close()

	cs.NotifyBotSpeaking(true)

	// While the bot is speaking, Write requires three consecutive loud
	// chunks to confirm speech.
	loud := generateSine(440, 50, 44100, 0.8)
	for i := 0; i < 3; i++ {
		if err := cs.Write(loud); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	handler.mu.Lock()
	interrupts := handler.interrupts
	handler.mu.Unlock()

	if interrupts != 1 {
		t.Errorf("expected exactly one Interrupt() call on barge-in, got %d", interrupts)
	}
}

func TestCaptureStreamEmitsTurnFailedOnHandlerError(t *testing.T) {
	handler := &fakeTurnHandler{failNext: true}
	cs := newTestCaptureStream(handler)
	defer cs.Close()

	loud := generateSine(440, 50, 44100, 0.8)
	silence := make([]byte, len(loud))

	_ = cs.Write(loud)
	for i := 0; i < 10; i++ {
		_ = cs.Write(silence)
		time.Sleep(10 * time.Millisecond)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-cs.Events():
			if ev.Type == EventTurnFailed {
				return
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected an EventTurnFailed notification")
}

func TestCaptureStreamCloseIsIdempotent(t *testing.T) {
	cs := newTestCaptureStream(&fakeTurnHandler{})
	cs.Close()
	cs.Close()
}
