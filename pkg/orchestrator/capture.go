package orchestrator

import (
	"bytes"
	"context"
	"sync"
	"time"
)

// VADEventType enumerates the transitions an VADProvider can report.
type VADEventType int

const (
	VADSilence VADEventType = iota
	VADSpeechStart
	VADSpeechEnd
)

// VADEvent is emitted by a VADProvider whenever speech activity changes.
type VADEvent struct {
	Type      VADEventType
	Timestamp int64
}

// VADProvider is implemented by any voice-activity detector pluggable into
// a CaptureStream. RMSVAD (vad.go) is the built-in, dependency-free default.
type VADProvider interface {
	Process(chunk []byte) (*VADEvent, error)
	Name() string
	Reset()
	Clone() VADProvider
}

// CaptureEventType enumerates what a CaptureStream reports on its Events
// channel. The host process (cmd/agent) uses these to drive UI/CLI feedback;
// nothing inside this package blocks on them being read.
type CaptureEventType int

const (
	EventUserSpeaking CaptureEventType = iota
	EventUserStopped
	EventBargeIn
	EventTurnStarted
	EventTurnCompleted
	EventTurnFailed
)

// CaptureEvent is one notification emitted by a CaptureStream.
type CaptureEvent struct {
	Type      CaptureEventType
	SessionID string
	Data      interface{}
}

// TurnOutcome is the minimal shape CaptureStream needs back from a finished
// turn. TurnHandler implementations (an adapter over *session.Supervisor,
// wired in cmd/agent) translate their richer result into this.
type TurnOutcome struct {
	AssistantText string
	Completed     bool
}

// TurnHandler decouples CaptureStream from pkg/session so the two packages
// don't form an import cycle (session already depends on orchestrator for
// Config/Voice/Language). cmd/agent supplies an adapter wrapping a
// *session.Supervisor.
type TurnHandler interface {
	HandleAudioTurn(ctx context.Context, pcm []byte, hint Language) (TurnOutcome, error)
	Interrupt()
	ResetInterrupt()
}

const speechEndHold = 300 * time.Millisecond

// leadInBytes is ~100ms of lead-in audio at 44.1kHz/16-bit mono, kept so the
// echo check has enough context to correlate against recent playback.
const leadInBytes = 8820

// rollingBufferCap and rollingBufferTrim bound the pre-speech rolling buffer
// to roughly 2s / 1.5s at 44.1kHz/16-bit mono, matching the sample rate this
// package is built around (see orchestrator.DefaultConfig).
const (
	rollingBufferCap  = 176400
	rollingBufferTrim = 132300
)

// CaptureStream gates a duplex mic/speaker audio loop with VAD and echo
// suppression, detects user speech start/end and mid-response barge-in, and
// hands finished user turns to a TurnHandler. It owns none of the model or
// TTS plumbing itself — HandleAudioTurn, pkg/pipeline and pkg/synth do that;
// this is only the capture-side gate that decides WHEN a turn begins.
type CaptureStream struct {
	handler   TurnHandler
	sessionID string
	language  Language

	vad            VADProvider
	echoSuppressor *EchoSuppressor
	logger         Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu              sync.Mutex
	audioBuf        *bytes.Buffer
	botSpeaking     bool
	lastAudioSentAt time.Time
	turnGeneration  int

	events    chan CaptureEvent
	closeOnce sync.Once
}

// NewCaptureStream builds a CaptureStream. vad may be nil, in which case a
// default RMSVAD is used.
func NewCaptureStream(ctx context.Context, handler TurnHandler, sessionID string, cfg Config, vad VADProvider, logger Logger) *CaptureStream {
	cctx, cancel := context.WithCancel(ctx)
	if vad == nil {
		vad = NewRMSVAD(0.02, 500*time.Millisecond)
	}
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &CaptureStream{
		handler:        handler,
		sessionID:      sessionID,
		language:       cfg.Language,
		vad:            vad,
		echoSuppressor: NewEchoSuppressor(),
		logger:         logger,
		ctx:            cctx,
		cancel:         cancel,
		audioBuf:       new(bytes.Buffer),
		events:         make(chan CaptureEvent, 1024),
	}
}

// Events exposes capture notifications to the host process.
func (cs *CaptureStream) Events() <-chan CaptureEvent {
	return cs.events
}

// NotifyBotSpeaking marks whether the TTS pipeline is currently producing
// audible output. CaptureStream uses this to widen the VAD's confirmation
// window (avoiding self-interruption on spurious noise) without ever
// blocking a genuine barge-in.
func (cs *CaptureStream) NotifyBotSpeaking(speaking bool) {
	cs.mu.Lock()
	cs.botSpeaking = speaking
	if !speaking {
		cs.lastAudioSentAt = time.Now()
	}
	cs.mu.Unlock()
}

// RecordPlayedOutput feeds samples just sent to the speaker into the echo
// suppressor's reference buffer so the next mic chunk can be compared
// against what the speaker is expected to produce.
func (cs *CaptureStream) RecordPlayedOutput(chunk []byte) {
	if cs.echoSuppressor != nil {
		cs.echoSuppressor.RecordPlayedAudio(chunk)
	}
}

// Write feeds one chunk of mic PCM into the capture gate. It never blocks on
// the reasoning/TTS pipeline: speech-end triggers HandleAudioTurn in its own
// goroutine.
func (cs *CaptureStream) Write(chunk []byte) error {
	// While the bot is speaking, require more sustained sound to trigger a
	// barge-in (filters transient noise/echo slips); just after it stops,
	// tighten the threshold briefly to avoid mistaking tail-end playback
	// echo for the start of a new user turn. Both adjustments are undone
	// before this chunk returns so they never leak into the next one.
	if rmsVAD, ok := cs.vad.(*RMSVAD); ok {
		originalThreshold := rmsVAD.Threshold()
		originalMinConfirmed := rmsVAD.MinConfirmed()

		cs.mu.Lock()
		speaking := cs.botSpeaking
		lastSent := cs.lastAudioSentAt
		cs.mu.Unlock()

		if speaking {
			if originalMinConfirmed < 3 {
				rmsVAD.SetMinConfirmed(3)
			}
		} else if time.Since(lastSent) < 250*time.Millisecond {
			rmsVAD.SetThreshold(0.25)
		}

		defer func() {
			rmsVAD.SetThreshold(originalThreshold)
			rmsVAD.SetMinConfirmed(originalMinConfirmed)
		}()
	}

	cleaned := chunk
	if cs.echoSuppressor != nil {
		cleaned = cs.echoSuppressor.RemoveEchoRealtime(chunk)
	}

	event, err := cs.vad.Process(cleaned)
	if err != nil {
		return err
	}

	if event != nil {
		switch event.Type {
		case VADSpeechStart:
			cs.handleSpeechStart(cleaned)
		case VADSpeechEnd:
			cs.handleSpeechEnd()
		}
	}

	cs.mu.Lock()
	cs.audioBuf.Write(cleaned)
	if cs.audioBuf.Len() > rollingBufferCap {
		data := cs.audioBuf.Bytes()
		leadIn := data[len(data)-rollingBufferTrim:]
		cs.audioBuf.Reset()
		cs.audioBuf.Write(leadIn)
	}
	cs.mu.Unlock()

	return nil
}

func (cs *CaptureStream) handleSpeechStart(chunk []byte) {
	cs.mu.Lock()
	lead := cs.audioBuf.Bytes()
	if len(lead) > leadInBytes {
		lead = lead[len(lead)-leadInBytes:]
	}
	checkBuf := make([]byte, 0, len(lead)+len(chunk))
	checkBuf = append(checkBuf, lead...)
	checkBuf = append(checkBuf, chunk...)
	speaking := cs.botSpeaking
	lastSent := cs.lastAudioSentAt
	cs.mu.Unlock()

	if cs.echoSuppressor != nil && cs.echoSuppressor.IsEcho(checkBuf) {
		return
	}
	if speaking && time.Since(lastSent) < 120*time.Millisecond {
		return
	}

	if speaking {
		cs.emit(EventBargeIn, nil)
		cs.handler.Interrupt()
		cs.mu.Lock()
		cs.turnGeneration++
		cs.mu.Unlock()
		return
	}

	cs.emit(EventUserSpeaking, nil)
	cs.handler.ResetInterrupt()
}

func (cs *CaptureStream) handleSpeechEnd() {
	cs.emit(EventUserStopped, nil)

	cs.mu.Lock()
	audioData := make([]byte, cs.audioBuf.Len())
	copy(audioData, cs.audioBuf.Bytes())
	cs.audioBuf.Reset()
	generation := cs.turnGeneration
	cs.mu.Unlock()

	go func() {
		t := time.NewTimer(speechEndHold)
		defer t.Stop()

		select {
		case <-t.C:
			if rmsVAD, ok := cs.vad.(*RMSVAD); ok && rmsVAD.IsSpeaking() {
				cs.mu.Lock()
				resumed := cs.audioBuf.Bytes()
				merged := make([]byte, 0, len(audioData)+len(resumed))
				merged = append(merged, audioData...)
				merged = append(merged, resumed...)
				cs.audioBuf.Reset()
				cs.audioBuf.Write(merged)
				cs.mu.Unlock()
				return
			}
			cs.runTurn(audioData, generation)
		case <-cs.ctx.Done():
		}
	}()
}

func (cs *CaptureStream) runTurn(audioData []byte, generation int) {
	cs.mu.Lock()
	stale := generation != cs.turnGeneration
	cs.mu.Unlock()
	if stale || len(audioData) == 0 {
		return
	}

	cs.emit(EventTurnStarted, nil)
	outcome, err := cs.handler.HandleAudioTurn(cs.ctx, audioData, cs.language)
	if err != nil {
		cs.logger.Warn("capture: turn failed", "session_id", cs.sessionID, "error", err)
		cs.emit(EventTurnFailed, err)
		return
	}
	cs.emit(EventTurnCompleted, outcome)
}

func (cs *CaptureStream) emit(t CaptureEventType, data interface{}) {
	select {
	case <-cs.ctx.Done():
		return
	default:
	}
	event := CaptureEvent{Type: t, SessionID: cs.sessionID, Data: data}
	select {
	case cs.events <- event:
	case <-cs.ctx.Done():
	default:
	}
}

// Close stops the capture stream; safe to call more than once.
func (cs *CaptureStream) Close() {
	cs.closeOnce.Do(func() {
		cs.cancel()
	})
}
