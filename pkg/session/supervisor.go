package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxtide/agentcore/pkg/orchestrator"
	"github.com/voxtide/agentcore/pkg/pipeline"
	"github.com/voxtide/agentcore/pkg/reasoning"
	"github.com/voxtide/agentcore/pkg/transcriber"
)

func countWords(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	return len(strings.Fields(s))
}

// State is the Supervisor's lifecycle state.
type State string

const (
	StateIdle           State = "idle"
	StateStarted        State = "started"
	StateTurnInProgress State = "turn_in_progress"
	StateEnded          State = "ended"
)

// pipelineSink adapts a pipeline.Pipeline to reasoning.TextSink, feeding
// streamed assistant text into the splitter as it arrives.
type pipelineSink struct {
	p *pipeline.Pipeline
}

func (s *pipelineSink) Ingest(fragment string) bool {
	segs := s.p.Splitter.Ingest(fragment)
	dropped := s.p.IngestText(segs)
	return dropped == 0
}

func (s *pipelineSink) ShouldEnd() bool {
	return s.p.Splitter.ShouldEnd()
}

// Supervisor owns one conversation's full lifecycle: it receives
// transcribed user text, drives the reasoning loop, feeds the result
// through the TTS pipeline, enforces the reasoning and TTS-wait timeouts,
// and persists the transcript on every exit path — normal completion,
// timeout, interrupt, or shutdown.
type Supervisor struct {
	Config       orchestrator.Config
	Transcriber  transcriber.Transcriber
	Loop         *reasoning.Loop
	Pipeline     *pipeline.Pipeline
	History      *reasoning.ConversationHistory
	Store        *Store
	Logger       orchestrator.Logger

	mu        sync.Mutex
	state     State
	sessionID string
	turns     []Turn
	startedAt time.Time

	pipelineCancel context.CancelFunc
	pipelineDone   chan struct{}

	closeOnce sync.Once
}

// NewSupervisor constructs a Supervisor in the idle state.
func NewSupervisor(cfg orchestrator.Config, t transcriber.Transcriber, loop *reasoning.Loop, p *pipeline.Pipeline, store *Store, logger orchestrator.Logger) *Supervisor {
	if logger == nil {
		logger = &orchestrator.NoOpLogger{}
	}
	// AlphabeticMinChunk raises the splitter's minimum only when configured
	// and only for non-CJK sessions.
	if p != nil && p.Splitter != nil && cfg.AlphabeticMinChunk > 0 &&
		cfg.Language != orchestrator.LanguageZh && cfg.Language != orchestrator.LanguageJa {
		p.Splitter.SetMinChunkLength(cfg.AlphabeticMinChunk)
	}
	return &Supervisor{
		Config:      cfg,
		Transcriber: t,
		Loop:        loop,
		Pipeline:    p,
		History:     reasoning.NewConversationHistory(cfg.MaxContextMessages),
		Store:       store,
		Logger:      logger,
		state:       StateIdle,
		sessionID:   uuid.NewString(),
	}
}

// RestoreHistory attempts to load the most recently persisted SessionRecord
// from Store and appends its conversation history (user/assistant/tool
// messages only) onto History, after whatever system prompt the caller has
// already appended. This is the optional startup restore spec §4.7
// describes: a missing or unreadable store is logged, never fatal, and an
// empty/fresh history is used in that case.
func (s *Supervisor) RestoreHistory() {
	if s.Store == nil {
		return
	}
	rec, err := s.Store.LoadNewest()
	if err != nil {
		s.Logger.Info("session: no prior session to restore", "error", err)
		return
	}
	for _, m := range rec.ConversationHistory {
		s.History.Append(reasoning.Message{Role: reasoning.Role(m.Role), Content: m.Content})
	}
}

// Start transitions idle -> started, launches the pipeline's background
// workers, and records the session start time.
func (s *Supervisor) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return
	}
	s.startedAt = time.Now()
	s.state = StateStarted

	pctx, cancel := context.WithCancel(ctx)
	s.pipelineCancel = cancel
	s.pipelineDone = make(chan struct{})
	go func() {
		s.Pipeline.Run(pctx)
		close(s.pipelineDone)
	}()
}

// HandleAudioTurn transcribes pcm via Transcriber using hint as the
// language carried over from the previous turn's voice selection, then
// runs HandleTurn with the resulting text.
func (s *Supervisor) HandleAudioTurn(ctx context.Context, pcm []byte, hint orchestrator.Language) (Turn, error) {
	if s.Transcriber == nil {
		return Turn{}, fmt.Errorf("session: no transcriber configured")
	}
	result, err := s.Transcriber.Transcribe(ctx, pcm, hint)
	if err != nil {
		return Turn{}, fmt.Errorf("session: transcription failed: %w", err)
	}

	// A barge-in that turns out to be a short backchannel ("uh-huh", "mmm")
	// rather than real speech shouldn't have interrupted the prior turn.
	// Config.MinWordsToInterrupt of 1 disables this filter entirely.
	if s.Config.MinWordsToInterrupt > 1 && s.Pipeline.Interrupt.Interrupted() && countWords(result.Text) < s.Config.MinWordsToInterrupt {
		s.Pipeline.Interrupt.Reset()
		return Turn{UserText: result.Text, Outcome: OutcomeCancelled}, nil
	}

	return s.HandleTurn(ctx, result.Text)
}

// HandleTurn runs one full turn against already-transcribed userText:
// drive the reasoning loop under reasoning_timeout, feed the result
// through the pipeline, and wait up to tts_wait_timeout for playback to
// catch up. The Turn's Outcome always reflects what happened; HandleTurn
// itself never returns an error for a turn-level failure, only for a
// precondition violation (e.g. calling it before Start).
func (s *Supervisor) HandleTurn(ctx context.Context, userText string) (Turn, error) {
	s.mu.Lock()
	if s.state != StateStarted {
		s.mu.Unlock()
		return Turn{}, fmt.Errorf("session: HandleTurn called in state %s", s.state)
	}
	s.state = StateTurnInProgress
	s.mu.Unlock()

	turn := Turn{
		TurnID:    uuid.NewString(),
		UserText:  userText,
		StartedAt: time.Now(),
	}

	s.History.Append(reasoning.Message{Role: reasoning.RoleUser, Content: userText})

	reasonCtx, cancel := context.WithTimeout(ctx, s.reasoningTimeout())
	defer cancel()

	sink := &pipelineSink{p: s.Pipeline}
	result, err := s.Loop.Run(reasonCtx, s.History, sink)
	s.Pipeline.Flush()

	turn.AssistantText = result.Text
	turn.ToolCalls = result.ToolCalls

	switch {
	case ctx.Err() != nil && isCancelledByInterrupt(s.Pipeline.Interrupt):
		turn.Outcome = OutcomeCancelled
	case reasonCtx.Err() == context.DeadlineExceeded:
		turn.Outcome = OutcomeTimedOut
	case err != nil:
		turn.Outcome = OutcomeFailed
		s.Logger.Error("reasoning loop failed", "turn_id", turn.TurnID, "error", err)
	default:
		if !s.waitForPlaybackCatchUp(ctx) {
			turn.Outcome = OutcomeTimedOut
		} else {
			turn.Outcome = OutcomeCompleted
		}
	}

	turn.EndedAt = time.Now()

	// Sequences restart at 0 each turn: reset the splitter/player/queues
	// before the next turn can begin, regardless of how this one ended.
	s.Pipeline.ResetForTurn()

	s.mu.Lock()
	s.turns = append(s.turns, turn)
	if result.ShouldEnd {
		s.state = StateEnded
	} else {
		s.state = StateStarted
	}
	s.mu.Unlock()

	s.persist()

	return turn, nil
}

func isCancelledByInterrupt(token *pipeline.InterruptToken) bool {
	return token != nil && token.Interrupted()
}

// Interrupt raises the shared InterruptToken, causing the in-flight turn
// (if any) to stop speaking within the pipeline's 100ms observability
// budget while preserving everything already appended to History.
func (s *Supervisor) Interrupt() {
	if s.Pipeline != nil && s.Pipeline.Interrupt != nil {
		s.Pipeline.Interrupt.Raise()
	}
}

// ResetInterrupt clears the interrupt token ahead of the next turn.
func (s *Supervisor) ResetInterrupt() {
	if s.Pipeline != nil && s.Pipeline.Interrupt != nil {
		s.Pipeline.Interrupt.Reset()
	}
}

// waitForPlaybackCatchUp blocks until the player has caught up to the last
// segment emitted by the splitter, or tts_wait_timeout elapses.
func (s *Supervisor) waitForPlaybackCatchUp(ctx context.Context) bool {
	deadline := time.Now().Add(s.ttsWaitTimeout())
	for time.Now().Before(deadline) {
		if s.Pipeline.TextQ.Depth() == 0 && s.Pipeline.AudioQ.Depth() == 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(10 * time.Millisecond):
		}
	}
	return false
}

func (s *Supervisor) reasoningTimeout() time.Duration {
	if s.Config.ReasoningTimeoutSeconds == 0 {
		return 60 * time.Second
	}
	return time.Duration(s.Config.ReasoningTimeoutSeconds) * time.Second
}

func (s *Supervisor) ttsWaitTimeout() time.Duration {
	if s.Config.TTSWaitTimeoutSeconds == 0 {
		return 30 * time.Second
	}
	return time.Duration(s.Config.TTSWaitTimeoutSeconds) * time.Second
}

// persist writes the current transcript to the Store, if one is
// configured. Errors are logged, not returned — persistence must never
// block or fail a turn.
func (s *Supervisor) persist() {
	if s.Store == nil {
		return
	}
	s.mu.Lock()
	rec := SessionRecord{
		SessionID: s.sessionID,
		CreatedAt: s.startedAt,
		ModelID:   s.Config.ModelID,
		Turns:     len(s.turns),
	}
	for _, m := range s.History.Messages() {
		if m.Role == reasoning.RoleSystem {
			continue
		}
		rec.ConversationHistory = append(rec.ConversationHistory, PersistedMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	s.mu.Unlock()

	if err := s.Store.Save(rec); err != nil {
		s.Logger.Error("failed to persist session", "session_id", s.sessionID, "error", err)
	}
}

// Shutdown transitions to ended, stops the pipeline, and persists one last
// time. Safe to call more than once.
func (s *Supervisor) Shutdown() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateEnded
		cancel := s.pipelineCancel
		done := s.pipelineDone
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if done != nil {
			select {
			case <-done:
			case <-time.After(2 * time.Second):
			}
		}
		s.persist()
	})
}

// State reports the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SessionID returns the supervisor's session identifier.
func (s *Supervisor) SessionID() string {
	return s.sessionID
}
