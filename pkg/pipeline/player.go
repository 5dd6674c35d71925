package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/voxtide/agentcore/pkg/orchestrator"
	"github.com/voxtide/agentcore/pkg/synth"
)

// Player drains audio_q and plays AudioChunks back in strict sequence
// order, buffering any chunk that arrives out of turn in pending until its
// predecessors have played.
type Player struct {
	Sink      synth.AudioSink
	AudioQ    *BoundedQueue[AudioChunk]
	Interrupt *InterruptToken
	Logger    orchestrator.Logger

	mu      sync.Mutex
	nextSeq int
	pending map[int]AudioChunk

	stats PipelineStats
}

// NewPlayer wires a Player over the given sink and audio queue.
func NewPlayer(sink synth.AudioSink, audioQ *BoundedQueue[AudioChunk], interrupt *InterruptToken, logger orchestrator.Logger) *Player {
	if logger == nil {
		logger = &orchestrator.NoOpLogger{}
	}
	return &Player{
		Sink:      sink,
		AudioQ:    audioQ,
		Interrupt: interrupt,
		Logger:    logger,
		pending:   make(map[int]AudioChunk),
	}
}

// Run drains audio_q until ctx is cancelled, playing chunks in order.
func (p *Player) Run(ctx context.Context) {
	for {
		chunk, err := p.AudioQ.Get(ctx)
		if err != nil {
			return
		}
		p.accept(ctx, chunk)
	}
}

func (p *Player) accept(ctx context.Context, chunk AudioChunk) {
	p.mu.Lock()
	p.pending[chunk.Sequence] = chunk
	ready := p.drainReadyLocked()
	p.mu.Unlock()

	for _, c := range ready {
		p.play(ctx, c)
	}
}

// drainReadyLocked must be called with mu held; it pops every contiguous
// chunk starting at nextSeq out of pending.
func (p *Player) drainReadyLocked() []AudioChunk {
	var ready []AudioChunk
	for {
		c, ok := p.pending[p.nextSeq]
		if !ok {
			break
		}
		delete(p.pending, p.nextSeq)
		ready = append(ready, c)
		p.nextSeq++
	}
	return ready
}

func (p *Player) play(ctx context.Context, chunk AudioChunk) {
	if p.Interrupt != nil && p.Interrupt.Interrupted() {
		p.mu.Lock()
		p.stats.ChunksDropped++
		p.mu.Unlock()
		return
	}
	if chunk.Status == AudioStatusFailed {
		p.Logger.Warn("skipping failed chunk", "sequence", chunk.Sequence)
		return
	}

	done := make(chan error, 1)
	go func() { done <- p.Sink.Play(chunk.Samples) }()

	select {
	case err := <-done:
		if err != nil {
			p.Logger.Warn("playback failed", "sequence", chunk.Sequence, "error", err)
			return
		}
		p.mu.Lock()
		p.stats.ChunksPlayed++
		p.mu.Unlock()
	case <-time.After(DefaultPlaybackTimeout):
		p.Sink.Stop()
		p.Logger.Warn("playback timed out", "sequence", chunk.Sequence)
	case <-ctx.Done():
		p.Sink.Stop()
	}
}

// Reset clears pending state and rewinds nextSeq to 0, for the start of a
// new turn. Any chunks still buffered in pending from the previous turn are
// discarded.
func (p *Player) Reset() {
	p.mu.Lock()
	p.nextSeq = 0
	p.pending = make(map[int]AudioChunk)
	p.mu.Unlock()
}

// NextSequence reports the sequence number the player is currently waiting
// for — used by tests asserting the "next_seq equals count" invariant.
func (p *Player) NextSequence() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nextSeq
}

// Stats returns a snapshot of the player's counters.
func (p *Player) Stats() PipelineStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}
