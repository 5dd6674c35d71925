package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/voxtide/agentcore/pkg/orchestrator"
	"github.com/voxtide/agentcore/pkg/synth"
)

// defaultTextEnqueueTimeout is the backpressure window spec §4.2 gives a
// segment before it is dropped rather than blocking the reasoning loop.
const defaultTextEnqueueTimeout = 100 * time.Millisecond

// Pipeline wires a Splitter's output through a WorkerPool and into a
// Player, owning the text_q/audio_q queues and the shared InterruptToken.
// pkg/session.Supervisor starts it once per session, stops it on Shutdown,
// and calls ResetForTurn after every turn.
type Pipeline struct {
	Splitter  *Splitter
	TextQ     *BoundedQueue[TextSegment]
	AudioQ    *BoundedQueue[AudioChunk]
	Workers   *WorkerPool
	Player    *Player
	Interrupt *InterruptToken
	Recorder  *StatsRecorder
}

// New builds a Pipeline from a synthesizer, an audio sink and the shared
// voice reference, using the spec's default queue capacities.
func New(s synth.Synthesizer, sink synth.AudioSink, voice *atomic.Pointer[orchestrator.Voice], logger orchestrator.Logger) *Pipeline {
	interrupt := NewInterruptToken()
	textQ := NewBoundedQueue[TextSegment](DefaultTextQueueCapacity)
	audioQ := NewBoundedQueue[AudioChunk](DefaultAudioQueueCapacity)

	return &Pipeline{
		Splitter:  NewSplitter(),
		TextQ:     textQ,
		AudioQ:    audioQ,
		Workers:   NewWorkerPool(s, voice, textQ, audioQ, interrupt, logger),
		Player:    NewPlayer(sink, audioQ, interrupt, logger),
		Interrupt: interrupt,
	}
}

// Run starts the worker pool and player and blocks until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	done := make(chan struct{}, 2)
	go func() { p.Workers.Run(ctx); done <- struct{}{} }()
	go func() { p.Player.Run(ctx); done <- struct{}{} }()
	<-done
	<-done
}

// IngestText feeds one fragment of streamed LLM text into the splitter,
// enqueueing any ready segments onto text_q. TryPutTimeout is used per
// spec §4.2: a segment that still can't fit after the backpressure window
// is dropped rather than blocking the reasoning loop indefinitely. A
// dropped segment's sequence number is backfilled with a failed AudioChunk
// directly on audio_q, so the player's contiguous-sequence drain never
// stalls waiting for a chunk that was never going to arrive.
func (p *Pipeline) IngestText(segments []TextSegment) (dropped int) {
	for _, seg := range segments {
		evicted, wasDropped := p.TextQ.TryPutTimeout(seg, defaultTextEnqueueTimeout)
		if !wasDropped {
			continue
		}
		dropped++
		ctx, cancel := context.WithTimeout(context.Background(), defaultTextEnqueueTimeout)
		_ = p.AudioQ.Put(ctx, AudioChunk{Sequence: evicted.Sequence, Status: AudioStatusFailed})
		cancel()
	}
	return dropped
}

// Flush drains whatever text remains buffered in the splitter as a final
// segment.
func (p *Pipeline) Flush() (dropped int) {
	return p.IngestText(p.Splitter.Flush())
}

// ResetForTurn clears every piece of per-turn state in the pipeline: any
// text/audio still queued from the previous turn, the splitter's buffer and
// sequence counter, and the player's pending map and next_seq. Call it once
// a turn has fully drained so the next turn starts sequences at 0.
func (p *Pipeline) ResetForTurn() {
	p.TextQ.DrainAll()
	p.AudioQ.DrainAll()
	p.Splitter.Reset()
	p.Player.Reset()
}

// Stats returns a merged snapshot of the pipeline's counters and live
// figures (queue depths, active workers) across the worker pool and player.
func (p *Pipeline) Stats() PipelineStats {
	ws := p.Workers.Stats()
	ps := p.Player.Stats()
	return PipelineStats{
		ChunksSynthesized: ws.ChunksSynthesized,
		ChunksFailed:      ws.ChunksFailed,
		RetriesAttempted:  ws.RetriesAttempted,
		ChunksPlayed:      ps.ChunksPlayed,
		ChunksDropped:     ps.ChunksDropped,
		TextQDepth:        int64(p.TextQ.Depth()),
		AudioQDepth:       int64(p.AudioQ.Depth()),
		ActiveWorkers:     ws.ActiveWorkers,
	}
}
