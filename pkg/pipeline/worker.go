package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cenkalti/backoff/v5"

	"github.com/voxtide/agentcore/pkg/orchestrator"
	"github.com/voxtide/agentcore/pkg/synth"
)

// WorkerPool pulls TextSegments off text_q, synthesizes them concurrently
// (bounded by MaxTasks), and pushes the resulting AudioChunks onto audio_q
// in whatever order they finish — the Player downstream is what restores
// sequence order.
type WorkerPool struct {
	Synth             synth.Synthesizer
	Voice             *atomic.Pointer[orchestrator.Voice]
	TextQ             *BoundedQueue[TextSegment]
	AudioQ            *BoundedQueue[AudioChunk]
	Interrupt         *InterruptToken
	Logger            orchestrator.Logger
	MaxTasks          int
	GenerationTimeout func() context.Context

	stats         PipelineStats
	activeWorkers int64
	wg            sync.WaitGroup
}

// NewWorkerPool wires a pool with the spec defaults (50 max tasks, 15s
// generation timeout).
func NewWorkerPool(s synth.Synthesizer, voice *atomic.Pointer[orchestrator.Voice], textQ *BoundedQueue[TextSegment], audioQ *BoundedQueue[AudioChunk], interrupt *InterruptToken, logger orchestrator.Logger) *WorkerPool {
	if logger == nil {
		logger = &orchestrator.NoOpLogger{}
	}
	return &WorkerPool{
		Synth:     s,
		Voice:     voice,
		TextQ:     textQ,
		AudioQ:    audioQ,
		Interrupt: interrupt,
		Logger:    logger,
		MaxTasks:  DefaultMaxSynthTasks,
	}
}

// Run drains text_q until ctx is cancelled, spawning at most MaxTasks
// concurrent synthesis goroutines.
func (p *WorkerPool) Run(ctx context.Context) {
	sem := make(chan struct{}, p.MaxTasks)
	for {
		seg, err := p.TextQ.Get(ctx)
		if err != nil {
			break
		}
		sem <- struct{}{}
		p.wg.Add(1)
		go func(seg TextSegment) {
			defer p.wg.Done()
			defer func() { <-sem }()
			atomic.AddInt64(&p.activeWorkers, 1)
			defer atomic.AddInt64(&p.activeWorkers, -1)
			p.synthesizeOne(ctx, seg)
		}(seg)
	}
	p.wg.Wait()
}

func (p *WorkerPool) synthesizeOne(ctx context.Context, seg TextSegment) {
	if p.Interrupt != nil && p.Interrupt.Interrupted() {
		p.enqueue(AudioChunk{Sequence: seg.Sequence, Status: AudioStatusFailed})
		return
	}

	voice := orchestrator.Voice("")
	if p.Voice != nil {
		if v := p.Voice.Load(); v != nil {
			voice = *v
		}
	}

	genCtx, cancel := context.WithTimeout(ctx, DefaultGenerationTimeout)
	defer cancel()

	text := seg.SpokenText
	if text == "" {
		text = seg.Text
	}

	// One attempt plus at most one retry after DefaultSynthRetryBackoff, and
	// only when the first failure is transient.
	attempts := 0
	op := func() ([]byte, error) {
		attempts++
		if attempts > 1 {
			atomic.AddInt64(&p.stats.RetriesAttempted, 1)
		}
		out, err := p.Synth.Synthesize(genCtx, text, voice)
		if err != nil && !synth.IsTransientError(err) {
			return nil, backoff.Permanent(err)
		}
		return out, err
	}
	samples, err := backoff.Retry(genCtx, op,
		backoff.WithMaxTries(2),
		backoff.WithBackOff(backoff.NewConstantBackOff(DefaultSynthRetryBackoff)),
	)

	if err != nil {
		atomic.AddInt64(&p.stats.ChunksFailed, 1)
		p.Logger.Warn("synthesis failed", "sequence", seg.Sequence, "error", err)
		p.enqueue(AudioChunk{Sequence: seg.Sequence, Status: AudioStatusFailed})
		return
	}

	atomic.AddInt64(&p.stats.ChunksSynthesized, 1)
	p.enqueue(AudioChunk{Sequence: seg.Sequence, Samples: samples, Status: AudioStatusOK})
}

func (p *WorkerPool) enqueue(chunk AudioChunk) {
	ctx := context.Background()
	_ = p.AudioQ.Put(ctx, chunk)
}

// Stats returns a snapshot of the pool's counters.
func (p *WorkerPool) Stats() PipelineStats {
	return PipelineStats{
		ChunksSynthesized: atomic.LoadInt64(&p.stats.ChunksSynthesized),
		ChunksFailed:      atomic.LoadInt64(&p.stats.ChunksFailed),
		RetriesAttempted:  atomic.LoadInt64(&p.stats.RetriesAttempted),
		ActiveWorkers:     p.ActiveWorkers(),
	}
}

// ActiveWorkers reports how many synthesis goroutines are running right now.
// Unlike the other counters, this is a live figure, not monotonic.
func (p *WorkerPool) ActiveWorkers() int64 {
	return atomic.LoadInt64(&p.activeWorkers)
}
