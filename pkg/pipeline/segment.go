// Package pipeline implements the streaming TTS pipeline: a sentence
// splitter feeding a bounded text queue, a synth worker pool feeding a
// bounded audio queue, and an ordered player draining it.
package pipeline

import "time"

// TextSegment is one speakable chunk produced by the Splitter. SpokenText is
// what actually gets sent to the synthesizer: it carries pronunciation
// expansions (e.g. "AI" -> "A I") that Text deliberately omits, since Text is
// what the conversation transcript is built from.
type TextSegment struct {
	Sequence   int
	Text       string
	SpokenText string
	IsFinal    bool
}

// AudioStatus reports whether an AudioChunk's synthesis succeeded.
type AudioStatus string

const (
	AudioStatusOK     AudioStatus = "ok"
	AudioStatusFailed AudioStatus = "failed"
)

// AudioChunk is the synthesized counterpart of a TextSegment, carried
// through audio_q to the Player in strict sequence order.
type AudioChunk struct {
	Sequence   int
	Samples    []byte
	DurationMS int
	Status     AudioStatus
}

// PipelineStats are the running counters the pipeline exposes; see stats.go
// for the OpenTelemetry-backed exporter built on top of this struct.
// Monotonic except TextQDepth, AudioQDepth, and ActiveWorkers, which are
// live point-in-time figures that rise and fall with load.
type PipelineStats struct {
	SegmentsEmitted   int64
	ChunksSynthesized int64
	ChunksFailed      int64
	ChunksPlayed      int64
	ChunksDropped     int64
	RetriesAttempted  int64
	InterruptsHandled int64

	TextQDepth    int64
	AudioQDepth   int64
	ActiveWorkers int64
}

// defaults shared across the pipeline components.
const (
	DefaultTextQueueCapacity  = 15
	DefaultAudioQueueCapacity = 10
	DefaultMaxSynthTasks      = 50
	DefaultGenerationTimeout  = 15 * time.Second
	DefaultPlaybackTimeout    = 30 * time.Second
	DefaultSynthRetryBackoff  = 250 * time.Millisecond
)
