// Package synth defines the Synthesizer capability the TTS pipeline
// speaks through, plus adapters for the Edge, Azure and OpenAI vendors.
// Concrete vendor wire formats are an out-of-scope "external collaborator"
// per the module's spec, but the interface and its test doubles are fully
// exercised by pkg/pipeline.
package synth

import (
	"context"
	"errors"

	"github.com/voxtide/agentcore/pkg/orchestrator"
)

// Synthesizer turns one segment of text into PCM audio for a given voice.
// Implementations must be safe for concurrent use by multiple worker
// goroutines, and Abort must cancel any in-flight Synthesize calls promptly
// so that barge-in can take effect within the pipeline's latency budget.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice orchestrator.Voice) ([]byte, error)
	Abort()
}

// AudioSink abstracts the actual audio output device so pkg/pipeline's
// Player never depends on a concrete sound library.
type AudioSink interface {
	Play(samples []byte) error
	Stop()
	IsPlaying() bool
}

var (
	// ErrSynthesisTimeout names a Synthesize call cut off by its context
	// deadline. The adapters in this package do not return it: they return
	// the context's own error (context.DeadlineExceeded) instead.
	ErrSynthesisTimeout = errors.New("synth: generation timed out")
	// ErrVendorUnavailable marks a transient vendor-side failure eligible
	// for the pipeline's single retry.
	ErrVendorUnavailable = errors.New("synth: vendor temporarily unavailable")
)

// IsTransientError classifies errors eligible for the worker pool's
// single retry-with-backoff, matching the teacher's pattern of treating
// network/5xx-shaped failures as retryable and anything else as final.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrVendorUnavailable) || errors.Is(err, context.DeadlineExceeded)
}
