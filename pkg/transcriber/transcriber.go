// Package transcriber defines the Transcriber capability the Session
// Supervisor hands captured audio to. Concrete ASR vendor wire formats are
// an out-of-scope "external collaborator" per the module's spec; pkg/session
// consumes the interface, and the adapters are tested in this package.
package transcriber

import (
	"context"
	"errors"

	"github.com/voxtide/agentcore/pkg/orchestrator"
)

// Result is what a Transcriber returns for one utterance.
type Result struct {
	Text     string
	Language orchestrator.Language
}

// Transcriber turns raw PCM audio into text, with an optional language
// hint the supervisor carries over from the previous turn's voice
// selection.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte, hint orchestrator.Language) (Result, error)
}

// ErrEmptyAudio is returned when the supplied PCM buffer has nothing worth
// transcribing.
var ErrEmptyAudio = errors.New("transcriber: empty audio buffer")
