package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/voxtide/agentcore/pkg/orchestrator"
)

// voiceSelectorArgs is the shape detectLanguageAndSelectVoice expects.
type voiceSelectorArgs struct {
	Language string `json:"language"`
}

// languageAliases maps the free-form language names the model is likely to
// pass (its own best guess at the detected language) onto the fixed
// orchestrator.Language set.
var languageAliases = map[string]orchestrator.Language{
	"chinese":    orchestrator.LanguageZh,
	"mandarin":   orchestrator.LanguageZh,
	"english":    orchestrator.LanguageEn,
	"japanese":   orchestrator.LanguageJa,
	"spanish":    orchestrator.LanguageEs,
	"french":     orchestrator.LanguageFr,
	"vietnamese": orchestrator.LanguageVi,
}

// VoiceSelectorTool implements detectLanguageAndSelectVoice (spec §4.6):
// the model calls it with the language it has detected in the user's
// speech, and it atomically swaps the voice the synth worker pool reads
// from for every subsequent segment. The name deliberately has no
// underscores — it must survive markdown stripping on the way into the
// model's tool-call arguments intact.
type VoiceSelectorTool struct {
	voice *atomic.Pointer[orchestrator.Voice]
}

// NewVoiceSelectorTool shares voice with the pipeline's worker pool so a
// voice switch takes effect on the very next segment synthesized.
func NewVoiceSelectorTool(voice *atomic.Pointer[orchestrator.Voice]) *VoiceSelectorTool {
	return &VoiceSelectorTool{voice: voice}
}

func (t *VoiceSelectorTool) Name() string { return "detectLanguageAndSelectVoice" }

func (t *VoiceSelectorTool) Description() string {
	return "Selects the synthesizer voice matching the language currently being spoken in the conversation."
}

func (t *VoiceSelectorTool) Schema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"language": {
				Type:        "string",
				Description: "The language detected in the user's most recent utterance, e.g. \"English\" or \"Japanese\".",
			},
		},
		Required: []string{"language"},
	}
}

func (t *VoiceSelectorTool) Invoke(ctx context.Context, argsJSON string) (string, error) {
	var args voiceSelectorArgs
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("decoding arguments: %w", err)
	}

	lang, ok := languageAliases[normalizeLanguageName(args.Language)]
	if !ok {
		lang = orchestrator.LanguageEn
	}
	voice, ok := orchestrator.VoiceByLanguage[lang]
	if !ok {
		voice = orchestrator.VoiceByLanguage[orchestrator.LanguageEn]
	}
	t.voice.Store(&voice)

	return fmt.Sprintf("voice set to %s for language %s", voice, lang), nil
}

func normalizeLanguageName(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			r = r - 'A' + 'a'
		}
		out = append(out, r)
	}
	return string(out)
}
