// Package orchestrator holds the shared vocabulary used by every other
// package in this module: the Logger capability, voice/language enums, and
// the session-wide Config. Nothing in here talks to a queue, a model, or a
// speaker — it is the leaf of the dependency graph.
package orchestrator

// Logger is implemented by whatever logging setup the host process wires in.
// Components never construct one themselves; it is always injected.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// NoOpLogger discards everything. It is the default when no logger is
// supplied, so components never need a nil check.
type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, args ...interface{}) {}
func (n *NoOpLogger) Info(msg string, args ...interface{})  {}
func (n *NoOpLogger) Warn(msg string, args ...interface{})  {}
func (n *NoOpLogger) Error(msg string, args ...interface{}) {}

// Voice identifies a synthesizer voice. The concrete string is meaningful
// only to the configured Synthesizer adapter (an Edge-TTS short name, an
// Azure voice name, an OpenAI voice id, ...).
type Voice string

// Language is a BCP-47-ish language tag used to pick a voice and to hint
// the transcriber.
type Language string

const (
	LanguageEn Language = "en"
	LanguageEs Language = "es"
	LanguageFr Language = "fr"
	LanguageDe Language = "de"
	LanguageIt Language = "it"
	LanguagePt Language = "pt"
	LanguageJa Language = "ja"
	LanguageZh Language = "zh"
	LanguageVi Language = "vi"
)

// VoiceByLanguage is the fixed table used by the detectLanguageAndSelectVoice
// tool (spec §4.6). Names follow the Edge-TTS short-voice-name convention
// since "edge" is one of the three supported synthesizer vendors.
var VoiceByLanguage = map[Language]Voice{
	LanguageZh: Voice("zh-CN-XiaoxiaoNeural"),
	LanguageEn: Voice("en-US-AriaNeural"),
	LanguageJa: Voice("ja-JP-NanamiNeural"),
	LanguageEs: Voice("es-ES-ElviraNeural"),
	LanguageFr: Voice("fr-FR-DeniseNeural"),
	LanguageVi: Voice("vi-VN-HoaiMyNeural"),
}

// Config is the shared, process-wide tuning surface. Each sub-package reads
// only the fields it cares about; Supervisor is the only place that owns a
// full Config value.
type Config struct {
	SampleRate int
	Channels   int

	// MaxContextMessages bounds ConversationHistory length (oldest trimmed
	// first, system prompt always kept — see pkg/reasoning).
	MaxContextMessages int

	VoiceStyle Voice
	Language   Language

	// MinWordsToInterrupt suppresses short backchannel utterances ("uh-huh",
	// "mmm") from barging in on an in-progress response. 1 disables the
	// filter (any speech interrupts).
	MinWordsToInterrupt int

	// AlphabeticMinChunk is the splitter's min_chunk_length override for
	// non-CJK languages, resolving spec's Open Question: raise the 3-char
	// floor to avoid one-word segments in alphabetic scripts. 0 keeps the
	// default of 3.
	AlphabeticMinChunk int

	ReasoningTimeoutSeconds uint
	TTSWaitTimeoutSeconds   uint
	GenTimeoutSeconds       uint
	PlayTimeoutSeconds      uint
	ToolTimeoutSeconds      uint

	PersistDir string

	// ModelID identifies the chat model in use, persisted verbatim into
	// SessionRecord.ModelID.
	ModelID string
}

// DefaultConfig mirrors the defaults spec §6 lists as configuration options.
func DefaultConfig() Config {
	return Config{
		SampleRate:              44100,
		Channels:                1,
		MaxContextMessages:      20,
		VoiceStyle:              VoiceByLanguage[LanguageEn],
		Language:                LanguageEn,
		MinWordsToInterrupt:     1,
		AlphabeticMinChunk:      0,
		ReasoningTimeoutSeconds: 60,
		TTSWaitTimeoutSeconds:   30,
		GenTimeoutSeconds:       15,
		PlayTimeoutSeconds:      30,
		ToolTimeoutSeconds:      10,
		PersistDir:              "sessions/",
	}
}
