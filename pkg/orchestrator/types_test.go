package orchestrator

import "testing"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.SampleRate != 44100 {
		t.Errorf("expected sample rate 44100, got %d", cfg.SampleRate)
	}
	if cfg.MaxContextMessages != 20 {
		t.Errorf("expected max messages 20, got %d", cfg.MaxContextMessages)
	}
	if cfg.MinWordsToInterrupt != 1 {
		t.Errorf("expected MinWordsToInterrupt 1, got %d", cfg.MinWordsToInterrupt)
	}
}

func TestVoiceByLanguageCoversSpecTable(t *testing.T) {
	required := []Language{LanguageZh, LanguageEn, LanguageJa, LanguageEs, LanguageFr, LanguageVi}
	for _, lang := range required {
		voice, ok := VoiceByLanguage[lang]
		if !ok || voice == "" {
			t.Errorf("expected a voice mapped for language %q", lang)
		}
	}
}

func TestNoOpLoggerNeverPanics(t *testing.T) {
	var l Logger = &NoOpLogger{}
	l.Debug("x")
	l.Info("x", "k", "v")
	l.Warn("x")
	l.Error("x")
}
