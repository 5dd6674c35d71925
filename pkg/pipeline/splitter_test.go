package pipeline

import "testing"

func TestSplitterEmitsOnSentenceBoundary(t *testing.T) {
	s := NewSplitter()
	segs := s.Ingest("Hello there. How are you today?")
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d: %+v", len(segs), segs)
	}
	if segs[0].Text != "Hello there." {
		t.Errorf("unexpected first segment: %q", segs[0].Text)
	}
	if segs[0].Sequence != 0 || segs[1].Sequence != 1 {
		t.Errorf("expected sequential sequence numbers, got %d, %d", segs[0].Sequence, segs[1].Sequence)
	}
}

func TestSplitterRespectsAcronyms(t *testing.T) {
	s := NewSplitter()
	segs := s.Ingest("Dr. Smith will see you now. ")
	segs = append(segs, s.Flush()...)
	if len(segs) != 1 {
		t.Fatalf("expected acronym period to not split, got %d segments: %+v", len(segs), segs)
	}
}

func TestSplitterEnforcesMinChunkLength(t *testing.T) {
	s := NewSplitter()
	// "A." is 2 characters, below the default minimum of 3.
	segs := s.Ingest("A. ")
	if len(segs) != 0 {
		t.Fatalf("expected short fragment to stay buffered, got %+v", segs)
	}
	segs = s.Flush()
	if len(segs) != 1 {
		t.Fatalf("expected flush to emit the buffered fragment, got %+v", segs)
	}
}

func TestSplitterAlphabeticMinChunkOverride(t *testing.T) {
	s := NewSplitter()
	s.SetMinChunkLength(alphabeticMinChunk)
	segs := s.Ingest("Go. ")
	if len(segs) != 0 {
		t.Fatalf("expected segment shorter than override to stay buffered, got %+v", segs)
	}
}

func TestSplitterDropsBareURL(t *testing.T) {
	s := NewSplitter()
	segs := s.Ingest("https://example.com ")
	segs = append(segs, s.Flush()...)
	if len(segs) != 0 {
		t.Fatalf("expected bare URL segment to be dropped, got %+v", segs)
	}
}

func TestSplitterForcesEmitPastMaxChunkLength(t *testing.T) {
	s := NewSplitter()
	long := ""
	for i := 0; i < 160; i++ {
		long += "a"
	}
	segs := s.Ingest(long)
	if len(segs) != 1 {
		t.Fatalf("expected oversized buffer to force an emit, got %d segments", len(segs))
	}
	if len(segs[0].Text) == 0 {
		t.Errorf("expected non-empty forced segment")
	}
}

func TestSplitterControlSentinelIsStrippedAndSetsShouldEnd(t *testing.T) {
	s := NewSplitter()
	segs := s.Ingest("Goodbye for now. END_CONVERSATION")
	segs = append(segs, s.Flush()...)
	for _, seg := range segs {
		if strContains(seg.Text, "END_CONVERSATION") || strContains(seg.Text, "CONVERSATION") {
			t.Errorf("sentinel text leaked into a playable segment: %q", seg.Text)
		}
	}
	if !s.ShouldEnd() {
		t.Errorf("expected ShouldEnd to be true after a control sentinel")
	}
	if len(segs) != 1 || segs[0].Text != "Goodbye for now." {
		t.Fatalf("expected exactly the cleaned sentence, got %+v", segs)
	}
}

func TestSplitterSentinelVariantsAllStripAndSignal(t *testing.T) {
	variants := []string{
		"All done. END_CONVERSATION",
		"All done. ENDCONVERSATION",
		"All done. END CONVERSATION",
		"All done. (END_CONVERSATION)",
	}
	for _, v := range variants {
		s := NewSplitter()
		segs := s.Ingest(v)
		segs = append(segs, s.Flush()...)
		if !s.ShouldEnd() {
			t.Errorf("variant %q: expected ShouldEnd true", v)
		}
		for _, seg := range segs {
			if strContains(seg.Text, "CONVERSATION") {
				t.Errorf("variant %q: sentinel leaked into segment %q", v, seg.Text)
			}
		}
	}
}

func strContains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

func TestSplitterSingleCharacterIngestion(t *testing.T) {
	s := NewSplitter()
	var all []TextSegment
	for _, r := range "Hi there. Yes!" {
		all = append(all, s.Ingest(string(r))...)
	}
	all = append(all, s.Flush()...)
	if len(all) != 2 {
		t.Fatalf("expected 2 segments from char-by-char ingestion, got %d: %+v", len(all), all)
	}
}

func TestSplitterEmitsOnCJKTerminators(t *testing.T) {
	s := NewSplitter()
	segs := s.Ingest("你好，世界。今天天气怎么样？")
	segs = append(segs, s.Flush()...)
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments split on CJK terminators, got %d: %+v", len(segs), segs)
	}
}

func TestSplitterEmitsOnPauseCharPastThreshold(t *testing.T) {
	s := NewSplitter()
	long := "this clause just keeps going on and on for a while, and then it pauses"
	segs := s.Ingest(long)
	if len(segs) == 0 {
		t.Fatalf("expected a boundary at the comma once past the pause threshold")
	}
	if segs[0].Text[len(segs[0].Text)-1] != ',' {
		t.Errorf("expected segment to end at the comma, got %q", segs[0].Text)
	}
}

func TestSplitterCleanStripsMarkdownAndSentinelNoise(t *testing.T) {
	s := NewSplitter()
	cleaned := s.clean("Check *this* and _that_ and ```code block``` and [a link](https://example.com).")
	if strContains(cleaned, "*") || strContains(cleaned, "_") || strContains(cleaned, "```") {
		t.Errorf("expected markdown noise stripped, got %q", cleaned)
	}
	if !strContains(cleaned, "a link") {
		t.Errorf("expected markdown link visible text preserved, got %q", cleaned)
	}
	if strContains(cleaned, "code block") {
		t.Errorf("expected fenced code block removed entirely, got %q", cleaned)
	}
}

func TestSplitterPronunciationExpansionOnlyAffectsSpokenText(t *testing.T) {
	s := NewSplitter()
	segs := s.Ingest("The AI can help. ")
	segs = append(segs, s.Flush()...)
	if len(segs) == 0 {
		t.Fatalf("expected at least one segment")
	}
	seg := segs[0]
	if strContains(seg.Text, "A I") {
		t.Errorf("expansion must not appear in Text, got %q", seg.Text)
	}
	if !strContains(seg.SpokenText, "A I") {
		t.Errorf("expected SpokenText to expand AI, got %q", seg.SpokenText)
	}
}

func TestSplitterDropsSentenceWithEmbeddedBareHostname(t *testing.T) {
	s := NewSplitter()
	segs := s.Ingest("Check out example.com for more info. ")
	segs = append(segs, s.Flush()...)
	if len(segs) != 0 {
		t.Fatalf("expected sentence containing a bare hostname to be dropped entirely, got %+v", segs)
	}
}

func TestSplitterResetClearsSequenceAndShouldEnd(t *testing.T) {
	s := NewSplitter()
	_ = s.Ingest("Bye now. END_CONVERSATION")
	_ = s.Flush()
	if !s.ShouldEnd() {
		t.Fatalf("expected ShouldEnd true before reset")
	}
	s.Reset()
	if s.ShouldEnd() {
		t.Errorf("expected ShouldEnd false after Reset")
	}
	segs := s.Ingest("New turn. ")
	segs = append(segs, s.Flush()...)
	if len(segs) == 0 || segs[0].Sequence != 0 {
		t.Fatalf("expected sequence to restart at 0 after Reset, got %+v", segs)
	}
}
