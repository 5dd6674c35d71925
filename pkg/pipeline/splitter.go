package pipeline

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// DefaultAcronyms lists abbreviations whose trailing period must not be
// treated as a sentence boundary. This is distinct from
// DefaultPronunciationExpansions below: this table only suppresses a false
// sentence break, it never changes what gets spoken.
func DefaultAcronyms() map[string]struct{} {
	return map[string]struct{}{
		"Mr.": {}, "Mrs.": {}, "Ms.": {}, "Dr.": {}, "Prof.": {},
		"Jr.": {}, "Sr.": {}, "St.": {}, "vs.": {}, "etc.": {},
		"e.g.": {}, "i.e.": {}, "U.S.": {}, "U.K.": {},
	}
}

// DefaultPronunciationExpansions maps a small set of acronyms to the form a
// TTS voice should actually speak. Expansion only ever affects
// TextSegment.SpokenText, never the cleaned TextSegment.Text that the
// transcript/history is built from.
func DefaultPronunciationExpansions() map[string]string {
	return map[string]string{
		"AI":  "A I",
		"LLM": "large language model",
		"API": "A P I",
		"UI":  "U I",
	}
}

// DefaultURLHostSuffixes lists the host suffixes that mark a word as a URL;
// a segment containing such a word is unspeakable and is dropped rather
// than synthesized.
func DefaultURLHostSuffixes() []string {
	return []string{".com", ".org", ".net", ".io", ".gov", ".edu"}
}

const (
	defaultMinChunkLength = 3
	alphabeticMinChunk    = 8
	maxChunkLength        = 150

	// pauseBoundaryThreshold is the soft length past which a comma/pause
	// character is itself treated as a segment boundary, so a single long
	// clause doesn't block waiting on a final sentence-ender.
	pauseBoundaryThreshold = 40
)

// sentenceEnders covers both ASCII and full-width CJK sentence-final
// punctuation, so Chinese/Japanese text produces boundaries on its own
// terminators instead of running on forever.
var sentenceEnders = []rune{'.', '!', '?', ';', '\n', '。', '！', '？', '；'}

// pauseChars are the weaker, secondary boundary class: only a boundary once
// the buffer has grown past pauseBoundaryThreshold.
var pauseChars = []rune{',', '，'}

// sentinelPattern matches the control sentinels a model may emit to signal
// end-of-conversation, in any of the spellings: with or without an
// underscore/space separator, optionally wrapped in parentheses.
var sentinelPattern = regexp.MustCompile(`(?i)\(?\s*end[_ ]?conversation\s*\)?`)

var (
	fencedCodeBlockPattern = regexp.MustCompile("(?s)```.*?```")
	markdownLinkPattern    = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
)

// Splitter turns an incrementally-arriving LLM token stream into a sequence
// of speakable TextSegments: it buffers raw text, strips markdown noise,
// scans for sentence boundaries outside of known acronyms, and emits a
// segment once a boundary is found and the buffered text clears the
// minimum chunk length (or the buffer has grown past the maximum).
type Splitter struct {
	Acronyms                map[string]struct{}
	PronunciationExpansions map[string]string
	URLHostSuffixes         []string
	minChunkLength          int

	expansions []acronymExpansion

	buf         strings.Builder
	sequence    int
	sawSentinel bool
}

// acronymExpansion is one precompiled, word-boundary-anchored pronunciation
// substitution.
type acronymExpansion struct {
	pattern *regexp.Regexp
	full    string
}

// NewSplitter returns a Splitter configured with the spec defaults.
func NewSplitter() *Splitter {
	s := &Splitter{
		Acronyms:                DefaultAcronyms(),
		PronunciationExpansions: DefaultPronunciationExpansions(),
		URLHostSuffixes:         DefaultURLHostSuffixes(),
		minChunkLength:          defaultMinChunkLength,
	}
	s.compileExpansions()
	return s
}

// compileExpansions precompiles PronunciationExpansions into word-boundary
// regexes, sorted by key for deterministic application order.
func (s *Splitter) compileExpansions() {
	keys := make([]string, 0, len(s.PronunciationExpansions))
	for k := range s.PronunciationExpansions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s.expansions = make([]acronymExpansion, 0, len(keys))
	for _, k := range keys {
		s.expansions = append(s.expansions, acronymExpansion{
			pattern: regexp.MustCompile(`\b` + regexp.QuoteMeta(k) + `\b`),
			full:    s.PronunciationExpansions[k],
		})
	}
}

// SetMinChunkLength overrides the minimum segment length. Callers pass
// alphabeticMinChunk explicitly for non-CJK sessions; 0 restores the
// default of 3.
func (s *Splitter) SetMinChunkLength(n int) {
	if n <= 0 {
		s.minChunkLength = defaultMinChunkLength
		return
	}
	s.minChunkLength = n
}

// ShouldEnd reports whether a control sentinel (e.g. END_CONVERSATION) has
// been observed since the last Reset. The sentinel text itself is always
// stripped before it can reach a TextSegment; this is the only place the
// signal survives.
func (s *Splitter) ShouldEnd() bool {
	return s.sawSentinel
}

// Reset clears all per-turn state: the pending buffer, the sequence
// counter, and the should-end flag. Call it once a turn has fully drained
// so the next turn's sequences start at 0 again.
func (s *Splitter) Reset() {
	s.buf.Reset()
	s.sequence = 0
	s.sawSentinel = false
}

// Ingest feeds one more fragment of streamed text into the splitter and
// returns any TextSegments that became ready to speak as a result. Call
// Flush once the upstream stream is done to drain whatever remains
// buffered as a final segment.
func (s *Splitter) Ingest(fragment string) []TextSegment {
	var out []TextSegment

	s.buf.WriteString(fragment)
	current := s.buf.String()

	for {
		boundary, ok := s.findBoundary(current)
		if !ok {
			break
		}
		candidate := s.clean(current[:boundary])
		if len(candidate) < s.minChunkLength && len(current) <= maxChunkLength {
			break
		}
		// Only emit assigns a sequence number, so a dropped URL segment
		// leaves no gap for the player to wait on.
		if candidate != "" && !s.isBareURL(candidate) {
			out = append(out, s.emit(candidate, false))
		}
		current = current[boundary:]
	}

	if len(current) > maxChunkLength {
		candidate := s.clean(current)
		if candidate != "" && !s.isBareURL(candidate) {
			out = append(out, s.emit(candidate, false))
		}
		current = ""
	}

	s.buf.Reset()
	s.buf.WriteString(current)
	return out
}

// Flush emits whatever remains buffered as the final segment of the
// stream, marked IsFinal. It is a no-op if the buffer is empty.
func (s *Splitter) Flush() []TextSegment {
	remaining := s.clean(s.buf.String())
	s.buf.Reset()
	if remaining == "" {
		return nil
	}
	if s.isBareURL(remaining) {
		return nil
	}
	return []TextSegment{s.emit(remaining, true)}
}

func (s *Splitter) emit(text string, final bool) TextSegment {
	seg := TextSegment{
		Sequence:   s.sequence,
		Text:       text,
		SpokenText: s.expandPronunciation(text),
		IsFinal:    final,
	}
	s.sequence++
	return seg
}

// expandPronunciation applies the configured acronym expansions on word
// boundaries. It never touches TextSegment.Text, only the returned
// SpokenText: the transcript must reflect the cleaned text before
// pronunciation expansion.
func (s *Splitter) expandPronunciation(text string) string {
	for _, e := range s.expansions {
		text = e.pattern.ReplaceAllString(text, e.full)
	}
	return text
}

// findBoundary scans for the first sentence-ending rune that is not part of
// a known acronym, returning the index just past it (boundary is exclusive
// of trailing whitespace, which stays with the next segment via Ingest's
// re-buffering of current[boundary:]). A '.' directly followed by a letter
// or digit (a hostname like "example.com", a decimal) is not a boundary.
// Failing that, once the buffer has grown past pauseBoundaryThreshold, a
// comma/pause character is accepted as a weaker boundary.
func (s *Splitter) findBoundary(text string) (int, bool) {
	runes := []rune(text)
	for i, r := range runes {
		if !isSentenceEnder(r) {
			continue
		}
		if r == '.' && i+1 < len(runes) && (unicode.IsLetter(runes[i+1]) || unicode.IsDigit(runes[i+1])) {
			continue
		}
		end := i + 1
		if s.endsInAcronym(string(runes[:end])) {
			continue
		}
		return len(string(runes[:end])), true
	}

	if len(runes) > pauseBoundaryThreshold {
		for i, r := range runes {
			if isPauseChar(r) {
				return len(string(runes[:i+1])), true
			}
		}
	}

	return 0, false
}

func (s *Splitter) endsInAcronym(prefix string) bool {
	for abbr := range s.Acronyms {
		if strings.HasSuffix(prefix, abbr) {
			return true
		}
	}
	return false
}

// isBareURL reports whether text contains a word that looks like a URL — a
// scheme (`://`), a `www.` prefix, or a bare hostname carrying one of the
// configured host suffixes (e.g. "example.com" with no scheme at all). Any
// such word drops the entire candidate segment: a sentence with a URL
// embedded among other words is still not worth speaking in full.
func (s *Splitter) isBareURL(text string) bool {
	for _, field := range strings.Fields(text) {
		if s.looksLikeURL(field) {
			return true
		}
	}
	return false
}

func (s *Splitter) looksLikeURL(word string) bool {
	w := strings.Trim(word, ".,!?;:()[]{}\"'“”")
	if w == "" {
		return false
	}
	if strings.Contains(w, "://") || strings.HasPrefix(w, "www.") {
		return true
	}
	for _, suffix := range s.URLHostSuffixes {
		if strings.Contains(w, suffix) {
			return true
		}
	}
	return false
}

func isSentenceEnder(r rune) bool {
	for _, e := range sentenceEnders {
		if r == e {
			return true
		}
	}
	return false
}

func isPauseChar(r rune) bool {
	for _, p := range pauseChars {
		if r == p {
			return true
		}
	}
	return false
}

// clean strips fenced code blocks and markdown links (keeping their visible
// text), strips markdown emphasis markers, detects and strips control
// sentinels (raising ShouldEnd), and collapses whitespace. The splitter
// only ever hands plain speakable text downstream.
func (s *Splitter) clean(text string) string {
	text = fencedCodeBlockPattern.ReplaceAllString(text, "")
	text = markdownLinkPattern.ReplaceAllString(text, "$1")

	if sentinelPattern.MatchString(text) {
		s.sawSentinel = true
		text = sentinelPattern.ReplaceAllString(text, "")
	}

	replacer := strings.NewReplacer(
		"**", "",
		"__", "",
		"*", "",
		"_", "",
		"`", "",
		"#", "",
	)
	text = replacer.Replace(text)
	return strings.TrimSpace(strings.Join(strings.Fields(text), " "))
}
