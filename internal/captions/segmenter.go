package captions

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/codebuildervaibhav/audio-captions/internal/types"
)

// Default cue budgets
const (
	DefaultMaxDuration = 3500 * time.Millisecond
	DefaultMaxChars    = 42
	DefaultBreakOn     = ".!?。！？"
)

// Segmenter groups transcript tokens into caption cues.
//
// A cue is closed before appending a word when the word would push the cue
// past MaxDuration (measured from the cue start to the word end) or past
// MaxChars runes. A strong terminator (any rune of BreakOn) closes the cue
// right after it is appended. Punctuation never opens a cue: it is appended
// to the open cue unchecked, so trailing punctuation may take a cue past
// MaxChars. Punctuation that arrives while no cue is open is dropped.
type Segmenter struct {
	MaxDuration time.Duration
	MaxChars    int
	BreakOn     string
}

// NewSegmenter creates a segmenter; zero values fall back to the defaults
func NewSegmenter(maxDuration time.Duration, maxChars int, breakOn string) *Segmenter {
	if maxDuration <= 0 {
		maxDuration = DefaultMaxDuration
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if breakOn == "" {
		breakOn = DefaultBreakOn
	}
	return &Segmenter{
		MaxDuration: maxDuration,
		MaxChars:    maxChars,
		BreakOn:     breakOn,
	}
}

// cueBuilder accumulates one open cue
type cueBuilder struct {
	open    bool
	startMs int64
	endMs   int64
	text    strings.Builder
	runes   int
}

func (b *cueBuilder) reset() {
	b.open = false
	b.startMs, b.endMs = 0, 0
	b.text.Reset()
	b.runes = 0
}

// Segment returns cues in token order. Cues never overlap, start times are
// non-decreasing and every cue holds exactly one non-empty line.
func (s *Segmenter) Segment(tokens []types.Token) []types.Cue {
	var (
		cues   []types.Cue
		cur    cueBuilder
		lastMs int64
	)
	maxMs := s.MaxDuration.Milliseconds()

	flush := func() {
		if cur.open && cur.runes > 0 {
			cues = append(cues, types.Cue{
				StartMs: cur.startMs,
				EndMs:   cur.endMs,
				Lines:   []string{cur.text.String()},
			})
			lastMs = cur.endMs
		}
		cur.reset()
	}

	for _, tok := range tokens {
		text := strings.Join(strings.Fields(tok.Text), " ")
		if text == "" {
			continue
		}
		n := utf8.RuneCountInString(text)

		switch tok.Kind {
		case types.KindPunctuation:
			if !cur.open {
				continue
			}
			cur.text.WriteString(text)
			cur.runes += n
			if s.isTerminator(text) {
				flush()
			}

		case types.KindPronunciation:
			if cur.open && (tok.EndMs-cur.startMs > maxMs || cur.runes+1+n > s.MaxChars) {
				flush()
			}

			if !cur.open {
				start := tok.StartMs
				if start < lastMs {
					start = lastMs
				}
				cur.open = true
				cur.startMs = start
				cur.endMs = start
			} else {
				cur.text.WriteByte(' ')
				cur.runes++
			}
			cur.text.WriteString(text)
			cur.runes += n
			if tok.EndMs > cur.endMs {
				cur.endMs = tok.EndMs
			}
		}
	}
	flush()

	return cues
}

// isTerminator reports whether a punctuation token ends a sentence
func (s *Segmenter) isTerminator(text string) bool {
	r, _ := utf8.DecodeLastRuneInString(text)
	return strings.ContainsRune(s.BreakOn, r)
}
