package captions

import (
	"context"
	"log"
	"strings"

	"github.com/codebuildervaibhav/audio-captions/internal/types"
)

// Translator translates newline-delimited text between two languages
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// Align translates the original caption set into every target language and
// re-attaches the original cue timing line by line.
//
// The result starts with the original set followed by one set per target, in
// request order. Duplicate targets and the source language itself are skipped.
// Each target costs exactly one Translate call with all cue lines joined by
// newlines. If the reply does not split into exactly one line per cue the
// whole alignment fails with AlignmentMismatch and no sets are returned.
func Align(ctx context.Context, original types.CaptionSet, targets []string, tr Translator) ([]types.CaptionSet, error) {
	sets := []types.CaptionSet{original}
	src := original.LanguageCode

	var text string
	if len(original.Cues) > 0 {
		lines := make([]string, len(original.Cues))
		for i, cue := range original.Cues {
			lines[i] = cueText(cue)
		}
		text = strings.Join(lines, "\n")
	}

	for _, dest := range TargetLanguages(src, targets) {
		if err := ctx.Err(); err != nil {
			return nil, types.Errorf(types.ErrCancelled, err, "alignment cancelled").WithLanguage(dest)
		}

		translated := types.CaptionSet{LanguageCode: dest, Cues: []types.Cue{}}
		if len(original.Cues) == 0 {
			sets = append(sets, translated)
			continue
		}

		reply, err := tr.Translate(ctx, text, src, dest)
		if err != nil {
			return nil, types.Errorf(types.ErrTranslationProvider, err,
				"translate %s -> %s", src, dest).WithLanguage(dest)
		}

		lines := splitLines(reply)
		if len(lines) != len(original.Cues) {
			log.Printf("Aligner: %s -> %s returned %d lines for %d cues", src, dest, len(lines), len(original.Cues))
			return nil, types.Errorf(types.ErrAlignmentMismatch, nil,
				"expected %d lines, got %d", len(original.Cues), len(lines)).WithLanguage(dest)
		}

		translated.Cues = make([]types.Cue, len(lines))
		for i, line := range lines {
			translated.Cues[i] = types.Cue{
				StartMs: original.Cues[i].StartMs,
				EndMs:   original.Cues[i].EndMs,
				Lines:   []string{line},
			}
		}
		sets = append(sets, translated)
	}

	return sets, nil
}

// TargetLanguages de-duplicates targets, keeping the first occurrence, and
// drops empty entries and the source language
func TargetLanguages(source string, targets []string) []string {
	seen := map[string]bool{source: true}
	out := make([]string, 0, len(targets))
	for _, lang := range targets {
		lang = strings.TrimSpace(lang)
		if lang == "" || seen[lang] {
			continue
		}
		seen[lang] = true
		out = append(out, lang)
	}
	return out
}

// cueText flattens a cue into a single newline-free line
func cueText(cue types.Cue) string {
	return strings.Join(strings.Fields(strings.Join(cue.Lines, " ")), " ")
}

// splitLines normalizes line endings and drops one trailing newline before splitting
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}
