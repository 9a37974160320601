package transcription

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/codebuildervaibhav/audio-captions/internal/types"
)

// TranscribeOutput matches the transcription provider's JSON result document
type TranscribeOutput struct {
	Results *TranscribeResults `json:"results"`
}

// TranscribeResults holds the language and the ordered recognized items
type TranscribeResults struct {
	LanguageCode string            `json:"language_code"`
	Items        *[]TranscribeItem `json:"items"`
}

// TranscribeItem is one pronunciation or punctuation entry.
// Timing is only present for pronunciation items.
type TranscribeItem struct {
	Type         string                  `json:"type"`
	StartTime    *string                 `json:"start_time,omitempty"`
	EndTime      *string                 `json:"end_time,omitempty"`
	Content      *string                 `json:"content,omitempty"`
	Alternatives []TranscribeAlternative `json:"alternatives,omitempty"`
}

// TranscribeAlternative is a candidate text for an item
type TranscribeAlternative struct {
	Confidence string `json:"confidence"`
	Content    string `json:"content"`
}

// Parse decodes a raw transcription result into a normalized transcript
func Parse(raw []byte) (types.Transcript, error) {
	var out TranscribeOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return types.Transcript{}, malformed(err, "invalid JSON")
	}
	if out.Results == nil {
		return types.Transcript{}, malformed(nil, "missing results")
	}
	if strings.TrimSpace(out.Results.LanguageCode) == "" {
		return types.Transcript{}, malformed(nil, "missing results.language_code")
	}
	if out.Results.Items == nil {
		return types.Transcript{}, malformed(nil, "missing results.items")
	}

	items := *out.Results.Items
	tokens := make([]types.Token, 0, len(items))
	for i, item := range items {
		tok, err := toToken(item)
		if err != nil {
			return types.Transcript{}, malformed(err, "item %d", i)
		}
		tokens = append(tokens, tok)
	}

	return types.Transcript{
		LanguageCode: strings.TrimSpace(out.Results.LanguageCode),
		Tokens:       tokens,
	}, nil
}

// toToken converts one provider item, interpreting timing only for pronunciations
func toToken(item TranscribeItem) (types.Token, error) {
	text, err := itemContent(item)
	if err != nil {
		return types.Token{}, err
	}

	switch types.TokenKind(item.Type) {
	case types.KindPunctuation:
		return types.Token{Kind: types.KindPunctuation, Text: text}, nil
	case types.KindPronunciation:
	case "":
		return types.Token{}, fmt.Errorf("missing type")
	default:
		return types.Token{}, fmt.Errorf("unknown type %q", item.Type)
	}

	if item.StartTime == nil || item.EndTime == nil {
		return types.Token{}, fmt.Errorf("pronunciation without start_time/end_time")
	}
	start, err := ParseMillis(*item.StartTime)
	if err != nil {
		return types.Token{}, fmt.Errorf("start_time: %w", err)
	}
	end, err := ParseMillis(*item.EndTime)
	if err != nil {
		return types.Token{}, fmt.Errorf("end_time: %w", err)
	}
	if start > end {
		return types.Token{}, fmt.Errorf("start_time %q after end_time %q", *item.StartTime, *item.EndTime)
	}

	return types.Token{
		Kind:    types.KindPronunciation,
		Text:    text,
		StartMs: start,
		EndMs:   end,
	}, nil
}

// itemContent reads the item text from content, falling back to the first alternative
func itemContent(item TranscribeItem) (string, error) {
	if item.Content != nil {
		return *item.Content, nil
	}
	if len(item.Alternatives) > 0 {
		return item.Alternatives[0].Content, nil
	}
	return "", fmt.Errorf("missing content")
}

// maxSeconds is the largest whole-second value whose milliseconds fit in int64
const maxSeconds = (math.MaxInt64 - 999) / 1000

// ParseMillis converts a decimal seconds string to integer milliseconds,
// truncating digits past the third decimal ("1.2349" -> 1234).
func ParseMillis(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty seconds value")
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("invalid seconds value %q", s)
	}
	if !allDigits(whole) || !allDigits(frac) {
		return 0, fmt.Errorf("invalid seconds value %q", s)
	}

	var secs int64
	if whole != "" {
		v, err := strconv.ParseInt(whole, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid seconds value %q: %w", s, err)
		}
		if v > maxSeconds {
			return 0, fmt.Errorf("seconds value %q out of range", s)
		}
		secs = v
	}

	if len(frac) > 3 {
		frac = frac[:3]
	}
	frac += strings.Repeat("0", 3-len(frac))
	ms, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid seconds value %q: %w", s, err)
	}

	return secs*1000 + ms, nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func malformed(cause error, format string, args ...interface{}) error {
	return types.Errorf(types.ErrMalformedTranscript, cause, format, args...)
}
