package types

import (
	"strings"
	"time"
)

// Run status constants
const (
	StatusQueued     = "QUEUED"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Run source constants
const (
	SourceAudio     = "audio"     // new audio submitted to the transcription provider
	SourceJob       = "job"       // an already submitted transcription job
	SourceRecaption = "recaption" // stored raw transcript, new language list
)

// TokenKind distinguishes spoken words from punctuation marks
type TokenKind string

const (
	KindPronunciation TokenKind = "pronunciation"
	KindPunctuation   TokenKind = "punctuation"
)

// Token is one recognized unit of the transcript.
// Punctuation tokens carry zero timing.
type Token struct {
	Kind    TokenKind `json:"kind"`
	Text    string    `json:"text"`
	StartMs int64     `json:"start_ms"`
	EndMs   int64     `json:"end_ms"`
}

// Transcript is the normalized token stream of one transcription result
type Transcript struct {
	LanguageCode string  `json:"language_code"`
	Tokens       []Token `json:"tokens"`
}

// SourceLanguage returns the primary subtag of the transcript locale (en-US -> en)
func (t Transcript) SourceLanguage() string {
	return PrimaryLanguage(t.LanguageCode)
}

// PrimaryLanguage strips region and script subtags from a locale tag
func PrimaryLanguage(code string) string {
	code = strings.TrimSpace(code)
	if i := strings.IndexAny(code, "-_"); i >= 0 {
		return code[:i]
	}
	return code
}

// Cue is a single caption entry
type Cue struct {
	StartMs int64    `json:"start_ms"`
	EndMs   int64    `json:"end_ms"`
	Lines   []string `json:"lines"`
}

// CaptionSet holds the cues of one language
type CaptionSet struct {
	LanguageCode string `json:"language_code"`
	Cues         []Cue  `json:"cues"`
}

// CaptionTrack is one entry of a document's caption map
type CaptionTrack struct {
	LanguageCode string    `json:"language_code"`
	ArtifactRef  string    `json:"artifact_ref"`
	CreatedAt    time.Time `json:"created_at"`
}

// RawArtifact records a raw result produced by an upstream provider for a document
type RawArtifact struct {
	ID         int64     `json:"id"`
	DocumentID string    `json:"document_id"`
	Provider   string    `json:"provider"`
	JobName    string    `json:"job_name"`
	Key        string    `json:"key"`
	CreatedAt  time.Time `json:"created_at"`
}

// Run is the persisted record of one caption processing run
type Run struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Source     string    `json:"source"`
	JobName    string    `json:"job_name,omitempty"`
	Status     string    `json:"status"`
	ErrorKind  ErrorKind `json:"error_kind,omitempty"`
	Error      string    `json:"error,omitempty"`
	Retryable  bool      `json:"retryable"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
