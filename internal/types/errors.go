package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies failures of a caption run
type ErrorKind string

const (
	ErrJobTimeout          ErrorKind = "JobTimeout"
	ErrJobFailed           ErrorKind = "JobFailed"
	ErrCancelled           ErrorKind = "Cancelled"
	ErrTranscriptFetch     ErrorKind = "TranscriptFetchError"
	ErrMalformedTranscript ErrorKind = "MalformedTranscript"
	ErrAlignmentMismatch   ErrorKind = "AlignmentMismatch"
	ErrTranslationProvider ErrorKind = "TranslationProviderError"
	ErrJobProvider         ErrorKind = "JobProviderError"
	ErrRawArtifactMissing  ErrorKind = "RawArtifactMissing"
	ErrPersistence         ErrorKind = "PersistenceError"
)

// Error is a kind-aware run failure with optional job and language context
type Error struct {
	Kind     ErrorKind `json:"kind"`
	Job      string    `json:"job,omitempty"`
	Language string    `json:"language,omitempty"`
	Message  string    `json:"message"`
	Err      error     `json:"-"`
}

// Error formats the failure for logs and API responses
func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Job != "" {
		fmt.Fprintf(&b, " (job=%s)", e.Job)
	}
	if e.Language != "" {
		fmt.Fprintf(&b, " (lang=%s)", e.Language)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes the underlying cause for errors.Is / errors.As
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Errorf builds an Error of the given kind
func Errorf(kind ErrorKind, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     cause,
	}
}

// WithJob attaches a job name
func (e *Error) WithJob(name string) *Error {
	e.Job = name
	return e
}

// WithLanguage attaches a target language
func (e *Error) WithLanguage(lang string) *Error {
	e.Language = lang
	return e
}

// KindOf returns the kind of the first Error in the chain, or "" if there is none
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Retryable reports whether a caller may reasonably retry the run.
// Structural failures (malformed transcript, alignment) never are.
func Retryable(err error) bool {
	switch KindOf(err) {
	case ErrTranscriptFetch, ErrTranslationProvider, ErrJobProvider:
		return true
	default:
		return false
	}
}
