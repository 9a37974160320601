package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/codebuildervaibhav/audio-captions/internal/pipeline"
	"github.com/codebuildervaibhav/audio-captions/internal/types"
)

// Run represents one queued caption run
type Run struct {
	ID        string
	Source    string
	Request   pipeline.Request
	Status    string
	Error     error
	Result    pipeline.Result
	CreatedAt time.Time
}

// NewRun creates a new run with default values
func NewRun(source string, req pipeline.Request) *Run {
	return &Run{
		ID:        uuid.New().String(),
		Source:    source,
		Request:   req,
		Status:    types.StatusQueued,
		CreatedAt: time.Now(),
	}
}

// record converts the run into its persisted form
func (r *Run) record() types.Run {
	rec := types.Run{
		ID:         r.ID,
		DocumentID: r.Request.DocumentID,
		Source:     r.Source,
		JobName:    r.Request.JobName,
		Status:     r.Status,
		CreatedAt:  r.CreatedAt,
	}
	if r.Result.Job.Name != "" {
		rec.JobName = r.Result.Job.Name
	}
	if r.Error != nil {
		rec.Error = r.Error.Error()
		rec.ErrorKind = types.KindOf(r.Error)
		rec.Retryable = types.Retryable(r.Error)
	}
	return rec
}
