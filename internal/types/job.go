package types

// JobStatus is the state of an external transcription job
type JobStatus string

const (
	JobPending    JobStatus = "PENDING"
	JobInProgress JobStatus = "IN_PROGRESS"
	JobCompleted  JobStatus = "COMPLETED"
	JobFailed     JobStatus = "FAILED"
)

// Job describes an external transcription job
type Job struct {
	Name               string    `json:"name"`
	Status             JobStatus `json:"status"`
	TranscriptLocation string    `json:"transcript_location,omitempty"`
	FailureReason      string    `json:"failure_reason,omitempty"`
}

// Terminal reports whether no further polling should happen
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// CanAdvance reports whether moving from s to next is a forward transition.
// Staying in the same non-terminal state is allowed.
func (s JobStatus) CanAdvance(next JobStatus) bool {
	if s.Terminal() {
		return false
	}
	return next.rank() >= s.rank() && next.rank() > 0
}

func (s JobStatus) rank() int {
	switch s {
	case JobPending:
		return 1
	case JobInProgress:
		return 2
	case JobCompleted, JobFailed:
		return 3
	default:
		return 0
	}
}
