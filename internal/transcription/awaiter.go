package transcription

import (
	"context"
	"log"
	"time"

	"github.com/codebuildervaibhav/audio-captions/internal/types"
)

// Default polling cadence and overall wait budget for transcription jobs
const (
	DefaultPollInterval = 5 * time.Second
	DefaultTimeout      = 2 * time.Hour
)

// JobProvider submits audio to an asynchronous transcription service and reports job status
type JobProvider interface {
	Submit(ctx context.Context, audioLocation string, languages []string) (types.Job, error)
	GetStatus(ctx context.Context, jobName string) (types.Job, error)
}

// StatusGetter is the read-only part of JobProvider used while waiting
type StatusGetter interface {
	GetStatus(ctx context.Context, jobName string) (types.Job, error)
}

// Awaiter polls a transcription job until it reaches a terminal state
type Awaiter struct {
	provider     StatusGetter
	pollInterval time.Duration
	timeout      time.Duration

	// OnPoll is called after every status query
	OnPoll func(job types.Job, polls int, elapsed time.Duration)

	sleep func(ctx context.Context, d time.Duration) error
}

// NewAwaiter creates an awaiter; non-positive durations fall back to the defaults
func NewAwaiter(provider StatusGetter, pollInterval, timeout time.Duration) *Awaiter {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Awaiter{
		provider:     provider,
		pollInterval: pollInterval,
		timeout:      timeout,
		sleep:        sleepContext,
	}
}

// Await blocks until the job is COMPLETED or FAILED.
// Elapsed time is accumulated from poll intervals. Once it reaches the
// timeout the loop stops with JobTimeout. Cancellation of ctx returns
// Cancelled together with an empty job.
func (a *Awaiter) Await(ctx context.Context, job types.Job) (types.Job, error) {
	var (
		elapsed time.Duration
		polls   int
	)

	for !job.Status.Terminal() {
		if elapsed >= a.timeout {
			log.Printf("Awaiter: job %s timed out after %s (%d polls)", job.Name, elapsed, polls)
			return job, types.Errorf(types.ErrJobTimeout, nil,
				"job still %s after %s", job.Status, elapsed).WithJob(job.Name)
		}

		if err := a.sleep(ctx, a.pollInterval); err != nil {
			log.Printf("Awaiter: waiting for job %s cancelled after %s", job.Name, elapsed)
			return types.Job{}, types.Errorf(types.ErrCancelled, err,
				"wait cancelled after %s", elapsed).WithJob(job.Name)
		}
		elapsed += a.pollInterval

		next, err := a.provider.GetStatus(ctx, job.Name)
		polls++
		if err != nil {
			if ctx.Err() != nil {
				return types.Job{}, types.Errorf(types.ErrCancelled, ctx.Err(),
					"wait cancelled after %s", elapsed).WithJob(job.Name)
			}
			return job, types.Errorf(types.ErrJobProvider, err, "status query failed").WithJob(job.Name)
		}
		if next.Name == "" {
			next.Name = job.Name
		}

		if job.Status.CanAdvance(next.Status) {
			job = next
		} else {
			log.Printf("Awaiter: ignoring %s -> %s for job %s", job.Status, next.Status, job.Name)
		}

		if a.OnPoll != nil {
			a.OnPoll(job, polls, elapsed)
		}
	}

	return job, nil
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
