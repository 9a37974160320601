package transcription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/codebuildervaibhav/audio-captions/internal/types"
)

// fakeStatus returns scripted statuses, repeating the last one forever.
type fakeStatus struct {
	statuses []types.Job
	err      error
	calls    int
}

func (f *fakeStatus) GetStatus(ctx context.Context, jobName string) (types.Job, error) {
	f.calls++
	if f.err != nil {
		return types.Job{}, f.err
	}
	i := f.calls - 1
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	return f.statuses[i], nil
}

func newTestAwaiter(p StatusGetter, interval, timeout time.Duration) *Awaiter {
	a := NewAwaiter(p, interval, timeout)
	a.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return a
}

// TestAwaitCompletes verifies polling stops at the first terminal status.
func TestAwaitCompletes(t *testing.T) {
	p := &fakeStatus{statuses: []types.Job{
		{Name: "job-1", Status: types.JobInProgress},
		{Name: "job-1", Status: types.JobCompleted, TranscriptLocation: "https://example.com/t.json"},
	}}
	a := newTestAwaiter(p, 5*time.Second, time.Hour)

	var polled []int
	a.OnPoll = func(job types.Job, polls int, elapsed time.Duration) {
		polled = append(polled, polls)
	}

	job, err := a.Await(context.Background(), types.Job{Name: "job-1", Status: types.JobPending})
	if err != nil {
		t.Fatalf("Await() error = %v", err)
	}
	if job.Status != types.JobCompleted || job.TranscriptLocation == "" {
		t.Fatalf("job = %+v", job)
	}
	if p.calls != 2 {
		t.Fatalf("polls = %d, want 2", p.calls)
	}
	if len(polled) != 2 {
		t.Fatalf("OnPoll calls = %d, want 2", len(polled))
	}
}

// TestAwaitFailedIsTerminal checks a FAILED job is returned without error.
func TestAwaitFailedIsTerminal(t *testing.T) {
	p := &fakeStatus{statuses: []types.Job{
		{Name: "job-1", Status: types.JobFailed, FailureReason: "unsupported media"},
	}}
	a := newTestAwaiter(p, time.Second, time.Minute)

	job, err := a.Await(context.Background(), types.Job{Name: "job-1", Status: types.JobInProgress})
	if err != nil {
		t.Fatalf("Await() error = %v", err)
	}
	if job.Status != types.JobFailed || job.FailureReason != "unsupported media" {
		t.Fatalf("job = %+v", job)
	}
}

func TestAwaitAlreadyTerminal(t *testing.T) {
	p := &fakeStatus{}
	a := newTestAwaiter(p, time.Second, time.Minute)

	if _, err := a.Await(context.Background(), types.Job{Name: "j", Status: types.JobCompleted}); err != nil {
		t.Fatalf("Await() error = %v", err)
	}
	if p.calls != 0 {
		t.Fatalf("polls = %d, want 0", p.calls)
	}
}

// TestAwaitTimeout verifies a job stuck in progress issues ceil(T/interval) polls then fails.
func TestAwaitTimeout(t *testing.T) {
	cases := []struct {
		interval, timeout time.Duration
		wantPolls         int
	}{
		{5 * time.Second, 12 * time.Second, 3},
		{5 * time.Second, 10 * time.Second, 2},
		{DefaultPollInterval, DefaultTimeout, 1440},
	}

	for _, tc := range cases {
		p := &fakeStatus{statuses: []types.Job{{Name: "stuck", Status: types.JobInProgress}}}
		a := newTestAwaiter(p, tc.interval, tc.timeout)

		_, err := a.Await(context.Background(), types.Job{Name: "stuck", Status: types.JobInProgress})
		if types.KindOf(err) != types.ErrJobTimeout {
			t.Fatalf("kind = %q, want JobTimeout (err=%v)", types.KindOf(err), err)
		}
		var e *types.Error
		if !errors.As(err, &e) || e.Job != "stuck" {
			t.Fatalf("error should name the job: %v", err)
		}
		if p.calls != tc.wantPolls {
			t.Fatalf("T=%s interval=%s: polls = %d, want %d", tc.timeout, tc.interval, p.calls, tc.wantPolls)
		}
	}
}

// TestAwaitCancelled checks cancellation ends the wait without a transcript location.
func TestAwaitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &fakeStatus{statuses: []types.Job{{Name: "job-1", Status: types.JobInProgress}}}
	a := newTestAwaiter(p, time.Second, time.Hour)
	a.OnPoll = func(job types.Job, polls int, elapsed time.Duration) {
		if polls == 3 {
			cancel()
		}
	}

	job, err := a.Await(ctx, types.Job{Name: "job-1", Status: types.JobPending})
	if types.KindOf(err) != types.ErrCancelled {
		t.Fatalf("kind = %q, want Cancelled (err=%v)", types.KindOf(err), err)
	}
	if job.TranscriptLocation != "" || job.Status.Terminal() {
		t.Fatalf("cancelled await returned job %+v", job)
	}
	if p.calls != 3 {
		t.Fatalf("polls = %d, want 3", p.calls)
	}
}

func TestAwaitRealSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	p := &fakeStatus{statuses: []types.Job{{Name: "job-1", Status: types.JobInProgress}}}
	a := NewAwaiter(p, time.Hour, 10*time.Hour)

	start := time.Now()
	_, err := a.Await(ctx, types.Job{Name: "job-1", Status: types.JobInProgress})
	if types.KindOf(err) != types.ErrCancelled {
		t.Fatalf("kind = %q, want Cancelled", types.KindOf(err))
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("await did not stop on context deadline")
	}
	if p.calls != 0 {
		t.Fatalf("polls = %d, want 0", p.calls)
	}
}

// TestAwaitIgnoresBackwardTransition verifies the awaiter never moves a job backwards.
func TestAwaitIgnoresBackwardTransition(t *testing.T) {
	p := &fakeStatus{statuses: []types.Job{
		{Name: "job-1", Status: types.JobInProgress},
		{Name: "job-1", Status: types.JobPending},
		{Name: "job-1", Status: types.JobCompleted},
	}}
	a := newTestAwaiter(p, time.Second, time.Minute)

	var seen []types.JobStatus
	a.OnPoll = func(job types.Job, polls int, elapsed time.Duration) {
		seen = append(seen, job.Status)
	}

	if _, err := a.Await(context.Background(), types.Job{Name: "job-1", Status: types.JobPending}); err != nil {
		t.Fatalf("Await() error = %v", err)
	}
	want := []types.JobStatus{types.JobInProgress, types.JobInProgress, types.JobCompleted}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("statuses = %v, want %v", seen, want)
		}
	}
}

func TestAwaitProviderError(t *testing.T) {
	p := &fakeStatus{err: errors.New("throttled")}
	a := newTestAwaiter(p, time.Second, time.Minute)

	_, err := a.Await(context.Background(), types.Job{Name: "job-1", Status: types.JobInProgress})
	if types.KindOf(err) != types.ErrJobProvider {
		t.Fatalf("kind = %q, want JobProviderError", types.KindOf(err))
	}
	if !types.Retryable(err) {
		t.Fatal("provider errors should be retryable")
	}
}
