package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"github.com/codebuildervaibhav/audio-captions/internal/pipeline"
	"github.com/codebuildervaibhav/audio-captions/internal/types"
)

// ErrQueueFull is returned when the run buffer has no room left
var ErrQueueFull = errors.New("run queue is full")

// ErrStopped is returned when enqueueing into a stopped pool
var ErrStopped = errors.New("worker pool stopped")

// Runner executes caption runs
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
	Caption(ctx context.Context, documentID, provider string, targets []string, progress pipeline.Progress) (pipeline.Result, error)
	Provider() string
}

// RunStore persists run records
type RunStore interface {
	SaveRun(ctx context.Context, run types.Run) error
}

// WorkerPool manages a pool of workers processing caption runs
type WorkerPool struct {
	runQueue    chan *Run
	workerCount int
	runner      Runner
	db          RunStore
	events      *EventBus

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(workerCount, queueSize int, runner Runner, db RunStore, events *EventBus) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	if events == nil {
		events = NewEventBus(0)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		runQueue:    make(chan *Run, queueSize),
		workerCount: workerCount,
		runner:      runner,
		db:          db,
		events:      events,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Events returns the bus run updates are published on
func (wp *WorkerPool) Events() *EventBus {
	return wp.events
}

// Start initializes all workers
func (wp *WorkerPool) Start() {
	log.Printf("Starting worker pool with %d workers", wp.workerCount)
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop cancels in-flight runs and waits for the workers to exit.
// Runs still waiting in the queue are marked failed as cancelled.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	close(wp.runQueue)
	wp.mu.Unlock()

	wp.cancel()
	wp.wg.Wait()
	log.Println("Worker pool stopped")
}

// Enqueue adds a run to the queue and records it as queued
func (wp *WorkerPool) Enqueue(run *Run) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.stopped {
		return ErrStopped
	}

	run.Status = types.StatusQueued
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	// Producers hold mu, so a free slot checked here is still free below
	if len(wp.runQueue) >= cap(wp.runQueue) {
		return ErrQueueFull
	}

	wp.save(run)
	wp.events.Publish(Event{RunID: run.ID, Type: EventTypeStatus, Status: run.Status})
	wp.runQueue <- run
	log.Printf("Run %s enqueued (source: %s, document: %s)", run.ID, run.Source, run.Request.DocumentID)
	return nil
}

// worker processes runs from the queue
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()
	log.Printf("Worker %d started", id)

	for run := range wp.runQueue {
		// Panic recovery
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("Worker %d: PANIC processing run %s: %v\n%s",
						id, run.ID, r, string(debug.Stack()))
					wp.fail(run, fmt.Errorf("worker panic: %v", r))
				}
			}()

			wp.processRun(id, run)
		}()
	}
}

// processRun executes one run and records its outcome
func (wp *WorkerPool) processRun(workerID int, run *Run) {
	if err := wp.ctx.Err(); err != nil {
		wp.fail(run, types.Errorf(types.ErrCancelled, err, "pool stopped before run started"))
		return
	}

	log.Printf("Worker %d: Processing run %s (%s)", workerID, run.ID, run.Request)
	run.Status = types.StatusProcessing
	wp.save(run)
	wp.events.Publish(Event{RunID: run.ID, Type: EventTypeStatus, Status: run.Status})

	progress := func(e pipeline.Event) {
		ev := Event{
			RunID:     run.ID,
			Type:      EventTypeProgress,
			Stage:     e.Stage,
			Polls:     e.Polls,
			ElapsedMs: e.Elapsed.Milliseconds(),
		}
		if e.Job.Name != "" {
			job := e.Job
			ev.Job = &job
			if run.Result.Job.Name == "" {
				run.Result.Job.Name = job.Name
				wp.save(run)
			}
		}
		wp.events.Publish(ev)
	}

	var (
		res pipeline.Result
		err error
	)
	switch run.Source {
	case types.SourceRecaption:
		res, err = wp.runner.Caption(wp.ctx, run.Request.DocumentID, wp.runner.Provider(), run.Request.Targets, progress)
	default:
		req := run.Request
		req.Progress = progress
		res, err = wp.runner.Run(wp.ctx, req)
	}
	if res.Job.Name != "" {
		run.Result = res
	}

	if err != nil {
		log.Printf("Worker %d: Run %s failed: %v", workerID, run.ID, err)
		wp.fail(run, err)
		return
	}

	run.Result = res
	run.Status = types.StatusCompleted
	wp.save(run)
	wp.events.Publish(Event{RunID: run.ID, Type: EventTypeResult, Status: run.Status, Tracks: res.Tracks})
	log.Printf("Worker %d: Run %s completed (%d caption tracks)", workerID, run.ID, len(res.Tracks))
}

// fail marks a run failed and publishes the error
func (wp *WorkerPool) fail(run *Run, err error) {
	run.Status = types.StatusFailed
	run.Error = err
	wp.save(run)
	wp.events.Publish(Event{
		RunID:     run.ID,
		Type:      EventTypeError,
		Status:    run.Status,
		ErrorKind: types.KindOf(err),
		Retryable: types.Retryable(err),
		Message:   err.Error(),
	})
}

// save persists the run record; failures are logged and do not affect the run
func (wp *WorkerPool) save(run *Run) {
	if wp.db == nil {
		return
	}
	// Records are written even after Stop so cancelled runs end up FAILED
	if err := wp.db.SaveRun(context.Background(), run.record()); err != nil {
		log.Printf("Failed to save run %s: %v", run.ID, err)
	}
}
