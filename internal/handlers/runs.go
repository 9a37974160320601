package handlers

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/audio-captions/internal/pipeline"
	"github.com/codebuildervaibhav/audio-captions/internal/queue"
	"github.com/codebuildervaibhav/audio-captions/internal/storage"
	"github.com/codebuildervaibhav/audio-captions/internal/transcription"
	"github.com/codebuildervaibhav/audio-captions/internal/types"
)

// Enqueuer accepts runs for background processing
type Enqueuer interface {
	Enqueue(run *queue.Run) error
}

// RunReader looks up persisted run records
type RunReader interface {
	GetRun(ctx context.Context, id string) (types.Run, error)
}

// RunRequest is the body of POST /runs
type RunRequest struct {
	DocumentID    string   `json:"document_id"`
	AudioLocation string   `json:"audio_location"`
	JobName       string   `json:"job_name"`
	Languages     []string `json:"languages"`
	Targets       []string `json:"targets"`
}

// RunsHandler starts caption runs and reports their state
type RunsHandler struct {
	queue            Enqueuer
	runs             RunReader
	defaultTargets   []string
	defaultLanguages []string
}

// NewRunsHandler creates a new runs handler. Requests without targets or
// languages get the configured lists.
func NewRunsHandler(q Enqueuer, runs RunReader, defaultTargets, defaultLanguages []string) *RunsHandler {
	return &RunsHandler{
		queue:            q,
		runs:             runs,
		defaultTargets:   defaultTargets,
		defaultLanguages: defaultLanguages,
	}
}

// Create validates the request and enqueues a run
func (h *RunsHandler) Create(c *fiber.Ctx) error {
	var req RunRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
			"code":  "ERR_INVALID_BODY",
		})
	}

	req.DocumentID = strings.TrimSpace(req.DocumentID)
	req.JobName = strings.TrimSpace(req.JobName)
	if req.DocumentID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "document_id is required",
			"code":  "ERR_NO_DOCUMENT",
		})
	}

	source := types.SourceJob
	if req.JobName == "" {
		source = types.SourceAudio
		if req.AudioLocation == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "audio_location or job_name is required",
				"code":  "ERR_NO_SOURCE",
			})
		}
		if err := transcription.ValidateAudioLocation(req.AudioLocation); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
				"code":  "ERR_INVALID_LOCATION",
			})
		}
	}

	run := queue.NewRun(source, pipeline.Request{
		DocumentID:    req.DocumentID,
		AudioLocation: strings.TrimSpace(req.AudioLocation),
		JobName:       req.JobName,
		Languages:     orDefault(req.Languages, h.defaultLanguages),
		Targets:       orDefault(req.Targets, h.defaultTargets),
	})
	return enqueue(c, h.queue, run)
}

// Get returns the persisted state of a run
func (h *RunsHandler) Get(c *fiber.Ctx) error {
	run, err := h.runs.GetRun(c.UserContext(), c.Params("id"))
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Run not found",
			"code":  "ERR_NOT_FOUND",
		})
	}
	if err != nil {
		log.Printf("Failed to load run %s: %v", c.Params("id"), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(run)
}

// enqueue hands the run to the queue and answers 202 with its id
func enqueue(c *fiber.Ctx, q Enqueuer, run *queue.Run) error {
	if err := q.Enqueue(run); err != nil {
		if errors.Is(err, queue.ErrQueueFull) || errors.Is(err, queue.ErrStopped) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": err.Error(),
				"code":  "ERR_QUEUE_UNAVAILABLE",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"run_id":  run.ID,
		"status":  run.Status,
		"targets": run.Request.Targets,
	})
}

// orDefault uses the requested language codes, or the configured list when none are given
func orDefault(requested, defaults []string) []string {
	var out []string
	for _, t := range requested {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		out = append(out, defaults...)
	}
	return out
}
