package handlers

import (
	"context"
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/audio-captions/internal/pipeline"
	"github.com/codebuildervaibhav/audio-captions/internal/queue"
	"github.com/codebuildervaibhav/audio-captions/internal/storage"
	"github.com/codebuildervaibhav/audio-captions/internal/types"
)

// CaptionReader reads the caption map of documents
type CaptionReader interface {
	ListCaptions(ctx context.Context, documentID string) ([]types.CaptionTrack, error)
	GetCaption(ctx context.Context, documentID, language string) (types.CaptionTrack, error)
}

// CaptionFiles returns caption artifact bodies
type CaptionFiles interface {
	ReadCaption(ref string) ([]byte, error)
}

// CaptionsHandler serves document caption tracks
type CaptionsHandler struct {
	queue          Enqueuer
	index          CaptionReader
	files          CaptionFiles
	defaultTargets []string
}

// NewCaptionsHandler creates a new captions handler
func NewCaptionsHandler(q Enqueuer, index CaptionReader, files CaptionFiles, defaultTargets []string) *CaptionsHandler {
	return &CaptionsHandler{
		queue:          q,
		index:          index,
		files:          files,
		defaultTargets: defaultTargets,
	}
}

// Recaption enqueues a run that rebuilds the captions from the stored raw transcript
func (h *CaptionsHandler) Recaption(c *fiber.Ctx) error {
	var body struct {
		Targets []string `json:"targets"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
				"code":  "ERR_INVALID_BODY",
			})
		}
	}

	run := queue.NewRun(types.SourceRecaption, pipeline.Request{
		DocumentID: c.Params("id"),
		Targets:    orDefault(body.Targets, h.defaultTargets),
	})
	return enqueue(c, h.queue, run)
}

// List returns the caption map of a document in track order
func (h *CaptionsHandler) List(c *fiber.Ctx) error {
	documentID := c.Params("id")
	tracks, err := h.index.ListCaptions(c.UserContext(), documentID)
	if err != nil {
		log.Printf("Failed to list captions of %s: %v", documentID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if tracks == nil {
		tracks = []types.CaptionTrack{}
	}
	return c.JSON(fiber.Map{
		"document_id": documentID,
		"captions":    tracks,
	})
}

// VTT returns the WebVTT body of one language
func (h *CaptionsHandler) VTT(c *fiber.Ctx) error {
	documentID, lang := c.Params("id"), c.Params("lang")
	track, err := h.index.GetCaption(c.UserContext(), documentID, lang)
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Captions not found",
			"code":  "ERR_NOT_FOUND",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	body, err := h.files.ReadCaption(track.ArtifactRef)
	if err != nil {
		log.Printf("Failed to read captions %s: %v", track.ArtifactRef, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read caption file",
			"code":  "ERR_READ_FAILED",
		})
	}

	c.Set(fiber.HeaderContentType, "text/vtt; charset=utf-8")
	return c.Send(body)
}
