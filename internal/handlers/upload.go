package handlers

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/codebuildervaibhav/audio-captions/internal/config"
	"github.com/codebuildervaibhav/audio-captions/internal/pipeline"
	"github.com/codebuildervaibhav/audio-captions/internal/queue"
	"github.com/codebuildervaibhav/audio-captions/internal/transcription"
	"github.com/codebuildervaibhav/audio-captions/internal/types"
)

// MediaStore keeps uploaded audio where the transcription provider can read it
type MediaStore interface {
	PutAudio(ctx context.Context, name string, r io.ReadSeeker, size int64, contentType string) (string, error)
}

// UploadHandler handles audio uploads
type UploadHandler struct {
	queue          Enqueuer
	media          MediaStore
	maxSizeMB        int
	defaultTargets   []string
	defaultLanguages []string
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(q Enqueuer, media MediaStore, maxSizeMB int, defaultTargets, defaultLanguages []string) *UploadHandler {
	return &UploadHandler{
		queue:            q,
		media:            media,
		maxSizeMB:        maxSizeMB,
		defaultTargets:   defaultTargets,
		defaultLanguages: defaultLanguages,
	}
}

// Handle stores the uploaded audio and enqueues a caption run for it
func (h *UploadHandler) Handle(c *fiber.Ctx) error {
	// Get uploaded file
	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No file uploaded",
			"code":  "ERR_NO_FILE",
		})
	}

	documentID := strings.TrimSpace(c.FormValue("document_id"))
	if documentID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "document_id is required",
			"code":  "ERR_NO_DOCUMENT",
		})
	}

	// Validate file size
	maxSize := int64(h.maxSizeMB) * 1024 * 1024
	if h.maxSizeMB > 0 && file.Size > maxSize {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("File too large (max %dMB)", h.maxSizeMB),
			"code":  "ERR_FILE_TOO_LARGE",
		})
	}

	// Validate file format
	if !transcription.ValidateAudioFormat(file.Filename) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unsupported audio format",
			"code":  "ERR_INVALID_FORMAT",
		})
	}

	f, err := file.Open()
	if err != nil {
		log.Printf("Failed to open uploaded file: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read file",
			"code":  "ERR_SAVE_FAILED",
		})
	}
	defer f.Close()

	name := uuid.New().String() + strings.ToLower(filepath.Ext(file.Filename))
	location, err := h.media.PutAudio(c.UserContext(), name, f, file.Size, file.Header.Get(fiber.HeaderContentType))
	if err != nil {
		log.Printf("Failed to store uploaded file: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save file",
			"code":  "ERR_SAVE_FAILED",
		})
	}
	log.Printf("Uploaded %s for %s to %s (%d bytes)", file.Filename, documentID, location, file.Size)

	run := queue.NewRun(types.SourceAudio, pipeline.Request{
		DocumentID:    documentID,
		AudioLocation: location,
		Languages:     orDefault(config.ParseLanguages(c.FormValue("languages")), h.defaultLanguages),
		Targets:       orDefault(config.ParseLanguages(c.FormValue("targets")), h.defaultTargets),
	})
	return enqueue(c, h.queue, run)
}
