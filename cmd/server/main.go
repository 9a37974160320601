package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/transcribeservice"
	"github.com/aws/aws-sdk-go/service/translate"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/codebuildervaibhav/audio-captions/internal/captions"
	"github.com/codebuildervaibhav/audio-captions/internal/cleanup"
	"github.com/codebuildervaibhav/audio-captions/internal/config"
	"github.com/codebuildervaibhav/audio-captions/internal/handlers"
	"github.com/codebuildervaibhav/audio-captions/internal/pipeline"
	"github.com/codebuildervaibhav/audio-captions/internal/queue"
	"github.com/codebuildervaibhav/audio-captions/internal/storage"
	"github.com/codebuildervaibhav/audio-captions/internal/transcription"
	"github.com/codebuildervaibhav/audio-captions/internal/translation"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML configuration")
	driveAuth := flag.Bool("drive-auth", false, "authorize Google Drive access and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *driveAuth {
		if err := storage.AuthorizeDrive(cfg.GoogleDrive.CredentialsFile, cfg.GoogleDrive.TokenFile); err != nil {
			log.Fatalf("Drive authorization failed: %v", err)
		}
		log.Printf("Drive token saved to %s", cfg.GoogleDrive.TokenFile)
		return
	}

	// Ensure directories exist
	for _, dir := range []string{cfg.Storage.OutputDir, cfg.Storage.RawDir} {
		if err := cleanup.EnsureDirExists(dir); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}

	// Custom logger setup
	logBuffer := &LogBuffer{
		lines: make([]string, 0, 1000),
	}
	multiWriter := io.MultiWriter(os.Stdout, logBuffer)
	log.SetOutput(multiWriter)

	// Initialize components
	log.Println("Initializing components...")

	sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.AWS.Region)})
	if err != nil {
		log.Fatalf("Failed to create AWS session: %v", err)
	}

	provider := transcription.NewAWSProvider(transcribeservice.New(sess), cfg.AWS.OutputBucket, cfg.AWS.JobPrefix)
	s3Client := s3.New(sess)
	fetcher := transcription.NewFetcher(s3Client, cfg.AWS.FetchTimeout)
	translator := translation.NewAWSTranslator(translate.New(sess))

	// Local storage
	localStorage := storage.NewLocalStorage(cfg.Storage.OutputDir, cfg.Storage.RawDir)

	// Google Drive mirror (optional - may fail if credentials not set up)
	if _, err := os.Stat(cfg.GoogleDrive.CredentialsFile); err == nil {
		driveClient, err := storage.NewDriveClient(context.Background(),
			cfg.GoogleDrive.CredentialsFile,
			cfg.GoogleDrive.TokenFile,
			cfg.GoogleDrive.FolderName,
		)
		if err != nil {
			log.Printf("WARNING: Google Drive not available: %v", err)
			log.Println("Captions will only be saved locally")
		} else {
			localStorage.SetMirror(driveClient)
			log.Println("Google Drive mirror enabled")
		}
	} else {
		log.Println("Google Drive credentials not found - saving locally only")
	}

	// Database
	db, err := storage.NewMetadataDB(cfg.Storage.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	pipe := pipeline.New(pipeline.Dependencies{
		Provider:   provider,
		Fetcher:    fetcher,
		Translator: translator,
		Writer:     localStorage,
		Blobs:      localStorage,
		Raw:        db,
		Index:      db,
		Publisher:  localStorage,
		Segmenter:  captions.NewSegmenter(cfg.Captions.MaxDuration, cfg.Captions.MaxChars, cfg.Captions.BreakOn),
	}, cfg.Transcription.Provider, cfg.Transcription.PollInterval, cfg.Transcription.Timeout)

	// Worker pool
	events := queue.NewEventBus(cfg.Events.Buffer)
	workerPool := queue.NewWorkerPool(cfg.Workers.Count, cfg.Workers.QueueSize, pipe, db, events)
	workerPool.Start()
	defer workerPool.Stop()

	// Cleanup scheduler
	cleanupScheduler := cleanup.NewScheduler(
		cfg.Storage.RawDir,
		time.Duration(cfg.Cleanup.IntervalMinutes)*time.Minute,
		time.Duration(cfg.Cleanup.MaxAgeHours)*time.Hour,
		func(path string) error { return db.DeleteRawByKey(context.Background(), path) },
	)
	cleanupScheduler.Start()
	defer cleanupScheduler.Stop()

	targets := cfg.TargetLanguages()
	log.Printf("Default caption targets: %v, transcription languages: %v", targets, cfg.Transcription.Languages)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: cfg.Limits.MaxFileSizeMB * 1024 * 1024,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	// Initialize handlers
	runsHandler := handlers.NewRunsHandler(workerPool, db, targets, cfg.Transcription.Languages)
	captionsHandler := handlers.NewCaptionsHandler(workerPool, db, localStorage, targets)
	streamHandler := handlers.NewStreamHandler(events, db)

	// Routes
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	if cfg.AWS.MediaBucket != "" {
		media := storage.NewMediaBucket(s3Client, cfg.AWS.MediaBucket, cfg.AWS.MediaPrefix)
		uploadHandler := handlers.NewUploadHandler(workerPool, media, cfg.Limits.MaxFileSizeMB, targets, cfg.Transcription.Languages)
		app.Post("/upload", uploadHandler.Handle)
	} else {
		log.Println("No media bucket configured - /upload disabled")
	}

	app.Post("/runs", runsHandler.Create)
	app.Get("/runs/:id", runsHandler.Get)
	app.Post("/documents/:id/captions", captionsHandler.Recaption)
	app.Get("/documents/:id/captions", captionsHandler.List)
	app.Get("/documents/:id/captions/:lang", captionsHandler.VTT)

	// WebSocket route
	app.Get("/ws/runs/:id", websocket.New(streamHandler.Handle))

	// Get server logs
	app.Get("/logs", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"logs": logBuffer.GetLogs(),
		})
	})

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	log.Println("Endpoints:")
	log.Println("   POST /upload                        - Upload audio and caption it")
	log.Println("   POST /runs                          - Caption an audio file or transcription job")
	log.Println("   GET  /runs/:id                      - Run status")
	log.Println("   GET  /ws/runs/:id                   - WebSocket run events")
	log.Println("   POST /documents/:id/captions        - Re-caption from the stored transcript")
	log.Println("   GET  /documents/:id/captions        - Caption map")
	log.Println("   GET  /documents/:id/captions/:lang  - WebVTT captions")
	log.Println("   GET  /logs                          - View server logs")
	log.Println("   GET  /health                        - Health check")

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("Shutting down gracefully...")
		app.Shutdown()
	}()

	if err := app.Listen(addr); err != nil {
		log.Printf("Server failed: %v", err)
	}
}

// LogBuffer captures logs in memory
type LogBuffer struct {
	lines []string
	mu    sync.Mutex
}

func (lb *LogBuffer) Write(p []byte) (n int, err error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.lines = append(lb.lines, string(p))

	// Keep last 1000 lines
	if len(lb.lines) > 1000 {
		lb.lines = lb.lines[len(lb.lines)-1000:]
	}

	return len(p), nil
}

func (lb *LogBuffer) GetLogs() []string {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	// Return copy of slice
	logs := make([]string, len(lb.lines))
	copy(logs, lb.lines)
	return logs
}
