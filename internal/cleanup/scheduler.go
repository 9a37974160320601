package cleanup

import (
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Scheduler deletes raw transcript blobs past their retention age
type Scheduler struct {
	rawDir   string
	interval time.Duration
	maxAge   time.Duration
	onDelete func(path string) error
	now      func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewScheduler creates a new cleanup scheduler.
// onDelete is called for every removed file so its metadata can be dropped; it may be nil.
func NewScheduler(rawDir string, interval, maxAge time.Duration, onDelete func(path string) error) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		rawDir:   rawDir,
		interval: interval,
		maxAge:   maxAge,
		onDelete: onDelete,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// Start begins the cleanup scheduler
func (s *Scheduler) Start() {
	if s.maxAge <= 0 {
		log.Println("Raw transcript retention disabled (max age not set)")
		return
	}

	// Run initial cleanup on startup
	log.Println("Running initial raw transcript cleanup...")
	s.cleanOldFiles()

	ticker := time.NewTicker(s.interval)

	go func() {
		for {
			select {
			case <-ticker.C:
				s.cleanOldFiles()
			case <-s.stopChan:
				ticker.Stop()
				return
			}
		}
	}()

	log.Printf("Cleanup scheduler started (interval: %s, max age: %s)", s.interval, s.maxAge)
}

// Stop stops the cleanup scheduler
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		log.Println("Cleanup scheduler stopped")
	})
}

// cleanOldFiles removes files older than maxAge from the raw directory and
// returns how many were deleted
func (s *Scheduler) cleanOldFiles() int {
	now := s.now()

	var deletedCount int
	var deletedSize int64

	err := filepath.Walk(s.rawDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip files we can't access
		}

		if info.IsDir() {
			return nil
		}

		age := now.Sub(info.ModTime())
		if age <= s.maxAge {
			return nil
		}

		size := info.Size()
		if err := os.Remove(path); err != nil {
			log.Printf("Failed to delete old raw transcript %s: %v", path, err)
			return nil
		}
		deletedCount++
		deletedSize += size
		log.Printf("Deleted old raw transcript: %s (age: %s, size: %dKB)",
			filepath.Base(path), age.Round(time.Hour), size/1024)

		if s.onDelete != nil {
			if err := s.onDelete(path); err != nil {
				log.Printf("Failed to drop record of %s: %v", path, err)
			}
		}
		return nil
	})

	if err != nil {
		log.Printf("Error during cleanup: %v", err)
	}

	if deletedCount > 0 {
		log.Printf("Cleanup complete: %d files deleted, %.2fMB freed",
			deletedCount, float64(deletedSize)/(1024*1024))
	}
	return deletedCount
}

// EnsureDirExists creates a directory if it doesn't exist
func EnsureDirExists(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	log.Printf("Directory ready: %s", dir)
	return nil
}
