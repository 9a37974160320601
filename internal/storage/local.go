package storage

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codebuildervaibhav/audio-captions/internal/captions"
	"github.com/codebuildervaibhav/audio-captions/internal/types"
)

// Mirror receives a copy of every committed caption file
type Mirror interface {
	UploadCaption(documentID, language string, vtt []byte) (string, error)
}

// LocalStorage handles saving raw transcripts and caption files to the local filesystem
type LocalStorage struct {
	outputDir string
	rawDir    string
	mirror    Mirror
	backoff   time.Duration
	now       func() time.Time
}

// NewLocalStorage creates a new local storage handler
func NewLocalStorage(outputDir, rawDir string) *LocalStorage {
	return &LocalStorage{
		outputDir: outputDir,
		rawDir:    rawDir,
		backoff:   time.Second,
		now:       time.Now,
	}
}

// SetMirror enables best-effort mirroring of published caption files (e.g. Google Drive)
func (ls *LocalStorage) SetMirror(m Mirror) {
	ls.mirror = m
}

// RawDir returns the directory holding raw transcript blobs
func (ls *LocalStorage) RawDir() string {
	return ls.rawDir
}

// SaveRaw stores a raw transcript document and returns its key
func (ls *LocalStorage) SaveRaw(documentID, jobName string, raw []byte) (string, error) {
	dir, err := ls.datedDir(ls.rawDir)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s_%s_%s_%s.json", ls.now().Format("20060102_150405"),
		sanitizeFilename(documentID), sanitizeFilename(jobName), shortID())
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return "", fmt.Errorf("failed to save raw transcript: %w", err)
	}
	return path, nil
}

// LoadRaw reads a raw transcript document by key
func (ls *LocalStorage) LoadRaw(key string) ([]byte, error) {
	if !within(ls.rawDir, key) {
		return nil, fmt.Errorf("raw key %q outside raw directory", key)
	}
	return os.ReadFile(key)
}

// Write stores cues as a WebVTT file and returns the file path as artifact reference
func (ls *LocalStorage) Write(ctx context.Context, documentID, language string, cues []types.Cue) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir, err := ls.datedDir(ls.outputDir)
	if err != nil {
		return "", err
	}

	vtt := captions.EncodeVTT(cues)
	name := fmt.Sprintf("%s_%s_%s.%s.vtt", ls.now().Format("20060102_150405"),
		sanitizeFilename(documentID), shortID(), sanitizeFilename(language))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, vtt, 0644); err != nil {
		return "", fmt.Errorf("failed to save captions: %w", err)
	}
	return path, nil
}

// Discard removes a caption file written by Write
func (ls *LocalStorage) Discard(ref string) error {
	if !within(ls.outputDir, ref) {
		return fmt.Errorf("caption ref %q outside output directory", ref)
	}
	if err := os.Remove(ref); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ReadCaption returns the WebVTT body of a caption artifact
func (ls *LocalStorage) ReadCaption(ref string) ([]byte, error) {
	if !within(ls.outputDir, ref) {
		return nil, fmt.Errorf("caption ref %q outside output directory", ref)
	}
	return os.ReadFile(ref)
}

// Publish copies committed caption tracks to the mirror, if one is set.
// Mirror failures are logged and never undo the local copy.
func (ls *LocalStorage) Publish(ctx context.Context, documentID string, tracks []types.CaptionTrack) {
	if ls.mirror == nil {
		return
	}
	for _, t := range tracks {
		vtt, err := ls.ReadCaption(t.ArtifactRef)
		if err != nil {
			log.Printf("WARNING - cannot mirror %s captions for %s: %v", t.LanguageCode, documentID, err)
			continue
		}
		if err := ls.mirrorCaption(ctx, documentID, t.LanguageCode, vtt); err != nil {
			return
		}
	}
}

// mirrorCaption uploads with retry; it only fails when ctx is done
func (ls *LocalStorage) mirrorCaption(ctx context.Context, documentID, language string, vtt []byte) error {
	for attempt := 1; attempt <= 3; attempt++ {
		url, err := ls.mirror.UploadCaption(documentID, language, vtt)
		if err == nil {
			log.Printf("Mirrored %s captions for %s: %s", language, documentID, url)
			return nil
		}
		log.Printf("Caption mirror attempt %d/3 failed: %v", attempt, err)
		if attempt == 3 {
			break
		}
		wait := time.NewTimer(time.Duration(attempt*attempt) * ls.backoff)
		select {
		case <-ctx.Done():
			wait.Stop()
			log.Printf("WARNING - caption mirror cancelled, keeping local copy only (%s, %s)", documentID, language)
			return ctx.Err()
		case <-wait.C:
		}
	}
	log.Printf("WARNING - caption mirror failed after 3 attempts, keeping local copy only (%s, %s)", documentID, language)
	return nil
}

// datedDir creates and returns base/YYYY/MM/DD
func (ls *LocalStorage) datedDir(base string) (string, error) {
	now := ls.now()
	dateDir := filepath.Join(base,
		fmt.Sprintf("%d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		fmt.Sprintf("%02d", now.Day()))

	if err := os.MkdirAll(dateDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create date directory: %w", err)
	}
	return dateDir, nil
}

// within reports whether path lies inside dir
func within(dir, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// shortID keeps files written within the same second apart
func shortID() string {
	return uuid.New().String()[:8]
}

// sanitizeFilename replaces invalid characters with underscores
func sanitizeFilename(name string) string {
	result := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, name)
	if result == "" {
		result = "untitled"
	}
	if len(result) > 100 {
		result = result[:100] // Limit length
	}
	return result
}
