package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/codebuildervaibhav/audio-captions/internal/types"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("not found")

// MetadataDB handles SQLite database operations
type MetadataDB struct {
	db *sql.DB
}

// NewMetadataDB creates a new metadata database
func NewMetadataDB(dbPath string) (*MetadataDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; this also keeps ":memory:" databases on a single connection
	db.SetMaxOpenConns(1)

	// Create tables if not exists
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		source TEXT NOT NULL,
		job_name TEXT,
		status TEXT NOT NULL,
		error_kind TEXT,
		error TEXT,
		retryable INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS raw_artifacts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		document_id TEXT NOT NULL,
		provider TEXT NOT NULL,
		job_name TEXT,
		raw_key TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS captions (
		document_id TEXT NOT NULL,
		language TEXT NOT NULL,
		position INTEGER NOT NULL,
		artifact_ref TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (document_id, language)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_document ON runs(document_id);
	CREATE INDEX IF NOT EXISTS idx_raw_document_provider ON raw_artifacts(document_id, provider);
	`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &MetadataDB{db: db}, nil
}

// SaveRun inserts or replaces a run record
func (mdb *MetadataDB) SaveRun(ctx context.Context, run types.Run) error {
	query := `
	INSERT INTO runs (id, document_id, source, job_name, status, error_kind, error, retryable, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		job_name = excluded.job_name,
		status = excluded.status,
		error_kind = excluded.error_kind,
		error = excluded.error,
		retryable = excluded.retryable,
		updated_at = excluded.updated_at
	`

	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	_, err := mdb.db.ExecContext(ctx, query, run.ID, run.DocumentID, run.Source, run.JobName, run.Status,
		string(run.ErrorKind), run.Error, run.Retryable, run.CreatedAt.UTC(), now)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun retrieves a run record by ID
func (mdb *MetadataDB) GetRun(ctx context.Context, id string) (types.Run, error) {
	query := `
	SELECT id, document_id, source, job_name, status, error_kind, error, retryable, created_at, updated_at
	FROM runs WHERE id = ?
	`

	var (
		run       types.Run
		errorKind string
	)
	err := mdb.db.QueryRowContext(ctx, query, id).Scan(&run.ID, &run.DocumentID, &run.Source, &run.JobName,
		&run.Status, &errorKind, &run.Error, &run.Retryable, &run.CreatedAt, &run.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Run{}, ErrNotFound
	}
	if err != nil {
		return types.Run{}, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	run.ErrorKind = types.ErrorKind(errorKind)
	return run, nil
}

// RecordRaw stores a raw artifact record and returns its row ID
func (mdb *MetadataDB) RecordRaw(ctx context.Context, art types.RawArtifact) (int64, error) {
	query := `
	INSERT INTO raw_artifacts (document_id, provider, job_name, raw_key, created_at)
	VALUES (?, ?, ?, ?, ?)
	`

	if art.CreatedAt.IsZero() {
		art.CreatedAt = time.Now()
	}
	res, err := mdb.db.ExecContext(ctx, query, art.DocumentID, art.Provider, art.JobName, art.Key, art.CreatedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to record raw artifact: %w", err)
	}
	return res.LastInsertId()
}

// LatestRaw returns the most recent raw artifact produced by provider for a document
func (mdb *MetadataDB) LatestRaw(ctx context.Context, documentID, provider string) (types.RawArtifact, error) {
	query := `
	SELECT id, document_id, provider, job_name, raw_key, created_at
	FROM raw_artifacts WHERE document_id = ? AND provider = ?
	ORDER BY created_at DESC, id DESC LIMIT 1
	`

	var art types.RawArtifact
	err := mdb.db.QueryRowContext(ctx, query, documentID, provider).Scan(&art.ID, &art.DocumentID,
		&art.Provider, &art.JobName, &art.Key, &art.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return types.RawArtifact{}, ErrNotFound
	}
	if err != nil {
		return types.RawArtifact{}, fmt.Errorf("failed to get raw artifact: %w", err)
	}
	return art, nil
}

// DeleteRawByKey removes raw artifact records pointing at key
func (mdb *MetadataDB) DeleteRawByKey(ctx context.Context, key string) error {
	if _, err := mdb.db.ExecContext(ctx, `DELETE FROM raw_artifacts WHERE raw_key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete raw artifact: %w", err)
	}
	return nil
}

// SaveCaptions replaces the caption map of a document in one transaction
func (mdb *MetadataDB) SaveCaptions(ctx context.Context, documentID string, tracks []types.CaptionTrack) error {
	tx, err := mdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM captions WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("failed to clear captions: %w", err)
	}

	now := time.Now().UTC()
	for i, track := range tracks {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO captions (document_id, language, position, artifact_ref, created_at)
		VALUES (?, ?, ?, ?, ?)
		`, documentID, track.LanguageCode, i, track.ArtifactRef, now)
		if err != nil {
			return fmt.Errorf("failed to save %s captions: %w", track.LanguageCode, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit captions: %w", err)
	}
	return nil
}

// ListCaptions returns the caption map of a document, original language first
func (mdb *MetadataDB) ListCaptions(ctx context.Context, documentID string) ([]types.CaptionTrack, error) {
	query := `
	SELECT language, artifact_ref, created_at
	FROM captions WHERE document_id = ? ORDER BY position
	`

	rows, err := mdb.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list captions: %w", err)
	}
	defer rows.Close()

	var tracks []types.CaptionTrack
	for rows.Next() {
		var track types.CaptionTrack
		if err := rows.Scan(&track.LanguageCode, &track.ArtifactRef, &track.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan caption: %w", err)
		}
		tracks = append(tracks, track)
	}
	return tracks, rows.Err()
}

// GetCaption returns the caption track of one language
func (mdb *MetadataDB) GetCaption(ctx context.Context, documentID, language string) (types.CaptionTrack, error) {
	query := `
	SELECT language, artifact_ref, created_at
	FROM captions WHERE document_id = ? AND language = ?
	`

	var track types.CaptionTrack
	err := mdb.db.QueryRowContext(ctx, query, documentID, language).Scan(&track.LanguageCode,
		&track.ArtifactRef, &track.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return types.CaptionTrack{}, ErrNotFound
	}
	if err != nil {
		return types.CaptionTrack{}, fmt.Errorf("failed to get caption: %w", err)
	}
	return track, nil
}

// Close closes the database connection
func (mdb *MetadataDB) Close() error {
	return mdb.db.Close()
}
