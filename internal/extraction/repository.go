package extraction

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const maxListLimit = 500

type Repository interface {
	CreateExtraction(ctx context.Context, e *Extraction) error
	FinishExtraction(ctx context.Context, e *Extraction) error
	GetExtraction(ctx context.Context, id string) (*Extraction, error)
	ListExtractions(ctx context.Context, limit int) ([]*Extraction, error)
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateExtraction(ctx context.Context, e *Extraction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO extractions (id, filename, absolute_path, last_modified, video_path, fps, frame_count, status, error, duration_ms, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Filename, e.AbsolutePath, e.LastModified, e.VideoPath, e.FPS, e.FrameCount, e.Status,
		nullString(e.Error), e.DurationMs, e.CreatedAt.UTC().Format(time.RFC3339), e.UpdatedAt.UTC().Format(time.RFC3339))
	return err
}

// FinishExtraction stores the terminal status, frame count, error and duration.
func (r *SQLiteRepository) FinishExtraction(ctx context.Context, e *Extraction) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE extractions SET status = ?, frame_count = ?, error = ?, duration_ms = ?, updated_at = ?
		WHERE id = ?
	`, e.Status, e.FrameCount, nullString(e.Error), e.DurationMs, e.UpdatedAt.UTC().Format(time.RFC3339), e.ID)
	return err
}

const selectExtraction = `
	SELECT id, filename, absolute_path, last_modified, video_path, fps, frame_count, status, error, duration_ms, created_at, updated_at
	FROM extractions`

// GetExtraction returns nil, nil when no row matches.
func (r *SQLiteRepository) GetExtraction(ctx context.Context, id string) (*Extraction, error) {
	row := r.db.QueryRowContext(ctx, selectExtraction+" WHERE id = ?", id)
	e, err := scanExtraction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// ListExtractions returns the newest extractions first.
func (r *SQLiteRepository) ListExtractions(ctx context.Context, limit int) ([]*Extraction, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	rows, err := r.db.QueryContext(ctx, selectExtraction+" ORDER BY created_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	extractions := []*Extraction{}
	for rows.Next() {
		e, err := scanExtraction(rows)
		if err != nil {
			return nil, err
		}
		extractions = append(extractions, e)
	}
	return extractions, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExtraction(s scanner) (*Extraction, error) {
	var e Extraction
	var errMsg sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(&e.ID, &e.Filename, &e.AbsolutePath, &e.LastModified, &e.VideoPath, &e.FPS,
		&e.FrameCount, &e.Status, &errMsg, &e.DurationMs, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	e.Error = errMsg.String
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &e, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
