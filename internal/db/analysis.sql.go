package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const analysisColumns = `id, status, transcript, style_passport, patterns, grounding_sources, error_message, created_at, updated_at`

func scanAnalysis(row pgx.Row) (*Analysis, error) {
	var i Analysis
	err := row.Scan(
		&i.ID,
		&i.Status,
		&i.Transcript,
		&i.StylePassport,
		&i.Patterns,
		&i.GroundingSources,
		&i.ErrorMessage,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return &i, err
}

const insertAnalysis = `-- name: InsertAnalysis :one
INSERT INTO analyses (id, status)
VALUES ($1, $2)
RETURNING ` + analysisColumns

func (q *Queries) InsertAnalysis(ctx context.Context, status AnalysisStatus) (*Analysis, error) {
	row := q.db.QueryRow(ctx, insertAnalysis, uuid.New(), status)
	return scanAnalysis(row)
}

const getAnalysis = `-- name: GetAnalysis :one
SELECT ` + analysisColumns + `
FROM analyses
WHERE id = $1`

func (q *Queries) GetAnalysis(ctx context.Context, id uuid.UUID) (*Analysis, error) {
	row := q.db.QueryRow(ctx, getAnalysis, id)
	return notFound(scanAnalysis(row))
}

const listAnalyses = `-- name: ListAnalyses :many
SELECT ` + analysisColumns + `
FROM analyses
ORDER BY created_at DESC
LIMIT $1`

func (q *Queries) ListAnalyses(ctx context.Context, limit int32) ([]*Analysis, error) {
	return q.queryAnalyses(ctx, listAnalyses, limit)
}

const listAnalysesByStatus = `-- name: ListAnalysesByStatus :many
SELECT ` + analysisColumns + `
FROM analyses
WHERE status = $1
ORDER BY created_at DESC
LIMIT $2`

func (q *Queries) ListAnalysesByStatus(ctx context.Context, status AnalysisStatus, limit int32) ([]*Analysis, error) {
	return q.queryAnalyses(ctx, listAnalysesByStatus, status, limit)
}

func (q *Queries) queryAnalyses(ctx context.Context, sql string, args ...interface{}) ([]*Analysis, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*Analysis{}
	for rows.Next() {
		i, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateAnalysisStatus = `-- name: UpdateAnalysisStatus :exec
UPDATE analyses
SET status = $2, error_message = $3, updated_at = now()
WHERE id = $1`

// UpdateAnalysisStatus moves an analysis to status. errorMessage is only
// meaningful for AnalysisStatusError and may be nil.
func (q *Queries) UpdateAnalysisStatus(ctx context.Context, id uuid.UUID, status AnalysisStatus, errorMessage *string) error {
	tag, err := q.db.Exec(ctx, updateAnalysisStatus, id, status, errorMessage)
	if err != nil {
		return err
	}
	return requireAffected(tag)
}

type CompleteAnalysisParams struct {
	ID               uuid.UUID
	Transcript       JSONList[TranscriptSegment]
	StylePassport    *StylePassport
	Patterns         JSONList[Pattern]
	GroundingSources JSONList[GroundingSource]
}

const completeAnalysis = `-- name: CompleteAnalysis :exec
UPDATE analyses
SET transcript = $2,
    style_passport = $3,
    patterns = $4,
    grounding_sources = $5,
    status = 'ready',
    error_message = NULL,
    updated_at = now()
WHERE id = $1`

func (q *Queries) CompleteAnalysis(ctx context.Context, arg CompleteAnalysisParams) error {
	tag, err := q.db.Exec(ctx, completeAnalysis,
		arg.ID,
		arg.Transcript,
		arg.StylePassport,
		arg.Patterns,
		arg.GroundingSources,
	)
	if err != nil {
		return err
	}
	return requireAffected(tag)
}

const sourceColumns = `id, analysis_id, kind, label, url, blob_key, blob_url, mime_type, title, duration_seconds, created_at`

func scanSource(row pgx.Row) (*AnalysisSource, error) {
	var i AnalysisSource
	err := row.Scan(
		&i.ID,
		&i.AnalysisID,
		&i.Kind,
		&i.Label,
		&i.URL,
		&i.BlobKey,
		&i.BlobURL,
		&i.MimeType,
		&i.Title,
		&i.DurationSeconds,
		&i.CreatedAt,
	)
	return &i, err
}

type InsertAnalysisSourceParams struct {
	AnalysisID      uuid.UUID
	Kind            SourceKind
	Label           string
	URL             *string
	BlobKey         *string
	BlobURL         *string
	MimeType        *string
	Title           *string
	DurationSeconds *float64
}

const insertAnalysisSource = `-- name: InsertAnalysisSource :one
INSERT INTO analysis_sources (id, analysis_id, kind, label, url, blob_key, blob_url, mime_type, title, duration_seconds)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + sourceColumns

func (q *Queries) InsertAnalysisSource(ctx context.Context, arg InsertAnalysisSourceParams) (*AnalysisSource, error) {
	row := q.db.QueryRow(ctx, insertAnalysisSource,
		uuid.New(),
		arg.AnalysisID,
		arg.Kind,
		arg.Label,
		arg.URL,
		arg.BlobKey,
		arg.BlobURL,
		arg.MimeType,
		arg.Title,
		arg.DurationSeconds,
	)
	return scanSource(row)
}

const listAnalysisSources = `-- name: ListAnalysisSources :many
SELECT ` + sourceColumns + `
FROM analysis_sources
WHERE analysis_id = $1
ORDER BY created_at, id`

func (q *Queries) ListAnalysisSources(ctx context.Context, analysisID uuid.UUID) ([]*AnalysisSource, error) {
	rows, err := q.db.Query(ctx, listAnalysisSources, analysisID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*AnalysisSource{}
	for rows.Next() {
		i, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
