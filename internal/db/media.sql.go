package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const mediaColumns = `id, segment_id, media_type, status, blob_key, blob_url, mime_type, external_url, video_job_id, error_message, created_at, updated_at`

func scanMediaFile(row pgx.Row) (*MediaFile, error) {
	var i MediaFile
	err := row.Scan(
		&i.ID,
		&i.SegmentID,
		&i.MediaType,
		&i.Status,
		&i.BlobKey,
		&i.BlobURL,
		&i.MimeType,
		&i.ExternalURL,
		&i.VideoJobID,
		&i.ErrorMessage,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return &i, err
}

func (q *Queries) queryMediaFiles(ctx context.Context, sql string, args ...interface{}) ([]*MediaFile, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*MediaFile{}
	for rows.Next() {
		i, err := scanMediaFile(rows)
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

const insertMediaFileIfAbsent = `-- name: InsertMediaFileIfAbsent :exec
INSERT INTO media_files (id, segment_id, media_type, status)
VALUES ($1, $2, $3, 'idle')
ON CONFLICT (segment_id, media_type) DO NOTHING`

const getMediaFile = `-- name: GetMediaFile :one
SELECT ` + mediaColumns + `
FROM media_files
WHERE segment_id = $1 AND media_type = $2`

// GetOrCreateMediaFile returns the row for (segmentID, mediaType), creating an
// idle one when none exists. Concurrent callers converge on the same row.
func (q *Queries) GetOrCreateMediaFile(ctx context.Context, segmentID uuid.UUID, mediaType MediaType) (*MediaFile, error) {
	if _, err := q.db.Exec(ctx, insertMediaFileIfAbsent, uuid.New(), segmentID, mediaType); err != nil {
		return nil, err
	}
	return notFound(scanMediaFile(q.db.QueryRow(ctx, getMediaFile, segmentID, mediaType)))
}

const resetMediaFile = `-- name: ResetMediaFile :one
UPDATE media_files
SET id = $2,
    status = 'idle',
    blob_key = NULL,
    blob_url = NULL,
    mime_type = NULL,
    external_url = NULL,
    video_job_id = NULL,
    error_message = NULL,
    created_at = now(),
    updated_at = now()
WHERE id = $1
RETURNING ` + mediaColumns

// ResetMediaFile replaces a finished row with a fresh idle record under a new id.
func (q *Queries) ResetMediaFile(ctx context.Context, id uuid.UUID) (*MediaFile, error) {
	return notFound(scanMediaFile(q.db.QueryRow(ctx, resetMediaFile, id, uuid.New())))
}

const updateMediaFileStatus = `-- name: UpdateMediaFileStatus :exec
UPDATE media_files
SET status = $2, error_message = $3, updated_at = now()
WHERE id = $1`

func (q *Queries) UpdateMediaFileStatus(ctx context.Context, id uuid.UUID, status MediaStatus, errorMessage *string) error {
	tag, err := q.db.Exec(ctx, updateMediaFileStatus, id, status, errorMessage)
	if err != nil {
		return err
	}
	return requireAffected(tag)
}

type CompleteMediaFileParams struct {
	ID          uuid.UUID
	BlobKey     *string
	BlobURL     *string
	MimeType    *string
	ExternalURL *string
}

const completeMediaFile = `-- name: CompleteMediaFile :one
UPDATE media_files
SET status = 'done',
    blob_key = $2,
    blob_url = $3,
    mime_type = $4,
    external_url = $5,
    error_message = NULL,
    updated_at = now()
WHERE id = $1
RETURNING ` + mediaColumns

func (q *Queries) CompleteMediaFile(ctx context.Context, arg CompleteMediaFileParams) (*MediaFile, error) {
	row := q.db.QueryRow(ctx, completeMediaFile, arg.ID, arg.BlobKey, arg.BlobURL, arg.MimeType, arg.ExternalURL)
	return notFound(scanMediaFile(row))
}

const listMediaFilesBySegment = `-- name: ListMediaFilesBySegment :many
SELECT ` + mediaColumns + `
FROM media_files
WHERE segment_id = $1
ORDER BY created_at`

func (q *Queries) ListMediaFilesBySegment(ctx context.Context, segmentID uuid.UUID) ([]*MediaFile, error) {
	return q.queryMediaFiles(ctx, listMediaFilesBySegment, segmentID)
}

const listMediaFilesByScript = `-- name: ListMediaFilesByScript :many
SELECT m.id, m.segment_id, m.media_type, m.status, m.blob_key, m.blob_url, m.mime_type, m.external_url, m.video_job_id, m.error_message, m.created_at, m.updated_at
FROM media_files m
JOIN script_segments s ON s.id = m.segment_id
WHERE s.script_id = $1
ORDER BY s."order", m.created_at`

func (q *Queries) ListMediaFilesByScript(ctx context.Context, scriptID uuid.UUID) ([]*MediaFile, error) {
	return q.queryMediaFiles(ctx, listMediaFilesByScript, scriptID)
}

const attachMediaFileToVideoJob = `-- name: AttachMediaFileToVideoJob :exec
UPDATE media_files
SET video_job_id = $2,
    status = 'generating_video',
    external_url = NULL,
    blob_key = NULL,
    blob_url = NULL,
    mime_type = NULL,
    error_message = NULL,
    updated_at = now()
WHERE id = $1`

func (q *Queries) AttachMediaFileToVideoJob(ctx context.Context, mediaFileID, jobID uuid.UUID) error {
	tag, err := q.db.Exec(ctx, attachMediaFileToVideoJob, mediaFileID, jobID)
	if err != nil {
		return err
	}
	return requireAffected(tag)
}

const listMediaFilesByVideoJob = `-- name: ListMediaFilesByVideoJob :many
SELECT ` + mediaColumns + `
FROM media_files
WHERE video_job_id = $1
ORDER BY created_at`

func (q *Queries) ListMediaFilesByVideoJob(ctx context.Context, jobID uuid.UUID) ([]*MediaFile, error) {
	return q.queryMediaFiles(ctx, listMediaFilesByVideoJob, jobID)
}
