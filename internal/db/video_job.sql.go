package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const videoJobColumns = `id, task_id, model, prompt, state, result_url, fail_message, attempts, created_at, updated_at, finished_at`

func scanVideoJob(row pgx.Row) (*VideoJob, error) {
	var i VideoJob
	err := row.Scan(
		&i.ID,
		&i.TaskID,
		&i.Model,
		&i.Prompt,
		&i.State,
		&i.ResultURL,
		&i.FailMessage,
		&i.Attempts,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.FinishedAt,
	)
	return &i, err
}

type InsertVideoJobParams struct {
	TaskID string
	Model  string
	Prompt string
}

const insertVideoJob = `-- name: InsertVideoJob :one
INSERT INTO video_jobs (id, task_id, model, prompt)
VALUES ($1, $2, $3, $4)
RETURNING ` + videoJobColumns

func (q *Queries) InsertVideoJob(ctx context.Context, arg InsertVideoJobParams) (*VideoJob, error) {
	return scanVideoJob(q.db.QueryRow(ctx, insertVideoJob, uuid.New(), arg.TaskID, arg.Model, arg.Prompt))
}

const getVideoJobByTaskID = `-- name: GetVideoJobByTaskID :one
SELECT ` + videoJobColumns + `
FROM video_jobs
WHERE task_id = $1`

func (q *Queries) GetVideoJobByTaskID(ctx context.Context, taskID string) (*VideoJob, error) {
	return notFound(scanVideoJob(q.db.QueryRow(ctx, getVideoJobByTaskID, taskID)))
}

const getVideoJob = `-- name: GetVideoJob :one
SELECT ` + videoJobColumns + `
FROM video_jobs
WHERE id = $1`

func (q *Queries) GetVideoJob(ctx context.Context, id uuid.UUID) (*VideoJob, error) {
	return notFound(scanVideoJob(q.db.QueryRow(ctx, getVideoJob, id)))
}

const listWaitingVideoJobs = `-- name: ListWaitingVideoJobs :many
SELECT ` + videoJobColumns + `
FROM video_jobs
WHERE state = 'waiting'
ORDER BY created_at`

func (q *Queries) ListWaitingVideoJobs(ctx context.Context) ([]*VideoJob, error) {
	rows, err := q.db.Query(ctx, listWaitingVideoJobs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*VideoJob{}
	for rows.Next() {
		i, err := scanVideoJob(rows)
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

const updateVideoJobAttempts = `-- name: UpdateVideoJobAttempts :exec
UPDATE video_jobs
SET attempts = $2, updated_at = now()
WHERE id = $1 AND state = 'waiting'`

func (q *Queries) UpdateVideoJobAttempts(ctx context.Context, id uuid.UUID, attempts int32) error {
	_, err := q.db.Exec(ctx, updateVideoJobAttempts, id, attempts)
	return err
}

type FinishVideoJobParams struct {
	ID          uuid.UUID
	State       VideoJobState
	ResultURL   *string
	FailMessage *string
}

const finishVideoJob = `-- name: FinishVideoJob :exec
UPDATE video_jobs
SET state = $2,
    result_url = $3,
    fail_message = $4,
    updated_at = now(),
    finished_at = now()
WHERE id = $1 AND state = 'waiting'`

// FinishVideoJob records the terminal state of a job. It reports false when the
// job was already terminal so callers do not overwrite an earlier outcome.
func (q *Queries) FinishVideoJob(ctx context.Context, arg FinishVideoJobParams) (bool, error) {
	tag, err := q.db.Exec(ctx, finishVideoJob, arg.ID, arg.State, arg.ResultURL, arg.FailMessage)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

type ResolveMediaFilesForJobParams struct {
	VideoJobID   uuid.UUID
	Status       MediaStatus
	ExternalURL  *string
	ErrorMessage *string
}

const resolveMediaFilesForJob = `-- name: ResolveMediaFilesForJob :execrows
UPDATE media_files
SET status = $2,
    external_url = $3,
    error_message = $4,
    updated_at = now()
WHERE video_job_id = $1 AND status = 'generating_video'`

func (q *Queries) ResolveMediaFilesForJob(ctx context.Context, arg ResolveMediaFilesForJobParams) (int64, error) {
	tag, err := q.db.Exec(ctx, resolveMediaFilesForJob, arg.VideoJobID, arg.Status, arg.ExternalURL, arg.ErrorMessage)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
