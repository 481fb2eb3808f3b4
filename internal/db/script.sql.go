package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const scriptColumns = `id, analysis_id, topic, created_at, updated_at`

func scanScript(row pgx.Row) (*Script, error) {
	var i Script
	err := row.Scan(&i.ID, &i.AnalysisID, &i.Topic, &i.CreatedAt, &i.UpdatedAt)
	return &i, err
}

const insertScript = `-- name: InsertScript :one
INSERT INTO scripts (id, analysis_id, topic)
VALUES ($1, $2, $3)
RETURNING ` + scriptColumns

func (q *Queries) InsertScript(ctx context.Context, analysisID uuid.UUID, topic string) (*Script, error) {
	row := q.db.QueryRow(ctx, insertScript, uuid.New(), analysisID, topic)
	return scanScript(row)
}

const getScript = `-- name: GetScript :one
SELECT ` + scriptColumns + `
FROM scripts
WHERE id = $1`

func (q *Queries) GetScript(ctx context.Context, id uuid.UUID) (*Script, error) {
	return notFound(scanScript(q.db.QueryRow(ctx, getScript, id)))
}

const listScriptsByAnalysis = `-- name: ListScriptsByAnalysis :many
SELECT ` + scriptColumns + `
FROM scripts
WHERE analysis_id = $1
ORDER BY created_at DESC`

func (q *Queries) ListScriptsByAnalysis(ctx context.Context, analysisID uuid.UUID) ([]*Script, error) {
	rows, err := q.db.Query(ctx, listScriptsByAnalysis, analysisID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*Script{}
	for rows.Next() {
		i, err := scanScript(rows)
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

const segmentColumns = `id, script_id, timeframe, visual, audio, "order", created_at`

func scanSegment(row pgx.Row) (*ScriptSegment, error) {
	var i ScriptSegment
	err := row.Scan(&i.ID, &i.ScriptID, &i.Timeframe, &i.Visual, &i.Audio, &i.Order, &i.CreatedAt)
	return &i, err
}

type InsertScriptSegmentParams struct {
	ScriptID  uuid.UUID
	Timeframe string
	Visual    string
	Audio     string
	Order     int32
}

const insertScriptSegment = `-- name: InsertScriptSegment :one
INSERT INTO script_segments (id, script_id, timeframe, visual, audio, "order")
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + segmentColumns

func (q *Queries) InsertScriptSegment(ctx context.Context, arg InsertScriptSegmentParams) (*ScriptSegment, error) {
	row := q.db.QueryRow(ctx, insertScriptSegment,
		uuid.New(),
		arg.ScriptID,
		arg.Timeframe,
		arg.Visual,
		arg.Audio,
		arg.Order,
	)
	return scanSegment(row)
}

const listScriptSegments = `-- name: ListScriptSegments :many
SELECT ` + segmentColumns + `
FROM script_segments
WHERE script_id = $1
ORDER BY "order"`

func (q *Queries) ListScriptSegments(ctx context.Context, scriptID uuid.UUID) ([]*ScriptSegment, error) {
	rows, err := q.db.Query(ctx, listScriptSegments, scriptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*ScriptSegment{}
	for rows.Next() {
		i, err := scanSegment(rows)
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

const getScriptSegment = `-- name: GetScriptSegment :one
SELECT ` + segmentColumns + `
FROM script_segments
WHERE script_id = $1 AND id = $2`

// GetScriptSegment returns the segment only if it belongs to scriptID.
func (q *Queries) GetScriptSegment(ctx context.Context, scriptID, segmentID uuid.UUID) (*ScriptSegment, error) {
	return notFound(scanSegment(q.db.QueryRow(ctx, getScriptSegment, scriptID, segmentID)))
}
