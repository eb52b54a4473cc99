package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const listDeviceBindings = `-- name: ListDeviceBindings :many
SELECT iteration_id, participant_id, device_serial, first_name, last_name, visual_id, created_at
FROM device_bindings
WHERE iteration_id = $1
ORDER BY visual_id, participant_id
`

func (q *Queries) ListDeviceBindings(ctx context.Context, iterationID int64) ([]DeviceBinding, error) {
	rows, err := q.db.Query(ctx, listDeviceBindings, iterationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DeviceBinding
	for rows.Next() {
		var i DeviceBinding
		if err := rows.Scan(
			&i.IterationID,
			&i.ParticipantID,
			&i.DeviceSerial,
			&i.FirstName,
			&i.LastName,
			&i.VisualID,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteDeviceBindings = `-- name: DeleteDeviceBindings :exec
DELETE FROM device_bindings WHERE iteration_id = $1
`

func (q *Queries) DeleteDeviceBindings(ctx context.Context, iterationID int64) error {
	_, err := q.db.Exec(ctx, deleteDeviceBindings, iterationID)
	return err
}

const insertDeviceBinding = `-- name: InsertDeviceBinding :batchexec
INSERT INTO device_bindings (iteration_id, participant_id, device_serial, first_name, last_name, visual_id)
VALUES ($1, $2, $3, $4, $5, $6)
`

type InsertDeviceBindingParams struct {
	IterationID   int64  `json:"iteration_id"`
	ParticipantID int64  `json:"participant_id"`
	DeviceSerial  string `json:"device_serial"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	VisualID      int32  `json:"visual_id"`
}

func (q *Queries) InsertDeviceBindings(ctx context.Context, arg []InsertDeviceBindingParams) error {
	if len(arg) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, a := range arg {
		batch.Queue(insertDeviceBinding,
			a.IterationID,
			a.ParticipantID,
			a.DeviceSerial,
			a.FirstName,
			a.LastName,
			a.VisualID,
		)
	}
	return q.db.SendBatch(ctx, batch).Close()
}

const listQuestionMappings = `-- name: ListQuestionMappings :many
SELECT session_id, question_id, slide_guid, position, theme, block_id, options, correct_index, created_at
FROM question_mappings
WHERE session_id = $1
ORDER BY position
`

func (q *Queries) ListQuestionMappings(ctx context.Context, sessionID int64) ([]QuestionMapping, error) {
	rows, err := q.db.Query(ctx, listQuestionMappings, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []QuestionMapping
	for rows.Next() {
		var i QuestionMapping
		if err := rows.Scan(
			&i.SessionID,
			&i.QuestionID,
			&i.SlideGuid,
			&i.Position,
			&i.Theme,
			&i.BlockID,
			&i.Options,
			&i.CorrectIndex,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteQuestionMappings = `-- name: DeleteQuestionMappings :exec
DELETE FROM question_mappings WHERE session_id = $1
`

const insertQuestionMapping = `-- name: InsertQuestionMapping :batchexec
INSERT INTO question_mappings (session_id, question_id, slide_guid, position, theme, block_id, options, correct_index)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

type InsertQuestionMappingParams struct {
	SessionID    int64       `json:"session_id"`
	QuestionID   int64       `json:"question_id"`
	SlideGuid    pgtype.Text `json:"slide_guid"`
	Position     int32       `json:"position"`
	Theme        string      `json:"theme"`
	BlockID      string      `json:"block_id"`
	Options      []string    `json:"options"`
	CorrectIndex pgtype.Int4 `json:"correct_index"`
}

// ReplaceQuestionMappings swaps a session's mappings in one batch. Batches run in an
// implicit transaction, so readers never observe a half-written set.
func (q *Queries) ReplaceQuestionMappings(ctx context.Context, sessionID int64, arg []InsertQuestionMappingParams) error {
	batch := &pgx.Batch{}
	batch.Queue(deleteQuestionMappings, sessionID)
	for _, a := range arg {
		batch.Queue(insertQuestionMapping,
			a.SessionID,
			a.QuestionID,
			a.SlideGuid,
			a.Position,
			a.Theme,
			a.BlockID,
			a.Options,
			a.CorrectIndex,
		)
	}
	return q.db.SendBatch(ctx, batch).Close()
}

const upsertSessionResult = `-- name: UpsertSessionResult :batchexec
INSERT INTO session_results (session_id, iteration_id, question_id, participant_id, answer, is_correct, answered_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (iteration_id, question_id, participant_id) DO UPDATE
SET answer = EXCLUDED.answer,
    is_correct = EXCLUDED.is_correct,
    answered_at = EXCLUDED.answered_at,
    imported_at = now()
WHERE session_results.answered_at <= EXCLUDED.answered_at
`

type UpsertSessionResultParams struct {
	SessionID     int64              `json:"session_id"`
	IterationID   int64              `json:"iteration_id"`
	QuestionID    int64              `json:"question_id"`
	ParticipantID int64              `json:"participant_id"`
	Answer        string             `json:"answer"`
	IsCorrect     bool               `json:"is_correct"`
	AnsweredAt    pgtype.Timestamptz `json:"answered_at"`
}

// UpsertSessionResults writes all rows in a single batch; an older answer never
// replaces a newer stored one.
func (q *Queries) UpsertSessionResults(ctx context.Context, arg []UpsertSessionResultParams) error {
	if len(arg) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, a := range arg {
		batch.Queue(upsertSessionResult,
			a.SessionID,
			a.IterationID,
			a.QuestionID,
			a.ParticipantID,
			a.Answer,
			a.IsCorrect,
			a.AnsweredAt,
		)
	}
	return q.db.SendBatch(ctx, batch).Close()
}

const listSessionResults = `-- name: ListSessionResults :many
SELECT session_id, iteration_id, question_id, participant_id, answer, is_correct, answered_at, imported_at
FROM session_results
WHERE iteration_id = $1
ORDER BY participant_id, question_id
`

func (q *Queries) ListSessionResults(ctx context.Context, iterationID int64) ([]SessionResult, error) {
	rows, err := q.db.Query(ctx, listSessionResults, iterationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SessionResult
	for rows.Next() {
		var i SessionResult
		if err := rows.Scan(
			&i.SessionID,
			&i.IterationID,
			&i.QuestionID,
			&i.ParticipantID,
			&i.Answer,
			&i.IsCorrect,
			&i.AnsweredAt,
			&i.ImportedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
