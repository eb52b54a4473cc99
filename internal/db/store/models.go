package store

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type DeviceBinding struct {
	IterationID   int64              `json:"iteration_id"`
	ParticipantID int64              `json:"participant_id"`
	DeviceSerial  string             `json:"device_serial"`
	FirstName     string             `json:"first_name"`
	LastName      string             `json:"last_name"`
	VisualID      int32              `json:"visual_id"`
	CreatedAt     pgtype.Timestamptz `json:"created_at"`
}

type QuestionMapping struct {
	SessionID    int64              `json:"session_id"`
	QuestionID   int64              `json:"question_id"`
	SlideGuid    pgtype.Text        `json:"slide_guid"`
	Position     int32              `json:"position"`
	Theme        string             `json:"theme"`
	BlockID      string             `json:"block_id"`
	Options      []string           `json:"options"`
	CorrectIndex pgtype.Int4        `json:"correct_index"`
	CreatedAt    pgtype.Timestamptz `json:"created_at"`
}

type SessionResult struct {
	SessionID     int64              `json:"session_id"`
	IterationID   int64              `json:"iteration_id"`
	QuestionID    int64              `json:"question_id"`
	ParticipantID int64              `json:"participant_id"`
	Answer        string             `json:"answer"`
	IsCorrect     bool               `json:"is_correct"`
	AnsweredAt    pgtype.Timestamptz `json:"answered_at"`
	ImportedAt    pgtype.Timestamptz `json:"imported_at"`
}
