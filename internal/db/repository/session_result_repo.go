package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/Val17-ui/CACESmodule-sub000/internal/db/store"
	"github.com/Val17-ui/CACESmodule-sub000/internal/session"
)

type sessionResultStore interface {
	UpsertSessionResults(ctx context.Context, arg []store.UpsertSessionResultParams) error
	ListSessionResults(ctx context.Context, iterationID int64) ([]store.SessionResult, error)
}

// SessionResultRepository persists reconciled answers.
type SessionResultRepository struct {
	store sessionResultStore
}

// NewSessionResultRepository constructs a new result repository.
func NewSessionResultRepository(store sessionResultStore) *SessionResultRepository {
	return &SessionResultRepository{store: store}
}

// UpsertResults writes every result in one batch.
func (r *SessionResultRepository) UpsertResults(ctx context.Context, results []session.Result) error {
	if len(results) == 0 {
		return nil
	}
	params := make([]store.UpsertSessionResultParams, 0, len(results))
	for _, res := range results {
		params = append(params, store.UpsertSessionResultParams{
			SessionID:     res.SessionID,
			IterationID:   res.IterationID,
			QuestionID:    res.QuestionID,
			ParticipantID: res.ParticipantID,
			Answer:        res.Answer,
			IsCorrect:     res.IsCorrect,
			AnsweredAt:    pgtype.Timestamptz{Time: res.Timestamp, Valid: true},
		})
	}
	if err := r.store.UpsertSessionResults(ctx, params); err != nil {
		return fmt.Errorf("upsert session results: %w", err)
	}
	return nil
}

// ListByIteration returns stored results ordered by participant then question.
func (r *SessionResultRepository) ListByIteration(ctx context.Context, iterationID int64) ([]session.Result, error) {
	rows, err := r.store.ListSessionResults(ctx, iterationID)
	if err != nil {
		return nil, fmt.Errorf("list session results: %w", err)
	}
	out := make([]session.Result, 0, len(rows))
	for _, row := range rows {
		out = append(out, session.Result{
			SessionID:     row.SessionID,
			IterationID:   row.IterationID,
			QuestionID:    row.QuestionID,
			ParticipantID: row.ParticipantID,
			Answer:        row.Answer,
			IsCorrect:     row.IsCorrect,
			Timestamp:     row.AnsweredAt.Time,
		})
	}
	return out, nil
}
