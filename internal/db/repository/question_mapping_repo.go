package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/Val17-ui/CACESmodule-sub000/internal/db/store"
	"github.com/Val17-ui/CACESmodule-sub000/internal/session"
)

type questionMappingStore interface {
	ReplaceQuestionMappings(ctx context.Context, sessionID int64, arg []store.InsertQuestionMappingParams) error
	ListQuestionMappings(ctx context.Context, sessionID int64) ([]store.QuestionMapping, error)
}

// QuestionMappingRepository persists the slide identifier of every assembled question
// together with its answer key.
type QuestionMappingRepository struct {
	store questionMappingStore
}

// NewQuestionMappingRepository constructs a new mapping repository.
func NewQuestionMappingRepository(store questionMappingStore) *QuestionMappingRepository {
	return &QuestionMappingRepository{store: store}
}

// Save replaces the mappings stored for a session. Answer keys are taken from questions
// by question id; a mapping without a matching question is stored without one.
func (r *QuestionMappingRepository) Save(ctx context.Context, sessionID int64, mappings []session.QuestionMapping, questions []session.Question) error {
	byID := make(map[int64]session.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	params := make([]store.InsertQuestionMappingParams, 0, len(mappings))
	for _, m := range mappings {
		p := store.InsertQuestionMappingParams{
			SessionID:  sessionID,
			QuestionID: m.QuestionID,
			SlideGuid:  pgtype.Text{String: m.SlideGUID, Valid: m.SlideGUID != ""},
			Position:   int32(m.Order),
			Theme:      m.Theme,
			BlockID:    m.BlockID,
			Options:    []string{},
		}
		if q, ok := byID[m.QuestionID]; ok {
			p.Options = append(p.Options, q.Options...)
			if q.CorrectIndex != nil {
				p.CorrectIndex = pgtype.Int4{Int32: int32(*q.CorrectIndex), Valid: true}
			}
		}
		params = append(params, p)
	}

	if err := r.store.ReplaceQuestionMappings(ctx, sessionID, params); err != nil {
		return fmt.Errorf("replace question mappings: %w", err)
	}
	return nil
}

// ListMappings returns the session's mappings in slide order plus the answer key of each
// mapped question.
func (r *QuestionMappingRepository) ListMappings(ctx context.Context, sessionID int64) ([]session.QuestionMapping, map[int64]session.Question, error) {
	rows, err := r.store.ListQuestionMappings(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("list question mappings: %w", err)
	}

	mappings := make([]session.QuestionMapping, 0, len(rows))
	questions := make(map[int64]session.Question, len(rows))
	for _, row := range rows {
		mappings = append(mappings, session.QuestionMapping{
			QuestionID: row.QuestionID,
			SlideGUID:  row.SlideGuid.String,
			Order:      int(row.Position),
			Theme:      row.Theme,
			BlockID:    row.BlockID,
		})
		q := session.Question{ID: row.QuestionID, Options: row.Options}
		if row.CorrectIndex.Valid {
			idx := int(row.CorrectIndex.Int32)
			q.CorrectIndex = &idx
		}
		questions[row.QuestionID] = q
	}
	return mappings, questions, nil
}
