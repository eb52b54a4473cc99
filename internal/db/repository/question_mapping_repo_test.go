package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Val17-ui/CACESmodule-sub000/internal/db/store"
	"github.com/Val17-ui/CACESmodule-sub000/internal/session"
)

type mockQuestionMappingStore struct {
	mock.Mock
}

func (m *mockQuestionMappingStore) ReplaceQuestionMappings(ctx context.Context, sessionID int64, arg []store.InsertQuestionMappingParams) error {
	return m.Called(ctx, sessionID, arg).Error(0)
}

func (m *mockQuestionMappingStore) ListQuestionMappings(ctx context.Context, sessionID int64) ([]store.QuestionMapping, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).([]store.QuestionMapping), args.Error(1)
}

func TestQuestionMappingRepository_Save(t *testing.T) {
	st := new(mockQuestionMappingStore)
	repo := NewQuestionMappingRepository(st)

	mappings := []session.QuestionMapping{
		{QuestionID: 11, SlideGUID: "AAA", Order: 0, Theme: "Securite", BlockID: "A"},
		{QuestionID: 12, Order: 1, Theme: "Securite", BlockID: "A"},
	}
	questions := []session.Question{
		{ID: 11, Options: []string{"Oui", "Non"}, CorrectIndex: intPtr(1)},
	}
	expect := []store.InsertQuestionMappingParams{
		{
			SessionID: 7, QuestionID: 11, SlideGuid: pgtype.Text{String: "AAA", Valid: true},
			Position: 0, Theme: "Securite", BlockID: "A",
			Options: []string{"Oui", "Non"}, CorrectIndex: pgtype.Int4{Int32: 1, Valid: true},
		},
		{
			SessionID: 7, QuestionID: 12, Position: 1, Theme: "Securite", BlockID: "A",
			Options: []string{},
		},
	}
	st.On("ReplaceQuestionMappings", mock.Anything, int64(7), expect).Return(nil)

	require.NoError(t, repo.Save(context.Background(), 7, mappings, questions))
	st.AssertExpectations(t)
}

func TestQuestionMappingRepository_SaveError(t *testing.T) {
	st := new(mockQuestionMappingStore)
	repo := NewQuestionMappingRepository(st)
	boom := errors.New("boom")
	st.On("ReplaceQuestionMappings", mock.Anything, int64(1), mock.Anything).Return(boom)

	err := repo.Save(context.Background(), 1, nil, nil)
	assert.ErrorIs(t, err, boom)
}

func TestQuestionMappingRepository_ListMappings(t *testing.T) {
	st := new(mockQuestionMappingStore)
	repo := NewQuestionMappingRepository(st)

	rows := []store.QuestionMapping{
		{
			SessionID: 7, QuestionID: 11, SlideGuid: pgtype.Text{String: "AAA", Valid: true},
			Position: 0, Theme: "Securite", BlockID: "A",
			Options: []string{"Oui", "Non"}, CorrectIndex: pgtype.Int4{Int32: 1, Valid: true},
		},
		{SessionID: 7, QuestionID: 12, Position: 1, Options: []string{"x"}},
	}
	st.On("ListQuestionMappings", mock.Anything, int64(7)).Return(rows, nil)

	mappings, questions, err := repo.ListMappings(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, mappings, 2)
	assert.Equal(t, session.QuestionMapping{QuestionID: 11, SlideGUID: "AAA", Order: 0, Theme: "Securite", BlockID: "A"}, mappings[0])
	assert.Empty(t, mappings[1].SlideGUID)

	require.Contains(t, questions, int64(11))
	require.NotNil(t, questions[11].CorrectIndex)
	assert.Equal(t, 1, *questions[11].CorrectIndex)
	assert.Nil(t, questions[12].CorrectIndex)
	st.AssertExpectations(t)
}
