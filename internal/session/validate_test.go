package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestValidateQuestions(t *testing.T) {
	valid := Question{Text: "Q", Options: []string{"A", "B"}, CorrectIndex: intPtr(1)}

	assert.ErrorIs(t, ValidateQuestions(nil), ErrNoQuestions)
	assert.NoError(t, ValidateQuestions([]Question{valid}))

	cases := map[string]struct {
		q     Question
		field string
	}{
		"empty text":       {Question{Text: "  ", Options: []string{"A"}}, "text"},
		"no options":       {Question{Text: "Q"}, "options"},
		"too many options": {Question{Text: "Q", Options: make([]string, 11)}, "options"},
		"blank option":     {Question{Text: "Q", Options: []string{"A", " "}}, "options"},
		"index too high":   {Question{Text: "Q", Options: []string{"A", "B"}, CorrectIndex: intPtr(2)}, "correct_index"},
		"negative index":   {Question{Text: "Q", Options: []string{"A"}, CorrectIndex: intPtr(-1)}, "correct_index"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := ValidateQuestions([]Question{valid, tc.q})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidQuestion))
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, 1, verr.Index)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestSplitThemeBlock(t *testing.T) {
	theme, block := SplitThemeBlock("R489PR_A")
	assert.Equal(t, "R489PR", theme)
	assert.Equal(t, "A", block)

	theme, block = SplitThemeBlock("R482_CAT_B")
	assert.Equal(t, "R482_CAT", theme)
	assert.Equal(t, "B", block)

	theme, block = SplitThemeBlock("solo")
	assert.Equal(t, "solo", theme)
	assert.Empty(t, block)
}

func TestEffectiveDuration(t *testing.T) {
	cfg := PollingConfig{DefaultDurationSeconds: 20}
	assert.Equal(t, 45, cfg.EffectiveDuration(Question{DurationSeconds: 45}))
	assert.Equal(t, 20, cfg.EffectiveDuration(Question{}))
	assert.Equal(t, 0, PollingConfig{}.EffectiveDuration(Question{}))
}

func TestNormalizeSerial(t *testing.T) {
	assert.Equal(t, "1A2B3C", NormalizeSerial(" 1a2b3c "))
}

func TestNormalizeSlideGUID(t *testing.T) {
	assert.Equal(t, "0F3A9C1E5B7D4E2A8C6B1D3F5E7A9C0B", NormalizeSlideGUID("{0f3a9c1e-5b7d-4e2a-8c6b-1d3f5e7a9c0b}"))
	assert.Equal(t, "ABC", NormalizeSlideGUID(" abc "))
}
