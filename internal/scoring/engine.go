package scoring

import (
	"sort"
	"strconv"
	"strings"

	"github.com/Val17-ui/CACESmodule-sub000/internal/session"
)

// ScoringConfig holds the per-option weights written into answer metadata.
type ScoringConfig struct {
	CorrectWeight   float64 // default: 1.00
	IncorrectWeight float64 // default: 0.00
}

// DefaultScoringConfig returns production defaults.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		CorrectWeight:   1,
		IncorrectWeight: 0,
	}
}

// Engine computes option weights and answer correctness.
type Engine struct {
	config ScoringConfig
}

// NewEngine creates a scoring engine with the provided config.
func NewEngine(config ScoringConfig) *Engine {
	return &Engine{config: config}
}

// Weights returns one weight per option: one-hot on the correct index, all incorrect when
// no correct index is known.
func (e *Engine) Weights(optionCount int, correct *int) []float64 {
	weights := make([]float64, optionCount)
	for i := range weights {
		weights[i] = e.config.IncorrectWeight
		if correct != nil && *correct == i {
			weights[i] = e.config.CorrectWeight
		}
	}
	return weights
}

// WeightVector renders Weights as the comma separated "1.00,0.00" form.
func (e *Engine) WeightVector(optionCount int, correct *int) string {
	weights := e.Weights(optionCount, correct)
	parts := make([]string, len(weights))
	for i, w := range weights {
		parts[i] = strconv.FormatFloat(w, 'f', 2, 64)
	}
	return strings.Join(parts, ",")
}

// ResolveOption maps a raw device answer to a 0-based option index. Devices report the
// 1-based key ("2") or the letter ("B"); exports from older software carry the option text.
func ResolveOption(options []string, answer string) (int, bool) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(answer); err == nil {
		if n >= 1 && n <= len(options) {
			return n - 1, true
		}
		return 0, false
	}
	if len(answer) == 1 {
		c := strings.ToUpper(answer)[0]
		if c >= 'A' && int(c-'A') < len(options) {
			return int(c - 'A'), true
		}
	}
	for i, opt := range options {
		if strings.EqualFold(strings.TrimSpace(opt), answer) {
			return i, true
		}
	}
	return 0, false
}

// IsCorrect reports whether answer selects the question's correct option.
func (e *Engine) IsCorrect(q session.Question, answer string) bool {
	if q.CorrectIndex == nil {
		return false
	}
	idx, ok := ResolveOption(q.Options, answer)
	return ok && idx == *q.CorrectIndex
}

// ParticipantScore aggregates one participant's reconciled answers.
type ParticipantScore struct {
	ParticipantID int64   `json:"participant_id"`
	Correct       int     `json:"correct"`
	Answered      int     `json:"answered"`
	Accuracy      float64 `json:"accuracy"`
}

// Summarize aggregates results per participant, ordered by participant ID.
func (e *Engine) Summarize(results []session.Result) []ParticipantScore {
	if len(results) == 0 {
		return nil
	}

	byParticipant := make(map[int64]*ParticipantScore)
	for _, r := range results {
		score, ok := byParticipant[r.ParticipantID]
		if !ok {
			score = &ParticipantScore{ParticipantID: r.ParticipantID}
			byParticipant[r.ParticipantID] = score
		}
		score.Answered++
		if r.IsCorrect {
			score.Correct++
		}
	}

	out := make([]ParticipantScore, 0, len(byParticipant))
	for _, score := range byParticipant {
		score.Accuracy = float64(score.Correct) / float64(score.Answered)
		out = append(out, *score)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ParticipantID < out[j].ParticipantID })
	return out
}
