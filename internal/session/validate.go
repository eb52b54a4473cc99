package session

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoQuestions     = errors.New("at least one question is required")
	ErrInvalidQuestion = errors.New("invalid question")
)

// ValidationError reports the first offending question. It unwraps to ErrInvalidQuestion.
type ValidationError struct {
	Index   int
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("question %d: %s: %s", e.Index+1, e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidQuestion
}

// ValidateQuestions checks every question before any package work starts.
func ValidateQuestions(questions []Question) error {
	if len(questions) == 0 {
		return ErrNoQuestions
	}
	for i, q := range questions {
		if strings.TrimSpace(q.Text) == "" {
			return &ValidationError{Index: i, Field: "text", Message: "text is required"}
		}
		if len(q.Options) == 0 || len(q.Options) > MaxOptions {
			return &ValidationError{
				Index:   i,
				Field:   "options",
				Message: fmt.Sprintf("expected between 1 and %d options, got %d", MaxOptions, len(q.Options)),
			}
		}
		for j, opt := range q.Options {
			if strings.TrimSpace(opt) == "" {
				return &ValidationError{Index: i, Field: "options", Message: fmt.Sprintf("option %d is empty", j+1)}
			}
		}
		if q.CorrectIndex != nil {
			if idx := *q.CorrectIndex; idx < 0 || idx >= len(q.Options) {
				return &ValidationError{
					Index:   i,
					Field:   "correct_index",
					Message: fmt.Sprintf("index %d out of range for %d options", idx, len(q.Options)),
				}
			}
		}
	}
	return nil
}
