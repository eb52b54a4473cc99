package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Val17-ui/CACESmodule-sub000/internal/events"
	"github.com/Val17-ui/CACESmodule-sub000/internal/metrics"
	"github.com/Val17-ui/CACESmodule-sub000/internal/results"
	"github.com/Val17-ui/CACESmodule-sub000/internal/scoring"
	"github.com/Val17-ui/CACESmodule-sub000/internal/session"
)

// BindingSource loads an iteration's device bindings.
type BindingSource interface {
	ListBindings(ctx context.Context, iterationID int64) ([]session.DeviceBinding, error)
}

// MappingSource loads a session's question mappings and their answer keys.
type MappingSource interface {
	ListMappings(ctx context.Context, sessionID int64) ([]session.QuestionMapping, map[int64]session.Question, error)
}

// ResultWriter persists final results.
type ResultWriter interface {
	UpsertResults(ctx context.Context, results []session.Result) error
}

// Import statuses.
const (
	StatusCompleted = "completed"
	StatusSuspended = "suspended"
	StatusCancelled = "cancelled"
)

// ImportRequest carries one response log for one iteration. Bindings, Mappings and
// Questions override the configured sources when set.
type ImportRequest struct {
	SessionID         int64
	IterationID       int64
	Data              []byte
	Bindings          []session.DeviceBinding
	Mappings          []session.QuestionMapping
	Questions         []session.Question
	IgnoredSlideGUIDs []string
}

// ImportResult reports either the anomalies to resolve or the persisted results.
type ImportResult struct {
	ImportID    string                     `json:"import_id"`
	Status      string                     `json:"status"`
	SessionID   int64                      `json:"session_id"`
	IterationID int64                      `json:"iteration_id"`
	Anomalies   *Anomalies                 `json:"anomalies,omitempty"`
	Results     []session.Result           `json:"results,omitempty"`
	Scores      []scoring.ParticipantScore `json:"scores,omitempty"`
	Warnings    []string                   `json:"warnings,omitempty"`
}

// ServiceDeps wires the collaborators of Service. Only Store is required.
type ServiceDeps struct {
	Store     PendingStore
	Bindings  BindingSource
	Mappings  MappingSource
	Results   ResultWriter
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	Scorer    *scoring.Engine
}

// Service runs imports through extraction and reconciliation and owns the suspension
// point between them and final persistence.
type Service struct {
	deps      ServiceDeps
	extractor *results.Extractor
	engine    *Engine
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(deps ServiceDeps, logger zerolog.Logger) *Service {
	if deps.Store == nil {
		deps.Store = NewMemoryPendingStore()
	}
	if deps.Publisher == nil {
		deps.Publisher = events.Nop{}
	}
	if deps.Scorer == nil {
		deps.Scorer = scoring.NewEngine(scoring.DefaultScoringConfig())
	}
	return &Service{
		deps:      deps,
		extractor: results.NewExtractor(logger),
		engine:    NewEngine(deps.Scorer, logger),
		logger:    logger.With().Str("component", "import_service").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Import extracts the response log and reconciles it. Anomalies suspend the import under
// a new id; otherwise results are persisted immediately.
func (s *Service) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	if req.SessionID <= 0 || req.IterationID <= 0 {
		return nil, fmt.Errorf("%w: session_id and iteration_id are required", ErrInvalidImport)
	}

	log, err := s.extractor.Extract(req.Data)
	if err != nil {
		s.deps.Metrics.ImportFinished("failed")
		return nil, fmt.Errorf("extract responses: %w", err)
	}

	in, err := s.input(ctx, req)
	if err != nil {
		s.deps.Metrics.ImportFinished("failed")
		return nil, err
	}
	in.Responses = log.Responses

	outcome := s.engine.Begin(in)
	importID := uuid.NewString()
	logger := s.logger.With().Str("import_id", importID).Int64("iteration_id", req.IterationID).Logger()

	if outcome.Suspended {
		state := outcome.State
		state.Warnings = append(state.Warnings, log.Warnings...)
		pending := &PendingImport{
			ID:          importID,
			SessionID:   req.SessionID,
			IterationID: req.IterationID,
			CreatedAt:   s.now(),
			State:       *state,
		}
		if err := s.deps.Store.Save(ctx, pending); err != nil {
			s.deps.Metrics.ImportFinished("failed")
			return nil, fmt.Errorf("save pending import: %w", err)
		}
		s.deps.Metrics.Imported(len(log.Responses), len(state.Anomalies.Expected), len(state.Anomalies.Unknown))
		s.publish(ctx, events.TypeImportSuspended, pending.SessionID, pending.IterationID, importID, map[string]int{
			"expected_with_issues": len(state.Anomalies.Expected),
			"unknown_responders":   len(state.Anomalies.Unknown),
		})
		logger.Info().
			Int("expected_with_issues", len(state.Anomalies.Expected)).
			Int("unknown_responders", len(state.Anomalies.Unknown)).
			Msg("import suspended for resolution")

		anomalies := state.Anomalies
		return &ImportResult{
			ImportID:    importID,
			Status:      StatusSuspended,
			SessionID:   req.SessionID,
			IterationID: req.IterationID,
			Anomalies:   &anomalies,
			Warnings:    state.Warnings,
		}, nil
	}

	s.deps.Metrics.Imported(len(log.Responses), 0, 0)
	warnings := append(append([]string(nil), log.Warnings...), outcome.Warnings...)
	return s.complete(ctx, logger, importID, req.SessionID, req.IterationID, outcome.Results, warnings, "completed")
}

// Resolve applies directives to a suspended import, persists the results and forgets
// the import.
func (s *Service) Resolve(ctx context.Context, importID string, directives []Directive) (*ImportResult, error) {
	unlock, err := s.deps.Store.Lock(ctx, importID)
	if err != nil {
		return nil, err
	}
	defer s.release(unlock, importID)

	pending, err := s.deps.Store.Load(ctx, importID)
	if err != nil {
		return nil, err
	}

	outcome, err := s.engine.Resolve(&pending.State, directives)
	if err != nil {
		return nil, err
	}

	logger := s.logger.With().Str("import_id", importID).Int64("iteration_id", pending.IterationID).Logger()
	result, err := s.complete(ctx, logger, importID, pending.SessionID, pending.IterationID, outcome.Results, outcome.Warnings, "resolved")
	if err != nil {
		return nil, err
	}
	if err := s.deps.Store.Delete(ctx, importID); err != nil {
		logger.Warn().Err(err).Msg("delete resolved import failed")
		result.Warnings = append(result.Warnings, "resolved import could not be removed from the pending store")
	}
	return result, nil
}

// Cancel discards a suspended import without writing anything.
func (s *Service) Cancel(ctx context.Context, importID string) error {
	unlock, err := s.deps.Store.Lock(ctx, importID)
	if err != nil {
		return err
	}
	defer s.release(unlock, importID)

	pending, err := s.deps.Store.Load(ctx, importID)
	if err != nil {
		return err
	}
	if err := s.deps.Store.Delete(ctx, importID); err != nil {
		return fmt.Errorf("delete pending import: %w", err)
	}

	s.deps.Metrics.ImportFinished("cancelled")
	s.publish(ctx, events.TypeImportCancelled, pending.SessionID, pending.IterationID, importID, nil)
	s.logger.Info().Str("import_id", importID).Msg("import cancelled")
	return nil
}

// Pending returns a suspended import.
func (s *Service) Pending(ctx context.Context, importID string) (*PendingImport, error) {
	return s.deps.Store.Load(ctx, importID)
}

// Count satisfies metrics.PendingCounter.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.deps.Store.Count(ctx)
}

func (s *Service) complete(ctx context.Context, logger zerolog.Logger, importID string, sessionID, iterationID int64, rows []session.Result, warnings []string, outcome string) (*ImportResult, error) {
	if s.deps.Results != nil {
		if err := s.deps.Results.UpsertResults(ctx, rows); err != nil {
			s.deps.Metrics.ImportFinished("failed")
			return nil, fmt.Errorf("persist results: %w", err)
		}
	} else {
		logger.Warn().Msg("no result store configured; results returned only")
	}

	s.deps.Metrics.ImportFinished(outcome)
	s.publish(ctx, events.TypeImportCompleted, sessionID, iterationID, importID, map[string]int{"results": len(rows)})
	logger.Info().Int("results", len(rows)).Int("warnings", len(warnings)).Msg("import completed")

	return &ImportResult{
		ImportID:    importID,
		Status:      StatusCompleted,
		SessionID:   sessionID,
		IterationID: iterationID,
		Results:     rows,
		Scores:      s.deps.Scorer.Summarize(rows),
		Warnings:    warnings,
	}, nil
}

func (s *Service) input(ctx context.Context, req ImportRequest) (Input, error) {
	in := Input{
		SessionID:   req.SessionID,
		IterationID: req.IterationID,
		Bindings:    req.Bindings,
		Mappings:    req.Mappings,
		Ignored:     req.IgnoredSlideGUIDs,
		Questions:   make(map[int64]session.Question, len(req.Questions)),
	}

	if in.Bindings == nil && s.deps.Bindings != nil {
		bindings, err := s.deps.Bindings.ListBindings(ctx, req.IterationID)
		if err != nil {
			return Input{}, fmt.Errorf("load device bindings: %w", err)
		}
		in.Bindings = bindings
	}

	if in.Mappings == nil && s.deps.Mappings != nil {
		mappings, keys, err := s.deps.Mappings.ListMappings(ctx, req.SessionID)
		if err != nil {
			return Input{}, fmt.Errorf("load question mappings: %w", err)
		}
		in.Mappings = mappings
		for id, q := range keys {
			in.Questions[id] = q
		}
	}
	for _, q := range req.Questions {
		in.Questions[q.ID] = q
	}

	if len(in.Mappings) == 0 {
		s.logger.Warn().Int64("session_id", req.SessionID).Msg("no question mappings; every response will be dropped")
	}
	return in, nil
}

func (s *Service) publish(ctx context.Context, eventType string, sessionID, iterationID int64, importID string, data interface{}) {
	evt, err := events.New(eventType, sessionID, data)
	if err != nil {
		s.logger.Warn().Err(err).Str("type", eventType).Msg("build event failed")
		return
	}
	evt.IterationID = iterationID
	evt.ImportID = importID
	if err := s.deps.Publisher.Publish(ctx, evt); err != nil {
		s.logger.Warn().Err(err).Str("type", eventType).Msg("publish event failed")
	}
}

func (s *Service) release(unlock func() error, importID string) {
	if err := unlock(); err != nil {
		s.logger.Warn().Err(err).Str("import_id", importID).Msg("release import lock failed")
	}
}
