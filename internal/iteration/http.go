// Package iteration serves the device roster and imported results of one session iteration.
package iteration

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"sort"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/Val17-ui/CACESmodule-sub000/internal/scoring"
	"github.com/Val17-ui/CACESmodule-sub000/internal/session"
	httperrors "github.com/Val17-ui/CACESmodule-sub000/pkg/http/errors"
)

const maxBindingsBody = 1 << 20

// BindingStore reads and writes device bindings.
type BindingStore interface {
	ReplaceBindings(ctx context.Context, iterationID int64, bindings []session.DeviceBinding) error
	ListBindings(ctx context.Context, iterationID int64) ([]session.DeviceBinding, error)
}

// ResultReader lists persisted results.
type ResultReader interface {
	ListByIteration(ctx context.Context, iterationID int64) ([]session.Result, error)
}

// HTTPHandler exposes iteration rosters and standings.
type HTTPHandler struct {
	bindings BindingStore
	results  ResultReader
	scorer   *scoring.Engine
	logger   zerolog.Logger
}

func NewHTTPHandler(bindings BindingStore, results ResultReader, scorer *scoring.Engine, logger zerolog.Logger) *HTTPHandler {
	if scorer == nil {
		scorer = scoring.NewEngine(scoring.DefaultScoringConfig())
	}
	return &HTTPHandler{
		bindings: bindings,
		results:  results,
		scorer:   scorer,
		logger:   logger.With().Str("component", "iteration_http").Logger(),
	}
}

// Register mounts the routes on mux.
func (h *HTTPHandler) Register(mux *http.ServeMux, wrap func(http.Handler) http.Handler) {
	mux.Handle("GET /v1/iterations/{id}/bindings", wrap(http.HandlerFunc(h.HandleListBindings)))
	mux.Handle("PUT /v1/iterations/{id}/bindings", wrap(http.HandlerFunc(h.HandlePutBindings)))
	mux.Handle("GET /v1/iterations/{id}/results", wrap(http.HandlerFunc(h.HandleResults)))
}

// HandleListBindings returns the device roster.
// Route: GET /v1/iterations/{id}/bindings
func (h *HTTPHandler) HandleListBindings(w http.ResponseWriter, r *http.Request) {
	id, ok := iterationID(w, r)
	if !ok {
		return
	}
	bindings, err := h.bindings.ListBindings(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Int64("iteration_id", id).Msg("list bindings failed")
		httperrors.RespondInternalError(w, "failed to list bindings")
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, map[string]interface{}{"bindings": bindings})
}

type bindingsBody struct {
	Bindings []session.DeviceBinding `json:"bindings"`
}

// HandlePutBindings replaces the iteration's roster. Participants and device serials
// must each appear once.
// Route: PUT /v1/iterations/{id}/bindings
func (h *HTTPHandler) HandlePutBindings(w http.ResponseWriter, r *http.Request) {
	id, ok := iterationID(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBindingsBody)
	var body bindingsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httperrors.RespondPayloadTooLarge(w, "request body too large")
			return
		}
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "invalid request body")
		return
	}

	serials := make(map[string]bool, len(body.Bindings))
	participants := make(map[int64]bool, len(body.Bindings))
	for i, b := range body.Bindings {
		serial := session.NormalizeSerial(b.DeviceSerial)
		field := "bindings[" + strconv.Itoa(i) + "]"
		switch {
		case b.ParticipantID <= 0:
			httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, "participant_id must be positive", field+".participant_id", nil)
			return
		case participants[b.ParticipantID]:
			httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, "participant bound twice", field+".participant_id", nil)
			return
		case serial == "":
			httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "device_serial is required", field+".device_serial", nil)
			return
		case serials[serial]:
			httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, "device serial bound twice", field+".device_serial", nil)
			return
		case b.VisualID < 0 || b.VisualID > math.MaxInt32:
			httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, "visual_id out of range", field+".visual_id", nil)
			return
		}
		serials[serial] = true
		participants[b.ParticipantID] = true
	}

	if err := h.bindings.ReplaceBindings(r.Context(), id, body.Bindings); err != nil {
		h.logger.Error().Err(err).Int64("iteration_id", id).Msg("replace bindings failed")
		httperrors.RespondInternalError(w, "failed to store bindings")
		return
	}
	h.logger.Info().Int64("iteration_id", id).Int("bindings", len(body.Bindings)).Msg("device bindings stored")
	w.WriteHeader(http.StatusNoContent)
}

type resultsView struct {
	IterationID int64                      `json:"iteration_id"`
	Results     []session.Result           `json:"results"`
	Standings   []scoring.ParticipantScore `json:"standings"`
}

// HandleResults returns persisted results with participants ranked by correct answers.
// Route: GET /v1/iterations/{id}/results?limit=10
func (h *HTTPHandler) HandleResults(w http.ResponseWriter, r *http.Request) {
	id, ok := iterationID(w, r)
	if !ok {
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	rows, err := h.results.ListByIteration(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Int64("iteration_id", id).Msg("list results failed")
		httperrors.RespondInternalError(w, "failed to list results")
		return
	}
	if rows == nil {
		rows = []session.Result{}
	}

	httperrors.RespondJSON(w, http.StatusOK, resultsView{
		IterationID: id,
		Results:     rows,
		Standings:   Standings(h.scorer.Summarize(rows), limit),
	})
}

// Standings orders scores by correct answers, then accuracy, then participant id, and
// keeps the first limit entries when limit is positive.
func Standings(scores []scoring.ParticipantScore, limit int) []scoring.ParticipantScore {
	out := append([]scoring.ParticipantScore{}, scores...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Correct != out[j].Correct {
			return out[i].Correct > out[j].Correct
		}
		if out[i].Accuracy != out[j].Accuracy {
			return out[i].Accuracy > out[j].Accuracy
		}
		return out[i].ParticipantID < out[j].ParticipantID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func iterationID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, "iteration id must be a positive integer", "id", nil)
		return 0, false
	}
	return id, true
}
