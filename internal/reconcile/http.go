package reconcile

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Val17-ui/CACESmodule-sub000/internal/results"
	"github.com/Val17-ui/CACESmodule-sub000/internal/session"
	httperrors "github.com/Val17-ui/CACESmodule-sub000/pkg/http/errors"
)

const defaultMaxUploadBytes = 32 << 20

// HTTPHandler exposes the import endpoints.
type HTTPHandler struct {
	svc      *Service
	maxBytes int64
	logger   zerolog.Logger
}

// NewHTTPHandler constructs an import HTTP handler. maxBytes bounds request bodies.
func NewHTTPHandler(svc *Service, maxBytes int64, logger zerolog.Logger) *HTTPHandler {
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	return &HTTPHandler{
		svc:      svc,
		maxBytes: maxBytes,
		logger:   logger.With().Str("component", "import_http").Logger(),
	}
}

// Register mounts the routes on mux.
func (h *HTTPHandler) Register(mux *http.ServeMux, wrap func(http.Handler) http.Handler) {
	mux.Handle("POST /v1/imports", wrap(http.HandlerFunc(h.HandleImport)))
	mux.Handle("GET /v1/imports/{id}", wrap(http.HandlerFunc(h.HandleGet)))
	mux.Handle("POST /v1/imports/{id}/resolutions", wrap(http.HandlerFunc(h.HandleResolve)))
	mux.Handle("DELETE /v1/imports/{id}", wrap(http.HandlerFunc(h.HandleCancel)))
}

type importBody struct {
	SessionID         int64                     `json:"session_id"`
	IterationID       int64                     `json:"iteration_id"`
	Data              []byte                    `json:"data"`
	Bindings          []session.DeviceBinding   `json:"bindings,omitempty"`
	Mappings          []session.QuestionMapping `json:"mappings,omitempty"`
	Questions         []session.Question        `json:"questions,omitempty"`
	IgnoredSlideGUIDs []string                  `json:"ignored_slide_guids,omitempty"`
}

// HandleImport accepts either a multipart upload (file field "results") or a JSON body
// with the container base64-encoded in "data".
// Route: POST /v1/imports
func (h *HTTPHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	req, ok := h.decodeImport(w, r)
	if !ok {
		return
	}

	res, err := h.svc.Import(r.Context(), req)
	if err != nil {
		h.respondError(w, err, httperrors.ErrCodeImportFailed)
		return
	}

	status := http.StatusOK
	if res.Status == StatusSuspended {
		status = http.StatusAccepted
	}
	httperrors.RespondJSON(w, status, res)
}

func (h *HTTPHandler) decodeImport(w http.ResponseWriter, r *http.Request) (ImportRequest, bool) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(h.maxBytes); err != nil {
			h.respondBodyError(w, err)
			return ImportRequest{}, false
		}
		file, _, err := r.FormFile("results")
		if err != nil {
			httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "results file is required", "results", nil)
			return ImportRequest{}, false
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			h.respondBodyError(w, err)
			return ImportRequest{}, false
		}

		req := ImportRequest{Data: data}
		for field, dst := range map[string]*int64{"session_id": &req.SessionID, "iteration_id": &req.IterationID} {
			v, err := strconv.ParseInt(r.FormValue(field), 10, 64)
			if err != nil {
				httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, field+" must be an integer", field, nil)
				return ImportRequest{}, false
			}
			*dst = v
		}
		for _, guid := range strings.Split(r.FormValue("ignored_slide_guids"), ",") {
			if guid = strings.TrimSpace(guid); guid != "" {
				req.IgnoredSlideGUIDs = append(req.IgnoredSlideGUIDs, guid)
			}
		}
		return req, true
	}

	var body importBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondBodyError(w, err)
		return ImportRequest{}, false
	}
	if len(body.Data) == 0 {
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "data is required", "data", nil)
		return ImportRequest{}, false
	}
	return ImportRequest{
		SessionID:         body.SessionID,
		IterationID:       body.IterationID,
		Data:              body.Data,
		Bindings:          body.Bindings,
		Mappings:          body.Mappings,
		Questions:         body.Questions,
		IgnoredSlideGUIDs: body.IgnoredSlideGUIDs,
	}, true
}

type pendingView struct {
	ImportID    string    `json:"import_id"`
	Status      string    `json:"status"`
	SessionID   int64     `json:"session_id"`
	IterationID int64     `json:"iteration_id"`
	CreatedAt   time.Time `json:"created_at"`
	Anomalies   Anomalies `json:"anomalies"`
	Warnings    []string  `json:"warnings,omitempty"`
}

// HandleGet shows a suspended import.
// Route: GET /v1/imports/{id}
func (h *HTTPHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := importID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.Pending(r.Context(), id)
	if err != nil {
		h.respondError(w, err, httperrors.ErrCodeImportFailed)
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, pendingView{
		ImportID:    p.ID,
		Status:      StatusSuspended,
		SessionID:   p.SessionID,
		IterationID: p.IterationID,
		CreatedAt:   p.CreatedAt,
		Anomalies:   p.State.Anomalies,
		Warnings:    p.State.Warnings,
	})
}

type resolveBody struct {
	Directives []Directive `json:"directives"`
}

// HandleResolve applies directives and finalizes the import.
// Route: POST /v1/imports/{id}/resolutions
func (h *HTTPHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	id, ok := importID(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	var body resolveBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondBodyError(w, err)
		return
	}

	res, err := h.svc.Resolve(r.Context(), id, body.Directives)
	if err != nil {
		h.respondError(w, err, httperrors.ErrCodeResolutionFailed)
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, res)
}

// HandleCancel discards a suspended import.
// Route: DELETE /v1/imports/{id}
func (h *HTTPHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := importID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Cancel(r.Context(), id); err != nil {
		h.respondError(w, err, httperrors.ErrCodeImportFailed)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func importID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		httperrors.RespondValidationError(w, httperrors.ErrCodeInvalidImportID, "import id must be a UUID", "id", nil)
		return "", false
	}
	return id, true
}

func (h *HTTPHandler) respondBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		httperrors.RespondPayloadTooLarge(w, "request body too large")
		return
	}
	httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "invalid request body")
}

// respondError maps service errors; code is used for unexpected failures.
func (h *HTTPHandler) respondError(w http.ResponseWriter, err error, code string) {
	switch {
	case errors.Is(err, ErrInvalidImport):
		httperrors.RespondBadRequest(w, httperrors.ErrCodeValidationFailed, err.Error())
	case errors.Is(err, results.ErrMalformedLog), errors.Is(err, results.ErrLogNotFound):
		httperrors.RespondUnprocessable(w, httperrors.ErrCodeResultsInvalid, err.Error())
	case errors.Is(err, ErrImportNotFound):
		httperrors.RespondNotFound(w, httperrors.ErrCodeImportNotFound, "import not found or already finished")
	case errors.Is(err, ErrImportBusy):
		httperrors.RespondConflict(w, httperrors.ErrCodeImportNotPending, err.Error())
	case errors.Is(err, ErrNotSuspended):
		httperrors.RespondConflict(w, httperrors.ErrCodeImportNotPending, err.Error())
	case errors.Is(err, ErrInvalidDirective):
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidDirective, err.Error())
	default:
		h.logger.Error().Err(err).Msg("import request failed")
		httperrors.RespondError(w, http.StatusInternalServerError, code, "import failed")
	}
}
