package assembly

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Val17-ui/CACESmodule-sub000/internal/pptx"
	"github.com/Val17-ui/CACESmodule-sub000/internal/session"
	httperrors "github.com/Val17-ui/CACESmodule-sub000/pkg/http/errors"
)

const (
	defaultMaxUploadBytes = 64 << 20
	containerContentType  = "application/octet-stream"
)

// HTTPHandler exposes package generation.
type HTTPHandler struct {
	svc      *Service
	maxBytes int64
	logger   zerolog.Logger
}

func NewHTTPHandler(svc *Service, maxBytes int64, logger zerolog.Logger) *HTTPHandler {
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	return &HTTPHandler{
		svc:      svc,
		maxBytes: maxBytes,
		logger:   logger.With().Str("component", "assembly_http").Logger(),
	}
}

// Register mounts the routes on mux.
func (h *HTTPHandler) Register(mux *http.ServeMux, wrap func(http.Handler) http.Handler) {
	mux.Handle("POST /v1/packages", wrap(http.HandlerFunc(h.HandleGenerate)))
}

type generateBody struct {
	Session               session.Info           `json:"session"`
	Participants          []session.Participant  `json:"participants"`
	Questions             []session.Question     `json:"questions"`
	Template              []byte                 `json:"template,omitempty"`
	Polling               *session.PollingConfig `json:"polling,omitempty"`
	Layouts               LayoutNames            `json:"layouts"`
	SkipTitleSlide        bool                   `json:"skip_title_slide"`
	SkipParticipantsSlide bool                   `json:"skip_participants_slide"`
}

type generateResponse struct {
	*Result
	Container []byte `json:"container"`
}

// HandleGenerate builds a presentation package. The body is either JSON, with the
// template base64-encoded in "template", or multipart with a "template" file and the
// JSON document in the "request" field. With ?download=1 the container is streamed.
// Route: POST /v1/packages
func (h *HTTPHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	body, ok := h.decode(w, r)
	if !ok {
		return
	}

	res, err := h.svc.Generate(r.Context(), Request{
		Session:               body.Session,
		Participants:          body.Participants,
		Questions:             body.Questions,
		Template:              TemplateSource{Data: body.Template},
		Polling:               body.Polling,
		Layouts:               body.Layouts,
		SkipTitleSlide:        body.SkipTitleSlide,
		SkipParticipantsSlide: body.SkipParticipantsSlide,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}

	if download, _ := strconv.ParseBool(r.URL.Query().Get("download")); download {
		w.Header().Set("Content-Type", containerContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.FileName))
		w.Header().Set("X-Assembly-Warnings", strconv.Itoa(len(res.Warnings)))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(res.Container); err != nil {
			h.logger.Warn().Err(err).Msg("stream container failed")
		}
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, generateResponse{Result: res, Container: res.Container})
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request) (generateBody, bool) {
	var body generateBody
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			h.respondBodyError(w, err)
			return body, false
		}
		return body, true
	}

	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		h.respondBodyError(w, err)
		return body, false
	}
	if err := json.Unmarshal([]byte(r.FormValue("request")), &body); err != nil {
		httperrors.RespondValidationError(w, httperrors.ErrCodeInvalidRequest, "request field must hold the JSON document", "request", nil)
		return body, false
	}
	file, _, err := r.FormFile("template")
	if errors.Is(err, http.ErrMissingFile) {
		return body, true
	}
	if err != nil {
		h.respondBodyError(w, err)
		return body, false
	}
	defer file.Close()
	if body.Template, err = io.ReadAll(file); err != nil {
		h.respondBodyError(w, err)
		return body, false
	}
	return body, true
}

func (h *HTTPHandler) respondBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		httperrors.RespondPayloadTooLarge(w, "request body too large")
		return
	}
	httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "invalid request body")
}

func (h *HTTPHandler) respondError(w http.ResponseWriter, err error) {
	var invalid *session.ValidationError
	switch {
	case errors.As(err, &invalid):
		httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, invalid.Message, invalid.Field, map[string]interface{}{
			"question_index": invalid.Index,
		})
	case errors.Is(err, session.ErrNoQuestions):
		httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, err.Error(), "questions", nil)
	case errors.Is(err, ErrTemplateRequired):
		httperrors.RespondBadRequest(w, httperrors.ErrCodeTemplateRequired, err.Error())
	case errors.Is(err, pptx.ErrInvalidPackage), errors.Is(err, pptx.ErrMainDocumentMissing):
		httperrors.RespondUnprocessable(w, httperrors.ErrCodeTemplateInvalid, err.Error())
	default:
		h.logger.Error().Err(err).Msg("package generation failed")
		httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeAssemblyFailed, "package generation failed")
	}
}
