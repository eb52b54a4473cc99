// Package assembly composes the presentation pipeline: validate, open, introspect,
// synthesize layouts, write slides, rewrite relationships, serialize, wrap and save.
package assembly

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Val17-ui/CACESmodule-sub000/internal/descriptor"
	"github.com/Val17-ui/CACESmodule-sub000/internal/events"
	"github.com/Val17-ui/CACESmodule-sub000/internal/export"
	"github.com/Val17-ui/CACESmodule-sub000/internal/metrics"
	"github.com/Val17-ui/CACESmodule-sub000/internal/pptx"
	"github.com/Val17-ui/CACESmodule-sub000/internal/scoring"
	"github.com/Val17-ui/CACESmodule-sub000/internal/session"
)

// ErrTemplateRequired is returned when neither the request nor the configuration names
// a template.
var ErrTemplateRequired = errors.New("a presentation template is required")

// TemplateSource supplies the template; the first non-empty field wins.
type TemplateSource struct {
	Data   []byte
	Path   string
	Reader io.Reader
}

// LayoutNames selects template layouts by display name. Empty names fall back to the
// configured defaults, then to the built-in aliases.
type LayoutNames struct {
	Polling      string `json:"polling,omitempty"`
	Title        string `json:"title,omitempty"`
	Participants string `json:"participants,omitempty"`
}

func (n LayoutNames) or(def LayoutNames) LayoutNames {
	if n.Polling == "" {
		n.Polling = def.Polling
	}
	if n.Title == "" {
		n.Title = def.Title
	}
	if n.Participants == "" {
		n.Participants = def.Participants
	}
	return n
}

// Request is one package generation.
type Request struct {
	Session      session.Info
	Participants []session.Participant
	Questions    []session.Question
	Template     TemplateSource
	// Polling is merged over the configured defaults.
	Polling               *session.PollingConfig
	Layouts               LayoutNames
	SkipTitleSlide        bool
	SkipParticipantsSlide bool
}

// Result is the generated container plus what reconciliation needs later.
type Result struct {
	Container             []byte                    `json:"-"`
	FileName              string                    `json:"file_name"`
	SavedTo               string                    `json:"saved_to,omitempty"`
	QuestionMappings      []session.QuestionMapping `json:"question_mappings"`
	PreExistingSlideGUIDs []string                  `json:"pre_existing_slide_guids"`
	Warnings              []string                  `json:"warnings,omitempty"`
}

// MappingWriter persists question mappings with their answer keys.
type MappingWriter interface {
	Save(ctx context.Context, sessionID int64, mappings []session.QuestionMapping, questions []session.Question) error
}

// Config holds service-wide defaults.
type Config struct {
	ContainerExt        string
	DefaultTemplatePath string
	Layouts             LayoutNames
	Polling             session.PollingConfig
}

// Deps are optional collaborators. A nil Sink disables auto-save.
type Deps struct {
	Sink      export.Sink
	Mappings  MappingWriter
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	Scorer    *scoring.Engine
	Images    *ImageLoader
}

// Service generates presentation packages.
type Service struct {
	cfg    Config
	deps   Deps
	logger zerolog.Logger

	templateOnce sync.Once
	template     *pptx.Package
	templateErr  error
}

func NewService(cfg Config, deps Deps, logger zerolog.Logger) *Service {
	if deps.Publisher == nil {
		deps.Publisher = events.Nop{}
	}
	if deps.Scorer == nil {
		deps.Scorer = scoring.NewEngine(scoring.DefaultScoringConfig())
	}
	if deps.Images == nil {
		deps.Images = NewImageLoader(ImageConfig{}, nil, logger)
	}
	if cfg.Layouts.Polling == "" {
		cfg.Layouts.Polling = pptx.DefaultPollingLayoutName
	}
	cfg.Polling = cfg.Polling.WithDefaults()
	return &Service{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With().Str("component", "assembly_service").Logger(),
	}
}

// Generate builds the output container. Either a complete container is returned or an
// error; the template itself is never modified.
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	res, err := s.generate(ctx, req)
	if err != nil {
		s.deps.Metrics.PackageFailed()
		return nil, err
	}
	s.deps.Metrics.PackageGenerated(len(req.Questions))
	return res, nil
}

func (s *Service) generate(ctx context.Context, req Request) (*Result, error) {
	if err := session.ValidateQuestions(req.Questions); err != nil {
		return nil, err
	}
	logger := s.logger.With().Int64("session_id", req.Session.ID).Logger()

	pkg, err := s.openTemplate(req.Template)
	if err != nil {
		return nil, err
	}

	images, warnings, err := s.deps.Images.Load(ctx, req.Questions)
	if err != nil {
		return nil, err
	}

	polling := s.cfg.Polling
	if req.Polling != nil {
		polling = mergePolling(*req.Polling, s.cfg.Polling)
	}
	layouts := req.Layouts.or(s.cfg.Layouts)

	built, err := s.build(pkg, req, polling, layouts, images, logger)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, built.warnings...)

	presentation, err := pkg.Bytes()
	if err != nil {
		return nil, fmt.Errorf("serialize presentation: %w", err)
	}
	roster, err := descriptor.Build(descriptor.FromParticipants(req.Participants))
	if err != nil {
		return nil, fmt.Errorf("build roster descriptor: %w", err)
	}
	container, err := export.Wrap(export.BaseName(req.Session)+export.PresentationExt, presentation, roster)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Container:             container,
		FileName:              export.ContainerName(req.Session, s.cfg.ContainerExt),
		QuestionMappings:      built.mappings,
		PreExistingSlideGUIDs: built.preExisting,
		Warnings:              warnings,
	}
	s.afterBuild(ctx, req, res, logger)

	logger.Info().
		Int("questions", len(req.Questions)).
		Int("participants", len(req.Participants)).
		Int("warnings", len(res.Warnings)).
		Str("file_name", res.FileName).
		Msg("presentation package generated")
	return res, nil
}

type buildOutput struct {
	mappings    []session.QuestionMapping
	preExisting []string
	warnings    []string
}

// build runs every package edit against pkg, which the caller owns exclusively.
func (s *Service) build(pkg *pptx.Package, req Request, polling session.PollingConfig, layouts LayoutNames, images map[int]*pptx.PreparedImage, logger zerolog.Logger) (*buildOutput, error) {
	out := &buildOutput{}

	inv, err := pptx.Inspect(pkg, logger)
	if err != nil {
		return nil, err
	}
	out.warnings = append(out.warnings, inv.Warnings...)
	out.preExisting = inv.ExistingSlideGUIDs()

	pollingLayout, created, err := pptx.EnsurePollingLayout(pkg, inv, layouts.Polling, logger)
	if err != nil {
		return nil, fmt.Errorf("ensure polling layout: %w", err)
	}

	introLayout := func(requested string, category pptx.LayoutCategory) string {
		if l, ok := inv.FindLayout(requested, category); ok {
			return l.Part
		}
		msg := fmt.Sprintf("no %s layout found; using %q", category, pollingLayout.Name)
		logger.Warn().Str("requested", requested).Str("category", string(category)).Msg("intro layout missing, falling back to polling layout")
		out.warnings = append(out.warnings, msg)
		return pollingLayout.Part
	}

	withTitle := !req.SkipTitleSlide
	withParticipants := !req.SkipParticipantsSlide && len(req.Participants) > 0
	introCount := 0
	if withTitle {
		introCount++
	}
	if withParticipants {
		introCount++
	}

	renames, err := pptx.RenumberExistingSlides(pkg, inv.Slides, introCount)
	if err != nil {
		return nil, fmt.Errorf("renumber existing slides: %w", err)
	}

	var (
		order pptx.SlideOrder
		refs  []pptx.SlideRef
	)
	number := 0
	if withTitle {
		number++
		part, err := pptx.WriteTitleSlide(pkg, number, introLayout(layouts.Title, pptx.LayoutCategoryTitle), req.Session)
		if err != nil {
			return nil, fmt.Errorf("write title slide: %w", err)
		}
		order.Intro = append(order.Intro, part)
		refs = append(refs, pptx.SlideRef{Part: part, Kind: pptx.SlideKindTitle})
	}
	if withParticipants {
		number++
		part, err := pptx.WriteParticipantsSlide(pkg, number, introLayout(layouts.Participants, pptx.LayoutCategoryParticipants), req.Participants, inv.Size)
		if err != nil {
			return nil, fmt.Errorf("write participants slide: %w", err)
		}
		order.Intro = append(order.Intro, part)
		refs = append(refs, pptx.SlideRef{Part: part, Kind: pptx.SlideKindParticipants})
	}
	for _, old := range inv.Slides {
		order.Existing = append(order.Existing, renames[old])
		refs = append(refs, pptx.SlideRef{Part: renames[old], Kind: pptx.SlideKindExisting})
	}

	firstTag := inv.MaxTagNumber + 1
	var mediaExts []string
	for i, q := range req.Questions {
		in := pptx.QuestionSlideInput{
			Question:   q,
			Number:     introCount + len(inv.Slides) + i + 1,
			TagBase:    firstTag + pptx.TagsPerQuestion*i,
			LayoutPart: pollingLayout.Part,
			Polling:    polling,
			Weights:    s.deps.Scorer.WeightVector(len(q.Options), q.CorrectIndex),
			Size:       inv.Size,
		}
		if img, ok := images[i]; ok {
			inv.MaxMediaNumber++
			in.Image = img
			in.MediaNumber = inv.MaxMediaNumber
			mediaExts = append(mediaExts, img.Ext)
		}
		slide, err := pptx.WriteQuestionSlide(pkg, in)
		if err != nil {
			return nil, fmt.Errorf("write question %d: %w", i+1, err)
		}
		order.Questions = append(order.Questions, slide.SlidePart)
		refs = append(refs, pptx.SlideRef{Part: slide.SlidePart, Kind: pptx.SlideKindQuestion})
		out.mappings = append(out.mappings, session.QuestionMapping{
			QuestionID: q.ID,
			SlideGUID:  slide.GUID,
			Order:      i,
			Theme:      q.Theme(),
			BlockID:    q.Block(),
		})
	}

	_, rewriteWarnings, err := pptx.RewritePresentation(pkg, order, logger)
	if err != nil {
		return nil, fmt.Errorf("rewrite presentation: %w", err)
	}
	out.warnings = append(out.warnings, rewriteWarnings...)

	update := pptx.ManifestUpdate{
		Slides:          order.All(),
		MaxTag:          inv.MaxTagNumber + pptx.TagsPerQuestion*len(req.Questions),
		MediaExtensions: mediaExts,
	}
	if created {
		update.Layouts = []string{pollingLayout.Part}
	}
	manifestWarnings, err := pptx.UpdateManifest(pkg, update, logger)
	if err != nil {
		return nil, fmt.Errorf("update manifest: %w", err)
	}
	out.warnings = append(out.warnings, manifestWarnings...)

	appWarnings, err := pptx.UpdateAppProperties(pkg, pptx.ComputeStatistics(pkg, refs), logger)
	if err != nil {
		return nil, fmt.Errorf("update document properties: %w", err)
	}
	out.warnings = append(out.warnings, appWarnings...)
	return out, nil
}

// afterBuild runs the best-effort side effects. None of them can fail the generation.
func (s *Service) afterBuild(ctx context.Context, req Request, res *Result, logger zerolog.Logger) {
	if s.deps.Sink != nil {
		saved, err := s.deps.Sink.Save(ctx, res.FileName, res.Container)
		if err != nil {
			logger.Warn().Err(err).Str("file_name", res.FileName).Msg("auto-save failed")
			res.Warnings = append(res.Warnings, fmt.Sprintf("auto-save failed: %v", err))
			s.publish(ctx, events.TypeExportAutosaveFailed, req.Session.ID, map[string]string{"file_name": res.FileName, "error": err.Error()})
		} else {
			res.SavedTo = saved
		}
	}

	if s.deps.Mappings != nil && req.Session.ID > 0 {
		if err := s.deps.Mappings.Save(ctx, req.Session.ID, res.QuestionMappings, req.Questions); err != nil {
			logger.Warn().Err(err).Msg("persist question mappings failed")
			res.Warnings = append(res.Warnings, fmt.Sprintf("question mappings not persisted: %v", err))
		}
	}

	s.publish(ctx, events.TypeAssemblyCompleted, req.Session.ID, map[string]interface{}{
		"file_name": res.FileName,
		"questions": len(req.Questions),
		"warnings":  len(res.Warnings),
	})
}

// openTemplate returns a private working copy of the template.
func (s *Service) openTemplate(src TemplateSource) (*pptx.Package, error) {
	switch {
	case len(src.Data) > 0:
		return pptx.Open(src.Data)
	case src.Path != "":
		return pptx.OpenFile(src.Path)
	case src.Reader != nil:
		return pptx.OpenReader(src.Reader)
	case s.cfg.DefaultTemplatePath != "":
		s.templateOnce.Do(func() {
			s.template, s.templateErr = pptx.OpenFile(s.cfg.DefaultTemplatePath)
		})
		if s.templateErr != nil {
			return nil, s.templateErr
		}
		return s.template.Clone(), nil
	default:
		return nil, ErrTemplateRequired
	}
}

func (s *Service) publish(ctx context.Context, eventType string, sessionID int64, data interface{}) {
	evt, err := events.New(eventType, sessionID, data)
	if err != nil {
		s.logger.Warn().Err(err).Str("type", eventType).Msg("build event failed")
		return
	}
	if err := s.deps.Publisher.Publish(ctx, evt); err != nil {
		s.logger.Warn().Err(err).Str("type", eventType).Msg("publish event failed")
	}
}

// mergePolling fills the request's empty fields from the configured defaults.
func mergePolling(req, def session.PollingConfig) session.PollingConfig {
	if req.StartMode == "" {
		req.StartMode = def.StartMode
	}
	if req.CountdownMode == "" {
		req.CountdownMode = def.CountdownMode
	}
	if req.BulletStyle == "" {
		req.BulletStyle = def.BulletStyle
	}
	if req.DefaultDurationSeconds == 0 {
		req.DefaultDurationSeconds = def.DefaultDurationSeconds
	}
	return req.WithDefaults()
}
