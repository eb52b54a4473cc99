package assembly

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Val17-ui/CACESmodule-sub000/internal/pptx"
	"github.com/Val17-ui/CACESmodule-sub000/internal/session"
)

var (
	errImageTooLarge  = errors.New("image exceeds size limit")
	errLocalPathsOff  = errors.New("local image paths are disabled")
	errNoImageSource  = errors.New("image reference has no data, path or url")
	errUnexpectedCode = errors.New("unexpected status")
)

// ImageConfig bounds image loading.
type ImageConfig struct {
	FetchTimeout    time.Duration
	MaxBytes        int64
	Concurrency     int
	AllowLocalPaths bool
}

// ImageLoader resolves question image references before any package mutation.
type ImageLoader struct {
	client *http.Client
	cfg    ImageConfig
	logger zerolog.Logger
}

func NewImageLoader(cfg ImageConfig, client *http.Client, logger zerolog.Logger) *ImageLoader {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10 << 20
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.FetchTimeout}
	}
	return &ImageLoader{
		client: client,
		cfg:    cfg,
		logger: logger.With().Str("component", "image_loader").Logger(),
	}
}

// Load fetches every referenced image. Results are keyed by question index, so slide
// numbering never depends on completion order. A failed image is reported as a warning
// and the question keeps its slide without a picture.
func (l *ImageLoader) Load(ctx context.Context, questions []session.Question) (map[int]*pptx.PreparedImage, []string, error) {
	images := make([]*pptx.PreparedImage, len(questions))
	failures := make([]error, len(questions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.Concurrency)
	for i, q := range questions {
		if q.Image == nil {
			continue
		}
		ref := *q.Image
		g.Go(func() error {
			data, err := l.read(gctx, ref)
			if err == nil {
				images[i], err = pptx.DecodeImage(data)
			}
			failures[i] = err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("load images: %w", err)
	}

	out := make(map[int]*pptx.PreparedImage)
	var warnings []string
	for i := range questions {
		if failures[i] != nil {
			l.logger.Warn().Err(failures[i]).Int("question", i+1).Msg("question image skipped")
			warnings = append(warnings, fmt.Sprintf("question %d: image skipped: %v", i+1, failures[i]))
			continue
		}
		if images[i] != nil {
			out[i] = images[i]
		}
	}
	return out, warnings, nil
}

func (l *ImageLoader) read(ctx context.Context, ref session.ImageRef) ([]byte, error) {
	switch {
	case len(ref.Data) > 0:
		if int64(len(ref.Data)) > l.cfg.MaxBytes {
			return nil, errImageTooLarge
		}
		return ref.Data, nil
	case ref.Path != "":
		if !l.cfg.AllowLocalPaths {
			return nil, errLocalPathsOff
		}
		f, err := os.Open(ref.Path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return l.limited(f)
	case ref.URL != "":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w %d from %s", errUnexpectedCode, resp.StatusCode, ref.URL)
		}
		return l.limited(resp.Body)
	default:
		return nil, errNoImageSource
	}
}

func (l *ImageLoader) limited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, l.cfg.MaxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > l.cfg.MaxBytes {
		return nil, errImageTooLarge
	}
	return data, nil
}
