package assembly

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Val17-ui/CACESmodule-sub000/internal/pptx/pptxtest"
	"github.com/Val17-ui/CACESmodule-sub000/internal/session"
)

func TestImageLoader_Load(t *testing.T) {
	picture := pptxtest.PNG(t, 64, 32)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(picture)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "local.png")
	require.NoError(t, os.WriteFile(path, picture, 0o600))

	questions := []session.Question{
		{Text: "inline", Image: &session.ImageRef{Data: picture}},
		{Text: "none"},
		{Text: "remote", Image: &session.ImageRef{URL: srv.URL + "/ok.png"}},
		{Text: "missing", Image: &session.ImageRef{URL: srv.URL + "/missing.png"}},
		{Text: "local", Image: &session.ImageRef{Path: path}},
		{Text: "empty", Image: &session.ImageRef{Name: "rien"}},
	}

	loader := NewImageLoader(ImageConfig{Concurrency: 2}, srv.Client(), zerolog.Nop())
	images, warnings, err := loader.Load(context.Background(), questions)
	require.NoError(t, err)

	require.Len(t, images, 2)
	assert.Equal(t, 64, images[0].Width)
	assert.Equal(t, 32, images[0].Height)
	assert.Equal(t, "png", images[2].Ext)

	require.Len(t, warnings, 3)
	assert.Contains(t, warnings[0], "question 4")
	assert.Contains(t, warnings[0], "404")
	assert.Contains(t, warnings[1], "question 5")
	assert.Contains(t, warnings[1], errLocalPathsOff.Error())
	assert.Contains(t, warnings[2], errNoImageSource.Error())
}

func TestImageLoader_LocalPathsAndLimits(t *testing.T) {
	picture := pptxtest.PNG(t, 8, 8)
	path := filepath.Join(t.TempDir(), "local.png")
	require.NoError(t, os.WriteFile(path, picture, 0o600))

	loader := NewImageLoader(ImageConfig{AllowLocalPaths: true, MaxBytes: int64(len(picture))}, nil, zerolog.Nop())
	images, warnings, err := loader.Load(context.Background(), []session.Question{
		{Text: "local", Image: &session.ImageRef{Path: path}},
		{Text: "too big", Image: &session.ImageRef{Data: append(picture, 0)}},
	})
	require.NoError(t, err)
	require.Contains(t, images, 0)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], errImageTooLarge.Error())
}

func TestImageLoader_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loader := NewImageLoader(ImageConfig{}, nil, zerolog.Nop())
	_, _, err := loader.Load(ctx, []session.Question{{Text: "q", Image: &session.ImageRef{Data: pptxtest.PNG(t, 2, 2)}}})
	assert.ErrorIs(t, err, context.Canceled)
}
