package assembly

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Val17-ui/CACESmodule-sub000/internal/export"
	"github.com/Val17-ui/CACESmodule-sub000/internal/pptx/pptxtest"
	"github.com/Val17-ui/CACESmodule-sub000/internal/session"
)

func intPtr(v int) *int { return &v }

func testQuestions() []session.Question {
	return []session.Question{
		{ID: 11, Text: "Distance de sécurité minimale ?", Options: []string{"1 m", "3 m", "5 m"}, CorrectIndex: intPtr(1), ThemeBlock: "securite_A"},
		{ID: 12, Text: "Le port du casque est obligatoire.", Options: []string{"Vrai", "Faux"}, CorrectIndex: intPtr(0), ThemeBlock: "reglementation_B"},
	}
}

func testRequest(t *testing.T) Request {
	return Request{
		Session: session.Info{
			ID:       7,
			Title:    "CACES R489",
			Date:     time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC),
			Location: "Lyon",
			Trainer:  "M. Durand",
		},
		Participants: []session.Participant{
			{ID: 1, FirstName: "Anne", LastName: "Martin", DeviceSerial: "102494"},
			{ID: 2, FirstName: "Paul", LastName: "Bernard", DeviceSerial: "102495"},
		},
		Questions: testQuestions(),
		Template:  TemplateSource{Data: pptxtest.Template(t)},
	}
}

// unzip returns the entries of a zip archive.
func unzip(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	out := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		out[f.Name] = body
	}
	return out
}

func exportSink(dir string) *export.FileSink {
	return export.NewFileSink(dir, zerolog.Nop())
}
