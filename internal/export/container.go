// Package export wraps a generated presentation and its roster descriptor into the
// distributable container and optionally keeps a copy of it.
package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Val17-ui/CACESmodule-sub000/internal/descriptor"
	"github.com/Val17-ui/CACESmodule-sub000/internal/session"
)

// DefaultContainerExt is the extension of the distributable container.
const DefaultContainerExt = ".ors"

// PresentationExt is the extension of the presentation entry inside the container.
const PresentationExt = ".pptx"

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9]+`)

// BaseName derives a file-system safe stem from the session title and date.
func BaseName(info session.Info) string {
	stem := strings.Trim(unsafeName.ReplaceAllString(info.Title, "_"), "_")
	if stem == "" {
		stem = "session"
	}
	if !info.Date.IsZero() {
		stem += "_" + info.Date.Format("2006-01-02")
	}
	return stem
}

// ContainerName returns the container file name for a session, ext defaulting to .ors.
func ContainerName(info session.Info, ext string) string {
	if ext == "" {
		ext = DefaultContainerExt
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return BaseName(info) + ext
}

// Wrap stores the presentation and the roster descriptor side by side in one zip archive.
func Wrap(presentationName string, presentation, roster []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	now := time.Now()

	entries := []struct {
		name string
		data []byte
	}{
		{presentationName, presentation},
		{descriptor.FileName, roster},
	}
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: zip.Deflate, Modified: now})
		if err != nil {
			return nil, fmt.Errorf("create container entry %s: %w", e.name, err)
		}
		if _, err := w.Write(e.data); err != nil {
			return nil, fmt.Errorf("write container entry %s: %w", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close container: %w", err)
	}
	return buf.Bytes(), nil
}
