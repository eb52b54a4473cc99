package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Sink keeps a copy of a finished container. Failures are reported, never fatal to assembly.
type Sink interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// FileSink writes containers into a directory.
type FileSink struct {
	dir    string
	logger zerolog.Logger
}

func NewFileSink(dir string, logger zerolog.Logger) *FileSink {
	return &FileSink{
		dir:    dir,
		logger: logger.With().Str("component", "export_file_sink").Logger(),
	}
}

// Save atomically writes the container (temp file, sync, rename) and returns its path.
func (s *FileSink) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	target := filepath.Join(s.dir, filepath.Base(name))
	tmp, err := os.CreateTemp(s.dir, ".export-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return "", fmt.Errorf("rename temp file: %w", err)
	}

	s.logger.Info().Str("path", target).Int("bytes", len(data)).Msg("container saved")
	return target, nil
}
