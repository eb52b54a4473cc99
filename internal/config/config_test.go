package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("PG_HOST", "localhost")
	t.Setenv("PG_USER", "caces")
	t.Setenv("PG_PASSWORD", "secret")
	t.Setenv("PG_DATABASE", "caces")
	t.Setenv("REDIS_ADDR", "localhost:6379")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "caces-module", cfg.Name)
	assert.Empty(t, cfg.Security.JWTSecret)
	assert.Empty(t, cfg.Export.AutosaveDir)
	assert.Equal(t, ".ors", cfg.Export.ContainerExt)
	assert.Equal(t, "Polling Question", cfg.Layouts.Polling)
	assert.Equal(t, 30, cfg.Polling.DefaultDurationSeconds)
	assert.Equal(t, 10*time.Second, cfg.Images.FetchTimeout)
	assert.False(t, cfg.Images.AllowLocalPaths)
	assert.Equal(t, "caces:events", cfg.Import.EventsChannel)
	assert.Equal(t, "host=localhost port=5432 user=caces password=secret dbname=caces sslmode=disable", cfg.Postgres.DSN())
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("EXPORT_AUTOSAVE_DIR", "/var/lib/caces/exports")
	t.Setenv("POLLING_START_MODE", "Manual")
	t.Setenv("IMAGE_FETCH_TIMEOUT", "3s")

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/caces/exports", cfg.Export.AutosaveDir)
	assert.Equal(t, "Manual", cfg.Polling.StartMode)
	assert.Equal(t, 3*time.Second, cfg.Images.FetchTimeout)
}

func TestLoad_MissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("PG_HOST", "")

	_, err := Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PG_HOST")
}
