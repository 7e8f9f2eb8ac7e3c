package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sch-go/internal/config"
)

func TestNewConfig(t *testing.T) {
	cfg := config.NewConfig("http://localhost:5000/api", "/tmp/sch")

	assert.Equal(t, "http://localhost:5000/api", cfg.API.BaseURL)
	assert.Equal(t, 10, cfg.API.TimeoutSeconds)
	assert.Equal(t, "/tmp/sch", cfg.BaseDir)
	assert.Equal(t, filepath.Join("/tmp/sch", "log"), cfg.LogDir)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, filepath.Join("/tmp/sch", "data"), cfg.Database.DataDir)
	assert.Equal(t, int64(1000), cfg.Sync.MaxPending)
	assert.Zero(t, cfg.User.ID, "fresh config has nobody logged in")
}

func TestManager_RoundTrip(t *testing.T) {
	cfg := config.NewConfig("http://hub.example.edu/api", "/home/maria/.local/share/sch")
	cfg.User.ID = 3
	cfg.User.Username = "maria"
	cfg.User.ShowRealName = true

	m := &config.Manager{}
	var buf bytes.Buffer
	require.NoError(t, m.Write(&buf, cfg))

	got, err := m.Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestSaveAndReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sch.toml")
	cfg := config.NewConfig("http://localhost:5000/api", "/tmp/sch")

	require.NoError(t, config.SaveToFile(path, cfg))

	got, err := config.ReadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.API.BaseURL, got.API.BaseURL)
}

func TestReadFromFile_Missing(t *testing.T) {
	_, err := config.ReadFromFile(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestInit(t *testing.T) {
	t.Run("creates a new config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sch.toml")
		cfg := config.NewConfig("http://localhost:5000/api", "/tmp/sch")

		require.NoError(t, config.Init(path, cfg))

		_, err := os.Stat(path)
		require.NoError(t, err)
	})

	t.Run("refuses to overwrite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sch.toml")
		cfg := config.NewConfig("http://localhost:5000/api", "/tmp/sch")

		require.NoError(t, config.Init(path, cfg))
		err := config.Init(path, cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already exists")
	})
}
