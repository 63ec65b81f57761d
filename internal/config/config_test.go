package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ar.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"addr":":8080","camera":"dir","frame_dir":"/srv/frames","fidelity":"exact"}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "dir", cfg.Camera)
	assert.Equal(t, "/srv/frames", cfg.FrameDir)
	assert.Equal(t, "exact", cfg.Fidelity)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)
}

func TestResolveDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	cfg := Config{BaseDir: "/data"}
	cfg.Resolve(Flags{})

	assert.Equal(t, ":3000", cfg.Addr)
	assert.Equal(t, "synthetic", cfg.Camera)
	assert.Equal(t, 1280, cfg.Width)
	assert.Equal(t, 720, cfg.Height)
	assert.Equal(t, "png", cfg.SnapshotFormat)
	assert.Equal(t, "approximate", cfg.Fidelity)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Positive(t, cfg.Workers)
	assert.Equal(t, filepath.Join("/data", "uploads"), cfg.UploadsDir)
	assert.Equal(t, filepath.Join("/data", "frames"), cfg.FrameDir)
	assert.Empty(t, cfg.CatalogPath)
	require.NoError(t, cfg.Validate())
}

func TestResolvePrecedence(t *testing.T) {
	t.Setenv("PORT", "4000")

	cfg := Config{Addr: ":9000", BaseDir: "/data", CatalogPath: "paintings.json"}
	cfg.Resolve(Flags{})
	assert.Equal(t, ":4000", cfg.Addr)
	assert.Equal(t, filepath.Join("/data", "paintings.json"), cfg.CatalogPath)

	cfg = Config{Addr: ":9000", BaseDir: "/data", Fidelity: "approximate"}
	cfg.Resolve(Flags{Addr: ":5000", Fidelity: "exact", Workers: 3})
	assert.Equal(t, ":5000", cfg.Addr)
	assert.Equal(t, "exact", cfg.Fidelity)
	assert.Equal(t, 3, cfg.Workers)
}

func TestValidate(t *testing.T) {
	t.Setenv("PORT", "")
	cfg := Config{Camera: "webcam"}
	cfg.Resolve(Flags{})
	assert.Error(t, cfg.Validate())

	cfg = Config{SnapshotFormat: "gif"}
	cfg.Resolve(Flags{})
	assert.Error(t, cfg.Validate())
}
