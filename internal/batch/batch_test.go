package batch

import (
	"encoding/json"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ar-tryon/internal/artwork"
	"ar-tryon/internal/camera"
	"ar-tryon/internal/snapshot"
	"ar-tryon/internal/transform"
)

func TestRunExportsEveryArtwork(t *testing.T) {
	out := t.TempDir()
	items := artwork.DefaultCatalog().List()

	results := Run(Config{
		OutputDir: out,
		Exporter:  snapshot.NewExporter(snapshot.Options{}, nil),
		Frame:     camera.TestPattern(160, 90, camera.FacingEnvironment),
		Facing:    camera.FacingEnvironment,
		State:     transform.Identity(),
		Workers:   3,
	}, items)

	require.Len(t, results, len(items))
	for i, r := range results {
		assert.Equal(t, items[i].ID, r.ID)
		require.True(t, r.Success, r.Error)

		f, err := os.Open(filepath.Join(out, filepath.FromSlash(r.Image)))
		require.NoError(t, err)
		img, err := png.Decode(f)
		f.Close()
		require.NoError(t, err)
		assert.Equal(t, image.Pt(160, 90), img.Bounds().Size())
	}

	manifest := filepath.Join(out, "manifest.json")
	require.NoError(t, WriteManifest(manifest, items, results))

	data, err := os.ReadFile(manifest)
	require.NoError(t, err)
	var entries []ManifestEntry
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, len(items))
	assert.Equal(t, "1/ar-preview.png", entries[0].Image)
	assert.Equal(t, 45000, entries[0].Price)
}

func TestRunReportsWriteFailures(t *testing.T) {
	out := t.TempDir()
	blocker := filepath.Join(out, "1")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	items := []artwork.Reference{{ID: "1", Title: "x"}}
	results := Run(Config{OutputDir: out, Exporter: snapshot.NewExporter(snapshot.Options{}, nil)}, items)

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.NotEmpty(t, results[0].Error)
}

func TestWriteManifestLengthMismatch(t *testing.T) {
	err := WriteManifest(filepath.Join(t.TempDir(), "m.json"), []artwork.Reference{{ID: "1"}}, nil)
	assert.Error(t, err)
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "abc", safeName("abc"))
	assert.Equal(t, "passwd", safeName("../../etc/passwd"))
	assert.Equal(t, "artwork-2e2e", safeName(".."))
}
