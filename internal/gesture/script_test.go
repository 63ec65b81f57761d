package gesture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ar-tryon/internal/transform"
)

const sampleScript = `{"steps": [
	{"event": "pointerdown", "pointerId": 1, "x": 10, "y": 10},
	{"event": "pointermove", "pointerId": 1, "x": 60, "y": 30},
	{"event": "pointerup", "pointerId": 1, "x": 60, "y": 30},
	{"event": "touchstart", "touches": [{"id": 1, "x": 0, "y": 0}, {"id": 2, "x": 100, "y": 0}]},
	{"event": "touchmove", "touches": [{"id": 1, "x": 0, "y": 0}, {"id": 2, "x": 150, "y": 0}]},
	{"event": "touchend", "touches": [{"id": 2, "x": 150, "y": 0}]},
	{"button": "rotate-right"}
]}`

func TestReplayScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleScript), 0o644))

	sc, err := LoadScript(path)
	require.NoError(t, err)
	require.Len(t, sc.Steps, 7)

	s, err := sc.Replay(transform.Identity())
	require.NoError(t, err)
	assert.Equal(t, 50.0, s.TranslateX)
	assert.Equal(t, 20.0, s.TranslateY)
	assert.InDelta(t, 1.5, s.Scale, 1e-9)
	assert.Equal(t, 15.0, s.Rotation)
}

func TestReplayRejectsUnknownStep(t *testing.T) {
	sc := Script{Steps: []Step{{Event: "wheel"}}}
	_, err := sc.Replay(transform.Identity())
	assert.ErrorIs(t, err, ErrUnknownEvent)

	sc = Script{Steps: []Step{{Button: "spin"}}}
	_, err = sc.Replay(transform.Identity())
	assert.ErrorIs(t, err, ErrUnknownEvent)
}
