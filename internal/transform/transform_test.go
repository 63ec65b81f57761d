package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ar-tryon/internal/mathutil"
)

func TestIdentity(t *testing.T) {
	assert.Equal(t, State{Scale: 1}, Identity())
}

func TestResetFromAnyState(t *testing.T) {
	states := []State{
		{Scale: 2.7, Rotation: -725, TranslateX: 13, TranslateY: -900},
		{Scale: 0.3},
		Identity(),
	}
	for _, s := range states {
		assert.Equal(t, Identity(), s.Reset())
	}
}

func TestZoomClamps(t *testing.T) {
	s := Identity()
	for i := 0; i < 10; i++ {
		s = s.Zoom(10)
		assert.LessOrEqual(t, s.Scale, MaxScale)
	}
	assert.Equal(t, MaxScale, s.Scale)
	for i := 0; i < 10; i++ {
		s = s.Zoom(0.01)
		assert.GreaterOrEqual(t, s.Scale, MinScale)
	}
	assert.Equal(t, MinScale, s.Scale)
}

func TestRotateRightThreeTimes(t *testing.T) {
	s := Identity().RotateRight().RotateRight().RotateRight()
	assert.Equal(t, 45.0, s.Rotation)
	assert.Equal(t, 30.0, s.RotateLeft().Rotation)
}

func TestMatrixPivotFollowsTranslation(t *testing.T) {
	s := State{Scale: 2, Rotation: 90, TranslateX: 50, TranslateY: 0}
	m := s.Matrix(mathutil.Vec2{X: 100, Y: 100})

	// The overlay's own center lands on center + translation.
	c := m.Apply(mathutil.Vec2{})
	assert.InDelta(t, 150, c.X, 1e-9)
	assert.InDelta(t, 100, c.Y, 1e-9)

	// A local point (10, 0) scales by 2 and turns 90° about that pivot.
	p := m.Apply(mathutil.Vec2{X: 10})
	assert.InDelta(t, 150, p.X, 1e-9)
	assert.InDelta(t, 120, p.Y, 1e-9)
}

func TestMatrixScaledConvertsTranslation(t *testing.T) {
	s := State{Scale: 1, TranslateX: 10, TranslateY: 20}
	c := s.MatrixScaled(mathutil.Vec2{X: 640, Y: 360}, 2, 1.5).Apply(mathutil.Vec2{})
	assert.InDelta(t, 660, c.X, 1e-9)
	assert.InDelta(t, 390, c.Y, 1e-9)
}

func TestCSS(t *testing.T) {
	s := State{Scale: 1.5, Rotation: -15, TranslateX: 12.5, TranslateY: -3}
	assert.Equal(t, "translate(-50%, -50%) translate(12.5px, -3px) rotate(-15deg) scale(1.5)", s.CSS())
}
