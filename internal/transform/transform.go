// Package transform holds the overlay transform applied to the try-on
// artwork: uniform scale, rotation in degrees and a pixel translation from
// the viewport center.
package transform

import (
	"fmt"
	"strconv"

	"ar-tryon/internal/mathutil"
)

const (
	MinScale = 0.3
	MaxScale = 3.0

	// RotateStep is the rotation applied by one press of a rotate control.
	RotateStep = 15.0
)

// State is the overlay transform. Rotation is unbounded and wraps visually
// every 360 degrees. Pinch rotation accumulates each sample's angle change
// folded into (-180, 180], so a contact pair crossing the atan2 seam moves
// Rotation by the small visual turn rather than by the raw ±360 jump.
type State struct {
	Scale      float64 `json:"scale"`
	Rotation   float64 `json:"rotation"`
	TranslateX float64 `json:"translateX"`
	TranslateY float64 `json:"translateY"`
}

// Identity returns scale 1, no rotation, no translation.
func Identity() State {
	return State{Scale: 1}
}

// ClampScale limits s to [MinScale, MaxScale].
func ClampScale(s float64) float64 {
	return mathutil.Clamp(s, MinScale, MaxScale)
}

// Translate moves the overlay by (dx, dy) screen pixels.
func (s State) Translate(dx, dy float64) State {
	s.TranslateX += dx
	s.TranslateY += dy
	return s
}

// Zoom multiplies the scale by factor and clamps the result.
func (s State) Zoom(factor float64) State {
	s.Scale = ClampScale(s.Scale * factor)
	return s
}

// Turn adds deg degrees of rotation.
func (s State) Turn(deg float64) State {
	s.Rotation += deg
	return s
}

func (s State) RotateLeft() State  { return s.Turn(-RotateStep) }
func (s State) RotateRight() State { return s.Turn(RotateStep) }

// Reset discards every component of s at once.
func (s State) Reset() State {
	return Identity()
}

// Matrix maps overlay-local coordinates (origin at the overlay center) to
// screen coordinates: translate to center+t, then rotate, then scale. The
// rotation and scale pivot follows the translation.
func (s State) Matrix(center mathutil.Vec2) mathutil.Mat3 {
	return s.MatrixScaled(center, 1, 1)
}

// MatrixScaled is Matrix with the screen translation converted into another
// raster's pixel units by (kx, ky).
func (s State) MatrixScaled(center mathutil.Vec2, kx, ky float64) mathutil.Mat3 {
	return mathutil.Chain(
		mathutil.Translate(center.X+s.TranslateX*kx, center.Y+s.TranslateY*ky),
		mathutil.Rotate(s.Rotation),
		mathutil.Scale(s.Scale),
	)
}

// CSS renders the transform for a layer whose top-left sits at the viewport
// center.
func (s State) CSS() string {
	return fmt.Sprintf("translate(-50%%, -50%%) translate(%spx, %spx) rotate(%sdeg) scale(%s)",
		num(s.TranslateX), num(s.TranslateY), num(s.Rotation), num(s.Scale))
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
