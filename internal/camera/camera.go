// Package camera acquires and manages the live capture stream behind an AR
// view. A Source owns at most one stream at a time; flipping or closing
// stops every track of the old stream before anything else happens.
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
)

var (
	// ErrPermissionDenied is returned by a Device when the user refuses access.
	ErrPermissionDenied = errors.New("camera: permission denied")
	// ErrNoDevice is returned when no camera matches the request.
	ErrNoDevice = errors.New("camera: no device")
	// ErrNoFrame is returned by Stream.Frame before the first frame decodes.
	ErrNoFrame = errors.New("camera: no frame yet")
)

// DefaultWidth and DefaultHeight are the advisory capture resolution.
const (
	DefaultWidth  = 1280
	DefaultHeight = 720
)

// FacingMode selects the physical camera.
type FacingMode string

const (
	FacingUser        FacingMode = "user"
	FacingEnvironment FacingMode = "environment"
)

// Flip returns the opposite facing mode.
func (f FacingMode) Flip() FacingMode {
	if f == FacingUser {
		return FacingEnvironment
	}
	return FacingUser
}

// Mirrored reports whether previews from this camera are shown mirrored.
func (f FacingMode) Mirrored() bool {
	return f == FacingUser
}

// ParseFacingMode accepts "user"/"front" and "environment"/"back"/"rear".
// An empty string selects the rear camera.
func ParseFacingMode(s string) (FacingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "environment", "back", "rear":
		return FacingEnvironment, nil
	case "user", "front", "selfie":
		return FacingUser, nil
	}
	return "", fmt.Errorf("camera: unknown facing mode %q", s)
}

// Constraints is a video-only capture request. Width and Height are
// advisory; a device may grant any size.
type Constraints struct {
	Facing FacingMode
	Width  int
	Height int
}

// Track is one media track of a stream.
type Track interface {
	Stop()
	Live() bool
}

// Stream is a granted capture stream.
type Stream interface {
	Tracks() []Track
	// Frame returns the current frame at the stream's native size.
	Frame() (image.Image, error)
	// Size returns the granted resolution; zero until the first frame
	// has decoded.
	Size() image.Point
}

// Device opens capture streams. Open blocks for the permission handshake
// and must honor ctx cancellation.
type Device interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// StopAll stops every track of s.
func StopAll(s Stream) {
	if s == nil {
		return
	}
	for _, t := range s.Tracks() {
		t.Stop()
	}
}

// LiveTracks counts the live tracks of s.
func LiveTracks(s Stream) int {
	if s == nil {
		return 0
	}
	n := 0
	for _, t := range s.Tracks() {
		if t.Live() {
			n++
		}
	}
	return n
}
