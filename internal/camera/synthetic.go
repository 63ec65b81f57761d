package camera

import (
	"context"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
)

// SyntheticDevice produces generated test-pattern frames. It stands in for
// a real camera in tests and in the server's demo mode.
type SyntheticDevice struct {
	// Grant overrides the resolution the device hands out; zero honors the
	// request.
	Grant image.Point
	// Deny fails every Open with ErrPermissionDenied.
	Deny bool
	// Fail, when set, is returned by every Open.
	Fail error
	// Hold, when non-nil, blocks Open until it is closed or ctx ends.
	Hold <-chan struct{}
	// NoFrames keeps streams in the "not yet decoded" state.
	NoFrames bool

	live    atomic.Int64
	maxLive atomic.Int64
	opens   atomic.Int64
}

// Open implements Device.
func (d *SyntheticDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	d.opens.Add(1)
	if d.Hold != nil {
		select {
		case <-d.Hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.Deny {
		return nil, ErrPermissionDenied
	}
	if d.Fail != nil {
		return nil, d.Fail
	}

	size := d.Grant
	if size.X <= 0 || size.Y <= 0 {
		size = image.Pt(c.Width, c.Height)
	}
	if size.X <= 0 || size.Y <= 0 {
		size = image.Pt(DefaultWidth, DefaultHeight)
	}

	n := d.live.Add(1)
	for {
		m := d.maxLive.Load()
		if n <= m || d.maxLive.CompareAndSwap(m, n) {
			break
		}
	}
	s := &syntheticStream{facing: c.Facing, size: size, noFrames: d.NoFrames}
	s.track = newTrack(func() { d.live.Add(-1) })
	return s, nil
}

// LiveTracks counts tracks handed out and not yet stopped.
func (d *SyntheticDevice) LiveTracks() int { return int(d.live.Load()) }

// MaxLiveTracks is the high-water mark of LiveTracks.
func (d *SyntheticDevice) MaxLiveTracks() int { return int(d.maxLive.Load()) }

// Opens counts Open calls.
func (d *SyntheticDevice) Opens() int { return int(d.opens.Load()) }

type syntheticStream struct {
	facing   FacingMode
	size     image.Point
	noFrames bool
	track    *memTrack

	once  sync.Once
	frame *image.NRGBA
}

func (s *syntheticStream) Tracks() []Track { return []Track{s.track} }

func (s *syntheticStream) Size() image.Point {
	if s.noFrames {
		return image.Point{}
	}
	return s.size
}

func (s *syntheticStream) Frame() (image.Image, error) {
	if s.noFrames || !s.track.Live() {
		return nil, ErrNoFrame
	}
	s.once.Do(func() { s.frame = TestPattern(s.size.X, s.size.Y, s.facing) })
	return s.frame, nil
}

// TestPattern draws a left/right asymmetric frame: a red band on the left
// third, a blue band on the right third and a vertical ramp between. The
// asymmetry makes mirroring visible.
func TestPattern(w, h int, facing FacingMode) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	tint := uint8(40)
	if facing == FacingUser {
		tint = 90
	}
	for y := 0; y < h; y++ {
		ramp := uint8(y * 255 / max(h-1, 1))
		for x := 0; x < w; x++ {
			var c color.NRGBA
			switch {
			case x < w/3:
				c = color.NRGBA{220, 30, 30, 255}
			case x >= w-w/3:
				c = color.NRGBA{30, 30, 220, 255}
			default:
				c = color.NRGBA{ramp, ramp, tint, 255}
			}
			i := img.PixOffset(x, y)
			img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
		}
	}
	return img
}
