// Package compositor renders the try-on preview: the live camera frame
// filling the viewport with the transformed artwork layer drawn above it.
package compositor

import (
	"image"
	"image/color"
	"sync"

	"ar-tryon/internal/artwork"
	"ar-tryon/internal/camera"
	"ar-tryon/internal/mathutil"
	"ar-tryon/internal/postprocess"
	"ar-tryon/internal/raster"
	"ar-tryon/internal/transform"
)

// Overlay footprint relative to the width of the surface it is drawn on.
// The height is a fixed 4:3 placeholder, independent of the artwork.
const (
	FootprintWidth  = 0.6
	FootprintAspect = 0.75
)

// Background shown when there is no live frame.
var Background = color.NRGBA{17, 17, 17, 255}

// Footprint returns the overlay size for a surface of the given width.
func Footprint(surfaceWidth float64) (w, h float64) {
	w = surfaceWidth * FootprintWidth
	return w, w * FootprintAspect
}

// Viewport is the displayed size of the preview element in CSS pixels.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Valid reports whether both sides are positive.
func (v Viewport) Valid() bool { return v.Width > 0 && v.Height > 0 }

// Point returns the viewport as an image.Point.
func (v Viewport) Point() image.Point { return image.Pt(v.Width, v.Height) }

// Style is the preview expressed as CSS transforms for the browser's video
// element and overlay layer.
type Style struct {
	Video    string `json:"video"`
	Overlay  string `json:"overlay"`
	Mirrored bool   `json:"mirrored"`
}

// StyleFor computes the layer transforms. Only the camera feed is
// mirrored for the front camera; the overlay never is.
func StyleFor(facing camera.FacingMode, s transform.State) Style {
	st := Style{Video: "none", Overlay: s.CSS()}
	if facing.Mirrored() {
		st.Video = "scaleX(-1)"
		st.Mirrored = true
	}
	return st
}

// Compositor renders preview images. It keeps the most recent artwork
// texture so repeated renders during a gesture only redo the composite.
type Compositor struct {
	resolver artwork.Resolver

	mu     sync.Mutex
	texKey textureKey
	tex    *image.NRGBA
}

type textureKey struct {
	id   string
	w, h int
}

// New creates a Compositor; resolver may be nil when all artworks are
// gradients.
func New(resolver artwork.Resolver) *Compositor {
	return &Compositor{resolver: resolver}
}

// Render draws one preview frame at the viewport size. frame may be nil
// when the camera has no live feed.
func (c *Compositor) Render(frame image.Image, facing camera.FacingMode, art artwork.Reference, s transform.State, vp Viewport) *image.NRGBA {
	if !vp.Valid() {
		vp = Viewport{Width: camera.DefaultWidth, Height: camera.DefaultHeight}
	}

	var dst *image.NRGBA
	if frame != nil && !frame.Bounds().Empty() {
		dst = postprocess.CoverFit(frame, vp.Width, vp.Height)
		if facing.Mirrored() {
			dst = postprocess.FlipHorizontal(dst)
		}
	} else {
		dst = postprocess.Fill(vp.Width, vp.Height, Background)
	}

	fw, fh := Footprint(float64(vp.Width))
	tex := c.texture(art, int(fw+0.5), int(fh+0.5))
	center := mathutil.Vec2{X: float64(vp.Width) / 2, Y: float64(vp.Height) / 2}
	raster.FillQuad(dst, s.Matrix(center), fw, fh, raster.TextureShader(tex))
	return dst
}

func (c *Compositor) texture(art artwork.Reference, w, h int) *image.NRGBA {
	key := textureKey{id: art.ID + "\x00" + art.Image, w: w, h: h}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tex != nil && c.texKey == key {
		return c.tex
	}
	c.tex = art.Render(max(w, 1), max(h, 1), c.resolver)
	c.texKey = key
	return c.tex
}
