// Package raster fills transformed rectangles into NRGBA images.
package raster

import (
	"image"
	"image/color"
	"math"

	"ar-tryon/internal/mathutil"
)

// Shader returns the color at normalized rectangle coordinates (u, v),
// both in [0, 1] with (0, 0) at the top-left corner.
type Shader func(u, v float64) color.NRGBA

// Subpixel sample offsets for 4× coverage anti-aliasing.
var subsamples = [4][2]float64{{0.25, 0.25}, {0.75, 0.25}, {0.25, 0.75}, {0.75, 0.75}}

// FillQuad draws a w×h rectangle centered on the local origin, mapped to
// dst by m, blending shader output over dst.
//
// This is the hot path: no allocation inside the pixel loop.
func FillQuad(dst *image.NRGBA, m mathutil.Mat3, w, h float64, shade Shader) {
	if w <= 0 || h <= 0 {
		return
	}
	hw, hh := w/2, h/2
	corners := [4]mathutil.Vec2{
		m.Apply(mathutil.Vec2{X: -hw, Y: -hh}),
		m.Apply(mathutil.Vec2{X: hw, Y: -hh}),
		m.Apply(mathutil.Vec2{X: hw, Y: hh}),
		m.Apply(mathutil.Vec2{X: -hw, Y: hh}),
	}

	// Bounding box
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range corners {
		minX, maxX = math.Min(minX, c.X), math.Max(maxX, c.X)
		minY, maxY = math.Min(minY, c.Y), math.Max(maxY, c.Y)
	}
	b := dst.Bounds()
	x0 := max(int(math.Floor(minX)), b.Min.X)
	x1 := min(int(math.Ceil(maxX)), b.Max.X-1)
	y0 := max(int(math.Floor(minY)), b.Min.Y)
	y1 := min(int(math.Ceil(maxY)), b.Max.Y-1)
	if x0 > x1 || y0 > y1 {
		return
	}

	// Inverse mapping: destination pixel -> local rectangle coordinates.
	if m.Det() == 0 {
		return
	}
	inv := m.Inverse()
	invW, invH := 1/w, 1/h

	for py := y0; py <= y1; py++ {
		for px := x0; px <= x1; px++ {
			covered := 0
			for _, s := range subsamples {
				l := inv.Apply(mathutil.Vec2{X: float64(px) + s[0], Y: float64(py) + s[1]})
				if l.X >= -hw && l.X < hw && l.Y >= -hh && l.Y < hh {
					covered++
				}
			}
			if covered == 0 {
				continue
			}
			l := inv.Apply(mathutil.Vec2{X: float64(px) + 0.5, Y: float64(py) + 0.5})
			c := shade(clampF((l.X+hw)*invW, 0, 1), clampF((l.Y+hh)*invH, 0, 1))
			if c.A == 0 {
				continue
			}
			blendOver(dst, px, py, c, float64(covered)/float64(len(subsamples)))
		}
	}
}

// blendOver composites c, with its alpha scaled by coverage, over the
// destination pixel in non-premultiplied space.
func blendOver(dst *image.NRGBA, x, y int, c color.NRGBA, coverage float64) {
	i := dst.PixOffset(x, y)
	sa := float64(c.A) / 255 * coverage
	da := float64(dst.Pix[i+3]) / 255
	oa := sa + da*(1-sa)
	if oa <= 0 {
		return
	}
	mix := func(s, d uint8) uint8 {
		return clamp255((float64(s)*sa + float64(d)*da*(1-sa)) / oa)
	}
	dst.Pix[i] = mix(c.R, dst.Pix[i])
	dst.Pix[i+1] = mix(c.G, dst.Pix[i+1])
	dst.Pix[i+2] = mix(c.B, dst.Pix[i+2])
	dst.Pix[i+3] = clamp255(oa * 255)
}

// TextureShader samples tex over the rectangle.
func TextureShader(tex *image.NRGBA) Shader {
	return func(u, v float64) color.NRGBA {
		r, g, b, a := SampleBilinear(tex, u, v)
		return color.NRGBA{r, g, b, a}
	}
}

// DiagonalShader is a two-stop gradient along the line from the top-left
// corner (from) to the bottom-right corner (to) of a w×h rectangle.
func DiagonalShader(from, to color.NRGBA, w, h float64) Shader {
	ku := 0.5
	if d := w*w + h*h; d > 0 {
		ku = w * w / d
	}
	kv := 1 - ku
	return func(u, v float64) color.NRGBA {
		t := u*ku + v*kv
		return color.NRGBA{
			lerp8(from.R, to.R, t),
			lerp8(from.G, to.G, t),
			lerp8(from.B, to.B, t),
			lerp8(from.A, to.A, t),
		}
	}
}

func lerp8(a, b uint8, t float64) uint8 {
	return clamp255(float64(a) + (float64(b)-float64(a))*t)
}

func clamp255(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
