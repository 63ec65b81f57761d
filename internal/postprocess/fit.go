package postprocess

import (
	"image"
	"image/color"
	stddraw "image/draw"

	"golang.org/x/image/draw"
)

// Capture copies src into a new NRGBA at its native size, mirrored when
// mirror is set. Bounds of the result start at (0, 0).
func Capture(src image.Image, mirror bool) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	stddraw.Draw(dst, dst.Bounds(), src, b.Min, stddraw.Src)
	if mirror {
		return FlipHorizontal(dst)
	}
	return dst
}

// CoverFit scales src to fill a w×h canvas preserving aspect ratio and
// crops the overflow evenly, like CSS object-fit: cover.
func CoverFit(src image.Image, w, h int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	sb := src.Bounds()
	sw, sh := sb.Dx(), sb.Dy()
	if sw == 0 || sh == 0 || w <= 0 || h <= 0 {
		return dst
	}

	// Source rectangle with the destination aspect ratio.
	cropW, cropH := sw, sw*h/w
	if cropH > sh {
		cropW, cropH = sh*w/h, sh
	}
	offX := sb.Min.X + (sw-cropW)/2
	offY := sb.Min.Y + (sh-cropH)/2
	sr := image.Rect(offX, offY, offX+cropW, offY+cropH)

	if cropW == w && cropH == h {
		stddraw.Draw(dst, dst.Bounds(), src, sr.Min, stddraw.Src)
		return dst
	}
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, sr, draw.Src, nil)
	return dst
}

// Fill returns a w×h canvas filled with c.
func Fill(w, h int, c color.NRGBA) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	stddraw.Draw(dst, dst.Bounds(), &image.Uniform{C: c}, image.Point{}, stddraw.Src)
	return dst
}
