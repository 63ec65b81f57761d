// Package artwork describes the catalog artwork placed on the camera feed.
// A Reference is read-only to the AR core; it carries either a CSS
// gradient descriptor or a bitmap path as its visual content.
package artwork

import (
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/draw"
)

// Visual is the artwork's visual content. Exactly one of Gradient or
// Bitmap is set.
type Visual struct {
	Raw      string
	Gradient *Gradient
	Bitmap   string
}

// ParseVisual classifies a catalog image field: a linear-gradient()
// descriptor or a bitmap path/URL.
func ParseVisual(raw string) (Visual, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(strings.ToLower(raw), "linear-gradient(") {
		g, err := ParseGradient(raw)
		if err != nil {
			return Visual{}, err
		}
		return Visual{Raw: raw, Gradient: &g}, nil
	}
	return Visual{Raw: raw, Bitmap: raw}, nil
}

// Reference is the artwork selected for try-on.
type Reference struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Technique   string `json:"technique,omitempty"`
	Price       int    `json:"price"`
	Image       string `json:"image"`

	Visual Visual `json:"-"`
}

// TwoStop returns the representative two-color treatment of the artwork.
// Bitmaps without a resolver fall back to a neutral grey pair.
func (r Reference) TwoStop(res Resolver) (color.NRGBA, color.NRGBA) {
	if r.Visual.Gradient != nil {
		return r.Visual.Gradient.TwoStop()
	}
	if res != nil {
		if img := res.Resolve(r.Visual.Bitmap); img != nil {
			c := AverageColor(img)
			return c, darken(c, 0.75)
		}
	}
	return color.NRGBA{160, 160, 170, 255}, color.NRGBA{110, 110, 120, 255}
}

// Render draws the true artwork content at w×h. Bitmaps are scaled to fill
// the box; a missing bitmap renders its two-stop approximation.
func (r Reference) Render(w, h int, res Resolver) *image.NRGBA {
	if w <= 0 || h <= 0 {
		return image.NewNRGBA(image.Rect(0, 0, 0, 0))
	}
	if r.Visual.Gradient != nil {
		return r.Visual.Gradient.Render(w, h)
	}
	if res != nil {
		if src := res.Resolve(r.Visual.Bitmap); src != nil {
			dst := image.NewNRGBA(image.Rect(0, 0, w, h))
			draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
			return dst
		}
	}
	a, b := r.TwoStop(nil)
	return Gradient{Angle: 135, Stops: []Stop{{a, 0}, {b, 1}}}.Render(w, h)
}

// AverageColor returns the mean opaque color of img.
func AverageColor(img *image.NRGBA) color.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return color.NRGBA{160, 160, 170, 255}
	}
	var sumR, sumG, sumB float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := img.PixOffset(x, y)
			sumR += float64(img.Pix[i])
			sumG += float64(img.Pix[i+1])
			sumB += float64(img.Pix[i+2])
		}
	}
	n := float64(w * h)
	return color.NRGBA{uint8(sumR/n + 0.5), uint8(sumG/n + 0.5), uint8(sumB/n + 0.5), 255}
}

func darken(c color.NRGBA, k float64) color.NRGBA {
	return color.NRGBA{uint8(float64(c.R) * k), uint8(float64(c.G) * k), uint8(float64(c.B) * k), c.A}
}
