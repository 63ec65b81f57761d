package artwork

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"regexp"
	"strconv"
	"strings"

	"ar-tryon/internal/mathutil"
)

// Stop is one color stop; Offset is in [0, 1].
type Stop struct {
	Color  color.NRGBA
	Offset float64
}

// Gradient is a CSS-style linear gradient. Angle follows CSS: 0deg points
// up, 90deg points right, 135deg runs top-left to bottom-right.
type Gradient struct {
	Angle float64
	Stops []Stop
}

var (
	gradientRe = regexp.MustCompile(`(?i)^\s*linear-gradient\((.*)\)\s*$`)
	angleRe    = regexp.MustCompile(`(?i)^\s*(-?[0-9.]+)deg\s*$`)
	stopRe     = regexp.MustCompile(`(?i)^\s*(#[0-9a-f]{3,8})\s*(?:(-?[0-9.]+)%)?\s*$`)
)

// ParseGradient parses "linear-gradient(135deg, #ff6b6b 0%, #c92a2a 100%)".
// Keyword directions are limited to "to right"/"to bottom" and friends;
// stops without a position are spread evenly.
func ParseGradient(s string) (Gradient, error) {
	m := gradientRe.FindStringSubmatch(s)
	if m == nil {
		return Gradient{}, fmt.Errorf("artwork: not a linear-gradient: %q", s)
	}
	parts := strings.Split(m[1], ",")
	g := Gradient{Angle: 180}

	if am := angleRe.FindStringSubmatch(parts[0]); am != nil {
		a, err := strconv.ParseFloat(am[1], 64)
		if err != nil {
			return Gradient{}, fmt.Errorf("artwork: gradient angle %q: %w", am[1], err)
		}
		g.Angle = a
		parts = parts[1:]
	} else if a, ok := keywordAngle(parts[0]); ok {
		g.Angle = a
		parts = parts[1:]
	}

	explicit := make([]bool, len(parts))
	for i, p := range parts {
		sm := stopRe.FindStringSubmatch(p)
		if sm == nil {
			return Gradient{}, fmt.Errorf("artwork: gradient stop %q", strings.TrimSpace(p))
		}
		c, err := ParseHex(sm[1])
		if err != nil {
			return Gradient{}, err
		}
		st := Stop{Color: c}
		if sm[2] != "" {
			v, err := strconv.ParseFloat(sm[2], 64)
			if err != nil {
				return Gradient{}, fmt.Errorf("artwork: gradient stop offset %q: %w", sm[2], err)
			}
			st.Offset = mathutil.Clamp(v/100, 0, 1)
			explicit[i] = true
		}
		g.Stops = append(g.Stops, st)
	}
	if len(g.Stops) < 2 {
		return Gradient{}, fmt.Errorf("artwork: gradient needs two stops: %q", s)
	}
	for i := range g.Stops {
		if !explicit[i] {
			g.Stops[i].Offset = float64(i) / float64(len(g.Stops)-1)
		}
	}
	return g, nil
}

func keywordAngle(s string) (float64, bool) {
	switch strings.Join(strings.Fields(strings.ToLower(s)), " ") {
	case "to top":
		return 0, true
	case "to right":
		return 90, true
	case "to bottom":
		return 180, true
	case "to left":
		return 270, true
	case "to bottom right":
		return 135, true
	case "to top right":
		return 45, true
	case "to bottom left":
		return 225, true
	case "to top left":
		return 315, true
	}
	return 0, false
}

// ParseHex parses #rgb, #rgba, #rrggbb or #rrggbbaa.
func ParseHex(s string) (color.NRGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 || len(h) == 4 {
		var b strings.Builder
		for _, r := range h {
			b.WriteRune(r)
			b.WriteRune(r)
		}
		h = b.String()
	}
	if len(h) == 6 {
		h += "ff"
	}
	if len(h) != 8 {
		return color.NRGBA{}, fmt.Errorf("artwork: bad color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("artwork: bad color %q: %w", s, err)
	}
	return color.NRGBA{uint8(v >> 24), uint8(v >> 16), uint8(v >> 8), uint8(v)}, nil
}

// TwoStop reduces g to its first and last stop.
func (g Gradient) TwoStop() (color.NRGBA, color.NRGBA) {
	if len(g.Stops) == 0 {
		return color.NRGBA{160, 160, 170, 255}, color.NRGBA{160, 160, 170, 255}
	}
	return g.Stops[0].Color, g.Stops[len(g.Stops)-1].Color
}

// At returns the gradient color at t in [0, 1].
func (g Gradient) At(t float64) color.NRGBA {
	if len(g.Stops) == 0 {
		return color.NRGBA{160, 160, 170, 255}
	}
	if t <= g.Stops[0].Offset {
		return g.Stops[0].Color
	}
	for i := 1; i < len(g.Stops); i++ {
		a, b := g.Stops[i-1], g.Stops[i]
		if t <= b.Offset {
			span := b.Offset - a.Offset
			if span <= 0 {
				return b.Color
			}
			return Lerp(a.Color, b.Color, (t-a.Offset)/span)
		}
	}
	return g.Stops[len(g.Stops)-1].Color
}

// Param returns the gradient parameter for pixel (x, y) of a w×h box, using
// the CSS gradient-line length so that corners hit the end stops exactly.
func (g Gradient) Param(x, y, w, h float64) float64 {
	rad := mathutil.Deg2Rad(g.Angle)
	dx, dy := math.Sin(rad), -math.Cos(rad)
	length := math.Abs(w*dx) + math.Abs(h*dy)
	if length == 0 {
		return 0
	}
	t := ((x-w/2)*dx+(y-h/2)*dy)/length + 0.5
	return mathutil.Clamp(t, 0, 1)
}

// Render draws the gradient into a new w×h image.
func (g Gradient) Render(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := g.At(g.Param(float64(x)+0.5, float64(y)+0.5, float64(w), float64(h)))
			i := img.PixOffset(x, y)
			img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
		}
	}
	return img
}

// Lerp mixes a and b; t=0 returns a.
func Lerp(a, b color.NRGBA, t float64) color.NRGBA {
	t = mathutil.Clamp(t, 0, 1)
	mix := func(p, q uint8) uint8 {
		return uint8(float64(p) + (float64(q)-float64(p))*t + 0.5)
	}
	return color.NRGBA{mix(a.R, b.R), mix(a.G, b.G), mix(a.B, b.B), mix(a.A, b.A)}
}
