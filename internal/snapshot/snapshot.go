// Package snapshot exports a still image of the try-on: the raw camera
// frame at native resolution with the artwork placement recomputed in
// frame pixels.
package snapshot

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"strconv"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"ar-tryon/internal/artwork"
	"ar-tryon/internal/camera"
	"ar-tryon/internal/compositor"
	"ar-tryon/internal/mathutil"
	"ar-tryon/internal/postprocess"
	"ar-tryon/internal/raster"
	"ar-tryon/internal/transform"
)

// BaseName is the download name without extension.
const BaseName = "ar-preview"

// Format selects the encoded output.
type Format string

const (
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
)

// ParseFormat accepts "png" and "webp"; empty means png.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatPNG:
		return FormatPNG, nil
	case FormatWebP:
		return FormatWebP, nil
	}
	return "", fmt.Errorf("snapshot: unknown format %q", s)
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == FormatWebP {
		return "image/webp"
	}
	return "image/png"
}

// Fidelity selects how the artwork is drawn into the export.
type Fidelity string

const (
	// Approximate paints a two-stop diagonal gradient from the artwork's
	// colors, matching the storefront's historical export.
	Approximate Fidelity = "approximate"
	// Exact paints the same artwork content as the live preview.
	Exact Fidelity = "exact"
)

// ParseFidelity accepts "approximate" and "exact"; empty means approximate.
func ParseFidelity(s string) (Fidelity, error) {
	switch Fidelity(s) {
	case "", Approximate:
		return Approximate, nil
	case Exact:
		return Exact, nil
	}
	return "", fmt.Errorf("snapshot: unknown fidelity %q", s)
}

// Options configures an Exporter.
type Options struct {
	Format   Format
	Fidelity Fidelity
	// Raster size used when no frame is available.
	FallbackWidth  int
	FallbackHeight int
	// Caption stamps the artwork id and price in the bottom-left corner.
	Caption bool
}

// DefaultOptions returns png, approximate, 1280×720 fallback, no caption.
func DefaultOptions() Options {
	return Options{
		Format:         FormatPNG,
		Fidelity:       Approximate,
		FallbackWidth:  camera.DefaultWidth,
		FallbackHeight: camera.DefaultHeight,
	}
}

// Request is everything one export needs.
type Request struct {
	// Frame is the current camera frame; nil when there is none.
	Frame   image.Image
	Facing  camera.FacingMode
	Artwork artwork.Reference
	State   transform.State
	// Display is the displayed size of the preview element. Translation is
	// expressed in these units.
	Display image.Point
}

// Snapshot is an exported image ready for download.
type Snapshot struct {
	Name        string
	ContentType string
	Format      Format
	Image       *image.NRGBA
}

// Encode writes the snapshot in its format.
func (s *Snapshot) Encode(w io.Writer) error {
	var err error
	switch s.Format {
	case FormatWebP:
		err = nativewebp.Encode(w, s.Image, nil)
	default:
		err = png.Encode(w, s.Image)
	}
	if err != nil {
		return fmt.Errorf("snapshot: encode %s: %w", s.Name, err)
	}
	return nil
}

// Bytes encodes the snapshot into memory.
func (s *Snapshot) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := s.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Exporter produces snapshots.
type Exporter struct {
	opts     Options
	resolver artwork.Resolver
}

// NewExporter creates an Exporter. Zero option fields take defaults.
func NewExporter(opts Options, resolver artwork.Resolver) *Exporter {
	def := DefaultOptions()
	if opts.Format == "" {
		opts.Format = def.Format
	}
	if opts.Fidelity == "" {
		opts.Fidelity = def.Fidelity
	}
	if opts.FallbackWidth <= 0 || opts.FallbackHeight <= 0 {
		opts.FallbackWidth, opts.FallbackHeight = def.FallbackWidth, def.FallbackHeight
	}
	return &Exporter{opts: opts, resolver: resolver}
}

// Options returns the effective options.
func (e *Exporter) Options() Options { return e.opts }

// Placement is the overlay rectangle in output pixels.
type Placement struct {
	Matrix mathutil.Mat3
	Width  float64
	Height float64
}

// Place computes where the overlay lands on an outW×outH raster. The
// translation is rescaled from display units into output pixels per axis.
func Place(outW, outH int, display image.Point, s transform.State) Placement {
	kx, ky := 1.0, 1.0
	if display.X > 0 {
		kx = float64(outW) / float64(display.X)
	}
	if display.Y > 0 {
		ky = float64(outH) / float64(display.Y)
	}
	w, h := compositor.Footprint(float64(outW))
	center := mathutil.Vec2{X: float64(outW) / 2, Y: float64(outH) / 2}
	return Placement{Matrix: s.MatrixScaled(center, kx, ky), Width: w, Height: h}
}

// Export renders req into a Snapshot. It never fails; a missing frame
// exports over a plain background at the fallback size.
func (e *Exporter) Export(req Request) *Snapshot {
	var dst *image.NRGBA
	if req.Frame != nil && !req.Frame.Bounds().Empty() {
		dst = postprocess.Capture(req.Frame, req.Facing.Mirrored())
	} else {
		dst = postprocess.Fill(e.opts.FallbackWidth, e.opts.FallbackHeight, color.NRGBA{0, 0, 0, 255})
	}
	size := dst.Bounds().Size()

	p := Place(size.X, size.Y, req.Display, req.State)
	raster.FillQuad(dst, p.Matrix, p.Width, p.Height, e.shader(req.Artwork, p))

	if e.opts.Caption {
		stamp(dst, caption(req.Artwork))
	}

	return &Snapshot{
		Name:        BaseName + "." + string(e.opts.Format),
		ContentType: e.opts.Format.ContentType(),
		Format:      e.opts.Format,
		Image:       dst,
	}
}

func (e *Exporter) shader(art artwork.Reference, p Placement) raster.Shader {
	if e.opts.Fidelity == Exact {
		tex := art.Render(max(int(p.Width+0.5), 1), max(int(p.Height+0.5), 1), e.resolver)
		return raster.TextureShader(tex)
	}
	from, to := art.TwoStop(e.resolver)
	return raster.DiagonalShader(from, to, p.Width, p.Height)
}

// basicfont only covers Latin-1, so the caption sticks to id and price.
func caption(art artwork.Reference) string {
	return "#" + art.ID + "  " + strconv.Itoa(art.Price) + " RUB"
}

func stamp(dst *image.NRGBA, text string) {
	face := basicfont.Face7x13
	b := dst.Bounds()
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.NRGBA{255, 255, 255, 230}),
		Face: face,
		Dot:  fixed.P(b.Min.X+8, b.Max.Y-8),
	}
	// Backing strip for legibility over bright frames.
	adv := d.MeasureString(text).Ceil()
	strip := image.Rect(b.Min.X+4, b.Max.Y-8-face.Ascent-4, b.Min.X+12+adv, b.Max.Y-4).Intersect(b)
	for y := strip.Min.Y; y < strip.Max.Y; y++ {
		for x := strip.Min.X; x < strip.Max.X; x++ {
			c := dst.NRGBAAt(x, y)
			dst.SetNRGBA(x, y, color.NRGBA{c.R / 3, c.G / 3, c.B / 3, c.A})
		}
	}
	d.DrawString(text)
}
