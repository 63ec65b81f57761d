package camera

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	_ "github.com/ftrvxmtrx/tga"
	_ "golang.org/x/image/webp"
)

var frameExts = []string{".png", ".jpg", ".jpeg", ".tga", ".webp"}

// DirDevice serves one still frame per facing mode from a directory:
// user.png / environment.jpg and so on. A missing file means there is no
// camera with that facing.
type DirDevice struct {
	Dir string
}

// Open implements Device.
func (d DirDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, ok := d.find(c.Facing)
	if !ok {
		return nil, fmt.Errorf("%w: no %s frame in %s", ErrNoDevice, c.Facing, d.Dir)
	}
	img, err := DecodeFile(path)
	if err != nil {
		return nil, err
	}
	return StillStream(img), nil
}

func (d DirDevice) find(f FacingMode) (string, bool) {
	for _, ext := range frameExts {
		p := filepath.Join(d.Dir, string(f)+ext)
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

// DecodeFile decodes a PNG, JPEG, TGA or WebP still.
func DecodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("camera: open %s: %w", path, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("camera: decode %s: %w", path, err)
	}
	return img, nil
}

// StillStream wraps a decoded image as a single-track stream.
func StillStream(img image.Image) Stream {
	return &stillStream{img: img, track: newTrack(nil)}
}

type stillStream struct {
	img   image.Image
	track *memTrack
}

func (s *stillStream) Tracks() []Track { return []Track{s.track} }

func (s *stillStream) Size() image.Point { return s.img.Bounds().Size() }

func (s *stillStream) Frame() (image.Image, error) {
	if !s.track.Live() {
		return nil, ErrNoFrame
	}
	return s.img, nil
}
