package artwork

import (
	"fmt"
	"image"
	"image/color"
	stddraw "image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/ftrvxmtrx/tga"
	_ "golang.org/x/image/webp"
)

// Resolver resolves a bitmap reference to a decoded image, or nil.
type Resolver interface {
	Resolve(ref string) *image.NRGBA
}

// LoadBitmap reads and decodes a PNG, JPEG, TGA or WebP file.
func LoadBitmap(path string) (*image.NRGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("artwork: open %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("artwork: decode %s: %w", path, err)
	}
	return ToNRGBA(img), nil
}

// ToNRGBA converts any image to NRGBA with bounds starting at (0, 0).
func ToNRGBA(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	switch src.(type) {
	case *image.YCbCr, *image.Gray:
		stddraw.Draw(dst, dst.Bounds(), src, b.Min, stddraw.Src)
	default:
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				c := color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
				i := dst.PixOffset(x, y)
				dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2], dst.Pix[i+3] = c.R, c.G, c.B, c.A
			}
		}
	}
	return dst
}

// Cache is a concurrency-safe bitmap cache rooted at a directory. Catalog
// paths like "/uploads/123.png" resolve relative to Root.
type Cache struct {
	Root string

	mu    sync.RWMutex
	items map[string]*image.NRGBA
}

// NewCache creates a cache rooted at root.
func NewCache(root string) *Cache {
	return &Cache{Root: root, items: make(map[string]*image.NRGBA)}
}

// Resolve loads and caches a bitmap. Failed loads are cached as nil.
func (c *Cache) Resolve(ref string) *image.NRGBA {
	path, ok := c.path(ref)
	if !ok {
		return nil
	}

	c.mu.RLock()
	if img, exists := c.items[path]; exists {
		c.mu.RUnlock()
		return img
	}
	c.mu.RUnlock()

	img, _ := LoadBitmap(path)

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, exists := c.items[path]; exists {
		return existing
	}
	c.items[path] = img
	return img
}

func (c *Cache) path(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.Contains(ref, "://") {
		return "", false
	}
	clean := filepath.Clean("/" + filepath.FromSlash(ref))
	return filepath.Join(c.Root, clean), true
}
