// Package postprocess holds whole-image operations applied to camera
// frames before compositing.
package postprocess

import "image"

// FlipHorizontal mirrors an image left-to-right. The result's bounds start
// at (0, 0).
func FlipHorizontal(img *image.NRGBA) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		srcOff := img.PixOffset(b.Min.X, b.Min.Y+y)
		dstOff := y * out.Stride
		for x := 0; x < w; x++ {
			si := srcOff + (w-1-x)*4
			di := dstOff + x*4
			copy(out.Pix[di:di+4], img.Pix[si:si+4])
		}
	}
	return out
}
