// Package canvas holds pixel-exact NRGBA helpers for compositing sprites.
package canvas

import (
	"image"
	"image/draw"
)

// NRGBA returns img as a zero-origin *image.NRGBA. img itself is returned
// when it already is one.
func NRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	n := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(n, n.Rect, img, b.Min, draw.Src)
	return n
}

func Clone(img *image.NRGBA) *image.NRGBA {
	c := image.NewNRGBA(img.Rect)
	copy(c.Pix, img.Pix)
	return c
}

// Paste replaces the pixels of dst from point at onward with those of src,
// clipped to both images. Alpha is copied, not blended.
func Paste(dst *image.NRGBA, at image.Point, src *image.NRGBA) {
	r := image.Rectangle{Min: at, Max: at.Add(src.Rect.Size())}.Intersect(dst.Rect)
	if r.Empty() {
		return
	}
	sp := src.Rect.Min.Add(r.Min.Sub(at))

	n := r.Dx() * 4
	for y := 0; y < r.Dy(); y++ {
		di := dst.PixOffset(r.Min.X, r.Min.Y+y)
		si := src.PixOffset(sp.X, sp.Y+y)
		copy(dst.Pix[di:di+n], src.Pix[si:si+n])
	}
}

// CenterPad places src in the middle of a transparent w×h canvas. Odd
// leftovers go to the right and bottom.
func CenterPad(src *image.NRGBA, w, h int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	sw, sh := src.Rect.Dx(), src.Rect.Dy()
	Paste(dst, image.Pt((w-sw)/2, (h-sh)/2), src)
	return dst
}

// FitFiller resizes the canvas around a filler image to w×h. The image is
// centered horizontally. A taller image keeps only its top h rows and
// reports cropped; a shorter one sits on the bottom edge.
func FitFiller(src *image.NRGBA, w, h int) (dst *image.NRGBA, cropped bool) {
	sw, sh := src.Rect.Dx(), src.Rect.Dy()
	if sw == w && sh == h {
		return src, false
	}

	dst = image.NewNRGBA(image.Rect(0, 0, w, h))
	x := (w - sw) / 2
	if sh > h {
		Paste(dst, image.Pt(x, 0), src)
		return dst, true
	}
	Paste(dst, image.Pt(x, h-sh), src)
	return dst, false
}

// FindTrim returns the bounds of the pixels of img with non-zero alpha.
// It is empty when img is fully transparent.
func FindTrim(img *image.NRGBA) image.Rectangle {
	var trim image.Rectangle
	for y := img.Rect.Min.Y; y < img.Rect.Max.Y; y++ {
		first, last := -1, -1
		for x := img.Rect.Min.X; x < img.Rect.Max.X; x++ {
			if img.Pix[img.PixOffset(x, y)+3] != 0 {
				if first < 0 {
					first = x
				}
				last = x
			}
		}
		if first >= 0 {
			trim = trim.Union(image.Rect(first, y, last+1, y+1))
		}
	}
	return trim
}
