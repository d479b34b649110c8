package fonts

import (
	"image"
	"image/draw"

	"github.com/anthonynsimon/bild/convolution"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/nbarena/gmpatch/canvas"
)

const (
	// captionMargin is subtracted from the image width before wrapping.
	captionMargin = 4

	// defaultCaptionY is the top of the first line as a fraction of the
	// image height.
	defaultCaptionY = 0.42
)

var outlineWeights = []float64{
	0, 1, 2, 1, 0,
	1, 2, 4, 2, 1,
	2, 4, 8, 4, 1,
	1, 2, 4, 2, 1,
	0, 1, 2, 1, 0,
}

// Weights are divided by outlineScale times their sum.
const outlineScale = 0.05

func outlineKernel() *convolution.Kernel {
	var sum float64
	for _, v := range outlineWeights {
		sum += v
	}

	k := convolution.NewKernel(5, 5)
	for i, v := range outlineWeights {
		k.Matrix[i] = v / (outlineScale * sum)
	}
	return k
}

// Caption is text to overlay on one sprite frame. Y, when set, overrides
// the default top of the first line.
type Caption struct {
	Text string
	Y    *int
}

type Captioner struct {
	Face   font.Face
	kernel *convolution.Kernel
}

func NewCaptioner(face font.Face) *Captioner {
	return &Captioner{Face: face, kernel: outlineKernel()}
}

// Render returns a copy of base with the caption drawn in white over a
// black halo. Lines that would reach the bottom edge are dropped.
func (c *Captioner) Render(base *image.NRGBA, caption Caption) *image.NRGBA {
	w, h := base.Rect.Dx(), base.Rect.Dy()
	lines := Wrap(caption.Text, w-captionMargin, c.Face)

	y := int(float64(h) * defaultCaptionY)
	if caption.Y != nil {
		y = *caption.Y
	}

	layer := image.NewRGBA(image.Rect(0, 0, w, h))
	c.drawLines(layer, lines, image.Black, y, w, h)

	overlay := convolution.Convolve(layer, c.kernel, nil)
	c.drawLines(overlay, lines, image.White, y, w, h)

	out := canvas.Clone(base)
	draw.Draw(out, out.Rect, overlay, overlay.Rect.Min, draw.Over)
	return out
}

func (c *Captioner) drawLines(dst draw.Image, lines []string, ink image.Image, y, width, height int) {
	m := c.Face.Metrics()
	lineHeight := (m.Ascent + m.Descent).Ceil()

	d := &font.Drawer{Dst: dst, Src: ink, Face: c.Face}
	for _, line := range lines {
		if y+lineHeight >= height {
			break
		}
		x := (width - measure(c.Face, line)) / 2
		d.Dot = fixed.P(x, y+m.Ascent.Ceil())
		d.DrawString(line)
		y += lineHeight
	}
}
