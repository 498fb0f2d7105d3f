// Package plot renders evaluation traces as GIF animations: one frame per
// adaptation step, task targets in gray, model estimate in black.
package plot

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"io"
	"math"

	"github.com/chewxy/math32"
	"github.com/golang/freetype/truetype"
	"github.com/gorgonia/reptile"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/math/fixed"
)

var regular *truetype.Font

const (
	dpi        = 144.0
	fontsize   = 8.0
	lineheight = 1.2
	frameDelay = 10 // hundredths of a second
)

func init() {
	var err error
	if regular, err = truetype.Parse(gomono.TTF); err != nil {
		panic(err)
	}
}

var globPalette = color.Palette{
	color.Gray{0},
	color.Gray{160},
	color.Gray{253},
}

const (
	inkIdx    = 0 // model estimate
	targetIdx = 1 // task ground truth
	paperIdx  = 2
)

// Encoder renders frames of an evaluation trace into an animated GIF,
// according to the reptile.TraceEncoder interface.
type Encoder struct {
	H, W int
	font.Drawer

	out *gif.GIF
	io.Writer
	face font.Face

	padH, padW int // padding so the curves don't touch the borders

	lo, hi      float32 // value range of the very first frame, kept for the whole trace
	initialized bool
}

// NewEncoder with height and width.
func NewEncoder(h, w int) *Encoder {
	return &Encoder{
		H:    h,
		W:    w,
		padH: 16,
		padW: 8,

		Drawer: font.Drawer{
			Src: image.Black,
		},
		out: &gif.GIF{LoopCount: -1},
	}
}

// Encode renders one adaptation step.
func (enc *Encoder) Encode(f reptile.Frame) error {
	targets := f.Targets()
	estimate := f.Estimate()
	if len(estimate) != len(targets) {
		return fmt.Errorf("frame has %d estimates for %d targets", len(estimate), len(targets))
	}

	if !enc.initialized {
		// lazy init: the value range is fixed on the first frame so that the
		// animation doesn't rescale between steps
		enc.face = truetype.NewFace(regular, &truetype.Options{
			Size:    fontsize,
			DPI:     dpi,
			Hinting: font.HintingFull,
		})
		enc.Drawer.Src = image.Black
		enc.Drawer.Face = enc.face

		enc.lo, enc.hi = valueRange(targets, estimate)
		enc.initialized = true
	}

	im := image.NewPaletted(image.Rect(0, 0, enc.W, enc.H), globPalette)
	draw.Draw(im, im.Bounds(), image.White, image.ZP, draw.Src)

	for i := range targets {
		enc.dot(im, i, len(targets), targets[i], targetIdx)
	}
	for i := range estimate {
		enc.dot(im, i, len(estimate), estimate[i], inkIdx)
	}

	dy := int(math.Ceil(fontsize * lineheight * dpi / 72))
	enc.Dst = im
	enc.Dot = fixed.P(enc.padW, enc.H-enc.padH+dy)
	enc.DrawString(fmt.Sprintf("%s, step %d", f.Name(), f.Step()))

	enc.out.Image = append(enc.out.Image, im)
	enc.out.Delay = append(enc.out.Delay, frameDelay)
	return nil
}

// Flush writes the gif into the writer.
func (enc *Encoder) Flush() error { return gif.EncodeAll(enc.Writer, enc.out) }

// dot plots the i-th of n values as a 2x2 point.
func (enc *Encoder) dot(im *image.Paletted, i, n int, v float32, idx uint8) {
	if math32.IsNaN(v) || math32.IsInf(v, 0) {
		return
	}

	span := enc.hi - enc.lo
	if span == 0 {
		span = 1
	}
	plotW := enc.W - 2*enc.padW
	plotH := enc.H - 2*enc.padH

	x := enc.padW
	if n > 1 {
		x += int(float32(i) / float32(n-1) * float32(plotW-2))
	}
	y := enc.padH + int((enc.hi-v)/span*float32(plotH-2))
	if y < 0 {
		y = 0
	}
	if y > enc.H-2 {
		y = enc.H - 2
	}

	im.SetColorIndex(x, y, idx)
	im.SetColorIndex(x+1, y, idx)
	im.SetColorIndex(x, y+1, idx)
	im.SetColorIndex(x+1, y+1, idx)
}

func valueRange(targets, estimate []float32) (lo, hi float32) {
	lo, hi = math32.Inf(1), math32.Inf(-1)
	for _, vs := range [][]float32{targets, estimate} {
		for _, v := range vs {
			if math32.IsNaN(v) || math32.IsInf(v, 0) {
				continue
			}
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	if math32.IsInf(lo, 0) || math32.IsInf(hi, 0) {
		return 0, 1
	}
	return lo, hi
}
