package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	DefaultSize  = 224
	DefaultAlpha = 1.2
	DefaultBeta  = 10.0

	// DefaultMaxPixels rejects decompression bombs before decoding.
	DefaultMaxPixels = 2 * 89478485

	channels = 3
)

var ErrInvalidImage = errors.New("invalid image")

// Preprocessor turns an arbitrary photo into the square NHWC tensor the
// ripeness model was trained on. The steps and their order must not change
// without re-exporting the model.
type Preprocessor struct {
	Size  int
	Alpha float64
	Beta  float64
	// MaxPixels bounds width*height of encoded input; <= 0 disables the check.
	MaxPixels int64

	lut [256]uint8
}

func New(size int, alpha, beta float64) *Preprocessor {
	p := &Preprocessor{Size: size, Alpha: alpha, Beta: beta, MaxPixels: DefaultMaxPixels}
	for v := 0; v < 256; v++ {
		p.lut[v] = scaleAbs(uint8(v), alpha, beta)
	}
	return p
}

func Default() *Preprocessor {
	return New(DefaultSize, DefaultAlpha, DefaultBeta)
}

// Process decodes data and runs the full pipeline. Any decode failure is
// returned wrapped in ErrInvalidImage.
func (p *Preprocessor) Process(data []byte) (*Tensor, error) {
	if len(data) == 0 {
		return nil, invalid(errors.New("empty input"))
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, invalid(err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); p.MaxPixels > 0 && pixels > p.MaxPixels {
		return nil, invalid(fmt.Errorf("image %dx%d exceeds the %d pixel limit", cfg.Width, cfg.Height, p.MaxPixels))
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, invalid(err)
	}

	return p.ProcessImage(img)
}

func (p *Preprocessor) ProcessImage(img image.Image) (*Tensor, error) {
	if p.Size <= 0 {
		return nil, fmt.Errorf("target size must be positive, got %d", p.Size)
	}
	if img == nil {
		return nil, invalid(errors.New("nil image"))
	}

	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w <= 0 || h <= 0 {
		return nil, invalid(fmt.Errorf("image has zero dimension (%dx%d)", w, h))
	}

	newW, newH := ScaledSize(w, h, p.Size)
	if newW <= 0 || newH <= 0 {
		return nil, invalid(fmt.Errorf("image %dx%d is too narrow to scale to %d", w, h, p.Size))
	}

	rgb := toRGB(img)
	// two-tap bilinear without a widened kernel on downscale
	resized := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.ApproxBiLinear.Scale(resized, resized.Bounds(), rgb, rgb.Bounds(), draw.Src, nil)

	top, _, left, _ := Padding(newW, newH, p.Size)
	canvas := imaging.New(p.Size, p.Size, color.NRGBA{A: 255})
	canvas = imaging.Paste(canvas, resized, image.Pt(left, top))

	adjusted := adjust.Apply(canvas, func(c color.RGBA) color.RGBA {
		return color.RGBA{R: p.lut[c.R], G: p.lut[c.G], B: p.lut[c.B], A: 255}
	})

	t := NewTensor(p.Size)
	for y := 0; y < p.Size; y++ {
		for x := 0; x < p.Size; x++ {
			src := adjusted.PixOffset(x, y)
			dst := (y*p.Size + x) * channels
			t.Data[dst] = float32(adjusted.Pix[src])
			t.Data[dst+1] = float32(adjusted.Pix[src+1])
			t.Data[dst+2] = float32(adjusted.Pix[src+2])
		}
	}

	return t, nil
}

// ScaledSize returns the resized width and height that make the longer side
// exactly size. The shorter side is truncated, not rounded.
func ScaledSize(w, h, size int) (newW, newH int) {
	if h > w {
		return int(float64(w*size) / float64(h)), size
	}
	return size, int(float64(h*size) / float64(w))
}

// Padding splits the deficit on each axis; the smaller half goes top/left.
func Padding(newW, newH, size int) (top, bottom, left, right int) {
	dh := size - newH
	dw := size - newW
	top, left = dh/2, dw/2
	return top, dh - top, left, dw - left
}

// toRGB drops alpha the way a plain RGB conversion does: colour channels are
// taken unpremultiplied and every pixel becomes opaque.
func toRGB(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 255
	}
	return dst
}

// scaleAbs is saturate(|v*alpha + beta|) with half-to-even rounding.
func scaleAbs(v uint8, alpha, beta float64) uint8 {
	f := math.RoundToEven(math.Abs(float64(v)*alpha + beta))
	if f > 255 {
		return 255
	}
	return uint8(f)
}

func invalid(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalidImage, err)
}
