package ocr

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // registers the webp decoder for imaging.Open
)

// Pass names one preprocessing variant fed to the engine.
type Pass string

const (
	PassGray   Pass = "gray"
	PassSharp  Pass = "sharp"
	PassBinary Pass = "binary"
)

// DefaultPasses is the pass set used when none is configured.
var DefaultPasses = []Pass{PassGray, PassSharp, PassBinary}

// sharpMinHeight is the height small scans are upscaled to before sharpening.
const sharpMinHeight = 1600

// ParsePasses validates configured pass names, keeping their order.
func ParsePasses(names []string) ([]Pass, error) {
	if len(names) == 0 {
		return DefaultPasses, nil
	}
	out := make([]Pass, 0, len(names))
	seen := map[Pass]bool{}
	for _, n := range names {
		p := Pass(strings.ToLower(strings.TrimSpace(n)))
		switch p {
		case PassGray, PassSharp, PassBinary:
		default:
			return nil, fmt.Errorf("unknown OCR pass %q (want gray, sharp or binary)", n)
		}
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out, nil
}

// Apply renders img through the pass.
func (p Pass) Apply(img image.Image) image.Image {
	gray := imaging.Grayscale(img)
	switch p {
	case PassSharp:
		if gray.Bounds().Dy() < sharpMinHeight {
			gray = imaging.Resize(gray, 0, sharpMinHeight, imaging.Lanczos)
		}
		return imaging.Sharpen(gray, 1.0)
	case PassBinary:
		return otsuBinarize(imaging.Blur(gray, 0.85))
	default:
		return gray
	}
}

// otsuBinarize thresholds a grayscale NRGBA image at the Otsu level.
func otsuBinarize(img *image.NRGBA) *image.Gray {
	b := img.Bounds()
	var hist [256]int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[(y-b.Min.Y)*img.Stride:]
		for x := 0; x < b.Dx(); x++ {
			hist[row[x*4]]++
		}
	}
	t := otsuThreshold(hist, b.Dx()*b.Dy())

	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[(y-b.Min.Y)*img.Stride:]
		for x := 0; x < b.Dx(); x++ {
			v := color.Gray{Y: 0}
			if int(row[x*4]) > t {
				v.Y = 255
			}
			out.SetGray(b.Min.X+x, y, v)
		}
	}
	return out
}

// otsuThreshold returns the level maximizing between-class variance.
func otsuThreshold(hist [256]int, total int) int {
	if total == 0 {
		return 127
	}
	var sum float64
	for i, c := range hist {
		sum += float64(i * c)
	}
	var sumB, wB float64
	best, level := -1.0, 0
	for i, c := range hist {
		wB += float64(c)
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(i * c)
		mB := sumB / wB
		mF := (sum - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > best {
			best, level = between, i
		}
	}
	return level
}
