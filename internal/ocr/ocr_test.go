package ocr

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeEngine) Recognize(_ context.Context, imagePath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, filepath.Base(imagePath))
	if f.err != nil {
		return "", f.err
	}
	return "text from " + filepath.Base(imagePath), nil
}

// stubRunner records commands and lets a test fake their side effects.
type stubRunner struct {
	calls  [][]string
	effect func(name string, args []string) error
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.calls = append(s.calls, append([]string{name}, args...))
	if s.effect != nil {
		if err := s.effect(name, args); err != nil {
			return nil, []byte("boom"), err
		}
	}
	return nil, nil, nil
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := uint8(230)
			if x%7 == 0 {
				c = 20
			}
			img.Set(x, y, color.NRGBA{R: c, G: c, B: c, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func TestExtract_RunsEveryPassInOrder(t *testing.T) {
	src := filepath.Join(t.TempDir(), "bill.png")
	writePNG(t, src, 40, 30)
	eng := &fakeEngine{}
	e := NewExtractor(Config{}, eng, nil)

	cands, err := e.Extract(context.Background(), src)

	require.NoError(t, err)
	assert.Equal(t, []string{"text from gray.png", "text from sharp.png", "text from binary.png"}, cands)
}

func TestExtract_UndecodableImageYieldsNothing(t *testing.T) {
	src := filepath.Join(t.TempDir(), "bill.jpg")
	require.NoError(t, os.WriteFile(src, []byte("not an image"), 0o644))
	eng := &fakeEngine{}

	cands, err := NewExtractor(Config{}, eng, nil).Extract(context.Background(), src)

	require.NoError(t, err)
	assert.Empty(t, cands)
	assert.Empty(t, eng.calls)
}

func TestExtract_EngineFailingEveryPass(t *testing.T) {
	src := filepath.Join(t.TempDir(), "bill.png")
	writePNG(t, src, 10, 10)
	eng := &fakeEngine{err: errors.New("tesseract missing")}

	_, err := NewExtractor(Config{Passes: []Pass{PassGray}}, eng, nil).Extract(context.Background(), src)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "tesseract missing")
}

func TestExtractDocument_PDFPages(t *testing.T) {
	runner := &stubRunner{effect: func(name string, args []string) error {
		prefix := args[len(args)-1]
		for _, n := range []string{"1", "2"} {
			img := image.NewGray(image.Rect(0, 0, 8, 8))
			f, err := os.Create(prefix + "-" + n + ".png")
			if err != nil {
				return err
			}
			_ = png.Encode(f, img)
			_ = f.Close()
		}
		return nil
	}}
	eng := &fakeEngine{}
	e := NewExtractor(Config{Passes: []Pass{PassGray}}, eng, nil, WithRunner(runner))

	pages, err := e.ExtractDocument(context.Background(), "/bills/scan.PDF")

	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, 1, pages[0].Page)
	assert.Equal(t, 2, pages[1].Page)
	assert.Equal(t, []string{"text from gray.png"}, pages[1].Candidates)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"pdftoppm", "-r", "144", "-png", "/bills/scan.PDF"}, runner.calls[0][:5])
}

func TestExtractDocument_PDFWithoutPages(t *testing.T) {
	e := NewExtractor(Config{}, &fakeEngine{}, nil, WithRunner(&stubRunner{}))

	_, err := e.ExtractDocument(context.Background(), "scan.pdf")

	require.ErrorIs(t, err, ErrNoPages)
}

func TestExtractDocument_HEIC(t *testing.T) {
	runner := &stubRunner{effect: func(name string, args []string) error {
		img := image.NewGray(image.Rect(0, 0, 8, 8))
		f, err := os.Create(args[len(args)-1])
		if err != nil {
			return err
		}
		defer f.Close()
		return png.Encode(f, img)
	}}
	eng := &fakeEngine{}
	e := NewExtractor(Config{HeicConverter: "heif-convert", Passes: []Pass{PassBinary}}, eng, nil, WithRunner(runner))

	pages, err := e.ExtractDocument(context.Background(), "/bills/photo.heic")

	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, 0, pages[0].Page)
	assert.Equal(t, []string{"text from binary.png"}, pages[0].Candidates)
	assert.Equal(t, "heif-convert", runner.calls[0][0])
}

func TestExtractDocument_Unsupported(t *testing.T) {
	_, err := NewExtractor(Config{}, &fakeEngine{}, nil).ExtractDocument(context.Background(), "a.txt")
	require.Error(t, err)
}

func TestCLIEngine_Args(t *testing.T) {
	runner := &stubRunner{}
	eng := CLIEngine{Runner: runner, Language: "eng+hin", TessdataDir: "/td"}

	_, err := eng.Recognize(context.Background(), "/tmp/p.png")

	require.NoError(t, err)
	assert.Equal(t, "tesseract /tmp/p.png stdout -l eng+hin --psm 6 --tessdata-dir /td", strings.Join(runner.calls[0], " "))
}

func TestParsePasses(t *testing.T) {
	got, err := ParsePasses([]string{" Sharp", "gray", "sharp"})
	require.NoError(t, err)
	assert.Equal(t, []Pass{PassSharp, PassGray}, got)

	got, err = ParsePasses(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultPasses, got)

	_, err = ParsePasses([]string{"sepia"})
	require.Error(t, err)
}

func TestPassApply(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 20, 10))
	for x := 0; x < 20; x++ {
		for y := 0; y < 10; y++ {
			v := uint8(10)
			if x >= 10 {
				v = 240
			}
			img.Set(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}

	assert.Equal(t, sharpMinHeight, PassSharp.Apply(img).Bounds().Dy())

	bin := PassBinary.Apply(img).(*image.Gray)
	assert.Equal(t, uint8(0), bin.GrayAt(0, 5).Y)
	assert.Equal(t, uint8(255), bin.GrayAt(19, 5).Y)
}

func TestOtsuThreshold(t *testing.T) {
	var hist [256]int
	hist[20] = 50
	hist[200] = 50

	level := otsuThreshold(hist, 100)

	assert.GreaterOrEqual(t, level, 20)
	assert.Less(t, level, 200)
	assert.Equal(t, 127, otsuThreshold([256]int{}, 0))
}
