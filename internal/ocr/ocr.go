// Package ocr turns bill images and PDFs into raw OCR candidate strings, one
// per preprocessing pass.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"

	"github.com/joseph-ayodele/bill-audit/constants"
)

type Config struct {
	Pdftoppm      string // binary name or absolute path; if empty -> "pdftoppm"
	HeicConverter string // heif-convert | magick | sips
	DPI           int    // PDF rasterization DPI, default 144 (2x)
	MaxPages      int    // 0 = no limit
	Passes        []Pass // default DefaultPasses
	TempDir       string // parent for per-file scratch dirs; "" = os.TempDir()
}

// PageText is the OCR output for one page of a file. Page is 0 for images
// and 1-based for PDF pages.
type PageText struct {
	Page       int      `json:"page"`
	Candidates []string `json:"candidates"`
}

// Backend extracts every page of a bill file.
type Backend interface {
	ExtractDocument(ctx context.Context, path string) ([]PageText, error)
}

type Extractor struct {
	cfg    Config
	engine Engine
	runner Runner
	logger *slog.Logger
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithRunner replaces the exec seam used for pdftoppm and HEIC converters.
func WithRunner(r Runner) Option {
	return func(e *Extractor) { e.runner = r }
}

// NewExtractor builds an Extractor around engine.
func NewExtractor(cfg Config, engine Engine, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 144
	}
	if len(cfg.Passes) == 0 {
		cfg.Passes = DefaultPasses
	}
	e := &Extractor{cfg: cfg, engine: engine, runner: ExecRunner{Logger: logger}, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	if e.engine == nil {
		e.engine = CLIEngine{Runner: e.runner}
	}
	return e
}

// Passes returns the configured pass names, used as part of cache keys.
func (e *Extractor) Passes() []Pass { return e.cfg.Passes }

// ExtractDocument picks a strategy based on file extension. PDFs yield one
// PageText per rendered page.
func (e *Extractor) ExtractDocument(ctx context.Context, path string) ([]PageText, error) {
	ext := constants.NormalizeExt(filepath.Ext(path))
	switch constants.MapExtToFormat(ext) {
	case constants.PDF:
		return e.extractPDF(ctx, path)
	case constants.IMAGE:
		cands, err := e.Extract(ctx, path)
		if err != nil {
			return nil, err
		}
		return []PageText{{Page: 0, Candidates: cands}}, nil
	default:
		return nil, fmt.Errorf("unsupported extension: %q", ext)
	}
}

func (e *Extractor) extractPDF(ctx context.Context, path string) ([]PageText, error) {
	dir, err := os.MkdirTemp(e.cfg.TempDir, "ba-pdf-*")
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.RemoveAll(dir) }()

	pages, err := e.RasterizePDF(ctx, path, dir)
	if err != nil {
		return nil, err
	}
	out := make([]PageText, 0, len(pages))
	for i, img := range pages {
		cands, err := e.Extract(ctx, img)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		out = append(out, PageText{Page: i + 1, Candidates: cands})
	}
	return out, nil
}

// Extract runs every pass over one image and returns the raw candidates in
// pass order. An image that cannot be decoded yields no candidates and no
// error. An error is returned only when the engine failed on every pass.
func (e *Extractor) Extract(ctx context.Context, path string) ([]string, error) {
	start := time.Now()
	dir, err := os.MkdirTemp(e.cfg.TempDir, "ba-ocr-*")
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.RemoveAll(dir) }()

	src := path
	if constants.IsHEICExt(filepath.Ext(path)) {
		src, err = convertHEICtoPNG(ctx, e.runner, e.cfg.HeicConverter, path, dir)
		if err != nil {
			e.logger.Warn("ocr.heic.failed", "path", path, "error", err)
			return nil, nil
		}
	}

	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		e.logger.Warn("ocr.decode.failed", "path", path, "error", err)
		return nil, nil
	}

	cands := make([]string, 0, len(e.cfg.Passes))
	var errs []error
	for _, pass := range e.cfg.Passes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out := filepath.Join(dir, string(pass)+".png")
		if err := imaging.Save(pass.Apply(img), out); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", pass, err))
			continue
		}
		txt, err := e.engine.Recognize(ctx, out)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", pass, err))
			continue
		}
		cands = append(cands, txt)
	}
	if len(cands) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	for _, err := range errs {
		e.logger.Warn("ocr.pass.failed", "path", path, "error", err)
	}
	e.logger.Debug("ocr.image.ok", "path", path, "passes", len(cands), "duration_ms", time.Since(start).Milliseconds())
	return cands, nil
}
