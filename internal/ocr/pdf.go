package ocr

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
)

// ErrNoPages is returned when pdftoppm rendered nothing.
var ErrNoPages = errors.New("pdftoppm produced no images")

// RasterizePDF renders every page of the PDF at path into PNGs under outDir and
// returns them in page order.
func (e *Extractor) RasterizePDF(ctx context.Context, path, outDir string) ([]string, error) {
	prefix := filepath.Join(outDir, "page")
	// pdftoppm -r 144 -png <in.pdf> <dir/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", strconv.Itoa(e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, truncate(string(errb), 512))
	}

	// pdftoppm zero-pads page numbers to a common width, so lexical order is page order.
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		e.logger.Warn("ocr.pdf.truncated", "path", path, "pages", len(matches), "max_pages", e.cfg.MaxPages)
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return nil, ErrNoPages
	}
	return matches, nil
}
