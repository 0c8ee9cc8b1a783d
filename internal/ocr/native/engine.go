// Package native recognizes text in-process through the tesseract C API.
package native

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// Engine implements ocr.Engine using the gosseract client.
type Engine struct {
	Languages   []string
	TessdataDir string

	clientFactory func() *gosseract.Client
}

// NewEngine constructs a gosseract-backed engine.
func NewEngine(tessdataDir string, languages ...string) *Engine {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Engine{Languages: languages, TessdataDir: tessdataDir, clientFactory: gosseract.NewClient}
}

// Recognize performs OCR on one image file as a single uniform block.
func (e *Engine) Recognize(ctx context.Context, imagePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c := e.clientFactory()
	defer func() { _ = c.Close() }()

	if e.TessdataDir != "" {
		if err := c.SetTessdataPrefix(e.TessdataDir); err != nil {
			return "", fmt.Errorf("set tessdata: %w", err)
		}
	}
	if err := c.SetLanguage(e.Languages...); err != nil {
		return "", fmt.Errorf("set languages: %w", err)
	}
	if err := c.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return "", fmt.Errorf("set psm: %w", err)
	}
	if err := c.SetImage(imagePath); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	txt, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize: %w", err)
	}
	return txt, nil
}
