package ocr

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Engine recognizes the text of one image file.
type Engine interface {
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// CLIEngine shells out to the tesseract binary.
type CLIEngine struct {
	Runner      Runner
	Bin         string // if empty -> "tesseract"
	Language    string // if empty -> "eng"
	TessdataDir string
	PSM         int // if 0 -> 6, a uniform block of text
}

func (e CLIEngine) Recognize(ctx context.Context, imagePath string) (string, error) {
	bin := e.Bin
	if bin == "" {
		bin = "tesseract"
	}
	lang := e.Language
	if lang == "" {
		lang = "eng"
	}
	psm := e.PSM
	if psm <= 0 {
		psm = 6
	}
	runner := e.Runner
	if runner == nil {
		runner = ExecRunner{}
	}

	// tesseract <file> stdout -l <lang> --psm <n>
	args := []string{imagePath, "stdout", "-l", lang, "--psm", strconv.Itoa(psm)}
	if e.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.TessdataDir)
	}
	out, errb, err := runner.Run(ctx, bin, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(truncate(string(errb), 512)))
	}
	return string(out), nil
}
