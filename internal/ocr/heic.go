package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// convertHEICtoPNG converts a HEIC/HEIF file to outDir/page.png using the
// chosen converter: "heif-convert" | "magick" | "sips".
func convertHEICtoPNG(ctx context.Context, r Runner, converter, in, outDir string) (string, error) {
	out := filepath.Join(outDir, "heic.png")

	var errb []byte
	var err error
	switch converter {
	case "heif-convert":
		_, errb, err = r.Run(ctx, "heif-convert", in, out)
	case "magick":
		_, errb, err = r.Run(ctx, "magick", in, out)
	case "sips":
		_, errb, err = r.Run(ctx, "sips", "-s", "format", "png", in, "--out", out)
	default:
		return "", fmt.Errorf("HEIC not supported: set HEIC_CONVERTER to one of: heif-convert | magick | sips")
	}
	if err != nil {
		return "", fmt.Errorf("%s convert failed: %w: %s", converter, err, truncate(string(errb), 512))
	}

	if _, statErr := os.Stat(out); statErr != nil {
		return "", fmt.Errorf("HEIC conversion produced no output: %v", statErr)
	}
	return out, nil
}
