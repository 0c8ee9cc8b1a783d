package ingest

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/bill-audit/constants"
)

// ErrUnsafePath is returned for archive entries escaping the extraction root.
var ErrUnsafePath = errors.New("archive entry escapes extraction root")

// Limits bound what ExtractZip is willing to write.
type Limits struct {
	MaxEntries    int   // 0 = no limit
	MaxTotalBytes int64 // 0 = no limit
}

// DefaultLimits guards against archive bombs in uploads.
var DefaultLimits = Limits{MaxEntries: 20000, MaxTotalBytes: 4 << 30}

// ExtractZip unpacks the archive at src into dest. Ignored folders, hidden
// entries and directories are skipped; every other entry is written so the
// later walk sees the archive layout unchanged.
func ExtractZip(ctx context.Context, src, dest string, limits Limits, logger *slog.Logger) (ExtractStats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var st ExtractStats

	zr, err := zip.OpenReader(src)
	if err != nil {
		return st, fmt.Errorf("open zip: %w", err)
	}
	defer func() { _ = zr.Close() }()

	root, err := filepath.Abs(dest)
	if err != nil {
		return st, err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return st, err
	}

	st.Entries = len(zr.File)
	if limits.MaxEntries > 0 && st.Entries > limits.MaxEntries {
		return st, fmt.Errorf("archive has %d entries, limit is %d", st.Entries, limits.MaxEntries)
	}

	for _, zf := range zr.File {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		name := strings.ReplaceAll(zf.Name, "\\", "/")
		if zf.FileInfo().IsDir() || constants.IsIgnoredPath(name) || IsHidden(name) {
			st.Skipped++
			continue
		}

		target := filepath.Join(root, filepath.FromSlash(name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return st, fmt.Errorf("%w: %q", ErrUnsafePath, zf.Name)
		}

		n, err := extractEntry(zf, target, remaining(limits, st.Bytes))
		st.Bytes += n
		if err != nil {
			return st, fmt.Errorf("extract %q: %w", zf.Name, err)
		}
		st.Extracted++
	}

	logger.Info("ingest.zip.ok",
		"archive", filepath.Base(src),
		"entries", st.Entries,
		"extracted", st.Extracted,
		"skipped", st.Skipped,
		"bytes", st.Bytes,
	)
	return st, nil
}

func remaining(l Limits, used int64) int64 {
	if l.MaxTotalBytes <= 0 {
		return -1
	}
	return l.MaxTotalBytes - used
}

func extractEntry(zf *zip.File, target string, budget int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}
	rc, err := zf.Open()
	if err != nil {
		return 0, err
	}
	defer func() { _ = rc.Close() }()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}

	var r io.Reader = rc
	if budget >= 0 {
		r = io.LimitReader(rc, budget+1)
	}
	n, err := io.Copy(out, r)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, err
	}
	if budget >= 0 && n > budget {
		return n, errors.New("archive exceeds the extraction size limit")
	}
	return n, nil
}
