package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/bill-audit/constants"
)

// Collect walks root and returns the bill files in lexical path order.
// Ignored folders and hidden entries are pruned, unsupported extensions are
// skipped and byte-identical files are kept once.
func Collect(ctx context.Context, root string, logger *slog.Logger) ([]BillFile, DirStats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root is required")
	}

	var files []BillFile
	var stats DirStats
	seen := map[string]string{}

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == root {
			return walkErr
		}
		stats.Scanned++
		if walkErr != nil {
			logger.Warn("ingest.walk.error", "path", p, "error", walkErr)
			stats.Failed++
			return nil // continue walking
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if IsHidden(p) || constants.IsIgnoredPath(rel) {
			stats.Ignored++
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(p)
		if !AllowedExt(ext) {
			stats.Ignored++
			return nil
		}
		stats.Matched++

		hashHex, size, err := HashFile(p)
		if err != nil {
			logger.Warn("ingest.hash.error", "path", rel, "error", err)
			stats.Failed++
			return nil
		}
		if first, dup := seen[hashHex]; dup {
			logger.Info("ingest.file.dedup", "path", rel, "same_as", first)
			stats.Deduplicated++
			return nil
		}
		seen[hashHex] = rel

		folder := path.Dir(rel)
		if folder == "." {
			folder = ""
		}
		files = append(files, BillFile{
			Path:    p,
			RelPath: rel,
			Folder:  folder,
			Name:    path.Base(rel),
			Format:  constants.MapExtToFormat(ext),
			HashHex: hashHex,
			Size:    size,
		})
		return nil
	})
	if err != nil {
		return files, stats, fmt.Errorf("walk: %w", err)
	}
	return files, stats, nil
}
