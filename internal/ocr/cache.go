package ocr

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/joseph-ayodele/bill-audit/internal/ingest"
)

var bucketPages = []byte("pages")

type ctxKey string

const ctxKeyContentHash ctxKey = "ocr.content_hash_hex"

// WithContentHash stores the hex-encoded SHA256 of the file being extracted
// so the cache does not hash it again.
func WithContentHash(ctx context.Context, hex string) context.Context {
	return context.WithValue(ctx, ctxKeyContentHash, hex)
}

func contentHashFromCtx(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyContentHash).(string)
	return v, ok && v != ""
}

// CachedBackend memoizes another Backend in a bbolt file, keyed by file
// content and the pass set.
type CachedBackend struct {
	next   Backend
	db     *bolt.DB
	salt   string
	logger *slog.Logger
}

// OpenCache opens (or creates) the cache database at path. passes is part of
// every key so changing the pass set invalidates old entries.
func OpenCache(path string, next Backend, passes []Pass, logger *slog.Logger) (*CachedBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketPages)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	names := make([]string, len(passes))
	for i, p := range passes {
		names[i] = string(p)
	}
	return &CachedBackend{next: next, db: db, salt: strings.Join(names, ","), logger: logger}, nil
}

// Close closes the underlying bbolt database.
func (c *CachedBackend) Close() error {
	return c.db.Close()
}

func (c *CachedBackend) ExtractDocument(ctx context.Context, path string) ([]PageText, error) {
	hashHex, ok := contentHashFromCtx(ctx)
	if !ok {
		h, _, err := ingest.HashFile(path)
		if err != nil {
			return nil, err
		}
		hashHex = h
	}
	key := []byte(hashHex + "|" + c.salt)

	var cached []PageText
	hit := false
	err := c.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketPages).Get(key)
		if raw == nil {
			return nil
		}
		hit = true
		return json.Unmarshal(raw, &cached)
	})
	if err != nil {
		c.logger.Warn("ocr.cache.read_failed", "path", path, "error", err)
	} else if hit {
		c.logger.Debug("ocr.cache.hit", "path", path)
		return cached, nil
	}

	pages, err := c.next.ExtractDocument(ctx, path)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(pages)
	if err != nil {
		return pages, nil
	}
	if err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPages).Put(key, raw)
	}); err != nil {
		c.logger.Warn("ocr.cache.write_failed", "path", path, "error", err)
	}
	return pages, nil
}
