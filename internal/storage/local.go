package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/bill-audit/internal/common"
)

// localStore keeps artifacts as files under one directory.
type localStore struct {
	dir string
}

// NewLocal creates the directory if needed.
func NewLocal(dir string) (ArtifactStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("report directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	return &localStore{dir: dir}, nil
}

func (s *localStore) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", common.InputError("invalid artifact key %q", key)
	}
	return filepath.Join(s.dir, key), nil
}

func (s *localStore) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	p, err := s.path(key)
	if err != nil {
		return ObjectInfo{}, err
	}
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return ObjectInfo{}, errors.Join(common.ErrStorage, err)
	}
	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), p)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return ObjectInfo{}, errors.Join(common.ErrStorage, err)
	}
	st, err := os.Stat(p)
	if err != nil {
		return ObjectInfo{}, errors.Join(common.ErrStorage, err)
	}
	return ObjectInfo{Key: key, Size: n, ContentType: opt.ContentType, LastModified: st.ModTime()}, nil
}

func (s *localStore) Get(_ context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ObjectInfo{}, common.NewAppError(common.CodeNotFound, "report not found", common.ErrNotFound)
	}
	if err != nil {
		return nil, ObjectInfo{}, errors.Join(common.ErrStorage, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, ObjectInfo{}, errors.Join(common.ErrStorage, err)
	}
	return f, ObjectInfo{Key: key, Size: st.Size(), LastModified: st.ModTime()}, nil
}

func (s *localStore) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Join(common.ErrStorage, err)
	}
	return nil
}
