package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/bill-audit/constants"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
}

func TestCollect(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"b.PNG":             "png-b",
		"a.pdf":             "pdf-a",
		"March/c.jpeg":      "jpeg-c",
		"March/copy.jpg":    "jpeg-c",
		"Misc/skip.jpg":     "misc",
		"receipts/skip.png": "receipt",
		".hidden/skip.jpg":  "hidden",
		"March/.secret.jpg": "secret",
		"March/readme.txt":  "txt",
		"April/photo.heic":  "heic",
	})

	files, stats, err := Collect(context.Background(), root, nil)

	require.NoError(t, err)
	var rels []string
	for _, f := range files {
		rels = append(rels, f.RelPath)
	}
	assert.Equal(t, []string{"April/photo.heic", "March/c.jpeg", "a.pdf", "b.PNG"}, rels)
	assert.Equal(t, uint32(5), stats.Matched)
	assert.Equal(t, uint32(1), stats.Deduplicated)
	assert.Zero(t, stats.Failed)

	assert.Equal(t, "March", files[1].Folder)
	assert.Equal(t, "c.jpeg", files[1].Name)
	assert.Equal(t, constants.IMAGE, files[1].Format)
	assert.Equal(t, "", files[2].Folder)
	assert.Equal(t, constants.PDF, files[2].Format)
	assert.Len(t, files[2].HashHex, 64)
	assert.Equal(t, int64(5), files[2].Size)
}

func TestCollect_Empty(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"notes.txt": "x"})

	files, stats, err := Collect(context.Background(), root, nil)

	require.NoError(t, err)
	assert.Empty(t, files)
	assert.Zero(t, stats.Matched)
	assert.Equal(t, uint32(1), stats.Ignored)
}

func TestCollect_RequiresRoot(t *testing.T) {
	_, _, err := Collect(context.Background(), " ", nil)
	require.Error(t, err)
}

func TestAllowedExt(t *testing.T) {
	assert.True(t, AllowedExt(".JPG"))
	assert.True(t, AllowedExt("pdf"))
	assert.True(t, AllowedExt(".webp"))
	assert.False(t, AllowedExt(".txt"))
	assert.False(t, AllowedExt(""))
}

func TestHashFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "x.bin")
	require.NoError(t, os.WriteFile(p, []byte("abc"), 0o644))

	h, n, err := HashFile(p)

	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", h)
	assert.Equal(t, int64(3), n)
}
