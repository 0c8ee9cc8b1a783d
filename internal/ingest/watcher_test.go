package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartWatcher_RequiresRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{})
	require.Error(t, err)
}

func TestStartWatcher_InitialScanAndNewArchive(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "old.zip")
	require.NoError(t, os.WriteFile(existing, []byte("z"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "old.txt"), []byte("t"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{
		Roots:       []string{root},
		InitialScan: true,
		Debounce:    20 * time.Millisecond,
	})
	require.NoError(t, err)

	select {
	case p := <-events:
		assert.Equal(t, existing, p)
	case <-time.After(2 * time.Second):
		t.Fatal("initial scan did not emit the existing archive")
	}

	fresh := filepath.Join(root, "new.zip")
	require.NoError(t, os.WriteFile(fresh, []byte("zz"), 0o644))

	select {
	case p := <-events:
		assert.Equal(t, fresh, p)
	case <-time.After(5 * time.Second):
		t.Fatal("new archive was not emitted")
	}

	cancel()
	require.Eventually(t, func() bool {
		_, open := <-events
		return !open
	}, 2*time.Second, 10*time.Millisecond)
}
