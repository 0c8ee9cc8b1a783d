package app

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/bill-audit/internal/common"
	"github.com/joseph-ayodele/bill-audit/internal/ocr"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := &common.Config{LogLevel: "warn", LogFormat: "json"}
	logger := NewLogger(cfg, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}

func TestLoadRules(t *testing.T) {
	t.Run("thresholds from config", func(t *testing.T) {
		r, err := LoadRules(common.AuditConfig{MatchThreshold: 70, ReviewThreshold: 40})
		require.NoError(t, err)
		assert.Equal(t, 70.0, r.MatchThreshold)
		assert.Equal(t, 40.0, r.ReviewThreshold)
	})

	t.Run("inverted thresholds", func(t *testing.T) {
		_, err := LoadRules(common.AuditConfig{MatchThreshold: 30, ReviewThreshold: 40})
		require.Error(t, err)
	})

	t.Run("missing rules file", func(t *testing.T) {
		_, err := LoadRules(common.AuditConfig{RulesFile: filepath.Join(t.TempDir(), "nope.json")})
		require.Error(t, err)
	})
}

func TestNewOCRBackend(t *testing.T) {
	t.Run("plain extractor", func(t *testing.T) {
		backend, closer, err := NewOCRBackend(common.OCRConfig{Engine: "cli", Language: "eng"}, nil)
		require.NoError(t, err)
		assert.Nil(t, closer)
		assert.IsType(t, &ocr.Extractor{}, backend)
	})

	t.Run("cached", func(t *testing.T) {
		cfg := common.OCRConfig{Engine: "cli", Language: "eng", CachePath: filepath.Join(t.TempDir(), "ocr.db")}
		backend, closer, err := NewOCRBackend(cfg, nil)
		require.NoError(t, err)
		require.NotNil(t, closer)
		defer closer.Close()
		assert.IsType(t, &ocr.CachedBackend{}, backend)
	})

	t.Run("bad pass", func(t *testing.T) {
		_, _, err := NewOCRBackend(common.OCRConfig{Passes: []string{"sepia"}}, nil)
		require.ErrorContains(t, err, "sepia")
	})
}

func TestBuild_WithoutDatabase(t *testing.T) {
	cfg := common.LoadConfig()
	cfg.Storage = common.StorageConfig{Backend: "local", ReportDir: t.TempDir()}
	cfg.Audit.WorkDir = t.TempDir()
	cfg.Database.DSN = ""
	cfg.OCR.CachePath = ""
	cfg.Audit.RulesFile = ""

	st, err := Build(context.Background(), cfg, prometheus.NewRegistry(), nil)
	require.NoError(t, err)
	defer st.Shutdown(context.Background())

	assert.NotNil(t, st.Audit)
	assert.NotNil(t, st.Metrics)
	assert.Nil(t, st.DB)
	assert.NoError(t, st.Health(context.Background()))

	runs, err := st.Audit.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestBuild_SQLite(t *testing.T) {
	cfg := common.LoadConfig()
	cfg.Storage = common.StorageConfig{Backend: "local", ReportDir: t.TempDir()}
	cfg.Audit.WorkDir = t.TempDir()
	cfg.Audit.RulesFile = ""
	cfg.OCR.CachePath = ""
	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = "file:" + filepath.Join(t.TempDir(), "audit.db")

	st, err := Build(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	defer st.Shutdown(context.Background())

	require.NotNil(t, st.DB)
	assert.NoError(t, st.Health(context.Background()))
}
