package di

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samber/do/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cpritcha/catalog/internal/config"
	"github.com/cpritcha/catalog/internal/di/providers"
	"github.com/cpritcha/catalog/internal/ingest"
	"github.com/cpritcha/catalog/internal/linkage"
	"github.com/cpritcha/catalog/internal/reference"
	"github.com/cpritcha/catalog/internal/review"
)

func newRepo(t *testing.T) string {
	t.Helper()
	config.ResetGlobalConfigCache()
	t.Cleanup(config.ResetGlobalConfigCache)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	root := t.TempDir()
	_, err := config.Init(root)
	require.NoError(t, err)
	return root
}

func TestContainer_ResolvesServices(t *testing.T) {
	root := newRepo(t)
	var logs bytes.Buffer
	injector := NewContainer(providers.Options{Root: root, LogWriter: &logs})

	_, err := do.Invoke[*ingest.Service](injector)
	require.NoError(t, err)
	_, err = do.Invoke[*linkage.Service](injector)
	require.NoError(t, err)
	_, err = do.Invoke[*review.Service](injector)
	require.NoError(t, err)

	assert.Nil(t, injector.Shutdown())
	assert.FileExists(t, config.DBPath(root))
}

func TestContainer_NotARepository(t *testing.T) {
	config.ResetGlobalConfigCache()
	t.Cleanup(config.ResetGlobalConfigCache)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	injector := NewContainer(providers.Options{Root: t.TempDir()})
	_, err := do.Invoke[*providers.StoreHandle](injector)
	assert.Error(t, err)
}

func TestContainer_WritesMetricsOnShutdown(t *testing.T) {
	root := newRepo(t)
	metricsFile := filepath.Join(t.TempDir(), "catalog.prom")
	injector := NewContainer(providers.Options{Root: root, MetricsFile: metricsFile, LogWriter: &bytes.Buffer{}})

	svc := do.MustInvoke[*ingest.Service](injector)
	_, err := svc.IngestEntries(context.Background(), []reference.Entry{{
		"entrytype": "article",
		"title":     "Metrics on shutdown",
		"author":    "Doe, Jane",
		"year":      "2020",
	}}, ingest.Options{Creator: "test"})
	require.NoError(t, err)

	assert.Nil(t, injector.Shutdown())

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "catalog_publications_ingested_total"), string(data))
}
