package cli

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"incidentkb/config"
	"incidentkb/internal/domain"
	"incidentkb/internal/usecase"
)

func newTestApp(t *testing.T, mutate func(*config.Config)) *app {
	t.Helper()
	c := config.DefaultConfig()
	c.Embedding.Provider = "hashing"
	c.Embedding.Dimension = 32
	c.Embedding.CacheSize = 0
	c.Journal.Backend = "none"
	c.Logging.Level = "error"
	if mutate != nil {
		mutate(c)
	}

	prevCfg, prevRoot := cfg, rootDir
	cfg, rootDir = c, t.TempDir()
	t.Cleanup(func() { cfg, rootDir = prevCfg, prevRoot })

	a, err := newApp(context.Background())
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestApp_ToolsKeepFixedTopK(t *testing.T) {
	a := newTestApp(t, func(c *config.Config) { c.Memory.TopK = 5 })
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, err := a.ingest.IngestSlackThread(ctx, fmt.Sprintf("pool exhausted on db-%d", i),
			fmt.Sprintf("u%d", i), time.Now())
		require.NoError(t, err)
	}

	tool, ok := usecase.FindTool(a.tools.Tools(), usecase.ToolSearchIncidents)
	require.True(t, ok)
	out, err := tool.Call(ctx, "pool exhausted")
	require.NoError(t, err)
	assert.Equal(t, usecase.DefaultTopK, strings.Count(out, "Source: "))

	out, err = a.searchTools(0).SearchIncidents(ctx, "pool exhausted")
	require.NoError(t, err)
	assert.Equal(t, 5, strings.Count(out, "Source: "))

	out, err = a.searchTools(2).SearchIncidents(ctx, "pool exhausted")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "Source: "))
}

func TestApp_DefaultSearchToolsAreShared(t *testing.T) {
	a := newTestApp(t, nil)
	assert.Same(t, a.tools, a.searchTools(0))
	assert.Equal(t, domain.SourceSlack, a.walker.Classify("thread.txt"))
}
