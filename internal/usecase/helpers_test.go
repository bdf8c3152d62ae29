package usecase

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"incidentkb/internal/adapter/embedding"
	"incidentkb/internal/adapter/index"
	"incidentkb/internal/adapter/memstore"
	"incidentkb/internal/port"
)

// countingEmbedder wraps another embedder and records every call.
type countingEmbedder struct {
	port.Embedder
	mu    sync.Mutex
	calls []string
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls = append(e.calls, text)
	e.mu.Unlock()
	return e.Embedder.Embed(ctx, text)
}

func (e *countingEmbedder) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

// tableEmbedder returns fixed vectors so distances are known in advance.
type tableEmbedder struct {
	dim     int
	vectors map[string][]float32
	err     error
}

func (e *tableEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return make([]float32, e.dim), nil
}

func (e *tableEmbedder) Dimension() int    { return e.dim }
func (e *tableEmbedder) ModelName() string { return "table" }

func newMemory(t *testing.T, embedder port.Embedder, opts ...MemoryOption) *VectorMemory {
	t.Helper()
	idx, err := index.NewFlatL2Index(embedder.Dimension())
	require.NoError(t, err)
	m, err := NewVectorMemory(embedder, memstore.NewMemoryStore(), idx, opts...)
	require.NoError(t, err)
	return m
}

func newHashingMemory(t *testing.T, opts ...MemoryOption) (*VectorMemory, *countingEmbedder) {
	t.Helper()
	counter := &countingEmbedder{Embedder: embedding.NewHashingEmbedder(64)}
	return newMemory(t, counter, opts...), counter
}

func fsFile(path string) port.FileInfo {
	return port.FileInfo{Path: path}
}
