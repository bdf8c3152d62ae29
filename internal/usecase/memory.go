package usecase

import (
	"context"
	"errors"
	"net"
	"sync"

	"go.uber.org/zap"

	"incidentkb/internal/domain"
	"incidentkb/internal/port"
	kberrors "incidentkb/pkg/errors"
)

// DefaultTopK is the number of neighbors returned when the caller asks for
// k <= 0.
const DefaultTopK = 3

// VectorMemory pairs a document store with a similarity index. Position i in
// the store always corresponds to vector i in the index.
type VectorMemory struct {
	mu sync.RWMutex

	embedder port.Embedder
	store    port.DocumentStore
	index    port.SimilarityIndex
	logger   *zap.Logger

	rejectDuplicates bool
}

type MemoryOption func(*VectorMemory)

// WithDuplicateRejection makes AddDocument refuse ids already in the store.
func WithDuplicateRejection(reject bool) MemoryOption {
	return func(m *VectorMemory) { m.rejectDuplicates = reject }
}

func WithMemoryLogger(logger *zap.Logger) MemoryOption {
	return func(m *VectorMemory) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewVectorMemory wires an embedder to an empty or already paired store and
// index. The index dimension is the memory's dimension.
func NewVectorMemory(embedder port.Embedder, store port.DocumentStore, index port.SimilarityIndex, opts ...MemoryOption) (*VectorMemory, error) {
	if d := embedder.Dimension(); d > 0 && d != index.Dimension() {
		return nil, kberrors.New(kberrors.CodeEmbeddingDimensionMismatch, "embedder and index disagree on dimension",
			kberrors.FieldStage("init"),
			kberrors.Field("expected", index.Dimension()),
			kberrors.Field("got", d),
			kberrors.FieldProvider(embedder.ModelName()))
	}
	if store.Len() != index.Len() {
		return nil, kberrors.New(kberrors.CodeIndexDimensionMismatch, "store and index are not paired",
			kberrors.FieldStage("init"),
			kberrors.Field("documents", store.Len()),
			kberrors.Field("vectors", index.Len()))
	}

	m := &VectorMemory{
		embedder: embedder,
		store:    store,
		index:    index,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// AddDocument embeds doc if it has no embedding yet and appends it to both
// the store and the index. On any error nothing is added.
func (m *VectorMemory) AddDocument(ctx context.Context, doc domain.IncidentDocument) (domain.IncidentDocument, error) {
	if doc.HasEmbedding() {
		doc.Embedding = append([]float32(nil), doc.Embedding...)
	} else {
		vec, err := m.embed(ctx, doc.Content, "add", kberrors.FieldIncidentID(doc.ID))
		if err != nil {
			return domain.IncidentDocument{}, err
		}
		doc.Embedding = vec
	}

	if err := m.checkLength(doc.Embedding, "add", kberrors.FieldIncidentID(doc.ID)); err != nil {
		return domain.IncidentDocument{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rejectDuplicates {
		if _, exists := m.store.FindByID(doc.ID); exists {
			return domain.IncidentDocument{}, kberrors.New(kberrors.CodeIncidentDuplicate, "incident id already present",
				kberrors.FieldIncidentID(doc.ID))
		}
	}

	n := m.store.Len()
	m.store.Append(doc)
	if err := m.index.Add(doc.Embedding); err != nil {
		m.store.Truncate(n)
		return domain.IncidentDocument{}, err
	}

	m.logger.Debug("incident added",
		zap.String("incident_id", doc.ID),
		zap.String("source", string(doc.Source)),
		zap.Int("position", n))
	return doc, nil
}

// Search returns up to k documents closest to query, nearest first. k <= 0
// means DefaultTopK.
func (m *VectorMemory) Search(ctx context.Context, query string, k int) ([]domain.IncidentDocument, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	if m.Len() == 0 {
		return []domain.IncidentDocument{}, nil
	}

	vec, err := m.embed(ctx, query, "search")
	if err != nil {
		return nil, err
	}
	if err := m.checkLength(vec, "search"); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	neighbors, err := m.index.Search(vec, k)
	if err != nil {
		return nil, err
	}

	results := make([]domain.IncidentDocument, 0, len(neighbors))
	for _, n := range neighbors {
		doc, ok := m.store.At(n.Position)
		if !ok {
			continue
		}
		results = append(results, doc)
	}
	return results, nil
}

// FindByID returns the first document stored under id.
func (m *VectorMemory) FindByID(id string) (domain.IncidentDocument, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store.FindByID(id)
}

// Documents returns every document in insertion order.
func (m *VectorMemory) Documents() []domain.IncidentDocument {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store.All()
}

func (m *VectorMemory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store.Len()
}

func (m *VectorMemory) Dimension() int {
	return m.index.Dimension()
}

// Embedder exposes the provider so callers can bind persistence to its model.
func (m *VectorMemory) Embedder() port.Embedder {
	return m.embedder
}

func (m *VectorMemory) embed(ctx context.Context, text, stage string, fields ...kberrors.Attr) ([]float32, error) {
	vec, err := m.embedder.Embed(ctx, text)
	if err == nil {
		return vec, nil
	}

	code := kberrors.CodeEmbeddingProviderFailure
	if isTimeout(err) {
		code = kberrors.CodeEmbeddingProviderTimeout
	}
	fields = append(fields, kberrors.FieldStage(stage), kberrors.FieldProvider(m.embedder.ModelName()))
	m.logger.Warn("embedding failed", zap.String("stage", stage), zap.String("code", string(code)), zap.Error(err))
	return nil, kberrors.Wrap(err, code, "embed text", fields...)
}

func (m *VectorMemory) checkLength(vec []float32, stage string, fields ...kberrors.Attr) error {
	if len(vec) == m.index.Dimension() {
		return nil
	}
	fields = append(fields,
		kberrors.FieldStage(stage),
		kberrors.Field("expected", m.index.Dimension()),
		kberrors.Field("got", len(vec)))
	return kberrors.New(kberrors.CodeEmbeddingDimensionMismatch, "embedding has wrong length", fields...)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || kberrors.IsTimeout(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
