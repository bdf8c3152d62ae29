package port

import (
	"context"

	"incidentkb/internal/domain"
)

// Journal persists ingested incidents, embeddings included, so a new process
// can rebuild its memory without calling the embedding provider again.
type Journal interface {
	// Bind records the embedding model and dimension on first use and fails
	// if the journal was written with a different one.
	Bind(ctx context.Context, model string, dimension int) error

	Append(ctx context.Context, doc domain.IncidentDocument) error

	// Replay calls fn for every journaled document in insertion order.
	Replay(ctx context.Context, fn func(domain.IncidentDocument) error) error

	Count(ctx context.Context) (int, error)

	Close() error
}
