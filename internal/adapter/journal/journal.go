// Package journal persists ingested incidents so a process can rebuild its
// in-memory corpus at start-up.
package journal

import (
	"context"
	"os"
	"path/filepath"

	"incidentkb/internal/domain"
	"incidentkb/internal/port"
	kberrors "incidentkb/pkg/errors"
)

// Open returns the journal backend named by backend at path.
func Open(backend, path string) (port.Journal, error) {
	switch backend {
	case "bolt":
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, kberrors.Wrap(err, kberrors.CodeJournalOpenFailure, "create journal directory")
		}
		return NewBoltJournal(path)
	case "sqlite":
		return NewSQLiteJournal(path)
	case "none", "":
		return Nop{}, nil
	default:
		return nil, kberrors.New(kberrors.CodeJournalBackendInvalid, "unsupported journal backend",
			kberrors.Field("backend", backend))
	}
}

// Nop discards everything. Used when persistence is turned off.
type Nop struct{}

func (Nop) Bind(context.Context, string, int) error                           { return nil }
func (Nop) Append(context.Context, domain.IncidentDocument) error             { return nil }
func (Nop) Count(context.Context) (int, error)                                { return 0, nil }
func (Nop) Close() error                                                      { return nil }
func (Nop) Replay(context.Context, func(domain.IncidentDocument) error) error { return nil }
