package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite"

	"incidentkb/internal/domain"
	kberrors "incidentkb/pkg/errors"
)

// SQLiteJournal stores incidents in a SQLite table through the pure-Go
// modernc driver. The autoincrement rowid keeps insertion order.
type SQLiteJournal struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS incidents (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL,
	source     TEXT NOT NULL,
	url        TEXT NOT NULL,
	ts         INTEGER NOT NULL,
	content    TEXT NOT NULL,
	embedding  TEXT
);
CREATE INDEX IF NOT EXISTS idx_incidents_id ON incidents(id);
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, kberrors.Wrap(err, kberrors.CodeJournalOpenFailure, "create journal directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, kberrors.Wrap(err, kberrors.CodeJournalOpenFailure, "open sqlite journal",
			kberrors.Field("path", path))
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, kberrors.Wrap(err, kberrors.CodeJournalOpenFailure, "enable WAL")
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, kberrors.Wrap(err, kberrors.CodeJournalOpenFailure, "initialize schema")
	}
	if _, err := db.Exec(`INSERT OR IGNORE INTO meta(key, value) VALUES ('schema_version', ?)`,
		strconv.Itoa(CurrentSchemaVersion)); err != nil {
		_ = db.Close()
		return nil, kberrors.Wrap(err, kberrors.CodeJournalOpenFailure, "write schema version")
	}

	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) Bind(ctx context.Context, model string, dimension int) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return kberrors.Wrap(err, kberrors.CodeJournalDatabaseFailure, "begin bind")
	}
	defer tx.Rollback()

	var storedModel, storedDim string
	err = tx.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'embedding_model'`).Scan(&storedModel)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta(key, value) VALUES ('embedding_model', ?), ('embedding_dimension', ?)`,
			model, strconv.Itoa(dimension)); err != nil {
			return kberrors.Wrap(err, kberrors.CodeJournalDatabaseFailure, "write journal binding")
		}
		return kberrors.Wrap(tx.Commit(), kberrors.CodeJournalDatabaseFailure, "commit bind")
	case err != nil:
		return kberrors.Wrap(err, kberrors.CodeJournalDatabaseFailure, "read journal model")
	}

	if err := tx.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'embedding_dimension'`).Scan(&storedDim); err != nil {
		return kberrors.Wrap(err, kberrors.CodeJournalDatabaseFailure, "read journal dimension")
	}
	dim, _ := strconv.Atoi(storedDim)
	return checkBinding(storedModel, dim, model, dimension)
}

func (j *SQLiteJournal) Append(ctx context.Context, doc domain.IncidentDocument) error {
	var embedding any
	if doc.HasEmbedding() {
		data, err := json.Marshal(doc.Embedding)
		if err != nil {
			return kberrors.Wrap(err, kberrors.CodeJournalDatabaseFailure, "encode embedding",
				kberrors.FieldIncidentID(doc.ID))
		}
		embedding = string(data)
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO incidents(id, source, url, ts, content, embedding) VALUES (?, ?, ?, ?, ?, ?)`,
		doc.ID, string(doc.Source), doc.URL, doc.Timestamp.UnixNano(), doc.Content, embedding)
	if err != nil {
		return kberrors.Wrap(err, kberrors.CodeJournalDatabaseFailure, "append incident",
			kberrors.FieldIncidentID(doc.ID))
	}
	return nil
}

func (j *SQLiteJournal) Replay(ctx context.Context, fn func(domain.IncidentDocument) error) error {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, source, url, ts, content, embedding FROM incidents ORDER BY seq`)
	if err != nil {
		return kberrors.Wrap(err, kberrors.CodeJournalDatabaseFailure, "query incidents")
	}
	defer rows.Close()

	var docs []domain.IncidentDocument
	for rows.Next() {
		var (
			s         storedIncident
			embedding sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Source, &s.URL, &s.Timestamp, &s.Content, &embedding); err != nil {
			return kberrors.Wrap(err, kberrors.CodeJournalDatabaseFailure, "scan incident")
		}
		if embedding.Valid && embedding.String != "" {
			if err := json.Unmarshal([]byte(embedding.String), &s.Embedding); err != nil {
				return kberrors.Wrap(err, kberrors.CodeJournalDatabaseFailure, "decode embedding",
					kberrors.FieldIncidentID(s.ID))
			}
		}
		docs = append(docs, s.toDomain())
	}
	if err := rows.Err(); err != nil {
		return kberrors.Wrap(err, kberrors.CodeJournalDatabaseFailure, "iterate incidents")
	}
	// Rows are released before fn runs so callbacks may write to the journal.
	rows.Close()

	for _, doc := range docs {
		if err := fn(doc); err != nil {
			return err
		}
	}
	return nil
}

func (j *SQLiteJournal) Count(ctx context.Context) (int, error) {
	var n int
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM incidents`).Scan(&n); err != nil {
		return 0, kberrors.Wrap(err, kberrors.CodeJournalDatabaseFailure, "count incidents")
	}
	return n, nil
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
