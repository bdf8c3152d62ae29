package journal

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"strconv"
	"time"

	"go.etcd.io/bbolt"

	"incidentkb/internal/domain"
	kberrors "incidentkb/pkg/errors"
)

var (
	bucketIncidents = []byte("incidents")
	bucketMeta      = []byte("meta")
	keySchema       = []byte("schema_version")
	keyModel        = []byte("embedding_model")
	keyDimension    = []byte("embedding_dimension")
)

// CurrentSchemaVersion is bumped on breaking changes to the stored format.
const CurrentSchemaVersion = 1

// BoltJournal stores incidents in a bbolt file. Keys come from the bucket
// sequence, so cursor order is insertion order.
type BoltJournal struct {
	db *bbolt.DB
}

type storedIncident struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Source    string    `json:"source"`
	URL       string    `json:"url"`
	Timestamp int64     `json:"ts"`
	Embedding []float32 `json:"v,omitempty"`
}

func NewBoltJournal(path string) (*BoltJournal, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, kberrors.Wrap(err, kberrors.CodeJournalOpenFailure, "open bolt journal",
			kberrors.Field("path", path))
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketIncidents, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		meta := tx.Bucket(bucketMeta)
		if meta.Get(keySchema) == nil {
			return meta.Put(keySchema, []byte(strconv.Itoa(CurrentSchemaVersion)))
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, kberrors.Wrap(err, kberrors.CodeJournalOpenFailure, "create journal buckets",
			kberrors.Field("path", path))
	}

	return &BoltJournal{db: db}, nil
}

func (j *BoltJournal) Bind(_ context.Context, model string, dimension int) error {
	return j.db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		storedModel := meta.Get(keyModel)
		storedDim := meta.Get(keyDimension)

		if storedModel == nil && storedDim == nil {
			if err := meta.Put(keyModel, []byte(model)); err != nil {
				return kberrors.Wrap(err, kberrors.CodeJournalDatabaseFailure, "write journal model")
			}
			if err := meta.Put(keyDimension, []byte(strconv.Itoa(dimension))); err != nil {
				return kberrors.Wrap(err, kberrors.CodeJournalDatabaseFailure, "write journal dimension")
			}
			return nil
		}

		dim, _ := strconv.Atoi(string(storedDim))
		return checkBinding(string(storedModel), dim, model, dimension)
	})
}

func (j *BoltJournal) Append(_ context.Context, doc domain.IncidentDocument) error {
	data, err := json.Marshal(toStored(doc))
	if err != nil {
		return kberrors.Wrap(err, kberrors.CodeJournalDatabaseFailure, "encode incident",
			kberrors.FieldIncidentID(doc.ID))
	}

	err = j.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketIncidents)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return b.Put(key, data)
	})
	if err != nil {
		return kberrors.Wrap(err, kberrors.CodeJournalDatabaseFailure, "append incident",
			kberrors.FieldIncidentID(doc.ID))
	}
	return nil
}

func (j *BoltJournal) Replay(ctx context.Context, fn func(domain.IncidentDocument) error) error {
	return j.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketIncidents).ForEach(func(k, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var stored storedIncident
			if err := json.Unmarshal(v, &stored); err != nil {
				return kberrors.Wrap(err, kberrors.CodeJournalDatabaseFailure, "decode incident",
					kberrors.Field("key", binary.BigEndian.Uint64(k)))
			}
			return fn(stored.toDomain())
		})
	})
}

func (j *BoltJournal) Count(_ context.Context) (int, error) {
	var n int
	err := j.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketIncidents).Stats().KeyN
		return nil
	})
	return n, err
}

func (j *BoltJournal) Close() error {
	return j.db.Close()
}

func toStored(doc domain.IncidentDocument) storedIncident {
	return storedIncident{
		ID:        doc.ID,
		Content:   doc.Content,
		Source:    string(doc.Source),
		URL:       doc.URL,
		Timestamp: doc.Timestamp.UnixNano(),
		Embedding: doc.Embedding,
	}
}

func (s storedIncident) toDomain() domain.IncidentDocument {
	return domain.IncidentDocument{
		ID:        s.ID,
		Content:   s.Content,
		Source:    domain.Source(s.Source),
		URL:       s.URL,
		Timestamp: time.Unix(0, s.Timestamp).UTC(),
		Embedding: s.Embedding,
	}
}

func checkBinding(storedModel string, storedDim int, model string, dimension int) error {
	if storedModel == model && storedDim == dimension {
		return nil
	}
	return kberrors.New(kberrors.CodeJournalModelMismatch,
		"journal was written with a different embedding model; re-ingest or point journal.path elsewhere",
		kberrors.Field("journal_model", storedModel),
		kberrors.Field("journal_dimension", storedDim),
		kberrors.Field("model", model),
		kberrors.Field("dimension", dimension),
	)
}
