package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"incidentkb/internal/adapter/fs"
	"incidentkb/internal/domain"
	"incidentkb/internal/port"
	kberrors "incidentkb/pkg/errors"
)

// IngestUseCase turns raw incident exports into documents, adds them to the
// memory and records them in the journal.
type IngestUseCase struct {
	memory  *VectorMemory
	journal port.Journal
	walker  *fs.Walker
	logger  *zap.Logger
	now     func() time.Time

	bindMu sync.Mutex
	bound  bool

	onceMu sync.Mutex
}

// NewIngestUseCase creates an ingest use case. A nil journal disables
// persistence; a nil walker matches every file and classifies by extension.
func NewIngestUseCase(memory *VectorMemory, journal port.Journal, walker *fs.Walker, logger *zap.Logger) *IngestUseCase {
	if walker == nil {
		walker = fs.NewWalker(nil, nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestUseCase{
		memory:  memory,
		journal: journal,
		walker:  walker,
		logger:  logger,
		now:     time.Now,
	}
}

// IngestRequest is what the ingestion boundary accepts. ID and Timestamp are
// filled in when left empty.
type IngestRequest struct {
	ID        string        `json:"id,omitempty"`
	Content   string        `json:"content"`
	Source    domain.Source `json:"source"`
	URL       string        `json:"url"`
	Timestamp time.Time     `json:"timestamp,omitempty"`
}

// IngestResult summarizes a directory ingestion.
type IngestResult struct {
	FilesIngested  int
	FilesSkipped   int
	FilesUnchanged int
	IDs           []string
	Errors        []string
}

// ProgressFunc is called after each file of a directory ingestion.
type ProgressFunc func(done, total int, path string)

// Ingest validates req, adds the document to memory and journals it.
func (u *IngestUseCase) Ingest(ctx context.Context, req IngestRequest) (domain.IncidentDocument, error) {
	if err := u.bind(ctx); err != nil {
		return domain.IncidentDocument{}, err
	}

	source, err := domain.ParseSource(string(req.Source))
	if err != nil {
		return domain.IncidentDocument{}, kberrors.Wrap(err, kberrors.CodeIncidentInvalid, "invalid incident")
	}
	ts := req.Timestamp
	if ts.IsZero() {
		ts = u.now()
	}
	id := req.ID
	if id == "" {
		id = domain.NewIncidentID(source, ts)
	}

	doc := domain.IncidentDocument{
		ID:        id,
		Content:   req.Content,
		Source:    source,
		URL:       req.URL,
		Timestamp: ts,
	}
	if err := doc.Validate(); err != nil {
		return domain.IncidentDocument{}, kberrors.Wrap(err, kberrors.CodeIncidentInvalid, "invalid incident",
			kberrors.FieldIncidentID(id))
	}

	doc, err = u.memory.AddDocument(ctx, doc)
	if err != nil {
		return domain.IncidentDocument{}, err
	}

	if u.journal != nil {
		if err := u.journal.Append(ctx, doc); err != nil {
			u.logger.Error("journal append failed; incident kept in memory only",
				zap.String("incident_id", doc.ID), zap.Error(err))
			return doc, err
		}
	}

	u.logger.Info("incident ingested",
		zap.String("incident_id", doc.ID),
		zap.String("source", string(doc.Source)),
		zap.String("url", doc.URL))
	return doc, nil
}

// IngestSlackThread ingests a chat transcript.
func (u *IngestUseCase) IngestSlackThread(ctx context.Context, content, url string, ts time.Time) (domain.IncidentDocument, error) {
	return u.Ingest(ctx, IngestRequest{Content: content, Source: domain.SourceSlack, URL: url, Timestamp: ts})
}

// IngestConfluencePage ingests a wiki-style postmortem.
func (u *IngestUseCase) IngestConfluencePage(ctx context.Context, content, url string, ts time.Time) (domain.IncidentDocument, error) {
	return u.Ingest(ctx, IngestRequest{Content: content, Source: domain.SourceConfluence, URL: url, Timestamp: ts})
}

// IngestOnce ingests req unless an incident with req.ID is already stored,
// in which case the stored incident is returned with created=false.
func (u *IngestUseCase) IngestOnce(ctx context.Context, req IngestRequest) (doc domain.IncidentDocument, created bool, err error) {
	if req.ID == "" {
		return domain.IncidentDocument{}, false, kberrors.New(kberrors.CodeIncidentInvalid, "id is required")
	}

	u.onceMu.Lock()
	defer u.onceMu.Unlock()

	if existing, ok := u.memory.FindByID(req.ID); ok {
		u.logger.Debug("incident already stored", zap.String("incident_id", req.ID))
		return existing, false, nil
	}
	doc, err = u.Ingest(ctx, req)
	return doc, err == nil, err
}

// IngestFile ingests one file. An empty source is derived from the path; the
// file's modification time becomes the incident time. The id is derived from
// the file's URL and content, so an unchanged file is not stored twice.
func (u *IngestUseCase) IngestFile(ctx context.Context, file port.FileInfo, source domain.Source) (domain.IncidentDocument, bool, error) {
	content, err := fs.ReadFile(file.Path)
	if err != nil {
		return domain.IncidentDocument{}, false, kberrors.Wrap(err, kberrors.CodeIngestReadFailure, "read incident file",
			kberrors.Field("path", file.Path))
	}

	if source == "" {
		source = file.Source
	}
	if source == "" {
		source = u.walker.Classify(filepath.Base(file.Path))
	}

	ts := u.now()
	if file.ModTime > 0 {
		ts = time.Unix(file.ModTime, 0)
	}

	url := fileURL(file.Path)
	return u.IngestOnce(ctx, IngestRequest{
		ID:        domain.FileIncidentID(source, url, content),
		Content:   content,
		Source:    source,
		URL:       url,
		Timestamp: ts,
	})
}

// IngestDir ingests every matching file under root. Per-file failures are
// collected; only walk errors and cancellation abort the run.
func (u *IngestUseCase) IngestDir(ctx context.Context, root string, progress ProgressFunc) (*IngestResult, error) {
	files, err := u.walker.Walk(root)
	if err != nil {
		return nil, kberrors.Wrap(err, kberrors.CodeIngestReadFailure, "walk directory",
			kberrors.Field("root", root))
	}

	result := &IngestResult{}
	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if file.Size == 0 {
			result.FilesSkipped++
		} else if doc, created, err := u.IngestFile(ctx, file, ""); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to ingest %s: %v", file.Path, err))
			if kberrors.IsEmbeddingFailure(err) || kberrors.IsDimensionMismatch(err) {
				u.logger.Warn("ingest failed", zap.String("path", file.Path), zap.Error(err))
			}
		} else if !created {
			result.FilesUnchanged++
		} else {
			result.FilesIngested++
			result.IDs = append(result.IDs, doc.ID)
		}

		if progress != nil {
			progress(i+1, len(files), file.Path)
		}
	}

	u.logger.Info("directory ingested",
		zap.String("root", root),
		zap.Int("ingested", result.FilesIngested),
		zap.Int("skipped", result.FilesSkipped),
		zap.Int("unchanged", result.FilesUnchanged),
		zap.Int("errors", len(result.Errors)))
	return result, nil
}

// Restore replays the journal into memory. Stored embeddings are reused, so
// the provider is not called.
func (u *IngestUseCase) Restore(ctx context.Context) (int, error) {
	if u.journal == nil {
		return 0, nil
	}
	if err := u.bind(ctx); err != nil {
		return 0, err
	}

	restored := 0
	err := u.journal.Replay(ctx, func(doc domain.IncidentDocument) error {
		if _, err := u.memory.AddDocument(ctx, doc); err != nil {
			return err
		}
		restored++
		return nil
	})
	if err != nil {
		return restored, err
	}

	u.logger.Info("journal restored", zap.Int("incidents", restored))
	return restored, nil
}

func (u *IngestUseCase) bind(ctx context.Context) error {
	if u.journal == nil {
		return nil
	}

	u.bindMu.Lock()
	defer u.bindMu.Unlock()
	if u.bound {
		return nil
	}
	if err := u.journal.Bind(ctx, u.memory.Embedder().ModelName(), u.memory.Dimension()); err != nil {
		return err
	}
	u.bound = true
	return nil
}

func fileURL(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return "file://" + filepath.ToSlash(path)
}
