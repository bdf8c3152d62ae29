package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"incidentkb/config"
	"incidentkb/internal/adapter/cache"
	"incidentkb/internal/adapter/embedding"
	"incidentkb/internal/adapter/fs"
	"incidentkb/internal/adapter/index"
	"incidentkb/internal/adapter/journal"
	"incidentkb/internal/adapter/memstore"
	"incidentkb/internal/adapter/planner"
	"incidentkb/internal/logging"
	"incidentkb/internal/port"
	"incidentkb/internal/usecase"
	kberrors "incidentkb/pkg/errors"
)

// app is the wired object graph shared by every command.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	journal port.Journal
	walker  *fs.Walker
	memory  *usecase.VectorMemory
	tools   *usecase.IncidentTools
	ingest  *usecase.IngestUseCase
}

// newApp builds the memory from config and replays the journal into it.
func newApp(ctx context.Context) (*app, error) {
	cfg := GetConfig()
	root := GetRootDir()

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		return nil, kberrors.Wrap(err, kberrors.CodeEmbeddingConfigInvalid, "create embedder",
			kberrors.FieldProvider(cfg.Embedding.Provider))
	}
	if cfg.Embedding.CacheSize > 0 {
		embedder = cache.NewCachedEmbedder(embedder,
			cache.NewEmbeddingCache(cfg.Embedding.CacheSize, cfg.Embedding.CacheTTL.Duration()))
	}

	idx, err := index.NewFlatL2Index(embedder.Dimension())
	if err != nil {
		return nil, err
	}
	memory, err := usecase.NewVectorMemory(embedder, memstore.NewMemoryStore(), idx,
		usecase.WithDuplicateRejection(cfg.Memory.RejectDuplicateIDs),
		usecase.WithMemoryLogger(logger))
	if err != nil {
		return nil, err
	}

	if cfg.Journal.Backend != "none" {
		if err := config.EnsureDataDir(root); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", config.DataDirName, err)
		}
	}
	j, err := journal.Open(cfg.Journal.Backend, cfg.JournalPath(root))
	if err != nil {
		return nil, err
	}

	walker := fs.NewWalkerFromConfig(cfg.Ingest)
	a := &app{
		cfg:     cfg,
		logger:  logger,
		journal: j,
		walker:  walker,
		memory:  memory,
		tools:   usecase.NewIncidentTools(memory),
		ingest:  usecase.NewIngestUseCase(memory, j, walker, logger),
	}

	restored, err := a.ingest.Restore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	logger.Debug("memory ready",
		zap.Int("incidents", restored),
		zap.String("model", embedder.ModelName()),
		zap.Int("dimension", embedder.Dimension()))
	return a, nil
}

// searchTools returns tools sized for interactive search. k <= 0 falls back
// to memory.top_k. The shared tools keep the fixed contract.
func (a *app) searchTools(k int) *usecase.IncidentTools {
	if k <= 0 {
		k = a.cfg.Memory.TopK
	}
	if k == usecase.DefaultTopK && a.cfg.Memory.PreviewChars == usecase.DefaultPreviewChars {
		return a.tools
	}
	return usecase.NewIncidentTools(a.memory,
		usecase.WithTopK(k),
		usecase.WithPreviewChars(a.cfg.Memory.PreviewChars))
}

// asker wires the planning model. It fails when the planner cannot be
// configured, e.g. without an API key.
func (a *app) asker() (*usecase.AskUseCase, error) {
	p, err := planner.NewOpenAIPlanner(a.cfg.Planner, a.logger)
	if err != nil {
		return nil, err
	}
	return usecase.NewAskUseCase(p, a.tools.Tools(), a.logger), nil
}

// report logs err with its structured context before cobra prints it.
func (a *app) report(err error) error {
	if err != nil {
		fields := append(logging.Fields(kberrors.FieldsOf(err)),
			zap.String("code", string(kberrors.CodeOf(err))), zap.Error(err))
		a.logger.Debug("command failed", fields...)
	}
	return err
}

func (a *app) Close() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.Warn("failed to close journal", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
