package usecase

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"incidentkb/config"
	"incidentkb/internal/adapter/embedding"
	"incidentkb/internal/adapter/fs"
	"incidentkb/internal/adapter/journal"
	"incidentkb/internal/domain"
	kberrors "incidentkb/pkg/errors"
)

func newIngest(t *testing.T, j *journal.BoltJournal) (*IngestUseCase, *VectorMemory, *countingEmbedder) {
	t.Helper()
	m, counter := newHashingMemory(t)
	var uc *IngestUseCase
	if j == nil {
		uc = NewIngestUseCase(m, nil, fs.NewWalkerFromConfig(config.DefaultConfig().Ingest), nil)
	} else {
		uc = NewIngestUseCase(m, j, fs.NewWalkerFromConfig(config.DefaultConfig().Ingest), nil)
	}
	return uc, m, counter
}

func openBolt(t *testing.T, path string) *journal.BoltJournal {
	t.Helper()
	j, err := journal.NewBoltJournal(path)
	require.NoError(t, err)
	return j
}

func TestIngest_FillsIDAndTimestamp(t *testing.T) {
	uc, m, _ := newIngest(t, nil)
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	uc.now = func() time.Time { return now }

	d, err := uc.IngestSlackThread(context.Background(), slackThread, "u1", time.Time{})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(d.ID, "slack_thread_20240102030405_"), d.ID)
	assert.Equal(t, now, d.Timestamp)
	assert.Equal(t, 1, m.Len())
}

func TestIngest_Validation(t *testing.T) {
	uc, m, counter := newIngest(t, nil)

	tests := []struct {
		name string
		req  IngestRequest
	}{
		{"missing content", IngestRequest{Source: domain.SourceSlack, URL: "u"}},
		{"missing source", IngestRequest{Content: "x", URL: "u"}},
		{"missing url", IngestRequest{Content: "x", Source: domain.SourceSlack}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.Ingest(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, kberrors.IsInvalidInput(err))
		})
	}
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 0, counter.count())
}

func TestIngest_JournalRestoreDoesNotReembed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	j := openBolt(t, path)
	uc, _, _ := newIngest(t, j)
	_, err := uc.IngestSlackThread(ctx, slackThread, "u1", time.Now())
	require.NoError(t, err)
	_, err = uc.IngestConfluencePage(ctx, confluencePage, "u2", time.Now())
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j = openBolt(t, path)
	defer j.Close()
	restoredUC, m, counter := newIngest(t, j)

	n, err := restoredUC.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, 0, counter.count())

	docs := m.Documents()
	assert.Equal(t, "u1", docs[0].URL)
	assert.Equal(t, "u2", docs[1].URL)
}

func TestIngest_RestoreRejectsOtherModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	j := openBolt(t, path)
	require.NoError(t, j.Bind(ctx, "text-embedding-3-small", 1536))
	require.NoError(t, j.Close())

	j = openBolt(t, path)
	defer j.Close()
	uc, _, _ := newIngest(t, j)

	_, err := uc.Restore(ctx)
	require.Error(t, err)
	assert.True(t, kberrors.HasCode(err, kberrors.CodeJournalModelMismatch))
}

func TestIngestDir(t *testing.T) {
	root := t.TempDir()
	write := func(rel, content string) {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	write("slack/db-outage.txt", slackThread)
	write("postmortems/db.md", confluencePage)
	write("empty.log", "")
	write("ignored.png", "binary")

	uc, m, _ := newIngest(t, nil)

	var calls int
	result, err := uc.IngestDir(context.Background(), root, func(done, total int, _ string) {
		calls++
		assert.Equal(t, 3, total)
		assert.LessOrEqual(t, done, total)
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.FilesIngested)
	assert.Equal(t, 1, result.FilesSkipped)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, m.Len())

	sources := map[domain.Source]string{}
	for _, d := range m.Documents() {
		sources[d.Source] = d.URL
		assert.True(t, strings.HasPrefix(d.URL, "file://"), d.URL)
	}
	assert.Contains(t, sources[domain.SourceSlack], "db-outage.txt")
	assert.Contains(t, sources[domain.SourceConfluence], "db.md")
}

func TestIngestDir_TwiceStoresEachFileOnce(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte(slackThread), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.md"), []byte(confluencePage), 0644))
	ctx := context.Background()

	uc, m, counter := newIngest(t, nil)

	first, err := uc.IngestDir(ctx, root, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, first.FilesIngested)
	embeds := counter.count()

	second, err := uc.IngestDir(ctx, root, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, second.FilesIngested)
	assert.Equal(t, 2, second.FilesUnchanged)
	assert.Empty(t, second.Errors)
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, embeds, counter.count())

	var slackID string
	for _, d := range m.Documents() {
		if d.Source == domain.SourceSlack {
			slackID = d.ID
		}
	}
	require.NotEmpty(t, slackID)

	tools := NewIncidentTools(m)
	out, err := tools.LinkIncidents(ctx, slackID)
	require.NoError(t, err)
	assert.NotContains(t, out, "a.txt")
	assert.Contains(t, out, "b.md")
}

func TestIngestFile_EditedFileIsNewIncident(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("pool exhausted"), 0644))
	ctx := context.Background()

	uc, m, _ := newIngest(t, nil)

	first, created, err := uc.IngestFile(ctx, fsFile(path), "")
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := uc.IngestFile(ctx, fsFile(path), "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	require.NoError(t, os.WriteFile(path, []byte("pool exhausted, raised to 50"), 0644))
	edited, created, err := uc.IngestFile(ctx, fsFile(path), "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, edited.ID)
	assert.Equal(t, 2, m.Len())
}

func TestIngestDir_SkipsFilesRestoredFromJournal(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte(slackThread), 0644))
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	j := openBolt(t, path)
	uc, _, _ := newIngest(t, j)
	_, err := uc.IngestDir(ctx, root, nil)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j = openBolt(t, path)
	defer j.Close()
	restored, m, counter := newIngest(t, j)
	_, err = restored.Restore(ctx)
	require.NoError(t, err)

	result, err := restored.IngestDir(ctx, root, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesUnchanged)
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 0, counter.count())

	n, err := j.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIngestOnce_RequiresID(t *testing.T) {
	uc, _, _ := newIngest(t, nil)
	_, _, err := uc.IngestOnce(context.Background(), IngestRequest{Content: "x", Source: domain.SourceSlack, URL: "u"})
	require.Error(t, err)
	assert.True(t, kberrors.IsInvalidInput(err))
}

func TestIngestDir_ProviderFailureIsCollected(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0644))

	m := newMemory(t, &tableEmbedder{dim: 4, err: context.DeadlineExceeded})
	uc := NewIngestUseCase(m, nil, nil, nil)

	result, err := uc.IngestDir(context.Background(), root, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.FilesIngested)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "a.txt")
	assert.Equal(t, 0, m.Len())
}

func TestIngestFile_ReadFailure(t *testing.T) {
	uc, _, _ := newIngest(t, nil)
	_, _, err := uc.IngestFile(context.Background(), fsFile("/does/not/exist.txt"), "")
	require.Error(t, err)
	assert.True(t, kberrors.HasCode(err, kberrors.CodeIngestReadFailure))
}

func TestRestore_SameModelBindsAgain(t *testing.T) {
	j := openBolt(t, filepath.Join(t.TempDir(), "journal.db"))
	defer j.Close()

	m := newMemory(t, embedding.NewHashingEmbedder(64))
	uc := NewIngestUseCase(m, j, nil, nil)
	_, err := uc.Restore(context.Background())
	require.NoError(t, err)

	// A second memory with the same model binds cleanly.
	uc2 := NewIngestUseCase(newMemory(t, embedding.NewHashingEmbedder(64)), j, nil, nil)
	_, err = uc2.Restore(context.Background())
	require.NoError(t, err)
}
