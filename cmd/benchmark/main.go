package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"incidentkb/config"
	"incidentkb/internal/adapter/embedding"
	"incidentkb/internal/adapter/index"
	"incidentkb/internal/adapter/journal"
	"incidentkb/internal/adapter/memstore"
	"incidentkb/internal/domain"
	"incidentkb/internal/port"
	"incidentkb/internal/usecase"
)

func main() {
	dir := flag.String("dir", ".", "Directory holding .incidentkb")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", usecase.DefaultTopK, "Number of results")
	runs := flag.Int("runs", 20, "Timed search repetitions")
	synthetic := flag.Int("synthetic", 0, "Use N generated incidents with the hashing embedder instead of the journal")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -dir ./kb -q \"query\"")
		fmt.Println("       go run ./cmd/benchmark -synthetic 10000 -q \"connection pool\"")
		fmt.Println("\nReports:")
		fmt.Println("  1. Corpus size, model and dimension")
		fmt.Println("  2. Top-k matches for the query")
		fmt.Println("  3. Search latency percentiles (embedding included)")
		os.Exit(1)
	}

	ctx := context.Background()
	memory, model, err := setup(ctx, *dir, *synthetic)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Setup failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("INCIDENT SEARCH BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Incidents: %d\n", memory.Len())
	fmt.Printf("Model:     %s\n", model)
	fmt.Printf("Dimension: %d\n\n", memory.Dimension())

	fmt.Printf("Query: %q\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	results, err := memory.Search(ctx, *query, *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}
	for i, doc := range results {
		preview := strings.ReplaceAll(doc.Content, "\n", " ")
		if r := []rune(preview); len(r) > 100 {
			preview = string(r[:100]) + "..."
		}
		fmt.Printf("%d. [%s] %s %s\n   %s\n\n", i+1, doc.Source.Title(), doc.ID, doc.URL, preview)
	}

	latencies := make([]time.Duration, 0, *runs)
	for i := 0; i < *runs; i++ {
		start := time.Now()
		if _, err := memory.Search(ctx, *query, *topK); err != nil {
			fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
			os.Exit(1)
		}
		latencies = append(latencies, time.Since(start))
	}
	if len(latencies) == 0 {
		return
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("LATENCY over %d runs:\n", len(latencies))
	fmt.Printf("  p50: %s\n", percentile(latencies, 0.50))
	fmt.Printf("  p95: %s\n", percentile(latencies, 0.95))
	fmt.Printf("  max: %s\n", latencies[len(latencies)-1])
}

func setup(ctx context.Context, dir string, synthetic int) (*usecase.VectorMemory, string, error) {
	if synthetic > 0 {
		emb := embedding.NewHashingEmbedder(256)
		memory, err := newMemory(emb)
		if err != nil {
			return nil, "", err
		}
		sources := []domain.Source{domain.SourceSlack, domain.SourceConfluence}
		ts := time.Now()
		for i := 0; i < synthetic; i++ {
			doc := domain.IncidentDocument{
				ID:        fmt.Sprintf("synthetic_%d", i),
				Content:   syntheticContent(i),
				Source:    sources[i%2],
				URL:       fmt.Sprintf("https://example.invalid/incidents/%d", i),
				Timestamp: ts,
			}
			if _, err := memory.AddDocument(ctx, doc); err != nil {
				return nil, "", err
			}
		}
		return memory, emb.ModelName(), nil
	}

	cfg, err := config.LoadFromDir(dir)
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	emb, err := embedding.New(cfg.Embedding)
	if err != nil {
		return nil, "", fmt.Errorf("embedder init failed: %w", err)
	}
	memory, err := newMemory(emb)
	if err != nil {
		return nil, "", err
	}

	j, err := journal.Open(cfg.Journal.Backend, cfg.JournalPath(dir))
	if err != nil {
		return nil, "", err
	}
	defer j.Close()

	n, err := usecase.NewIngestUseCase(memory, j, nil, nil).Restore(ctx)
	if err != nil {
		return nil, "", err
	}
	if n == 0 {
		return nil, "", fmt.Errorf("journal is empty - run 'incidentkb ingest' first")
	}
	return memory, emb.ModelName(), nil
}

func newMemory(emb port.Embedder) (*usecase.VectorMemory, error) {
	idx, err := index.NewFlatL2Index(emb.Dimension())
	if err != nil {
		return nil, err
	}
	return usecase.NewVectorMemory(emb, memstore.NewMemoryStore(), idx)
}

var syntheticTopics = []string{
	"database connection pool exhausted under load",
	"redis failover triggered by memory pressure",
	"kafka consumer lag after broker restart",
	"certificate expired on the public load balancer",
	"dns resolution failures in the eu region",
	"disk full on the logging cluster",
}

func syntheticContent(i int) string {
	return fmt.Sprintf("incident %d: %s", i, syntheticTopics[i%len(syntheticTopics)])
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}
