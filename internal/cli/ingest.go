package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"incidentkb/internal/domain"
	"incidentkb/internal/port"
	"incidentkb/internal/usecase"
)

var (
	ingestSource string
	ingestURL    string
	ingestID     string
	ingestTime   string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Ingest incident exports",
	Long: `Ingest a chat transcript or postmortem, or every matching file in a directory.
Files under slack/ or ending in .txt/.log are treated as chat transcripts,
markdown and confluence/ exports as postmortems (see ingest.*_patterns in the
config). Use "-" to read one incident from stdin.

Examples:
  incidentkb ingest ./exports
  incidentkb ingest outage.md --url https://wiki/outage
  cat thread.txt | incidentkb ingest - --source slack --url https://slack/t/1`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVar(&ingestSource, "source", "", "source tag (slack, confluence); derived from the path when empty")
	ingestCmd.Flags().StringVar(&ingestURL, "url", "", "provenance URL (defaults to file:// path)")
	ingestCmd.Flags().StringVar(&ingestID, "id", "", "incident id (generated when empty)")
	ingestCmd.Flags().StringVar(&ingestTime, "time", "", "incident time, RFC3339 or YYYY-MM-DD HH:MM:SS (default now)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	path := GetRootDir()
	if len(args) > 0 {
		path = args[0]
	}

	if path == "-" {
		return a.report(ingestStdin(cmd, a))
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}

	if !info.IsDir() {
		return a.report(ingestSingleFile(cmd, a, abs, info))
	}
	return a.report(ingestDirectory(cmd, a, abs))
}

func ingestStdin(cmd *cobra.Command, a *app) error {
	if ingestSource == "" || ingestURL == "" {
		return fmt.Errorf("--source and --url are required when reading from stdin")
	}
	content, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("failed to read stdin: %w", err)
	}
	ts, err := parseIncidentTime(ingestTime)
	if err != nil {
		return err
	}

	doc, err := a.ingest.Ingest(cmd.Context(), usecase.IngestRequest{
		ID:        ingestID,
		Content:   string(content),
		Source:    domain.Source(ingestSource),
		URL:       ingestURL,
		Timestamp: ts,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Ingested %s\n", doc.ID)
	return nil
}

func ingestSingleFile(cmd *cobra.Command, a *app, path string, info os.FileInfo) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	source := domain.Source(ingestSource)
	if source == "" {
		source = a.walker.Classify(filepath.Base(path))
	}
	url := ingestURL
	if url == "" {
		url = "file://" + filepath.ToSlash(path)
	}
	ts := info.ModTime()
	if ingestTime != "" {
		if ts, err = parseIncidentTime(ingestTime); err != nil {
			return err
		}
	}

	id := ingestID
	if id == "" {
		id = domain.FileIncidentID(source, url, string(content))
	}
	doc, created, err := a.ingest.IngestOnce(cmd.Context(), usecase.IngestRequest{
		ID:        id,
		Content:   string(content),
		Source:    source,
		URL:       url,
		Timestamp: ts,
	})
	if err != nil {
		return err
	}
	if !created {
		fmt.Fprintf(cmd.OutOrStdout(), "Already stored as %s\n", doc.ID)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Ingested %s (%s)\n", doc.ID, doc.Source)
	return nil
}

func ingestDirectory(cmd *cobra.Command, a *app, root string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Scanning %s...\n", root)

	var bar *progressbar.ProgressBar
	var barMu sync.Mutex
	var startTime time.Time

	progress := func(done, total int, _ string) {
		barMu.Lock()
		defer barMu.Unlock()

		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(cmd.ErrOrStderr())
				}),
			)
		}

		_ = bar.Set(done)

		elapsed := time.Since(startTime)
		if rate := float64(done) / elapsed.Seconds(); done > 0 && rate > 0 {
			eta := time.Duration(float64(total-done)/rate) * time.Second
			bar.Describe(fmt.Sprintf("[cyan]Ingesting[reset] ETA: %s", formatDuration(eta)))
		}
	}

	result, err := a.ingest.IngestDir(cmd.Context(), root, progress)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Fprintf(out, "\nIngestion complete:\n")
	fmt.Fprintf(out, "  Files ingested: %d\n", result.FilesIngested)
	fmt.Fprintf(out, "  Files skipped:  %d (empty)\n", result.FilesSkipped)
	fmt.Fprintf(out, "  Unchanged:      %d (already stored)\n", result.FilesUnchanged)
	fmt.Fprintf(out, "  Incidents:      %d\n", a.memory.Len())

	if len(result.Errors) > 0 {
		fmt.Fprintf(out, "\nWarnings:\n")
		for _, e := range result.Errors {
			fmt.Fprintf(out, "  - %s\n", e)
		}
	}
	return nil
}

// parseIncidentTime accepts RFC3339 or the summary layout. Empty means zero,
// which the ingest use case replaces with the current time.
func parseIncidentTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	ts, err := time.ParseInLocation(domain.TimestampLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --time %q: use RFC3339 or %q", s, domain.TimestampLayout)
	}
	return ts, nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

func fileInfoFor(a *app, root, path string) (port.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return port.FileInfo{}, err
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	rel = filepath.ToSlash(rel)
	return port.FileInfo{
		Path:    path,
		RelPath: rel,
		ModTime: info.ModTime().Unix(),
		Size:    info.Size(),
		Source:  a.walker.Classify(rel),
	}, nil
}
