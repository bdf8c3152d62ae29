package cli

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"incidentkb/internal/adapter/watcher"
)

var watchSkipExisting bool

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Ingest incident exports as they are written",
	Long: `Watch a directory and ingest every matching file once writes settle.
Existing files are ingested first unless --skip-existing is set; files
already in the journal are not stored again.

Examples:
  incidentkb watch ./exports`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&watchSkipExisting, "skip-existing", false, "only ingest files written after start")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	dir := GetRootDir()
	if len(args) > 0 {
		dir = args[0]
	}
	dir, err = filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	if !watchSkipExisting {
		result, err := a.ingest.IngestDir(ctx, dir, nil)
		if err != nil {
			return a.report(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d existing files (%d already stored)\n",
			result.FilesIngested, result.FilesUnchanged)
	}

	onChange := func(path string) {
		file, err := fileInfoFor(a, dir, path)
		if err != nil {
			a.logger.Warn("file vanished before ingest", zap.String("path", path), zap.Error(err))
			return
		}
		doc, created, err := a.ingest.IngestFile(ctx, file, "")
		if err != nil {
			a.logger.Error("ingest failed", zap.String("path", path), zap.Error(a.report(err)))
			return
		}
		if !created {
			a.logger.Debug("file unchanged", zap.String("path", path), zap.String("incident_id", doc.ID))
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Ingested %s from %s\n", doc.ID, file.RelPath)
	}

	w, err := watcher.New(dir, a.walker.Matches, onChange,
		watcher.WithDebounce(a.cfg.Ingest.WatchDebounce.Duration()),
		watcher.WithLogger(a.logger))
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer w.Stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (Ctrl+C to stop)\n", dir)
	<-ctx.Done()
	return nil
}
