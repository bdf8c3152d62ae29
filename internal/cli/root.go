package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"incidentkb/config"
)

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
)

var rootCmd = &cobra.Command{
	Use:   "incidentkb",
	Short: "Incident knowledge base - search, summarize and link past incidents",
	Long: `incidentkb keeps chat transcripts and postmortems in a vector memory and
exposes three retrieval tools over it: semantic search, source-aware summaries
and related-incident discovery. A planning model can call the tools through
'ask', or other programs can call them over HTTP with 'serve'.

Example usage:
  incidentkb ingest ./exports            # Ingest a directory of exports
  incidentkb search -q "connection pool" # Find similar incidents
  incidentkb summarize <id>              # Summarize one incident
  incidentkb ask -q "why was checkout slow last week?"`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./incidentkb.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory holding .incidentkb (default is current directory)")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}
