package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"incidentkb/internal/domain"
	"incidentkb/internal/usecase"
)

var (
	searchQuery string
	searchTopK  int
	listJSON    bool
	toolsJSON   bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search for similar incidents",
	Long: `Search the knowledge base for incidents similar to a query.

Examples:
  incidentkb search -q "connection pool exhausted"
  incidentkb search -q "redis failover" -k 5`,
	RunE: runSearch,
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize <id>",
	Short: "Summarize one incident",
	Args:  cobra.ExactArgs(1),
	RunE:  runTool(usecase.ToolSummarizeIncident),
}

var linkCmd = &cobra.Command{
	Use:   "link <id>",
	Short: "Find incidents related to one incident",
	Args:  cobra.ExactArgs(1),
	RunE:  runTool(usecase.ToolLinkIncidents),
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested incidents",
	RunE:  runList,
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Show the tools offered to the planning model",
	RunE:  runTools,
}

func init() {
	rootCmd.AddCommand(searchCmd, summarizeCmd, linkCmd, listCmd, toolsCmd)
	searchCmd.Flags().StringVarP(&searchQuery, "query", "q", "", "search query (required)")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default memory.top_k)")
	searchCmd.MarkFlagRequired("query")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "output as JSON")
	toolsCmd.Flags().BoolVar(&toolsJSON, "json", false, "output as JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := a.searchTools(searchTopK).SearchIncidents(cmd.Context(), searchQuery)
	if err != nil {
		return a.report(err)
	}
	if out == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "No incidents found.")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

func runTool(name string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		tool, ok := usecase.FindTool(a.tools.Tools(), name)
		if !ok {
			return fmt.Errorf("tool %s is not registered", name)
		}
		out, err := tool.Call(cmd.Context(), args[0])
		if err != nil {
			return a.report(err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	}
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	docs := a.memory.Documents()
	if listJSON {
		out := make([]domain.IncidentDocument, 0, len(docs))
		for _, d := range docs {
			out = append(out, d.WithoutEmbedding())
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if len(docs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No incidents ingested yet.")
		return nil
	}
	for _, d := range docs {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %-10s  %s  %s\n", d.FormattedTime(), d.Source, d.ID, d.URL)
	}
	return nil
}

func runTools(cmd *cobra.Command, args []string) error {
	// Tool metadata does not depend on stored incidents.
	tools := usecase.NewIncidentTools(nil).Tools()

	if toolsJSON {
		type toolInfo struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		}
		out := make([]toolInfo, 0, len(tools))
		for _, t := range tools {
			out = append(out, toolInfo{Name: t.Name, Description: t.Description})
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	for _, t := range tools {
		fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", t.Name, t.Description)
	}
	return nil
}
