package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var askQuestion string

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer a question with the planning model and the incident tools",
	Long: `Send a question to the planning model. The model decides which incident
tools to call and answers from their output.

Examples:
  incidentkb ask -q "have we seen connection pool exhaustion before?"`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askQuestion, "query", "q", "", "question (required)")
	askCmd.MarkFlagRequired("query")
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	asker, err := a.asker()
	if err != nil {
		return a.report(err)
	}

	answer, err := asker.Ask(cmd.Context(), askQuestion)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), answer)
	return nil
}
