package commands

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/kbqa-dev/kbqa-go/internal/logging"
)

// NewAskCmd constructs the `kbqa ask` command, which answers a single
// question from the terminal and prints the answer with its sources.
func NewAskCmd() *cobra.Command {
	var model string
	var showSources bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question against the knowledge base",
		Long: `Ask a single natural language question grounded in the knowledge base.

The question is embedded, matched against the configured vector store, and
answered by the selected model with the retrieved passages as context.

Examples:
  kbqa ask "what is the standard deduction for 2023?"
  kbqa ask --model deepseek-chat "summarise the filing deadlines"
  kbqa ask --sources "who must file form 1099?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			orch, _, cleanup, err := buildPipeline(ctx, cfg, prometheus.NewRegistry(), log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer cleanup()

			res, err := orch.Answer(ctx, args[0], model)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			fmt.Println(res.Answer)

			if showSources && len(res.Sources) > 0 {
				fmt.Println("\nSources:")
				for _, src := range res.Sources {
					fmt.Printf("  - %s\n", src.Source)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "Model to answer with (default from config)")
	cmd.Flags().BoolVar(&showSources, "sources", false, "Print the source documents used as context")

	return cmd
}
