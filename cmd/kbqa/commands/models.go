package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kbqa-dev/kbqa-go/internal/registry"
)

// NewModelsCmd constructs the `kbqa models` command, which lists the
// configured providers and the models each one serves.
func NewModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List configured providers and their models",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.New(&cfg.AI)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tWIRE\tMODEL\tDEFAULT")
			for _, pc := range reg.Providers() {
				for _, model := range pc.Models {
					def := ""
					if model == reg.DefaultModel() {
						def = "*"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", pc.Name, pc.Wire, model, def)
				}
			}
			return w.Flush()
		},
	}
}
