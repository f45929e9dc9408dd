package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/snip/pkg/types"
)

func newClearCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every snippet",
		Long: "Delete every snippet and the sync history. Ids are not reused afterwards,\n" +
			"and the gist is left untouched.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Detach()

			ctx := cmd.Context()
			all, err := store.List(ctx, types.Filter{})
			if err != nil {
				return err
			}
			if err := confirm(cmd.InOrStdin(), force, fmt.Sprintf("Delete all %d snippets?", len(all))); err != nil {
				return err
			}
			if err := store.Clear(ctx); err != nil {
				return err
			}
			a.logger.Info("store cleared", "snippets", len(all))
			return a.printer(cmd).done(map[string]int{"deleted": len(all)}, "Deleted %d snippets", len(all))
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "do not ask for confirmation")
	return cmd
}
