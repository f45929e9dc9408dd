package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the snip release, overridden at build time with
// -ldflags "-X github.com/mesh-intelligence/snip/internal/cli.Version=...".
var Version = "0.1.0"

const modulePath = "github.com/mesh-intelligence/snip"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the snip version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "snip v%s\nmodule: %s\n", Version, modulePath)
			return nil
		},
	}
}
