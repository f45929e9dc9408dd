// Export and import of snippets as JSON lines.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/snip/internal/gist"
	"github.com/mesh-intelligence/snip/internal/language"
	"github.com/mesh-intelligence/snip/pkg/types"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		f    filterFlags
		path string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export snippets as JSON lines",
		Long:  "Write one JSON object per snippet to --file, or to stdout.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := f.filter(time.Now())
			if err != nil {
				return err
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Detach()

			ctx := cmd.Context()
			var n int
			if path != "" {
				n, err = store.ExportFile(ctx, path, filter)
			} else {
				n, err = store.Export(ctx, cmd.OutOrStdout(), filter)
			}
			if err != nil {
				return err
			}
			a.logger.Info("snippets exported", "count", n, "file", path)
			if path != "" {
				return a.printer(cmd).done(map[string]any{"exported": n, "file": path},
					"Exported %d snippets to %s", n, path)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d snippets\n", n)
			return nil
		},
	}
	f.register(cmd, false)
	cmd.Flags().StringVarP(&path, "file", "f", "", "write to this file instead of stdout")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	var (
		path        string
		preserveIDs bool
		gistRef     string
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import snippets from JSON lines or a gist",
		Long: "Read snippets exported by \"snip export\" from --file, or from stdin.\n" +
			"Nothing is imported if any line is malformed.\n\n" +
			"With --gist, every file of the gist becomes a new snippet. A gist\n" +
			"written by snip keeps its descriptions and tags; files of any other\n" +
			"gist are tagged \"" + gist.ImportTag + "\".",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if gistRef != "" {
				if path != "" || preserveIDs {
					return userError("--gist cannot be combined with --file or --preserve-ids")
				}
				return a.importGist(cmd, gistRef)
			}
			var r io.Reader = cmd.InOrStdin()
			if path != "" {
				file, err := os.Open(path)
				if err != nil {
					return userError("open %s: %v", path, err)
				}
				defer file.Close()
				r = file
			} else if isTerminal(r) {
				return userError("nothing to import: pass --file or pipe JSON lines on stdin")
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Detach()

			n, err := store.Import(cmd.Context(), r, types.ImportOptions{PreserveIDs: preserveIDs})
			if err != nil {
				return err
			}
			a.logger.Info("snippets imported", "count", n, "preserve_ids", preserveIDs)
			return a.printer(cmd).done(map[string]int{"imported": n}, "Imported %d snippets", n)
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "", "read from this file instead of stdin")
	cmd.Flags().BoolVar(&preserveIDs, "preserve-ids", false, "keep the ids in the input; fail on ids already in use")
	cmd.Flags().StringVar(&gistRef, "gist", "", "import the files of this gist (id or URL)")
	return cmd
}

// importGist copies every file of a gist into the store under new ids.
func (a *app) importGist(cmd *cobra.Command, ref string) error {
	id, err := gist.ParseGistRef(ref)
	if err != nil {
		return userError("%v", err)
	}
	ctx := cmd.Context()
	client := gist.NewClient(ctx, a.cfg.GetString(cfgKeyGitHubToken), a.cfg.GetString(cfgKeyAPIURL))
	g, err := client.Get(ctx, id)
	if err != nil {
		if errors.Is(err, gist.ErrGistNotFound) {
			return userError("gist %s not found", id)
		}
		return &types.RemoteError{Op: "fetch", Reason: err.Error(), Err: err}
	}

	snippets := gist.Snippets(g, language.Default())
	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Detach()

	n, err := store.InsertAll(ctx, snippets)
	if err != nil {
		return err
	}
	a.logger.Info("gist imported", "gist", id, "files", len(g.Files), "count", n)
	return a.printer(cmd).done(map[string]any{"imported": n, "gist": id},
		"Imported %d snippets from gist %s", n, id)
}
