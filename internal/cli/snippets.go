// Snippet commands: add, cmd, edit, delete and view.
package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/snip/internal/language"
	"github.com/mesh-intelligence/snip/pkg/types"
)

// snippetFlags are the content flags shared by add, cmd and edit.
type snippetFlags struct {
	description string
	language    string
	tags        string
	code        string
	file        string
}

func (f *snippetFlags) register(cmd *cobra.Command, withLanguage bool) {
	fs := cmd.Flags()
	fs.StringVarP(&f.description, "description", "d", "", "snippet description")
	if withLanguage {
		fs.StringVarP(&f.language, "language", "l", "", "snippet language (default: from --file extension)")
		fs.StringVarP(&f.code, "code", "c", "", "snippet code")
		fs.StringVarP(&f.file, "file", "f", "", "read code from file")
	}
	fs.StringVarP(&f.tags, "tags", "t", "", "space or comma separated tags")
}

// parseID reads a snippet id argument.
func parseID(arg string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimPrefix(arg, "#"), 10, 64)
	if err != nil || id == 0 {
		return 0, userError("invalid snippet id %q", arg)
	}
	return id, nil
}

// readCode returns the code given by --code, --file or a piped stdin, in
// that order. ok is false when none of them supplied any.
func readCode(f *snippetFlags, in io.Reader) (code string, ok bool, err error) {
	switch {
	case f.code != "":
		return f.code, true, nil
	case f.file != "":
		data, err := os.ReadFile(f.file)
		if err != nil {
			return "", false, userError("read %s: %v", f.file, err)
		}
		return string(data), true, nil
	case in != nil && !isTerminal(in):
		data, err := io.ReadAll(in)
		if err != nil {
			return "", false, fmt.Errorf("read stdin: %w", err)
		}
		return string(data), len(data) > 0, nil
	}
	return "", false, nil
}

func newAddCmd(a *app) *cobra.Command {
	var f snippetFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a snippet",
		Long: "Add a snippet. Code comes from --code, --file or stdin; on a terminal,\n" +
			"missing fields are asked for in a form.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			code, haveCode, err := readCode(&f, in)
			if err != nil {
				return err
			}
			s := &types.Snippet{
				Description: f.description,
				Language:    f.language,
				Code:        code,
				Tags:        types.SplitTags(f.tags),
			}
			if s.Language == "" && f.file != "" {
				s.Language = language.Default().Language(filepath.Base(f.file))
			}
			if (s.Description == "" || s.Language == "" || !haveCode) && isTerminal(in) {
				if err := promptSnippet(s, language.Default().Names()); err != nil {
					return err
				}
			}
			return a.insert(cmd, s)
		},
	}
	f.register(cmd, true)
	return cmd
}

// newShellCmd adds a shell command snippet.
func newShellCmd(a *app) *cobra.Command {
	var f snippetFlags
	cmd := &cobra.Command{
		Use:   "cmd [command...]",
		Short: "Add a shell command snippet",
		Long:  "Save a shell one-liner. The description defaults to the command itself.",
		RunE: func(cmd *cobra.Command, args []string) error {
			code := strings.Join(args, " ")
			if code == "" {
				c, _, err := readCode(&f, cmd.InOrStdin())
				if err != nil {
					return err
				}
				code = strings.TrimSpace(c)
			}
			if code == "" {
				return userError("no command given")
			}
			desc := f.description
			if desc == "" {
				desc = code
			}
			return a.insert(cmd, &types.Snippet{
				Description: desc,
				Language:    shellLanguage,
				Code:        code,
				Tags:        types.SplitTags(f.tags),
			})
		},
	}
	f.register(cmd, false)
	return cmd
}

const shellLanguage = "sh"

func (a *app) insert(cmd *cobra.Command, s *types.Snippet) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Detach()

	id, err := store.Insert(cmd.Context(), s)
	if err != nil {
		return err
	}
	a.logger.Info("snippet added", "id", id, "language", s.Language)
	return a.printer(cmd).done(s, "Added snippet #%d", id)
}

func newEditCmd(a *app) *cobra.Command {
	var f snippetFlags
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a snippet",
		Long: "Change the fields given by flags. On a terminal without flags, edit all\n" +
			"fields in a form.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Detach()

			ctx := cmd.Context()
			s, err := store.Get(ctx, id)
			if err != nil {
				return err
			}

			fs := cmd.Flags()
			changed := false
			if fs.Changed("description") {
				s.Description, changed = f.description, true
			}
			if fs.Changed("language") {
				s.Language, changed = f.language, true
			}
			if fs.Changed("tags") {
				s.Tags, changed = types.SplitTags(f.tags), true
			}
			if fs.Changed("code") || fs.Changed("file") {
				code, _, err := readCode(&f, nil)
				if err != nil {
					return err
				}
				s.Code, changed = code, true
			}
			if !changed {
				if !isTerminal(cmd.InOrStdin()) {
					return userError("nothing to change: pass --description, --language, --tags, --code or --file")
				}
				if err := promptSnippet(s, language.Default().Names()); err != nil {
					return err
				}
			}

			if err := store.Update(ctx, id, s, types.UpdateOptions{}); err != nil {
				return err
			}
			a.logger.Info("snippet updated", "id", id)
			updated, err := store.Get(ctx, id)
			if err != nil {
				return err
			}
			return a.printer(cmd).done(updated, "Updated snippet #%d", id)
		},
	}
	f.register(cmd, true)
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a snippet",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Detach()

			ctx := cmd.Context()
			s, err := store.Get(ctx, id)
			if err != nil {
				return err
			}
			if err := confirm(cmd.InOrStdin(), force, fmt.Sprintf("Delete snippet #%d %q?", id, s.Description)); err != nil {
				return err
			}
			if err := store.Delete(ctx, id); err != nil {
				return err
			}
			a.logger.Info("snippet deleted", "id", id)
			return a.printer(cmd).done(map[string]uint64{"deleted": id}, "Deleted snippet #%d", id)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "do not ask for confirmation")
	return cmd
}

func newViewCmd(a *app) *cobra.Command {
	var codeOnly bool
	cmd := &cobra.Command{
		Use:   "view <id>",
		Short: "Show a snippet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Detach()

			s, err := store.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if codeOnly {
				_, err := io.WriteString(cmd.OutOrStdout(), s.Code)
				return err
			}
			return a.printer(cmd).snippet(s)
		},
	}
	cmd.Flags().BoolVar(&codeOnly, "code", false, "print only the code")
	return cmd
}
