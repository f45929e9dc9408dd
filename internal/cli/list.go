package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/snip/pkg/types"
)

// filterFlags are the selection flags shared by list and export.
type filterFlags struct {
	languages []string
	tags      []string
	from      string
	to        string
	text      string
	pattern   string
	limit     int
}

func (f *filterFlags) register(cmd *cobra.Command, withText bool) {
	fs := cmd.Flags()
	fs.StringSliceVarP(&f.languages, "language", "l", nil, "only these languages (repeatable)")
	fs.StringSliceVarP(&f.tags, "tag", "t", nil, "only snippets with any of these tags (repeatable)")
	fs.StringVar(&f.from, "from", "", "modified on or after (YYYY-MM-DD or e.g. \"last week\")")
	fs.StringVar(&f.to, "to", "", "modified on or before (YYYY-MM-DD or e.g. \"yesterday\")")
	if withText {
		fs.StringVar(&f.text, "text", "", "case-insensitive text in description, code or tags")
		fs.StringVar(&f.pattern, "pattern", "", "regular expression over description, code or tags")
		fs.IntVar(&f.limit, "limit", 0, "show at most this many snippets")
	}
}

// filter builds a types.Filter relative to now.
func (f *filterFlags) filter(now time.Time) (types.Filter, error) {
	if f.text != "" && f.pattern != "" {
		return types.Filter{}, userError("--text and --pattern are mutually exclusive")
	}
	if f.limit < 0 {
		return types.Filter{}, userError("--limit must not be negative")
	}
	from, to, err := dateRange(f.from, f.to, now)
	if err != nil {
		return types.Filter{}, err
	}
	filter := types.Filter{
		Languages: f.languages,
		Tags:      f.tags,
		From:      from,
		To:        to,
		Text:      f.text,
		Limit:     f.limit,
	}
	if f.pattern != "" {
		filter.Text, filter.TextMode = f.pattern, types.TextPattern
	}
	return filter, nil
}

func newListCmd(a *app) *cobra.Command {
	var f filterFlags
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls", "search"},
		Short:   "List snippets",
		Long: "List snippets, filtered by language, tag, modification date and text.\n" +
			"Filters combine: a snippet must pass all of them.",
		Args: cobra.NoArgs,
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

			list, err := store.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			a.logger.Debug("listed snippets", "count", len(list), "range", describeRange(filter.From, filter.To))
			return a.printer(cmd).snippets(list)
		},
	}
	f.register(cmd, true)
	return cmd
}
