// Output rendering for the snip CLI: styled text, tables and JSON.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/mesh-intelligence/snip/internal/language"
	"github.com/mesh-intelligence/snip/pkg/types"
)

const displayTime = "2006-01-02 15:04"

// printer writes command results either as JSON or as styled text.
type printer struct {
	w        io.Writer
	jsonMode bool

	title  lipgloss.Style
	accent lipgloss.Style
	dim    lipgloss.Style
	good   lipgloss.Style
	warn   lipgloss.Style
	bad    lipgloss.Style
	r      *lipgloss.Renderer
}

// newPrinter returns a printer for w. Styling is dropped under plain or
// when w is not a terminal.
func newPrinter(w io.Writer, jsonMode, plain bool) *printer {
	r := lipgloss.NewRenderer(w)
	if plain || !isTerminal(w) {
		r.SetColorProfile(termenv.Ascii)
	}
	return &printer{
		w:        w,
		jsonMode: jsonMode,
		r:        r,
		title:    r.NewStyle().Bold(true),
		accent:   r.NewStyle().Foreground(lipgloss.Color("12")),
		dim:      r.NewStyle().Faint(true),
		good:     r.NewStyle().Foreground(lipgloss.Color("10")),
		warn:     r.NewStyle().Foreground(lipgloss.Color("11")),
		bad:      r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	}
}

// isTerminal reports whether v is a file attached to a terminal.
func isTerminal(v any) bool {
	f, ok := v.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

// json writes v as indented JSON.
func (p *printer) json(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// done prints a one-line confirmation. JSON mode prints payload instead.
func (p *printer) done(payload any, format string, args ...any) error {
	if p.jsonMode {
		return p.json(payload)
	}
	_, err := fmt.Fprintln(p.w, p.good.Render(fmt.Sprintf(format, args...)))
	return err
}

func (p *printer) language(name string) string {
	style := p.accent
	if c := language.Default().Color(name); c != "" {
		style = p.r.NewStyle().Foreground(lipgloss.Color(c))
	}
	return style.Render(name)
}

func formatTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	return ":" + strings.Join(tags, ":") + ":"
}

// snippet prints one snippet in full.
func (p *printer) snippet(s *types.Snippet) error {
	if p.jsonMode {
		return p.json(s)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", p.dim.Render(fmt.Sprintf("#%d", s.ID)), p.title.Render(s.Description))
	fmt.Fprintf(&b, "%s %s\n", p.language(s.Language), p.dim.Render(formatTags(s.Tags)))
	fmt.Fprintf(&b, "%s\n\n", p.dim.Render(fmt.Sprintf("created %s, modified %s",
		s.DateCreated.Local().Format(displayTime), s.DateModified.Local().Format(displayTime))))
	b.WriteString(s.Code)
	if !strings.HasSuffix(s.Code, "\n") {
		b.WriteString("\n")
	}
	_, err := io.WriteString(p.w, b.String())
	return err
}

// snippets prints a table of snippets.
func (p *printer) snippets(list []*types.Snippet) error {
	if p.jsonMode {
		if list == nil {
			list = []*types.Snippet{}
		}
		return p.json(list)
	}
	if len(list) == 0 {
		_, err := fmt.Fprintln(p.w, p.dim.Render("no snippets"))
		return err
	}
	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLANGUAGE\tTAGS\tMODIFIED\tDESCRIPTION")
	for _, s := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			s.ID, s.Language, formatTags(s.Tags), s.DateModified.Local().Format(displayTime), s.Description)
	}
	return tw.Flush()
}

// report prints a sync report.
func (p *printer) report(r *types.Report) error {
	if p.jsonMode {
		return p.json(r)
	}
	var b strings.Builder
	heading := fmt.Sprintf("sync %s", r.Mode)
	if r.DryRun {
		heading += " (dry run)"
	}
	fmt.Fprintf(&b, "%s %s\n", p.title.Render(heading), p.dim.Render(r.RunID))
	if r.PreviousSync != nil {
		fmt.Fprintf(&b, "  last sync:  %s\n", r.PreviousSync.Local().Format(displayTime))
	} else {
		fmt.Fprintf(&b, "  last sync:  never\n")
	}
	counts := func(c types.Counts) string {
		return fmt.Sprintf("%d created, %d updated, %d deleted", c.Created, c.Updated, c.Deleted)
	}
	fmt.Fprintf(&b, "  local:      %s\n", counts(r.Local))
	fmt.Fprintf(&b, "  gist:       %s\n", counts(r.Remote))
	fmt.Fprintf(&b, "  up to date: %d\n", r.UpToDate)
	for _, id := range r.Conflicts {
		fmt.Fprintln(&b, p.warn.Render(fmt.Sprintf("  conflict: #%d changed on both sides with the same date, left untouched", id)))
	}
	for _, f := range r.Failures {
		fmt.Fprintln(&b, p.bad.Render(fmt.Sprintf("  failed: %s %s #%d: %s", f.Side, f.Op, f.ID, f.Reason)))
	}
	if !r.DryRun {
		fmt.Fprintln(&b, p.dim.Render(fmt.Sprintf("  took %s", r.Duration.Round(time.Millisecond))))
	}
	_, err := io.WriteString(p.w, b.String())
	return err
}

// stats prints snippet counts.
func (p *printer) stats(st *statsView) error {
	if p.jsonMode {
		return p.json(st)
	}
	fmt.Fprintf(p.w, "%s %d snippets, next id %d\n", p.title.Render("snip"), st.Total, st.NextID)
	if st.LastModified != nil {
		fmt.Fprintf(p.w, "last modified %s\n", st.LastModified.Local().Format(displayTime))
	}
	if st.LastSync != nil {
		fmt.Fprintf(p.w, "last sync %s, %d snippets synced\n", st.LastSync.Local().Format(displayTime), st.Synced)
	} else {
		fmt.Fprintln(p.w, "never synced")
	}
	if st.GistUpdated != nil {
		fmt.Fprintf(p.w, "gist updated %s\n", st.GistUpdated.Local().Format(displayTime))
	}
	section := func(name string, rows []countRow) {
		if len(rows) == 0 {
			return
		}
		fmt.Fprintf(p.w, "\n%s\n", p.title.Render(name))
		tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
		for _, r := range rows {
			fmt.Fprintf(tw, "  %s\t%d\n", r.Name, r.Count)
		}
		tw.Flush()
	}
	section("languages", st.Languages)
	section("tags", st.Tags)
	section("months", st.Months)
	return nil
}

// config prints key/value pairs in keys order.
func (p *printer) config(values map[string]string, keys []string) error {
	if p.jsonMode {
		return p.json(values)
	}
	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(tw, "%s\t%s\n", k, values[k])
	}
	return tw.Flush()
}

// warnf prints a warning to stderr.
func warnf(w io.Writer, format string, args ...any) {
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintf(w, "warning: "+format+"\n", args...)
}
