package gist

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/snip/pkg/types"
)

// ManifestFile is the gist file listing every snippet.
const ManifestFile = "index.md"

const manifestHeading = "# Is it not written...\n"

// Entry is one manifest line.
type Entry struct {
	ID          uint64
	Description string
	Language    string
	Tags        []string
}

// manifestLine matches
//
//	* [desc](url#file-snippet_<id>-<ext>) | <language> :t1:t2:
//
// where the language and tag segments are both optional.
var manifestLine = regexp.MustCompile(
	`^\* \[(.*)\]\([^)]*#file-snippet_([0-9]+)[^)]*\)(?: \| ([^:]*?))?(?: :(.*):)?\s*$`,
)

var snippetFile = regexp.MustCompile(`^snippet_([0-9]+)(\.[^.]*)?$`)

// FileName returns the gist file name for a snippet.
func FileName(id uint64, ext string) string {
	return fmt.Sprintf("snippet_%d%s", id, ext)
}

// ParseFileName extracts the snippet id from a gist file name.
func ParseFileName(name string) (uint64, bool) {
	m := snippetFile.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// fileAnchor is the fragment GitHub gives a file on the gist page.
func fileAnchor(name string) string {
	return "file-" + strings.ReplaceAll(strings.ToLower(name), ".", "-")
}

// RenderManifest writes the manifest for entries, ordered by id. fileNames
// maps each id to its gist file name.
func RenderManifest(htmlURL string, entries map[uint64]Entry, fileNames map[uint64]string) string {
	ids := make([]uint64, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var sb strings.Builder
	sb.WriteString(manifestHeading)
	for _, id := range ids {
		e := entries[id]
		fmt.Fprintf(&sb, "* [%s](%s#%s)", oneLine(e.Description), htmlURL, fileAnchor(fileNames[id]))
		if e.Language != "" {
			sb.WriteString(" | " + e.Language)
		}
		if len(e.Tags) > 0 {
			sb.WriteString(" :" + strings.Join(e.Tags, ":") + ":")
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// ParseManifest reads a manifest. The heading and blank lines are skipped;
// any other line that does not parse is an error.
func ParseManifest(content string) (map[uint64]Entry, error) {
	entries := make(map[uint64]Entry)
	for n, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m := manifestLine.FindStringSubmatch(line)
		if m == nil {
			return nil, fmt.Errorf("manifest line %d is not formatted correctly: %q", n+1, line)
		}
		id, err := strconv.ParseUint(m[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("manifest line %d: bad snippet id: %w", n+1, err)
		}
		entries[id] = Entry{
			ID:          id,
			Description: m[1],
			Language:    strings.ToLower(strings.TrimSpace(m[3])),
			Tags:        types.NormalizeTags(strings.Split(m[4], ":")),
		}
	}
	return entries, nil
}

// oneLine keeps a description on a single manifest line.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
