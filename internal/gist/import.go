package gist

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/mesh-intelligence/snip/pkg/types"
)

// ImportTag is given to snippets read from a gist snip does not manage.
const ImportTag = "gist"

// Snippets decodes a gist for import into the local store. When the gist
// carries a readable manifest, its snippet files keep their description,
// language and tags. Every other file becomes a snippet described by the
// gist description, gist id and file name, tagged ImportTag. Blank files are
// skipped. Ids and dates are left unset; manifest snippets come first in
// id order, then the other files by name.
func Snippets(g *Gist, langs types.LanguageTable) []*types.Snippet {
	var entries map[uint64]Entry
	if mf, ok := g.Files[ManifestFile]; ok && mf != nil {
		if parsed, err := ParseManifest(mf.Content); err == nil {
			entries = parsed
		}
	}

	var own, foreign []*types.Snippet
	for _, name := range slices.Sorted(maps.Keys(g.Files)) {
		f := g.Files[name]
		if f == nil || strings.TrimSpace(f.Content) == "" {
			continue
		}
		if entries != nil {
			if name == ManifestFile {
				continue
			}
			if id, ok := ParseFileName(name); ok {
				e, listed := entries[id]
				own = append(own, fileSnippet(g, id, name, f, langs, e, listed))
				continue
			}
		}
		s := &types.Snippet{
			Description: foreignDescription(g, name),
			Language:    langs.Language(name),
			Code:        f.Content,
			Tags:        []string{ImportTag},
		}
		s.Normalize()
		foreign = append(foreign, s)
	}

	slices.SortFunc(own, func(a, b *types.Snippet) int { return cmp.Compare(a.ID, b.ID) })
	out := append(own, foreign...)
	for _, s := range out {
		s.ID = 0
		s.DateCreated, s.DateModified = time.Time{}, time.Time{}
	}
	return out
}

func foreignDescription(g *Gist, name string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{g.Description, g.ID, name} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " - ")
}

// ParseGistRef accepts a gist id or a gist URL and returns the id.
func ParseGistRef(s string) (string, error) {
	ref := strings.TrimSpace(s)
	if i := strings.IndexAny(ref, "#?"); i >= 0 {
		ref = ref[:i]
	}
	ref = strings.TrimSuffix(strings.TrimSuffix(ref, "/"), ".git")
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		ref = ref[i+1:]
	}
	if ref == "" || strings.ContainsAny(ref, ":. ") {
		return "", fmt.Errorf("not a gist id or URL: %q", s)
	}
	return ref, nil
}
