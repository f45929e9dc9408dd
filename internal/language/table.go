// Package language maps snippet language names to file extensions and
// back, using a table embedded in the binary.
package language

import (
	_ "embed"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/snip/pkg/types"
)

// Fallback language and extension for names the table does not know.
const (
	DefaultName      = "text"
	DefaultExtension = ".txt"
)

//go:embed languages.yaml
var languagesYAML []byte

// Compile-time interface check: Table must implement LanguageTable.
var _ types.LanguageTable = (*Table)(nil)

// Language is one entry of the table.
type Language struct {
	Name       string   `yaml:"name"`
	Extensions []string `yaml:"extensions"`
	Aliases    []string `yaml:"aliases"`
	Color      string   `yaml:"color"`
}

// Table resolves names, aliases and extensions case-insensitively.
type Table struct {
	languages []*Language
	byName    map[string]*Language
	byExt     map[string]*Language
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
	defaultErr   error
)

// Default returns the embedded table. It panics if the embedded data is
// malformed, which a unit test guards against.
func Default() *Table {
	defaultOnce.Do(func() {
		defaultTable, defaultErr = Parse(languagesYAML)
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("language: embedded table: %v", defaultErr))
	}
	return defaultTable
}

// Parse builds a Table from YAML. Entries without an extension are skipped.
func Parse(data []byte) (*Table, error) {
	var entries []*Language
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing language table: %w", err)
	}
	t := &Table{
		byName: make(map[string]*Language),
		byExt:  make(map[string]*Language),
	}
	for i, l := range entries {
		if l.Name == "" {
			return nil, fmt.Errorf("language entry %d has no name", i)
		}
		if len(l.Extensions) == 0 {
			continue
		}
		for j, ext := range l.Extensions {
			ext = strings.ToLower(ext)
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			l.Extensions[j] = ext
			if _, dup := t.byExt[ext]; !dup {
				t.byExt[ext] = l
			}
		}
		t.languages = append(t.languages, l)
		for _, key := range append([]string{l.Name}, l.Aliases...) {
			key = strings.ToLower(key)
			if _, dup := t.byName[key]; !dup {
				t.byName[key] = l
			}
		}
	}
	return t, nil
}

// Lookup returns the entry for a name or alias.
func (t *Table) Lookup(name string) (*Language, bool) {
	l, ok := t.byName[strings.ToLower(strings.TrimSpace(name))]
	return l, ok
}

// Extension returns the primary extension for a language, or ".txt".
func (t *Table) Extension(name string) string {
	if l, ok := t.Lookup(name); ok {
		return l.Extensions[0]
	}
	// A bare extension used as a language name ("py") maps to itself.
	if l, ok := t.byExt["."+strings.ToLower(name)]; ok {
		return l.Extensions[0]
	}
	return DefaultExtension
}

// Language returns the lowercase canonical name for a file name, or "text".
func (t *Table) Language(filename string) string {
	if l, ok := t.byExt[strings.ToLower(filepath.Ext(filename))]; ok {
		return strings.ToLower(l.Name)
	}
	return DefaultName
}

// Color returns the accent colour for a language, empty when unknown.
func (t *Table) Color(name string) string {
	if l, ok := t.Lookup(name); ok {
		return l.Color
	}
	return ""
}

// Names returns the lowercase canonical names, sorted.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.languages))
	for _, l := range t.languages {
		names = append(names, strings.ToLower(l.Name))
	}
	sort.Strings(names)
	return names
}
