package gist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/mesh-intelligence/snip/pkg/types"
)

// Description is the description given to gists snip creates.
const Description = "snip code snippets"

// Compile-time interface check: Remote must implement types.Remote.
var _ types.Remote = (*Remote)(nil)

// Remote implements types.Remote on one gist. Writes are serialized so
// that each one re-renders the manifest from a consistent view.
type Remote struct {
	client *Client
	langs  types.LanguageTable
	logger *slog.Logger

	mu      sync.Mutex
	gistID  string
	htmlURL string
	loaded  bool
	entries map[uint64]Entry
	files   map[uint64]string
}

// NewRemote returns a Remote for gistID. An empty gistID means no gist
// exists yet; the first write creates one.
func NewRemote(client *Client, gistID string, langs types.LanguageTable, logger *slog.Logger) *Remote {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Remote{
		client:  client,
		gistID:  gistID,
		langs:   langs,
		logger:  logger,
		entries: make(map[uint64]Entry),
		files:   make(map[uint64]string),
	}
}

// GistID returns the gist in use, which may have been created by a write.
func (r *Remote) GistID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gistID
}

// List fetches the gist and decodes every snippet file against the
// manifest.
func (r *Remote) List(ctx context.Context) (*types.RemoteSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := &types.RemoteSnapshot{Snippets: make(map[uint64]*types.Snippet)}
	if r.gistID == "" {
		r.loaded = true
		return snap, nil
	}
	g, err := r.client.Get(ctx, r.gistID)
	if err != nil {
		return nil, remoteErr(0, "list", err)
	}
	snippets, err := r.absorb(g)
	if err != nil {
		return nil, remoteErr(0, "list", err)
	}
	snap.Snippets = snippets
	snap.DateModified = g.UpdatedAt
	return snap, nil
}

// absorb refreshes the cached manifest from g and returns its snippets.
func (r *Remote) absorb(g *Gist) (map[uint64]*types.Snippet, error) {
	entries := make(map[uint64]Entry)
	if mf, ok := g.Files[ManifestFile]; ok {
		parsed, err := ParseManifest(mf.Content)
		if err != nil {
			return nil, err
		}
		entries = parsed
	}

	snippets := make(map[uint64]*types.Snippet)
	files := make(map[uint64]string)
	for name, f := range g.Files {
		if name == ManifestFile {
			continue
		}
		id, ok := ParseFileName(name)
		if !ok {
			r.logger.Debug("skipping foreign gist file", "file", name)
			continue
		}
		files[id] = name
		e, listed := entries[id]
		s := fileSnippet(g, id, name, f, r.langs, e, listed)
		if !listed {
			r.logger.Warn("gist file missing from manifest", "file", name)
			entries[id] = Entry{ID: id, Description: s.Description, Language: s.Language, Tags: s.Tags}
		}
		snippets[id] = s
	}
	// Manifest lines without a file are stale.
	for id := range entries {
		if _, ok := files[id]; !ok {
			delete(entries, id)
		}
	}

	r.htmlURL = g.HTMLURL
	r.entries = entries
	r.files = files
	r.loaded = true
	return snippets, nil
}

// fileSnippet decodes the snippet file name of a snip gist. A manifest
// entry, when listed, supplies description, language and tags; otherwise
// the file name describes it and its extension gives the language.
func fileSnippet(g *Gist, id uint64, name string, f *File, langs types.LanguageTable, e Entry, listed bool) *types.Snippet {
	s := &types.Snippet{
		ID:           id,
		Description:  name,
		Language:     langs.Language(name),
		Code:         f.Content,
		Tags:         []string{},
		DateCreated:  g.UpdatedAt,
		DateModified: g.UpdatedAt,
	}
	if listed {
		s.Description = e.Description
		s.Tags = e.Tags
		if e.Language != "" {
			s.Language = e.Language
		}
	}
	s.Normalize()
	return s
}

// Create uploads a new snippet file and its manifest line.
func (r *Remote) Create(ctx context.Context, s *types.Snippet) error {
	return r.put(ctx, "create", s.ID, s)
}

// Update replaces the snippet file and manifest line of id.
func (r *Remote) Update(ctx context.Context, id uint64, s *types.Snippet) error {
	return r.put(ctx, "update", id, s)
}

func (r *Remote) put(ctx context.Context, op string, id uint64, s *types.Snippet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureLoaded(ctx); err != nil {
		return remoteErr(id, op, err)
	}

	name := FileName(id, r.langs.Extension(s.Language))
	entries := maps.Clone(r.entries)
	files := maps.Clone(r.files)
	entries[id] = Entry{ID: id, Description: s.Description, Language: s.Language, Tags: s.Tags}
	changes := map[string]*FileContent{name: {Content: s.Code}}
	if old, ok := files[id]; ok && old != name {
		changes[old] = nil
	}
	files[id] = name

	if err := r.write(ctx, entries, files, changes); err != nil {
		return remoteErr(id, op, err)
	}
	return nil
}

// Delete removes the snippet file and its manifest line.
func (r *Remote) Delete(ctx context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureLoaded(ctx); err != nil {
		return remoteErr(id, "delete", err)
	}
	name, ok := r.files[id]
	if !ok {
		return remoteErr(id, "delete", types.NotFound(id))
	}
	entries := maps.Clone(r.entries)
	files := maps.Clone(r.files)
	delete(entries, id)
	delete(files, id)

	if err := r.write(ctx, entries, files, map[string]*FileContent{name: nil}); err != nil {
		return remoteErr(id, "delete", err)
	}
	return nil
}

// ensureLoaded reads the gist once so writes know the current files.
// The caller must hold r.mu.
func (r *Remote) ensureLoaded(ctx context.Context) error {
	if r.loaded || r.gistID == "" {
		return nil
	}
	g, err := r.client.Get(ctx, r.gistID)
	if err != nil {
		return err
	}
	_, err = r.absorb(g)
	return err
}

// write sends changes plus the re-rendered manifest and commits the new
// view on success. The caller must hold r.mu.
func (r *Remote) write(ctx context.Context, entries map[uint64]Entry, files map[uint64]string, changes map[string]*FileContent) error {
	if r.gistID == "" {
		// The manifest links need the gist URL, so create first and then
		// write the manifest like any other update.
		created := make(map[string]*FileContent)
		for name, c := range changes {
			if c != nil {
				created[name] = c
			}
		}
		g, err := r.client.Create(ctx, Description, false, created)
		if err != nil {
			return fmt.Errorf("creating gist: %w", err)
		}
		r.gistID = g.ID
		r.htmlURL = g.HTMLURL
		r.loaded = true
		r.logger.Info("created gist", "gist_id", g.ID, "url", g.HTMLURL)
		changes = map[string]*FileContent{}
	}

	changes[ManifestFile] = &FileContent{Content: RenderManifest(r.htmlURL, entries, files)}
	g, err := r.client.Update(ctx, r.gistID, changes)
	if err != nil {
		return err
	}
	if g.HTMLURL != "" {
		r.htmlURL = g.HTMLURL
	}
	r.entries = entries
	r.files = files
	return nil
}

func remoteErr(id uint64, op string, err error) error {
	var re *types.RemoteError
	if errors.As(err, &re) {
		return err
	}
	return &types.RemoteError{ID: id, Op: op, Reason: err.Error(), Err: err}
}
