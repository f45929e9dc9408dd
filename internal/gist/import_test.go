package gist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/snip/internal/language"
	"github.com/mesh-intelligence/snip/pkg/types"
)

func TestSnippetsFromForeignGist(t *testing.T) {
	g := &Gist{
		ID:          "abc123",
		Description: "dotfiles",
		Files: map[string]*File{
			"setup.sh":  {Content: "brew bundle\n"},
			"init.lua":  {Content: "vim.o.number = true"},
			"notes":     {Content: "plain text"},
			"empty.txt": {Content: "  \n"},
			"index.md":  {Content: "# my notes\nnot a snip manifest\n"},
		},
	}

	got := Snippets(g, language.Default())
	require.Len(t, got, 4, "blank file skipped")

	byDesc := make(map[string]*types.Snippet)
	for _, s := range got {
		assert.Zero(t, s.ID)
		assert.True(t, s.DateCreated.IsZero())
		assert.Equal(t, []string{ImportTag}, s.Tags)
		byDesc[s.Description] = s
	}
	assert.Equal(t, "shell", byDesc["dotfiles - abc123 - setup.sh"].Language)
	assert.Equal(t, "lua", byDesc["dotfiles - abc123 - init.lua"].Language)
	assert.Equal(t, language.DefaultName, byDesc["dotfiles - abc123 - notes"].Language)
	require.Contains(t, byDesc, "dotfiles - abc123 - index.md", "unreadable manifest imported as a file")
	assert.Equal(t, "brew bundle\n", byDesc["dotfiles - abc123 - setup.sh"].Code)
}

func TestSnippetsFromSnipGist(t *testing.T) {
	ctx := context.Background()
	f := newFakeGitHub(t)
	w := newTestRemote(f, "")
	require.NoError(t, w.Create(ctx, &types.Snippet{ID: 9, Description: "later", Language: "go", Code: "package main", Tags: []string{"b"}}))
	require.NoError(t, w.Create(ctx, &types.Snippet{ID: 2, Description: "hello (world)", Language: "sh", Code: "echo hi", Tags: []string{"greet", "x"}}))

	client := f.client(testToken)
	_, err := client.Update(ctx, w.GistID(), map[string]*FileContent{"README": {Content: "about"}})
	require.NoError(t, err)

	g, err := client.Get(ctx, w.GistID())
	require.NoError(t, err)
	got := Snippets(g, language.Default())
	require.Len(t, got, 3)

	assert.Equal(t, "hello (world)", got[0].Description, "manifest snippets first, by id")
	assert.Equal(t, "sh", got[0].Language)
	assert.Equal(t, []string{"greet", "x"}, got[0].Tags)
	assert.Equal(t, "echo hi", got[0].Code)
	assert.Equal(t, "later", got[1].Description)
	assert.Equal(t, "go", got[1].Language)

	assert.Equal(t, []string{ImportTag}, got[2].Tags, "extra files are imported as plain gist files")
	assert.Contains(t, got[2].Description, "README")
	for _, s := range got {
		assert.Zero(t, s.ID, "ids are allocated by the store")
	}
}

func TestParseGistRef(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "aa5a315d61ae9438b18d", want: "aa5a315d61ae9438b18d"},
		{in: "https://gist.github.com/octocat/aa5a315d61ae9438b18d", want: "aa5a315d61ae9438b18d"},
		{in: "https://gist.github.com/octocat/aa5a315d61ae9438b18d/", want: "aa5a315d61ae9438b18d"},
		{in: "https://gist.github.com/aa5a315d61ae9438b18d.git", want: "aa5a315d61ae9438b18d"},
		{in: "https://gist.github.com/octocat/aa5a315d61ae9438b18d#file-hello-sh", want: "aa5a315d61ae9438b18d"},
		{in: "", wantErr: true},
		{in: "https://gist.github.com/", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseGistRef(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
