package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/snip/pkg/types"
)

func viewJSON(t *testing.T, env *testEnv, id string) types.Snippet {
	t.Helper()
	out := env.mustRun(t, "view", id, "--json")
	var s types.Snippet
	require.NoError(t, json.Unmarshal([]byte(out), &s), out)
	return s
}

func TestAddAndView(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "add", "-d", "print one", "-l", "Python", "-t", "x, y", "-c", "print(1)")
	assert.Contains(t, out, "Added snippet #1")

	out = env.mustRun(t, "view", "1")
	assert.Contains(t, out, "#1 print one")
	assert.Contains(t, out, "python :x:y:")
	assert.Contains(t, out, "print(1)\n")

	out = env.mustRun(t, "view", "#1", "--code")
	assert.Equal(t, "print(1)", out)

	s := viewJSON(t, env, "1")
	assert.Equal(t, "python", s.Language)
	assert.Equal(t, []string{"x", "y"}, s.Tags)
	assert.False(t, s.DateCreated.IsZero())
}

func TestAddSources(t *testing.T) {
	env := newTestEnv(t)

	r := env.run(t, "echo hi\n", "add", "-d", "from stdin", "-l", "sh")
	require.NoError(t, r.err)
	assert.Equal(t, "echo hi\n", viewJSON(t, env, "1").Code)

	file := filepath.Join(t.TempDir(), "hello.py")
	require.NoError(t, os.WriteFile(file, []byte("print('hello')\n"), 0o644))
	env.mustRun(t, "add", "-d", "from file", "-f", file)
	s := viewJSON(t, env, "2")
	assert.Equal(t, "python", s.Language, "language follows the file extension")
	assert.Equal(t, "print('hello')\n", s.Code)
}

func TestAddRejectsIncompleteSnippet(t *testing.T) {
	env := newTestEnv(t)

	r := env.run(t, "", "add", "-l", "go", "-c", "x := 1")
	assert.ErrorIs(t, r.err, types.ErrInvalidSnippet)
	assert.Equal(t, exitUserError, r.code())

	r = env.run(t, "", "add", "-d", "a:b", "-l", "go", "-t", "ok", "-c", "x")
	require.NoError(t, r.err, "colons in descriptions are fine")

	r = env.run(t, "", "add", "-d", "bad lang", "-l", "go lang", "-c", "x")
	assert.Equal(t, exitUserError, r.code())
}

func TestShellSnippet(t *testing.T) {
	env := newTestEnv(t)

	env.mustRun(t, "cmd", "git", "status")
	s := viewJSON(t, env, "1")
	assert.Equal(t, "sh", s.Language)
	assert.Equal(t, "git status", s.Code)
	assert.Equal(t, "git status", s.Description)

	env.mustRun(t, "cmd", "-d", "disk usage", "-t", "ops", "--", "du", "-sh", ".")
	s = viewJSON(t, env, "2")
	assert.Equal(t, "du -sh .", s.Code)
	assert.Equal(t, "disk usage", s.Description)
	assert.Equal(t, []string{"ops"}, s.Tags)

	r := env.run(t, "", "cmd")
	assert.Equal(t, exitUserError, r.code())
}

func TestEdit(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "add", "-d", "orig", "-l", "go", "-t", "a", "-c", "fmt.Println()")
	before := viewJSON(t, env, "1")

	out := env.mustRun(t, "edit", "1", "-d", "renamed", "-t", "b c")
	assert.Contains(t, out, "Updated snippet #1")

	after := viewJSON(t, env, "1")
	assert.Equal(t, "renamed", after.Description)
	assert.Equal(t, []string{"b", "c"}, after.Tags)
	assert.Equal(t, "go", after.Language, "untouched fields are kept")
	assert.Equal(t, "fmt.Println()", after.Code)
	assert.Equal(t, before.DateCreated, after.DateCreated)
	assert.False(t, after.DateModified.Before(before.DateModified))

	r := env.run(t, "", "edit", "1")
	assert.Equal(t, exitUserError, r.code(), "no flags and no terminal")

	r = env.run(t, "", "edit", "9", "-d", "x")
	assert.ErrorIs(t, r.err, types.ErrNotFound)
	assert.Equal(t, exitUserError, r.code())

	r = env.run(t, "", "edit", "abc", "-d", "x")
	assert.Equal(t, exitUserError, r.code())
}

func TestDelete(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "add", "-d", "gone", "-l", "sh", "-c", "rm -rf /tmp/x")

	r := env.run(t, "", "delete", "1")
	assert.ErrorIs(t, r.err, errNeedsForce)
	assert.Equal(t, exitUserError, r.code())
	assert.Len(t, env.snippets(t), 1, "refused delete keeps the snippet")

	env.mustRun(t, "delete", "1", "--force")
	assert.Empty(t, env.snippets(t))

	r = env.run(t, "", "view", "1")
	assert.ErrorIs(t, r.err, types.ErrNotFound)
	assert.Equal(t, exitUserError, r.code())

	env.mustRun(t, "add", "-d", "next", "-l", "sh", "-c", "true")
	assert.Equal(t, []uint64{2}, ids(env.snippets(t)), "ids are not reused")
}

func TestList(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "add", "-d", "print hello", "-l", "python", "-t", "demo", "-c", "print('hello')")
	env.mustRun(t, "add", "-d", "list files", "-l", "sh", "-t", "fs demo", "-c", "ls -la")
	env.mustRun(t, "add", "-d", "main func", "-l", "go", "-t", "go", "-c", "func main() {}")

	tests := []struct {
		name string
		args []string
		want []uint64
	}{
		{"all", nil, []uint64{1, 2, 3}},
		{"language", []string{"-l", "sh"}, []uint64{2}},
		{"languages any of", []string{"-l", "sh", "-l", "go"}, []uint64{2, 3}},
		{"tag", []string{"-t", "demo"}, []uint64{1, 2}},
		{"language and tag", []string{"-l", "python", "-t", "fs"}, []uint64{}},
		{"text", []string{"--text", "HELLO"}, []uint64{1}},
		{"text matches tags", []string{"--text", "fs"}, []uint64{2}},
		{"pattern", []string{"--pattern", `^func \w+\(`}, []uint64{3}},
		{"from yesterday", []string{"--from", "yesterday"}, []uint64{1, 2, 3}},
		{"to a past date", []string{"--to", "2001-01-01"}, []uint64{}},
		{"limit", []string{"--limit", "2"}, []uint64{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(env.snippets(t, tt.args...)))
		})
	}

	out := env.mustRun(t, "list")
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "print hello")
	assert.Contains(t, out, ":fs:demo:")

	for _, args := range [][]string{
		{"list", "--pattern", "("},
		{"list", "--text", "a", "--pattern", "b"},
		{"list", "--from", "gibberish"},
		{"list", "--from", "2024-02-01", "--to", "2024-01-01"},
	} {
		r := env.run(t, "", args...)
		assert.Equal(t, exitUserError, r.code(), "%v", args)
	}
}

func TestExportImport(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "add", "-d", "one", "-l", "sh", "-t", "a", "-c", "echo 1")
	env.mustRun(t, "add", "-d", "two", "-l", "go", "-c", "x := 2")

	file := filepath.Join(t.TempDir(), "backup.jsonl")
	out := env.mustRun(t, "export", "--file", file)
	assert.Contains(t, out, "Exported 2 snippets")

	r := env.run(t, "", "export", "-l", "go")
	require.NoError(t, r.err)
	assert.Contains(t, r.stdout, `"description":"two"`)
	assert.NotContains(t, r.stdout, `"description":"one"`)
	assert.Contains(t, r.stderr, "exported 1 snippets")

	env.mustRun(t, "clear", "--force")
	assert.Empty(t, env.snippets(t))

	out = env.mustRun(t, "import", "--file", file)
	assert.Contains(t, out, "Imported 2 snippets")
	got := env.snippets(t)
	assert.Equal(t, []uint64{3, 4}, ids(got), "fresh ids after clear")
	assert.Equal(t, "one", got[0].Description)
	assert.Equal(t, []string{"a"}, got[0].Tags)

	r = env.run(t, "", "import", "--file", file, "--preserve-ids")
	require.NoError(t, r.err, "ids 1 and 2 are free again")
	assert.Len(t, env.snippets(t), 4)

	r = env.run(t, "", "import", "--file", file, "--preserve-ids")
	assert.ErrorIs(t, r.err, types.ErrIDConflict)
	assert.Len(t, env.snippets(t), 4)
}

func TestImportMalformed(t *testing.T) {
	env := newTestEnv(t)
	stdin := `{"description":"ok","language":"sh","code":"true","tags":[]}` + "\n" + `{"description":` + "\n"

	r := env.run(t, stdin, "import")
	var sm *types.SchemaMismatchError
	require.ErrorAs(t, r.err, &sm)
	assert.Equal(t, 2, sm.Line)
	assert.Equal(t, exitUserError, r.code())
	assert.Empty(t, env.snippets(t), "nothing imported")
}

func TestClearNeedsForce(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "add", "-d", "one", "-l", "sh", "-c", "true")

	r := env.run(t, "", "clear")
	assert.Equal(t, exitUserError, r.code())
	assert.Len(t, env.snippets(t), 1)
}

func TestStats(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "add", "-d", "a", "-l", "sh", "-t", "x", "-c", "true")
	env.mustRun(t, "add", "-d", "b", "-l", "sh", "-t", "x y", "-c", "false")
	env.mustRun(t, "add", "-d", "c", "-l", "go", "-c", "_ = 1")

	out := env.mustRun(t, "stats", "--json")
	var st statsView
	require.NoError(t, json.Unmarshal([]byte(out), &st), out)
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, uint64(4), st.NextID)
	assert.Equal(t, []countRow{{"sh", 2}, {"go", 1}}, st.Languages)
	assert.Equal(t, []countRow{{"x", 2}, {"y", 1}}, st.Tags)
	require.Len(t, st.Months, 1)
	assert.Equal(t, 3, st.Months[0].Count)
	require.NotNil(t, st.LastModified)
	assert.Zero(t, st.Synced)
	assert.Nil(t, st.LastSync)
	assert.Nil(t, st.GistUpdated)

	out = env.mustRun(t, "stats")
	assert.Contains(t, out, "3 snippets, next id 4")
	assert.Contains(t, out, "never synced")
	assert.Contains(t, out, "languages")
}
