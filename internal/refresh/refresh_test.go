package refresh

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/divvun/gut/internal/delta"
	"github.com/divvun/gut/internal/git"
	"github.com/divvun/gut/internal/log"
	"github.com/divvun/gut/internal/replace"
	"github.com/divvun/gut/internal/testutil"
)

func newRepo(t *testing.T, rec *delta.Record) string {
	t.Helper()

	dir := testutil.NewRepo(t, "lang-sme", map[string]string{
		"README.md":       "# lang-__UND__\n",
		"docs/intro.md":   "About __und__.\n",
		"src/main.txt":    "clean\n",
		"assets/logo.bin": "\x00__UND__\x00",
	})
	require.NoError(t, delta.Save(dir, rec))
	testutil.Commit(t, dir, "record")
	return dir
}

func generated() *delta.Record {
	rec := delta.NewGenerated("template", "lang-sme", "abc", 1)
	rec.Replacements["__UND__"] = "sme"
	return rec
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	dir := newRepo(t, generated())
	var logged bytes.Buffer
	ctx := log.WithLogger(context.Background(), log.New(&logged, false, false))
	report, err := Refresh(ctx, git.CLI{}, dir, Options{})
	require.NoError(t, err)

	var paths []string
	for _, c := range report.Changed {
		paths = append(paths, c.Path)
		assert.Empty(t, c.Diff)
	}
	assert.ElementsMatch(t, []string{"README.md", "docs/intro.md"}, paths)
	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, report.Failed)

	assert.Equal(t, "# lang-sme\n", testutil.ReadFile(t, dir, "README.md"))
	// Without patterns keys match case-insensitively.
	assert.Equal(t, "About sme.\n", testutil.ReadFile(t, dir, "docs/intro.md"))
	assert.Equal(t, "\x00__UND__\x00", testutil.ReadFile(t, dir, "assets/logo.bin"))
	assert.Contains(t, logged.String(), "skipping binary file")
	assert.Contains(t, logged.String(), "path=assets/logo.bin")
}

func TestRefresh_Patterns(t *testing.T) {
	t.Parallel()

	rec := generated()
	rec.Patterns = []replace.Rule{{Match: "__UND__"}}
	dir := newRepo(t, rec)

	report, err := Refresh(context.Background(), git.CLI{}, dir, Options{})
	require.NoError(t, err)
	require.Len(t, report.Changed, 1)
	assert.Equal(t, "README.md", report.Changed[0].Path)
	assert.Equal(t, "About __und__.\n", testutil.ReadFile(t, dir, "docs/intro.md"))
}

func TestRefresh_DryRun(t *testing.T) {
	t.Parallel()

	dir := newRepo(t, generated())
	report, err := Refresh(context.Background(), git.CLI{}, dir, Options{DryRun: true, Files: []string{"*.md"}})
	require.NoError(t, err)

	require.Len(t, report.Changed, 1)
	c := report.Changed[0]
	assert.Equal(t, "README.md", c.Path)
	assert.Contains(t, c.Diff, "--- a/README.md")
	assert.Contains(t, c.Diff, "-# lang-__UND__")
	assert.Contains(t, c.Diff, "+# lang-sme")
	assert.Equal(t, "# lang-__UND__\n", testutil.ReadFile(t, dir, "README.md"))
	assert.Empty(t, testutil.Git(t, dir, "status", "--porcelain"))
}

func TestRefresh_NoReplacements(t *testing.T) {
	t.Parallel()

	dir := newRepo(t, delta.NewGenerated("template", "lang-sme", "abc", 1))
	_, err := Refresh(context.Background(), git.CLI{}, dir, Options{})
	assert.True(t, errors.Is(err, ErrNoReplacements), "got %v", err)
}

func TestRefresh_NoRecord(t *testing.T) {
	t.Parallel()

	dir := testutil.NewRepo(t, "plain", nil)
	_, err := Refresh(context.Background(), git.CLI{}, dir, Options{})
	assert.True(t, errors.Is(err, delta.ErrNotFound), "got %v", err)
}

func TestRefresh_PreservesMode(t *testing.T) {
	t.Parallel()

	dir := newRepo(t, generated())
	testutil.WriteFile(t, dir, "run.sh", "echo __UND__\n")
	require.NoError(t, os.Chmod(filepath.Join(dir, "run.sh"), 0o755))
	testutil.Commit(t, dir, "script")

	_, err := Refresh(context.Background(), git.CLI{}, dir, Options{Files: []string{"run.sh"}})
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, "run.sh"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	assert.Equal(t, "echo sme\n", testutil.ReadFile(t, dir, "run.sh"))
}

func TestSelected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path     string
		patterns []string
		want     bool
	}{
		{path: "README.md", want: true},
		{path: "README.md", patterns: []string{"*.md"}, want: true},
		{path: "docs/intro.md", patterns: []string{"*.md"}, want: false},
		{path: "docs/intro.md", patterns: []string{"**/*.md"}, want: true},
		{path: "docs/intro.md", patterns: []string{"intro.md"}, want: true},
		{path: "docs/nintro.md", patterns: []string{"intro.md"}, want: false},
		{path: "src/main.txt", patterns: []string{"*.md", "src/*"}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, selected(tt.path, tt.patterns))
		})
	}
}
