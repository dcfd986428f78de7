package generate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/divvun/gut/internal/delta"
	"github.com/divvun/gut/internal/git"
	"github.com/divvun/gut/internal/replace"
	"github.com/divvun/gut/internal/testutil"
)

const binary = "\x89PNG\x00__UND__\x00"

func newTemplate(t *testing.T) (string, string) {
	t.Helper()

	dir := testutil.NewRepo(t, "template", map[string]string{
		"README.md":               "# lang-__UND__\n\nMaintained by {{AUTHOR}}.\n",
		"src/__UND__/__UND__.txt": "__UND__\n",
		"docs/extra.md":           "optional __UND__\n",
		"tools/local.sh":          "echo local\n",
		"logo.bin":                binary,
		"run.sh":                  "#!/bin/sh\necho __UND__\n",
	})
	require.NoError(t, os.Chmod(filepath.Join(dir, "run.sh"), 0o755))
	require.NoError(t, os.Symlink("src/__UND__/__UND__.txt", filepath.Join(dir, "current")))

	tmpl := delta.NewTemplate("template", "")
	require.NoError(t, tmpl.Classify("docs/", delta.Optional))
	require.NoError(t, tmpl.Classify("tools/", delta.Ignored))
	require.NoError(t, tmpl.AddPattern(replace.Rule{Match: "__UND__"}))
	require.NoError(t, tmpl.AddPattern(replace.Rule{Match: "{{AUTHOR}}"}))
	require.NoError(t, delta.Save(dir, tmpl))
	rev := testutil.Commit(t, dir, "template")

	// Work after the published revision is not generated.
	require.NoError(t, tmpl.BumpVersion(rev))
	require.NoError(t, delta.Save(dir, tmpl))
	testutil.WriteFile(t, dir, "unpublished.txt", "later\n")
	testutil.Commit(t, dir, "publish")

	return dir, rev
}

var values = map[string]string{"__UND__": "sme", "AUTHOR": "Giellatekno"}

func TestGenerate(t *testing.T) {
	t.Parallel()

	tmplDir, rev := newTemplate(t)
	target := filepath.Join(testutil.TempDir(t), "lang-sme")

	res, err := New(git.CLI{}).Generate(context.Background(), Options{
		TemplateDir: tmplDir,
		Origin:      "github:giellalt/template-lang-und",
		TargetDir:   target,
		Values:      values,
		NoInit:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, rev, res.Revision)
	assert.Equal(t, 1, res.RevisionNumber)
	assert.ElementsMatch(t, []string{"README.md", "current", "docs/extra.md", "logo.bin", "run.sh", "src/sme/sme.txt"}, res.Files)

	assert.Equal(t, "# lang-sme\n\nMaintained by Giellatekno.\n", testutil.ReadFile(t, target, "README.md"))
	assert.Equal(t, "sme\n", testutil.ReadFile(t, target, "src/sme/sme.txt"))
	assert.Equal(t, binary, testutil.ReadFile(t, target, "logo.bin"))
	assert.NoFileExists(t, filepath.Join(target, "tools", "local.sh"))
	assert.NoFileExists(t, filepath.Join(target, "unpublished.txt"))
	assert.NoDirExists(t, filepath.Join(target, ".git"))

	info, err := os.Stat(filepath.Join(target, "run.sh"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0o100)

	link, err := os.Readlink(filepath.Join(target, "current"))
	require.NoError(t, err)
	assert.Equal(t, "src/sme/sme.txt", link)

	rec, err := delta.Load(target)
	require.NoError(t, err)
	assert.Equal(t, delta.KindGenerated, rec.Kind)
	assert.Equal(t, "lang-sme", rec.Name)
	assert.Equal(t, "github:giellalt/template-lang-und", rec.TemplateOrigin)
	assert.Equal(t, rev, rec.RevisionAnchor)
	assert.Equal(t, 1, rec.RevisionNumber)
	assert.Equal(t, values, rec.Replacements)
	assert.Len(t, rec.Patterns, 2)
	assert.FileExists(t, filepath.Join(target, delta.Dir, delta.IgnoreFile))
}

func TestGenerate_SkipOptional(t *testing.T) {
	t.Parallel()

	tmplDir, _ := newTemplate(t)
	target := filepath.Join(testutil.TempDir(t), "lang-sme")

	res, err := New(git.CLI{}).Generate(context.Background(), Options{
		TemplateDir:  tmplDir,
		TargetDir:    target,
		Values:       values,
		SkipOptional: true,
		NoInit:       true,
	})
	require.NoError(t, err)
	assert.NotContains(t, res.Files, "docs/extra.md")
	assert.NoDirExists(t, filepath.Join(target, "docs"))

	rec, err := delta.Load(target)
	require.NoError(t, err)
	assert.Equal(t, tmplDir, rec.TemplateOrigin)
}

func TestGenerate_MissingReplacement(t *testing.T) {
	t.Parallel()

	tmplDir, _ := newTemplate(t)
	target := filepath.Join(testutil.TempDir(t), "lang-sme")

	_, err := New(git.CLI{}).Generate(context.Background(), Options{
		TemplateDir: tmplDir,
		TargetDir:   target,
		Values:      map[string]string{"__UND__": "sme"},
		NoInit:      true,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, replace.ErrMissingReplacement))

	var missing *replace.MissingReplacementError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "AUTHOR", missing.Key)
	assert.NoDirExists(t, target)
}

func TestGenerate_TargetNotEmpty(t *testing.T) {
	t.Parallel()

	tmplDir, _ := newTemplate(t)
	target := testutil.TempDir(t)
	testutil.WriteFile(t, target, "keep.txt", "mine\n")

	_, err := New(git.CLI{}).Generate(context.Background(), Options{
		TemplateDir: tmplDir,
		TargetDir:   target,
		Values:      values,
		NoInit:      true,
	})
	assert.True(t, errors.Is(err, ErrTargetNotEmpty), "got %v", err)
	assert.Equal(t, "mine\n", testutil.ReadFile(t, target, "keep.txt"))
}

func TestGenerate_EmptyTargetIsUsed(t *testing.T) {
	t.Parallel()

	tmplDir, _ := newTemplate(t)
	target := testutil.TempDir(t)

	_, err := New(git.CLI{}).Generate(context.Background(), Options{
		TemplateDir: tmplDir,
		TargetDir:   target,
		Values:      values,
		NoInit:      true,
	})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(target, "README.md"))
}

func TestGenerate_UnpublishedTemplate(t *testing.T) {
	t.Parallel()

	dir := testutil.NewRepo(t, "template", nil)
	require.NoError(t, delta.Save(dir, delta.NewTemplate("template", "")))

	_, err := New(git.CLI{}).Generate(context.Background(), Options{
		TemplateDir: dir,
		TargetDir:   filepath.Join(testutil.TempDir(t), "out"),
		NoInit:      true,
	})
	assert.True(t, errors.Is(err, delta.ErrInvalidState), "got %v", err)
}

func TestGenerate_Init(t *testing.T) {
	testutil.SetIdentity(t)

	tmplDir, _ := newTemplate(t)
	target := filepath.Join(testutil.TempDir(t), "lang-sme")

	_, err := New(git.CLI{}).Generate(context.Background(), Options{
		TemplateDir: tmplDir,
		TargetDir:   target,
		Values:      values,
	})
	require.NoError(t, err)

	assert.Equal(t, CommitMessage, testutil.Git(t, target, "log", "--format=%s"))
	assert.Equal(t, "main", testutil.Git(t, target, "branch", "--show-current"))
	assert.Empty(t, testutil.Git(t, target, "status", "--porcelain"))
	assert.Contains(t, testutil.Git(t, target, "ls-files"), ".gut/delta.toml")
}

func TestRequiredKeys(t *testing.T) {
	t.Parallel()

	tmplDir, _ := newTemplate(t)
	keys, err := RequiredKeys(tmplDir)
	require.NoError(t, err)
	assert.Equal(t, []string{"__UND__", "AUTHOR"}, keys)
}
