//go:build integration

package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/charmbracelet/x/ansi"

	"github.com/divvun/gut/internal/config"
	"github.com/divvun/gut/internal/testutil"
)

// runGut runs the gut command line in workDir and returns stdout with
// styling stripped.
func runGut(t *testing.T, workDir string, args ...string) (string, error) {
	t.Helper()
	cfg := config.Default()
	cfg.CacheDir = testutil.TempDir(t)
	return runGutWithConfig(t, &cfg, workDir, args...)
}

// runGutWithConfig is runGut with an explicit configuration.
func runGutWithConfig(t *testing.T, cfg *config.Config, workDir string, args ...string) (string, error) {
	t.Helper()
	stdout, _, err := runGutCapture(t, cfg, workDir, args...)
	return stdout, err
}

// runGutCapture runs gut and returns stdout and stderr with styling stripped.
func runGutCapture(t *testing.T, cfg *config.Config, workDir string, args ...string) (string, string, error) {
	t.Helper()

	ctx := config.WithConfig(context.Background(), cfg)
	ctx = config.WithWorkDir(ctx, workDir)

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if stderr.Len() > 0 {
		t.Logf("gut %v stderr:\n%s", args, stderr.String())
	}
	return ansi.Strip(stdout.String()), ansi.Strip(stderr.String()), err
}

// mustGut runs gut and fails the test on error.
func mustGut(t *testing.T, workDir string, args ...string) string {
	t.Helper()
	out, err := runGut(t, workDir, args...)
	if err != nil {
		t.Fatalf("gut %v failed: %v\n%s", args, err, out)
	}
	return out
}

// setupTemplate creates a published template repository with a __UND__
// pattern and an ignored tools/ directory.
func setupTemplate(t *testing.T) string {
	t.Helper()

	dir := testutil.NewRepo(t, "template-lang-und", map[string]string{
		"README.md":      "# lang-__UND__\n",
		"VERSION":        "VERSION=1\n",
		"build.cfg":      "a=1\n",
		"tools/local.sh": "echo local\n",
	})
	mustGut(t, dir, "template", "init", "--name", "lang-und")
	mustGut(t, dir, "template", "add", "tools/", "--ignore")
	mustGut(t, dir, "template", "pattern", "add", "__UND__")
	testutil.Commit(t, dir, "Set up template")
	mustGut(t, dir, "template", "bump-version")
	testutil.Commit(t, dir, "Publish revision 1")
	return dir
}

// publish commits files to the template and publishes the result.
func publish(t *testing.T, tmpl string, files map[string]string) {
	t.Helper()
	testutil.WriteFiles(t, tmpl, files)
	testutil.Commit(t, tmpl, "Change template")
	mustGut(t, tmpl, "template", "bump-version")
	testutil.Commit(t, tmpl, "Publish")
}
