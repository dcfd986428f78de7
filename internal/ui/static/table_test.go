package static

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"

	"github.com/divvun/gut/internal/git"
)

func TestRenderTable(t *testing.T) {
	t.Parallel()

	out := ansi.Strip(RenderTable(
		[]string{"REPO", "KIND", "STATE"},
		[][]string{
			{"lang-sme", "generated", "patched"},
			{"lang-smj", "generated", "-"},
		},
	))
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[0], "REPO")
	assert.Contains(t, lines[1], "lang-sme")
	assert.Contains(t, lines[2], "lang-smj")
	// Columns are aligned.
	assert.Equal(t, strings.Index(lines[1], "generated"), strings.Index(lines[2], "generated"))
}

func TestRenderTable_Empty(t *testing.T) {
	t.Parallel()
	assert.Empty(t, RenderTable([]string{"REPO"}, nil))
}

func TestRenderConflicts(t *testing.T) {
	t.Parallel()

	out := ansi.Strip(RenderConflicts([]git.Conflict{
		{Path: "build.cfg", Hunks: "@@ -1 +1 @@\n-a=1\n+a=2\n"},
		{Path: "gone.txt"},
	}))
	assert.Contains(t, out, "! build.cfg")
	assert.Contains(t, out, "+a=2")
	assert.Contains(t, out, "! gone.txt")
}
