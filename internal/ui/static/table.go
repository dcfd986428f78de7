// Package static renders non-interactive terminal output: tables and
// conflict reports.
package static

import (
	"strings"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"

	"github.com/divvun/gut/internal/git"
	"github.com/divvun/gut/internal/ui/styles"
)

var (
	cellStyle   = lipgloss.NewStyle().PaddingRight(2)
	headerStyle = cellStyle.Bold(true)
)

// RenderTable renders rows under headers without borders. Column widths
// follow the content. No rows renders nothing, not even the headers.
func RenderTable(headers []string, rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).BorderBottom(false).BorderLeft(false).BorderRight(false).
		BorderHeader(false).BorderColumn(false).BorderRow(false).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return t.String() + "\n"
}

// RenderConflicts lists the paths that did not apply, each followed by its
// rejected hunks in a box.
func RenderConflicts(conflicts []git.Conflict) string {
	var b strings.Builder
	for _, c := range conflicts {
		b.WriteString(styles.WarningStyle.Render(styles.SymbolConflict+" "+c.Path) + "\n")
		if hunks := strings.TrimRight(c.Hunks, "\n"); hunks != "" {
			b.WriteString(styles.ConflictBox.Render(hunks) + "\n")
		}
	}
	return b.String()
}
