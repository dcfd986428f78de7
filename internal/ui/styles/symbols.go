package styles

import "strings"

// Status symbols
const (
	SymbolOK       = "✓"
	SymbolFailed   = "✗"
	SymbolConflict = "!"
	SymbolPending  = "…"
)

// FormatState renders an apply state with its symbol and colour. Unknown
// states are rendered muted.
func FormatState(state string) string {
	label := strings.ReplaceAll(state, "_", " ")
	switch state {
	case "completed", "up_to_date":
		return SuccessStyle.Render(SymbolOK + " " + label)
	case "patched", "started":
		return PrimaryStyle.Render(SymbolPending + " " + label)
	case "conflicted":
		return WarningStyle.Render(SymbolConflict + " " + label)
	case "aborted", "failed":
		return ErrorStyle.Render(SymbolFailed + " " + label)
	}
	return MutedStyle.Render(label)
}

// ShortRev abbreviates a revision for display.
func ShortRev(rev string) string {
	if len(rev) > 10 {
		return rev[:10]
	}
	return rev
}
