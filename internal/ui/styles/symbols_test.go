package styles

import (
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
)

func TestFormatState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state string
		want  string
	}{
		{state: "completed", want: "✓ completed"},
		{state: "up_to_date", want: "✓ up to date"},
		{state: "patched", want: "… patched"},
		{state: "conflicted", want: "! conflicted"},
		{state: "aborted", want: "✗ aborted"},
		{state: "not_started", want: "not started"},
	}
	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ansi.Strip(FormatState(tt.state)))
		})
	}
}

func TestShortRev(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0123456789", ShortRev("0123456789abcdef"))
	assert.Equal(t, "abc", ShortRev("abc"))
	assert.Equal(t, "", ShortRev(""))
}
