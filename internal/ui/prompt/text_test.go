package prompt

import (
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	enter  = tea.KeyPressMsg{Code: tea.KeyEnter}
	escape = tea.KeyPressMsg{Code: tea.KeyEscape}
	ctrlC  = tea.KeyPressMsg{Code: 'c', Mod: tea.ModCtrl}
)

func typed(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}

func send(t *testing.T, m valueModel, msgs ...tea.Msg) (valueModel, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, msg := range msgs {
		var next tea.Model
		next, cmd = m.Update(msg)
		var ok bool
		m, ok = next.(valueModel)
		require.True(t, ok)
	}
	return m, cmd
}

func TestValueModel_Keys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		initial     string
		key         tea.KeyPressMsg
		wantState   entryState
		wantProblem bool
		wantQuit    bool
	}{
		{name: "accept", initial: "sme", key: enter, wantState: accepted, wantQuit: true},
		{name: "reject blank", initial: "   ", key: enter, wantState: editing, wantProblem: true},
		{name: "escape", key: escape, wantState: cancelled, wantQuit: true},
		{name: "interrupt", initial: "sme", key: ctrlC, wantState: cancelled, wantQuit: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := newValueModel("__UND__", ValidateValue)
			m.input.SetValue(tt.initial)

			m, cmd := send(t, m, tt.key)
			assert.Equal(t, tt.wantState, m.state)
			assert.Equal(t, tt.wantProblem, m.problem != nil)
			assert.Equal(t, tt.wantQuit, cmd != nil)
		})
	}
}

func TestValueModel_TypingClearsProblem(t *testing.T) {
	t.Parallel()

	m, _ := send(t, newValueModel("LANG", ValidateValue), enter)
	require.Error(t, m.problem)
	assert.Contains(t, m.View().Content, "value must not be empty")

	m, _ = send(t, m, typed('s'), typed('m'), typed('a'))
	assert.NoError(t, m.problem)
	assert.Equal(t, "sma", m.input.Value())
	assert.Contains(t, m.View().Content, "Value for LANG")

	m, _ = send(t, m, enter)
	assert.Equal(t, accepted, m.state)
	assert.Empty(t, m.View().Content)
}

func TestValueModel_NoValidator(t *testing.T) {
	t.Parallel()

	m, cmd := send(t, newValueModel("EMPTY_OK", nil), enter)
	assert.Equal(t, accepted, m.state)
	assert.NotNil(t, cmd)
}

func TestValidateValue(t *testing.T) {
	t.Parallel()

	for v, ok := range map[string]bool{
		"sme":           true,
		"Northern Sami": true,
		"":              false,
		"  ":            false,
		"a\nb":          false,
		"a\r":           false,
	} {
		assert.Equal(t, ok, ValidateValue(v) == nil, "%q", v)
	}
}
