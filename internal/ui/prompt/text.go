package prompt

import (
	"os"
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/colorprofile"
	"github.com/mattn/go-isatty"
	"gitlab.com/tozd/go/errors"

	"github.com/divvun/gut/internal/ui/styles"
)

// ErrCancelled is returned when the user aborts a prompt.
var ErrCancelled = errors.Base("prompt cancelled")

// maxValueLen bounds a single replacement value.
const maxValueLen = 256

type entryState int

const (
	editing entryState = iota
	accepted
	cancelled
)

// valueModel asks for the value of one replacement key.
type valueModel struct {
	key      string
	input    textinput.Model
	validate func(string) error
	problem  error
	state    entryState
}

func newValueModel(key string, validate func(string) error) valueModel {
	in := textinput.New()
	in.Placeholder = key
	in.CharLimit = maxValueLen
	in.SetWidth(50)
	in.Focus()
	return valueModel{key: key, input: in, validate: validate}
}

func (m valueModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m valueModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, isKey := msg.(tea.KeyPressMsg)
	if isKey {
		switch key.String() {
		case "ctrl+c", "esc":
			m.state = cancelled
			return m, tea.Quit
		case "enter":
			if m.validate != nil {
				m.problem = m.validate(m.input.Value())
			}
			if m.problem != nil {
				return m, nil
			}
			m.state = accepted
			return m, tea.Quit
		}
	}

	m.problem = nil
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m valueModel) View() tea.View {
	if m.state != editing {
		return tea.NewView("")
	}
	var b strings.Builder
	b.WriteString(styles.Bold.Render("Value for " + m.key))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	if m.problem != nil {
		b.WriteString("\n")
		b.WriteString(styles.ErrorStyle.Render(m.problem.Error()))
	}
	return tea.NewView(b.String())
}

// Value prompts on stderr for the value of key until validate accepts it.
func Value(key string, validate func(string) error) (string, error) {
	p := tea.NewProgram(newValueModel(key, validate),
		tea.WithOutput(os.Stderr),
		tea.WithColorProfile(colorprofile.Detect(os.Stderr, os.Environ())),
	)
	final, err := p.Run()
	if err != nil {
		return "", errors.WithStack(err)
	}
	m := final.(valueModel)
	if m.state != accepted {
		return "", errors.WithStack(ErrCancelled)
	}
	return m.input.Value(), nil
}

// Interactive reports whether stdin is a terminal.
func Interactive() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// ValidateValue accepts non-empty single-line replacement values.
func ValidateValue(v string) error {
	switch {
	case strings.TrimSpace(v) == "":
		return errors.New("value must not be empty")
	case strings.ContainsAny(v, "\r\n"):
		return errors.New("value must be a single line")
	}
	return nil
}

// Values asks for every key in order and returns the answers.
func Values(keys []string) (map[string]string, error) {
	values := make(map[string]string, len(keys))
	for _, key := range keys {
		v, err := Value(key, ValidateValue)
		if err != nil {
			return nil, err
		}
		values[key] = v
	}
	return values, nil
}
