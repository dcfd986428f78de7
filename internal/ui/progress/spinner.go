// Package progress shows a spinner on stderr while repositories are
// processed. Output stays on stderr so stdout can be piped.
package progress

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"github.com/mattn/go-isatty"
)

// stopTimeout bounds how long Stop waits for the final frame.
const stopTimeout = 500 * time.Millisecond

// Spinner animates a single status line. The line is read from status on
// every frame, so callers change it by changing what status returns.
type Spinner struct {
	status func() string

	mu      sync.Mutex
	program *tea.Program
	stopped chan struct{}
}

type statusModel struct {
	spinner spinner.Model
	status  func() string
}

func (m statusModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m statusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m statusModel) View() tea.View {
	line := m.status()
	if line == "" {
		return tea.NewView("")
	}
	return tea.NewView(m.spinner.View() + " " + line)
}

// NewSpinner creates a stopped spinner.
func NewSpinner(status func() string) *Spinner {
	return &Spinner{status: status}
}

// Running reports whether the animation is shown.
func (s *Spinner) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.program != nil
}

// Start shows the spinner on stderr. Starting twice is a no-op.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.program != nil {
		return
	}

	model := statusModel{
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		status:  s.status,
	}
	// No input: the command keeps SIGINT handling and stdin.
	p := tea.NewProgram(model, tea.WithoutSignalHandler(), tea.WithInput(nil), tea.WithOutput(os.Stderr))
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_, _ = p.Run()
	}()
	s.program, s.stopped = p, stopped
}

// Stop quits the animation and clears its line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	p, stopped := s.program, s.stopped
	s.program, s.stopped = nil, nil
	s.mu.Unlock()
	if p == nil {
		return
	}

	p.Quit()
	select {
	case <-stopped:
	case <-time.After(stopTimeout):
	}
	fmt.Fprint(os.Stderr, "\r\033[K")
}

// Counter counts finished repositories. Without a spinner it only counts.
type Counter struct {
	spinner *Spinner
	label   string
	total   int
	done    atomic.Int64
}

// StartCounter shows "label (done/total)" on stderr while enabled is set,
// stderr is a terminal and more than one repository is processed.
func StartCounter(label string, total int, enabled bool) *Counter {
	c := &Counter{label: label, total: total}
	fd := os.Stderr.Fd()
	if !enabled || total < 2 || !(isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)) {
		return c
	}
	c.spinner = NewSpinner(c.message)
	c.spinner.Start()
	return c
}

// Done marks one repository as finished.
func (c *Counter) Done() {
	c.done.Add(1)
}

// Finished returns how many repositories are done.
func (c *Counter) Finished() int {
	return int(c.done.Load())
}

// Stop removes the spinner.
func (c *Counter) Stop() {
	if c.spinner != nil {
		c.spinner.Stop()
	}
}

func (c *Counter) message() string {
	return counterMessage(c.label, c.Finished(), c.total)
}

func counterMessage(label string, done, total int) string {
	return fmt.Sprintf("%s (%d/%d)", label, done, total)
}
