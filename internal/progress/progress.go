// Package progress reports coarse run progress, one tick per segment.
//
// The enabled reporter draws a bar through a bubbletea program; the disabled
// one does nothing. Both satisfy [Reporter], so callers never branch on
// which one they hold. Ensemble workers always get the disabled one.
package progress

import (
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/dplsim/internal/viz"
)

type Reporter interface {
	Start(total int, label string)
	Advance()
	Finish()
}

// New returns a bar writing to w, or Disabled when enabled is false.
func New(w io.Writer, enabled bool) Reporter {
	if !enabled {
		return Disabled{}
	}
	return NewBar(w)
}

type Disabled struct{}

func (Disabled) Start(int, string) {}
func (Disabled) Advance()          {}
func (Disabled) Finish()           {}

type advanceMsg struct{}
type finishMsg struct{}

// Bar runs one bubbletea program per Start/Finish pair. It does not read
// input or install signal handlers.
type Bar struct {
	out  io.Writer
	opts []tea.ProgramOption
	prog *tea.Program
	done chan struct{}
}

func NewBar(w io.Writer, opts ...tea.ProgramOption) *Bar {
	return &Bar{out: w, opts: opts}
}

func (b *Bar) Start(total int, label string) {
	if b.prog != nil {
		b.Finish()
	}
	opts := append([]tea.ProgramOption{
		tea.WithOutput(b.out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	}, b.opts...)

	b.prog = tea.NewProgram(newBarModel(total, label, time.Now()), opts...)
	b.done = make(chan struct{})
	go func(p *tea.Program, done chan struct{}) {
		defer close(done)
		_, _ = p.Run()
	}(b.prog, b.done)
}

func (b *Bar) Advance() {
	if b.prog != nil {
		b.prog.Send(advanceMsg{})
	}
}

// Finish stops the program and waits for its last frame.
func (b *Bar) Finish() {
	if b.prog == nil {
		return
	}
	b.prog.Send(finishMsg{})
	<-b.done
	b.prog, b.done = nil, nil
}

const barWidth = 30

var labelStyle = lipgloss.NewStyle().Bold(true)

type barModel struct {
	label   string
	total   int
	done    int
	started time.Time
	now     func() time.Time
}

func newBarModel(total int, label string, started time.Time) barModel {
	return barModel{label: label, total: total, started: started, now: time.Now}
}

func (m barModel) Init() tea.Cmd { return nil }

func (m barModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg.(type) {
	case advanceMsg:
		if m.done < m.total {
			m.done++
		}
	case finishMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m barModel) percent() float64 {
	if m.total <= 0 {
		return 1
	}
	return float64(m.done) / float64(m.total)
}

func (m barModel) View() string {
	elapsed := m.now().Sub(m.started).Round(time.Second)
	return fmt.Sprintf("%s %s %d/%d %s\n",
		labelStyle.Render(m.label),
		viz.ProgressBar(m.percent(), barWidth),
		m.done, m.total,
		viz.Subtle.Render(elapsed.String()))
}
