package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	runprogress "github.com/felixgeelhaar/crew/pkg/domain/progress"
)

var (
	stageStyle = lipgloss.NewStyle().Bold(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	doneStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

// progressPrinter writes one line per distinct progress snapshot. It
// renders the bar statically, so it works on plain writers as well as
// terminals.
type progressPrinter struct {
	w    io.Writer
	bar  progress.Model
	last string
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{
		w:   w,
		bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
	}
}

// Listen satisfies progress.Listener.
func (p *progressPrinter) Listen(s runprogress.State) {
	line := p.render(s)
	if line == "" || line == p.last {
		return
	}
	p.last = line
	fmt.Fprintln(p.w, line)
}

func (p *progressPrinter) render(s runprogress.State) string {
	var label string
	switch s.Status {
	case runprogress.StatusRunning:
		if s.CurrentAgent == "" {
			label = fmt.Sprintf("starting %d stages", s.TotalStages)
		} else {
			label = fmt.Sprintf("[%d/%d] %s", s.CurrentStage, s.TotalStages, stageStyle.Render(s.CurrentAgent))
		}
	case runprogress.StatusError:
		label = errStyle.Render(fmt.Sprintf("%s failed: %s", s.CurrentAgent, s.LastError))
	case runprogress.StatusCompleted:
		label = doneStyle.Render(fmt.Sprintf("done (%d/%d stages)", s.CompletedStages, s.TotalStages))
	default:
		return ""
	}
	return p.bar.ViewAs(s.Percentage/100) + " " + label
}

// progressListener prints progress to stderr unless --quiet is set.
func progressListener(cmd *cobra.Command) runprogress.Listener {
	if quiet {
		return nil
	}
	return newProgressPrinter(cmd.ErrOrStderr()).Listen
}
