// Package console prints task progress and violations to the terminal.
package console

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"klint/pkg/graph"
)

var (
	colorSuccess = lipgloss.Color("#2CD7C7")
	colorCached  = lipgloss.Color("#1D9EA3")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
	colorMuted   = lipgloss.Color("#5C7A84")
)

// Status icons, one per outcome group
const (
	iconSuccess = "✓"
	iconCached  = "↻"
	iconFailed  = "✗"
	iconSkipped = "○"
	iconPending = "⏳"
)

// IsTerminal reports whether f is attached to a terminal
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Printer writes one status line per finished task. It is safe for concurrent use.
type Printer struct {
	out     io.Writer
	color   bool
	verbose bool
	// ShowViolations prints the violation lines attached to a task result
	ShowViolations bool

	mu sync.Mutex
}

// NewPrinter creates a printer. Colour is only used when color is true.
func NewPrinter(out io.Writer, color, verbose bool) *Printer {
	return &Printer{out: out, color: color, verbose: verbose, ShowViolations: true}
}

// NewStdoutPrinter creates a printer on stdout, coloured when stdout is a terminal
func NewStdoutPrinter(verbose bool) *Printer {
	return NewPrinter(os.Stdout, IsTerminal(os.Stdout), verbose)
}

func (p *Printer) style(c lipgloss.Color, s string) string {
	if !p.color {
		return s
	}
	return lipgloss.NewStyle().Foreground(c).Render(s)
}

func (p *Printer) bold(s string) string {
	if !p.color {
		return s
	}
	return lipgloss.NewStyle().Bold(true).Render(s)
}

// Progress is a graph.ProgressCallback printing start lines in verbose mode
// and a status line for every finished task
func (p *Printer) Progress(task graph.Task, finished bool, result graph.ExecutionResult) {
	if !finished {
		if p.verbose {
			p.printf("  %s %s\n", p.style(colorMuted, iconPending), task.ID())
		}
		return
	}
	p.TaskFinished(result)
}

// TaskFinished prints the status line for a task followed by its violations
func (p *Printer) TaskFinished(res graph.ExecutionResult) {
	r := res.Result
	icon, color := p.icon(r.Outcome)

	var b strings.Builder
	fmt.Fprintf(&b, "  %s %s %s", p.style(color, icon), res.Task.ID(), p.style(color, r.Outcome.String()))
	if r.Message != "" {
		fmt.Fprintf(&b, " %s", p.style(colorMuted, "("+r.Message+")"))
	}
	if p.verbose && r.Outcome.DidWork() {
		fmt.Fprintf(&b, " %s", p.style(colorMuted, res.Duration.Round(time.Millisecond).String()))
	}
	b.WriteString("\n")
	if r.Error != nil && r.Outcome == graph.OutcomeFailed && r.Error.Error() != r.Message {
		fmt.Fprintf(&b, "      %s\n", p.style(colorError, r.Error.Error()))
	}
	if p.ShowViolations {
		for _, line := range r.Details {
			fmt.Fprintf(&b, "      %s\n", line)
		}
	}
	p.printf("%s", b.String())
}

func (p *Printer) icon(o graph.Outcome) (string, lipgloss.Color) {
	switch o {
	case graph.OutcomeSuccess:
		return iconSuccess, colorSuccess
	case graph.OutcomeFailed:
		return iconFailed, colorError
	case graph.OutcomeUpToDate, graph.OutcomeFromCache:
		return iconCached, colorCached
	case graph.OutcomeSkipped:
		return iconSkipped, colorWarning
	default:
		return iconSkipped, colorMuted
	}
}

// Summary prints the closing line of an invocation
func (p *Printer) Summary(results []graph.ExecutionResult, elapsed time.Duration) {
	counts := make(map[graph.Outcome]int)
	var failed []string
	for _, res := range results {
		counts[res.Result.Outcome]++
		if res.Result.Failed() {
			failed = append(failed, res.Task.ID())
		}
	}

	var parts []string
	for _, o := range []graph.Outcome{
		graph.OutcomeSuccess, graph.OutcomeFailed, graph.OutcomeUpToDate,
		graph.OutcomeFromCache, graph.OutcomeNoSource, graph.OutcomeSkipped,
	} {
		if n := counts[o]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, o))
		}
	}

	status := p.style(colorSuccess, "BUILD SUCCESSFUL")
	if len(failed) > 0 {
		status = p.style(colorError, "BUILD FAILED")
	}
	p.printf("\n%s in %s\n", p.bold(status), elapsed.Round(time.Millisecond))
	if len(parts) > 0 {
		p.printf("%d tasks: %s\n", len(results), strings.Join(parts, ", "))
	}
	if len(failed) > 0 {
		sort.Strings(failed)
		p.printf("Failed: %s\n", strings.Join(failed, ", "))
	}
}

// TaskListing prints tasks with their descriptions in two aligned columns
func (p *Printer) TaskListing(tasks []graph.Task) {
	width := 0
	for _, t := range tasks {
		if len(t.ID()) > width {
			width = len(t.ID())
		}
	}
	for _, t := range tasks {
		name := fmt.Sprintf("%-*s", width, t.ID())
		p.printf("%s - %s\n", p.bold(name), t.Description())
	}
}

// Errorf prints an error line
func (p *Printer) Errorf(format string, args ...any) {
	p.printf("%s %s\n", p.style(colorError, iconFailed), fmt.Sprintf(format, args...))
}

// Infof prints a plain informational line
func (p *Printer) Infof(format string, args ...any) {
	p.printf(format+"\n", args...)
}

func (p *Printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}
