package download

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/docker/go-units"
)

// Progress rendering settings
const (
	progressBarWidth      = 40
	progressRenderEvery   = 200 * time.Millisecond
	progressCounterSuffix = " downloaded"
)

var counterStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

// progressBar renders byte progress of one download on a single terminal line.
// It is owned by a single Fetch call.
type progressBar struct {
	out        io.Writer
	total      int64 // -1 when the server sent no Content-Length
	written    int64
	lastRender time.Time
	bar        progress.Model
}

func newProgressBar(out io.Writer, total int64) *progressBar {
	return &progressBar{
		out:        out,
		total:      total,
		lastRender: time.Now().Add(-time.Second),
		bar:        progress.New(progress.WithDefaultGradient(), progress.WithWidth(progressBarWidth)),
	}
}

// Write counts p; it never fails so it can sit next to the file writer.
func (p *progressBar) Write(data []byte) (int, error) {
	n := len(data)
	p.written += int64(n)

	now := time.Now()
	if now.Sub(p.lastRender) >= progressRenderEvery || (p.total > 0 && p.written >= p.total) {
		p.lastRender = now
		p.render()
	}

	return n, nil
}

// Finish draws the final state and ends the line
func (p *progressBar) Finish() {
	p.render()
	fmt.Fprintln(p.out)
}

func (p *progressBar) render() {
	fmt.Fprintf(p.out, "\r%s", p.view())
}

func (p *progressBar) view() string {
	if p.total > 0 {
		ratio := float64(p.written) / float64(p.total)
		if ratio > 1 {
			ratio = 1
		}
		return fmt.Sprintf("%s %s / %s", p.bar.ViewAs(ratio),
			units.BytesSize(float64(p.written)), units.BytesSize(float64(p.total)))
	}

	return counterStyle.Render(units.BytesSize(float64(p.written)) + progressCounterSuffix)
}
