package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"songlens/internal/batch"
	"songlens/internal/song"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiBlue   = "\033[34m"
)

// Console writes tables to a terminal or any writer. Colors are used only
// when the writer is a terminal.
type Console struct {
	mu       sync.Mutex
	w        io.Writer
	colorize bool
}

// NewConsole creates a console display writing to w.
func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = os.Stdout
	}
	return &Console{w: w, colorize: shouldColorize(w)}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (c *Console) paint(color, s string) string {
	if !c.colorize || color == "" {
		return s
	}
	return color + s + ansiReset
}

func (c *Console) println(lines ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, line := range lines {
		fmt.Fprintln(c.w, line)
	}
}

// DisplayResults renders key, tempo and one meter per model.
func (c *Console) DisplayResults(v song.View) {
	header := c.paint(ansiBlue, fmt.Sprintf("== %s ==", v.FileName))
	lines := []string{
		header,
		fmt.Sprintf("Key: %s   BPM: %s   Status: %s", KeyText(v), BPMText(v), c.statusText(v.Status)),
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Model", "Score", ""})
	for _, model := range v.Models {
		res, ok := v.Results[model]
		switch {
		case !ok:
			tw.AppendRow(table.Row{ModelLabel(model), "…", c.paint(ansiYellow, "pending")})
		case res.IsError:
			tw.AppendRow(table.Row{ModelLabel(model), fmt.Sprintf("%d%%", Percent(res.Value)), c.paint(ansiRed, "error")})
		default:
			tw.AppendRow(table.Row{ModelLabel(model), fmt.Sprintf("%d%%", Percent(res.Value)), meter(res.Value)})
		}
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	lines = append(lines, tw.Render())
	if v.Error != "" {
		lines = append(lines, c.paint(ansiRed, "Error: "+v.Error))
	}
	c.println(lines...)
}

// DisplayErrorState shows a failure message in place of results.
func (c *Console) DisplayErrorState(message string) {
	c.println(c.paint(ansiRed, "Analysis failed: "+strings.TrimSpace(message)))
}

// ResetDisplay separates the next session from earlier output.
func (c *Console) ResetDisplay() {
	c.println("")
}

// Alert prints a prominent one-line notice.
func (c *Console) Alert(message string) {
	c.println(c.paint(ansiRed, "! "+strings.TrimSpace(message)))
}

// DisplayProgress prints batch start and settle lines.
func (c *Console) DisplayProgress(p batch.Progress) {
	n := len(p.Batch.Paths)
	if !p.Settled {
		c.println(fmt.Sprintf("Batch %d/%d: analyzing %d songs", p.Batch.ID+1, p.Batches, n))
		return
	}
	line := fmt.Sprintf("Batch %d/%d: %d completed, %d failed", p.Batch.ID+1, p.Batches, p.Completed, p.Failed)
	if p.Failed > 0 {
		line = c.paint(ansiYellow, line)
	}
	c.println(line)
}

// DisplaySummary renders one row per song. Failed songs are marked so they
// stand out without interrupting the run.
func (c *Console) DisplaySummary(views []song.View) {
	if len(views) == 0 {
		return
	}
	models := views[0].Models
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	header := table.Row{"#", "File"}
	for _, m := range models {
		header = append(header, ModelLabel(m))
	}
	header = append(header, "BPM", "Key", "Status")
	tw.AppendHeader(header)

	configs := []table.ColumnConfig{{Number: 1, Align: text.AlignRight}}
	for i := range models {
		configs = append(configs, table.ColumnConfig{Number: i + 3, Align: text.AlignRight, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	for _, v := range views {
		name := v.FileName
		if v.Status == song.StatusError {
			name = "⚠ " + name
		}
		row := table.Row{v.ID, name}
		for _, m := range models {
			if score, ok := v.Score(m); ok {
				row = append(row, fmt.Sprintf("%d%%", Percent(score)))
			} else {
				row = append(row, "-")
			}
		}
		row = append(row, BPMText(v), KeyText(v), c.statusText(v.Status))
		tw.AppendRow(row)
	}
	c.println(tw.Render())
}

func (c *Console) statusText(s song.Status) string {
	switch s {
	case song.StatusCompleted:
		return c.paint(ansiGreen, string(s))
	case song.StatusError:
		return c.paint(ansiRed, string(s))
	default:
		return c.paint(ansiYellow, string(s))
	}
}
