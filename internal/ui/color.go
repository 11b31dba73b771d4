package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	genStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	sameStyle = lipgloss.NewStyle().Faint(true)
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	headStyle = lipgloss.NewStyle().Bold(true)
)

// GenLine reports a written output file.
func GenLine(w io.Writer, path string) {
	fmt.Fprintln(w, genStyle.Render("gen")+"   "+path)
}

// SameLine reports an output file that was already up to date.
func SameLine(w io.Writer, path string) {
	fmt.Fprintln(w, sameStyle.Render("same")+"  "+path)
}

func WarnLine(w io.Writer, msg string) {
	fmt.Fprintln(w, warnStyle.Render("warn")+"  "+msg)
}

func ErrLine(w io.Writer, msg string) {
	fmt.Fprintln(w, errStyle.Render("err")+"   "+msg)
}

func SummaryLine(w io.Writer, generated, failed, warnings int) {
	fmt.Fprintf(w, "generated %d files, %d failed, %d warnings\n", generated, failed, warnings)
}

// Table prints rows in aligned columns under a bold header.
func Table(w io.Writer, header []string, rows [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	line := func(cells []string) string {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			if i == len(cells)-1 {
				parts[i] = cell
				continue
			}
			parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
		}
		return strings.Join(parts, "  ")
	}

	fmt.Fprintln(w, headStyle.Render(line(header)))
	for _, row := range rows {
		fmt.Fprintln(w, line(row))
	}
}
