package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lukemcguire/crawlwatch/monitor"
	"github.com/lukemcguire/crawlwatch/result"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	successStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	categoryStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	dimStyle      = lipgloss.NewStyle().Faint(true)
	labelStyle    = lipgloss.NewStyle().Bold(true)
	linkStyle     = lipgloss.NewStyle().Underline(true).Foreground(lipgloss.Color("12"))
	// Log lines keep their tabs.
	logStyle = lipgloss.NewStyle().TabWidth(lipgloss.NoTabConversion)
	// Flagged lines get an error background.
	flaggedStyle = lipgloss.NewStyle().
		TabWidth(lipgloss.NoTabConversion).
		Background(lipgloss.Color("52")).
		Foreground(lipgloss.Color("224"))
)

// RenderSummary produces a Lip Gloss styled summary of a finished run.
func RenderSummary(t *result.Transcript) string {
	if t == nil {
		return errorStyle.Render("No results available.")
	}

	var builder strings.Builder

	switch {
	case t.Failed():
		builder.WriteString(errorStyle.Render(fmt.Sprintf("%s: %s", result.FormatCategory(t.FailureType), t.Failure)))
	case t.FailureType == result.CategoryCanceled:
		builder.WriteString(categoryStyle.Render("Crawl cancelled"))
	case t.Stats.Flagged == 0:
		builder.WriteString(successStyle.Render("No broken links found!"))
	default:
		builder.WriteString(categoryStyle.Render(fmt.Sprintf("## Flagged lines (%d)", t.Stats.Flagged)))
	}
	builder.WriteString("\n")

	counts := t.CategoryCounts()
	rows := make([][]string, 0, len(result.CategoryOrder))
	for _, cat := range result.CategoryOrder {
		if counts[cat] == 0 {
			continue
		}
		rows = append(rows, []string{string(cat), strconv.Itoa(counts[cat])})
	}
	if len(rows) > 0 {
		catTable := table.New().
			Border(lipgloss.RoundedBorder()).
			Headers("Category", "Lines").
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return logStyle
			}).
			Rows(rows...)
		builder.WriteString(catTable.Render())
		builder.WriteString("\n")
	}

	builder.WriteString(titleStyle.Render(fmt.Sprintf(
		"Flagged %d of %d lines, %d pages scanned (%s)",
		t.Stats.Flagged,
		t.Stats.Lines,
		t.PagesScanned,
		t.Duration.Round(time.Millisecond),
	)))
	builder.WriteString("\n")

	return builder.String()
}

// renderLog styles log lines for the log panel. Lines are kept as sent,
// including any internal whitespace and newlines.
func renderLog(lines []string, markers []string) string {
	rendered := make([]string, len(lines))
	for i, line := range lines {
		if monitor.IsFlagged(line, markers) {
			rendered[i] = flaggedStyle.Render(line)
			continue
		}
		rendered[i] = logStyle.Render(line)
	}
	return strings.Join(rendered, "\n")
}
