package result

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/rodaine/table"
)

var (
	headerFmt  = color.New(color.FgBlue, color.Bold).SprintfFunc()
	flaggedFmt = color.New(color.FgRed)
	reportFmt  = color.New(color.FgGreen, color.Bold)
)

// CategoryOrder is the display order for line categories, most actionable first.
var CategoryOrder = []Category{
	CategoryBroken,
	CategoryMailto,
	CategoryOutbound,
	CategoryScanned,
	CategoryInfo,
}

// CategoryCounts returns the number of lines in each category.
func (t *Transcript) CategoryCounts() map[Category]int {
	counts := make(map[Category]int, len(CategoryOrder))
	for _, line := range t.Lines {
		counts[line.Category]++
	}
	return counts
}

// PrintResults writes a run summary to w: the report link or failure, a
// per-category table, and every flagged line.
func PrintResults(w io.Writer, t *Transcript) {
	writef := func(format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

	writef("Crawl of %s\n", t.URL)
	switch {
	case t.DownloadURL != "":
		_, _ = reportFmt.Fprintf(w, "Report ready: %s\n", t.DownloadURL)
	case t.Failure != "":
		_, _ = flaggedFmt.Fprintf(w, "%s: %s\n", FormatCategory(t.FailureType), t.Failure)
	default:
		writef("Stream ended without a report\n")
	}
	writef("\n")

	counts := t.CategoryCounts()
	tbl := table.New("Category", "Lines").WithWriter(w).WithHeaderFormatter(headerFmt)
	for _, cat := range CategoryOrder {
		if counts[cat] == 0 {
			continue
		}
		tbl.AddRow(string(cat), counts[cat])
	}
	tbl.Print()

	if flagged := t.FlaggedLines(); len(flagged) > 0 {
		writef("\nFlagged lines:\n")
		for _, line := range flagged {
			_, _ = flaggedFmt.Fprintf(w, "  %s\n", line.Text)
		}
	}
	if t.Stats.Dropped > 0 {
		writef("\n(%d earlier lines not kept)\n", t.Stats.Dropped)
	}

	writef("\nScanned %d pages, progress %s, flagged %d of %d lines in %s\n",
		t.PagesScanned, FormatProgress(t.Progress), t.Stats.Flagged, t.Stats.Lines,
		t.Duration.Round(time.Millisecond))
}

// FormatProgress renders a percentage without a spurious fraction.
func FormatProgress(p float64) string {
	if p == float64(int64(p)) {
		return fmt.Sprintf("%d%%", int64(p))
	}
	return fmt.Sprintf("%.1f%%", p)
}
