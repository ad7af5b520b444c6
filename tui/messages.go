package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lukemcguire/crawlwatch/monitor"
)

// startMsg asks the model to start a crawl of the URL in the input.
type startMsg struct{}

// RunUpdateMsg carries one update of a crawl run.
type RunUpdateMsg struct {
	Update monitor.Update
}

// RunClosedMsg signals that a run's update channel has closed.
type RunClosedMsg struct {
	RunID string
}

// ReportSavedMsg reports the outcome of saving the report to disk.
type ReportSavedMsg struct {
	Path string
	Err  error
}

// waitForUpdate returns a tea.Cmd that reads one update of the run. When the
// channel closes, it returns a RunClosedMsg for the run.
func waitForUpdate(runID string, ch <-chan monitor.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return RunClosedMsg{RunID: runID}
		}
		return RunUpdateMsg{Update: u}
	}
}

// saveReport returns a tea.Cmd that downloads the report into dir.
func saveReport(ctx context.Context, reports ReportDownloader, href, dir string) tea.Cmd {
	return func() tea.Msg {
		path, err := reports.DownloadReport(ctx, href, dir)
		return ReportSavedMsg{Path: path, Err: err}
	}
}
