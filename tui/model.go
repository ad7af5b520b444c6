// Package tui provides the Bubble Tea terminal UI for crawlwatch: a URL
// input, live crawl logs, a progress bar, and the report link.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lukemcguire/crawlwatch/monitor"
	"github.com/lukemcguire/crawlwatch/result"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
	// Lines used by everything except the log panel.
	chromeHeight = 10
)

// ReportDownloader saves a finished report to disk.
type ReportDownloader interface {
	DownloadReport(ctx context.Context, href, dir string) (string, error)
}

// Options wires a Model to its collaborators.
type Options struct {
	Watcher    *monitor.Watcher
	Reports    ReportDownloader // Optional; nil disables saving
	ReportDir  string
	Monitor    monitor.Options
	InitialURL string // Crawled immediately when set
}

// Model is the Bubble Tea model for the crawl monitor.
type Model struct {
	ctx       context.Context
	watcher   *monitor.Watcher
	reports   ReportDownloader
	reportDir string
	opts      monitor.Options
	autoStart bool

	input   textinput.Model
	logView viewport.Model
	bar     progress.Model
	spinner spinner.Model
	help    help.Model
	keys    keyMap

	state      monitor.State
	runID      string
	updates    <-chan monitor.Update
	running    bool
	started    time.Time
	runErr     error
	transcript *result.Transcript
	notice     string
	width      int
	quitting   bool
}

// NewModel creates a TUI model that runs crawls through opts.Watcher.
func NewModel(ctx context.Context, opts Options) Model {
	ti := textinput.New()
	ti.Placeholder = "https://yourstore.com"
	ti.Prompt = "URL: "
	ti.CharLimit = 2048
	ti.Width = defaultWidth - len(ti.Prompt) - 1
	ti.SetValue(opts.InitialURL)
	ti.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = defaultWidth - 4

	return Model{
		ctx:       ctx,
		watcher:   opts.Watcher,
		reports:   opts.Reports,
		reportDir: opts.ReportDir,
		opts:      opts.Monitor,
		autoStart: opts.InitialURL != "",
		input:     ti,
		logView:   viewport.New(defaultWidth, defaultHeight-chromeHeight),
		bar:       bar,
		spinner:   spin,
		help:      help.New(),
		keys:      defaultKeys,
		width:     defaultWidth,
	}
}

// Init starts the cursor blink and spinner, and the first crawl if a URL
// was given up front.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spinner.Tick}
	if m.autoStart {
		cmds = append(cmds, func() tea.Msg { return startMsg{} })
	}
	return tea.Batch(cmds...)
}

// Update handles messages from the Bubble Tea runtime.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			m.watcher.Cancel()
			return m, tea.Quit
		case key.Matches(msg, m.keys.Start):
			return m.start()
		case key.Matches(msg, m.keys.Cancel):
			return m.cancelRun(), nil
		case key.Matches(msg, m.keys.Save):
			return m.save()
		case key.Matches(msg, m.keys.ScrollUp, m.keys.ScrollDown):
			var cmd tea.Cmd
			m.logView, cmd = m.logView.Update(msg)
			return m, cmd
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-len(m.input.Prompt)-1, 10)
		m.bar.Width = max(msg.Width-4, 10)
		m.logView.Width = msg.Width
		m.logView.Height = max(msg.Height-chromeHeight, 3)
		m.help.Width = msg.Width
		return m, nil

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.logView, cmd = m.logView.Update(msg)
		return m, cmd

	case startMsg:
		return m.start()

	case RunUpdateMsg:
		if msg.Update.RunID != m.runID || !m.running {
			// Stale run.
			return m, nil
		}
		m.state = monitor.ApplyUpdate(m.state, msg.Update, m.opts)
		if msg.Update.Err != nil {
			m.runErr = msg.Update.Err
		}
		m.refreshLog()
		if msg.Update.Done {
			m.finish()
			return m, nil
		}
		return m, waitForUpdate(m.runID, m.updates)

	case RunClosedMsg:
		if msg.RunID == m.runID && m.running {
			m.finish()
		}
		return m, nil

	case ReportSavedMsg:
		if msg.Err != nil {
			m.notice = errorStyle.Render("Save failed: " + msg.Err.Error())
		} else {
			m.notice = successStyle.Render("Saved report to " + msg.Path)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// start resets the view and begins a crawl of the URL in the input. A run
// already in flight is cancelled by the watcher; its updates are dropped
// because they carry the old run ID.
func (m Model) start() (tea.Model, tea.Cmd) {
	target := m.input.Value()
	runID, updates := m.watcher.Start(m.ctx, target)

	m.state = monitor.Reset(target)
	m.runID = runID
	m.updates = updates
	m.running = true
	m.started = time.Now()
	m.runErr = nil
	m.transcript = nil
	m.notice = ""
	m.refreshLog()
	return m, waitForUpdate(runID, updates)
}

// cancelRun aborts the run in flight and records the cancellation.
func (m Model) cancelRun() Model {
	if !m.running {
		return m
	}
	m.watcher.Cancel()
	m.runErr = context.Canceled
	m.state = monitor.ApplyUpdate(m.state, monitor.Update{RunID: m.runID, Err: context.Canceled, Done: true}, m.opts)
	m.refreshLog()
	m.finish()
	return m
}

func (m Model) save() (tea.Model, tea.Cmd) {
	switch {
	case m.state.DownloadURL == "":
		m.notice = dimStyle.Render("No report yet")
		return m, nil
	case m.reports == nil:
		m.notice = dimStyle.Render("Saving is not available for this source")
		return m, nil
	}
	m.notice = dimStyle.Render("Saving report...")
	return m, saveReport(m.ctx, m.reports, m.state.DownloadURL, m.reportDir)
}

func (m *Model) finish() {
	m.running = false
	m.transcript = result.NewTranscript(m.state, m.opts, time.Since(m.started), m.runErr)
}

// refreshLog re-renders the log panel, following the tail when the view
// was already at the bottom.
func (m *Model) refreshLog() {
	follow := m.logView.AtBottom() || len(m.state.Logs) <= 1
	m.logView.SetContent(renderLog(m.state.Logs, m.opts.Markers))
	if follow {
		m.logView.GotoBottom()
	}
}

// View renders the current TUI state.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("🔍 Link Checker"))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	if m.running {
		b.WriteString(fmt.Sprintf("%s Crawling %s\n", m.spinner.View(), dimStyle.Render(m.state.URL)))
	} else {
		b.WriteString("\n")
	}
	b.WriteString(labelStyle.Render(fmt.Sprintf("Pages Scanned: %d", m.state.Scanned)))
	b.WriteString("\n")
	b.WriteString(m.bar.ViewAs(m.state.Progress / 100))
	b.WriteString("\n\n")
	b.WriteString(m.logView.View())
	b.WriteString("\n")

	if m.state.Finished() {
		b.WriteString("📄 Download Report: ")
		b.WriteString(linkStyle.Render(m.state.DownloadURL))
		b.WriteString("\n")
	}
	if m.notice != "" {
		b.WriteString(m.notice)
		b.WriteString("\n")
	}
	if !m.running && m.transcript != nil {
		b.WriteString(RenderSummary(m.transcript))
	}
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}

// State returns the view state of the current or last run.
func (m Model) State() monitor.State {
	return m.state
}

// Transcript returns the record of the last finished run, if any.
func (m Model) Transcript() *result.Transcript {
	return m.transcript
}

// Running reports whether a crawl is in flight.
func (m Model) Running() bool {
	return m.running
}
