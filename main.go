// Package main provides the crawlwatch CLI entrypoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lukemcguire/crawlwatch/client"
	"github.com/lukemcguire/crawlwatch/config"
	"github.com/lukemcguire/crawlwatch/monitor"
	"github.com/lukemcguire/crawlwatch/tui"
)

// errFindings makes the process exit non-zero after output that already
// explains the problem.
var errFindings = errors.New("crawl reported problems")

// globalFlags are the settings every command accepts.
type globalFlags struct {
	configPath  string
	server      string
	zeroPolicy  string
	maxLogLines int
	timeout     time.Duration

	debugLog io.Closer
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errFindings) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "crawlwatch [url]",
		Short: "Watch a Crawl Service check a site for broken links",
		Long: `crawlwatch asks a Crawl Service to check a site for broken links and
shows the streamed logs, progress, and report link as they arrive.

Example:
  crawlwatch https://yourstore.com
  crawlwatch watch --json results.json https://yourstore.com`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return flags.setupLogging()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if flags.debugLog != nil {
				_ = flags.debugLog.Close()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd, flags, args)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", os.Getenv(config.EnvConfig), "YAML config file")
	pf.StringVar(&flags.server, "server", config.DefaultServer, "Crawl Service base URL")
	pf.StringVar(&flags.zeroPolicy, "zero-policy", "truthy", "Zero-valued fields: truthy (ignored) or explicit (applied)")
	pf.IntVar(&flags.maxLogLines, "max-log-lines", 0, "Keep at most N log lines (0 keeps all)")
	pf.DurationVar(&flags.timeout, "timeout", config.DefaultConnectTimeout, "Connect and response-header timeout")

	rootCmd.AddCommand(newWatchCmd(flags), newReplayCmd(flags))
	return rootCmd
}

// setupLogging sends the standard logger to the file named by
// CRAWLWATCH_DEBUG, or discards it.
func (g *globalFlags) setupLogging() error {
	path := os.Getenv(config.EnvDebug)
	if path == "" {
		log.SetOutput(io.Discard)
		return nil
	}
	f, err := tea.LogToFile(path, "crawlwatch")
	if err != nil {
		return fmt.Errorf("open debug log: %w", err)
	}
	g.debugLog = f
	return nil
}

// load resolves the configuration: defaults, then the config file, then the
// environment, then flags set on the command line.
func (g *globalFlags) load(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return config.Config{}, err
	}

	fs := cmd.Flags()
	if fs.Changed("server") {
		cfg.Server = g.server
	}
	if fs.Changed("zero-policy") {
		cfg.ZeroPolicy = g.zeroPolicy
	}
	if fs.Changed("max-log-lines") {
		cfg.MaxLogLines = g.maxLogLines
	}
	if fs.Changed("timeout") {
		cfg.ConnectTimeout = g.timeout
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	log.Printf("config: server=%s path=%s zero_policy=%s max_log_lines=%d",
		cfg.Server, cfg.CrawlPath, cfg.ZeroPolicy, cfg.MaxLogLines)
	return cfg, nil
}

func runInteractive(cmd *cobra.Command, flags *globalFlags, args []string) error {
	cfg, err := flags.load(cmd)
	if err != nil {
		return err
	}
	opts, err := cfg.MonitorOptions()
	if err != nil {
		return err
	}
	crawlClient, err := client.New(cfg.ClientOptions())
	if err != nil {
		return err
	}
	log.Printf("crawl service: %s", crawlClient.BaseURL())

	var initialURL string
	if len(args) == 1 {
		initialURL = args[0]
	}

	model := tui.NewModel(cmd.Context(), tui.Options{
		Watcher:    monitor.NewWatcher(crawlClient),
		Reports:    crawlClient,
		ReportDir:  cfg.ReportDir,
		Monitor:    opts,
		InitialURL: initialURL,
	})
	program := tea.NewProgram(model, tea.WithContext(cmd.Context()))

	finalModel, err := program.Run()
	if err != nil {
		return fmt.Errorf("run tui: %w", err)
	}

	final, ok := finalModel.(tui.Model)
	if !ok {
		return nil
	}
	if t := final.Transcript(); t != nil && (t.Failed() || t.Stats.Flagged > 0) {
		return errFindings
	}
	return nil
}
