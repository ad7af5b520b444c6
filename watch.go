package main

import (
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/lukemcguire/crawlwatch/client"
	"github.com/lukemcguire/crawlwatch/monitor"
)

const progressInterval = time.Second

func newWatchCmd(flags *globalFlags) *cobra.Command {
	var (
		jsonPath   string
		csvPath    string
		recordPath string
		reportDir  string
	)

	cmd := &cobra.Command{
		Use:   "watch <url>",
		Short: "Crawl a site and print the stream without the TUI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			var source monitor.Source = crawlClient
			if recordPath != "" {
				source = recordingSource(crawlClient, recordPath)
			}

			h := &headless{
				watcher:       monitor.NewWatcher(source),
				opts:          opts,
				reports:       crawlClient,
				out:           cmd.OutOrStdout(),
				jsonPath:      jsonPath,
				csvPath:       csvPath,
				reportDir:     reportDir,
				progressEvery: progressInterval,
			}
			return h.run(cmd.Context(), args[0])
		},
	}

	cmd.Flags().StringVar(&jsonPath, "json", "", "Write the run transcript as JSON to `file`")
	cmd.Flags().StringVar(&csvPath, "csv", "", "Write the log lines as CSV to `file`")
	cmd.Flags().StringVar(&recordPath, "record", "", "Copy the raw NDJSON stream to `file`")
	cmd.Flags().StringVar(&reportDir, "save-report", "", "Download the finished report into `dir`")
	return cmd
}
