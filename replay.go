package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"golang.org/x/time/rate"

	"github.com/lukemcguire/crawlwatch/monitor"
	"github.com/lukemcguire/crawlwatch/stream"
)

func newReplayCmd(flags *globalFlags) *cobra.Command {
	var (
		chunkSize int
		perSecond float64
		jsonPath  string
		csvPath   string
	)

	cmd := &cobra.Command{
		Use:   "replay <file|->",
		Short: "Feed a recorded NDJSON stream through the monitor",
		Long: `replay reads a stream saved with "watch --record" (or any NDJSON file)
and shows it exactly as a live run would, including how lines split across
reads are reassembled.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if chunkSize <= 0 {
				return fmt.Errorf("--chunk-size must be positive, got %d", chunkSize)
			}
			if args[0] == "-" && term.IsTerminal(int(os.Stdin.Fd())) {
				return errors.New("standard input is a terminal; pipe a recording in or name a file")
			}
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}
			opts, err := cfg.MonitorOptions()
			if err != nil {
				return err
			}

			var limiter *rate.Limiter
			if perSecond > 0 {
				limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
			}

			h := &headless{
				watcher: monitor.NewWatcher(fileSource(args[0], limiter), monitor.WithChunkSize(chunkSize)),
				opts:    opts,
				out:     cmd.OutOrStdout(),

				jsonPath: jsonPath,
				csvPath:  csvPath,
			}
			return h.run(cmd.Context(), args[0])
		},
	}

	cmd.Flags().IntVar(&chunkSize, "chunk-size", stream.DefaultChunkSize, "Read the recording `n` bytes at a time")
	cmd.Flags().Float64Var(&perSecond, "rate", 0, "Replay at most `n` chunks per second (0 is unpaced)")
	cmd.Flags().StringVar(&jsonPath, "json", "", "Write the run transcript as JSON to `file`")
	cmd.Flags().StringVar(&csvPath, "csv", "", "Write the log lines as CSV to `file`")
	return cmd
}
