package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// cycleTimeout bounds a single fetch→diff→notify cycle.
const cycleTimeout = 2 * time.Minute

// pollCmd implements: canvaswatch poll
//
// Runs exactly one poll cycle and exits. Meant for external schedulers
// (systemd timers, crontab); `canvaswatch watch` is the built-in loop.
var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Run a single poll cycle and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return fmt.Errorf("unknown command: '%s'. See 'canvaswatch poll --help'", args[0])
		}

		w, cleanup, err := buildWatcher(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, cancel := context.WithTimeout(cmd.Context(), cycleTimeout)
		defer cancel()

		res, err := w.RunCycle(ctx)
		if err != nil {
			return err
		}
		switch {
		case res.NotModified:
			fmt.Println("Not modified since last poll.")
		case res.Report == "":
			fmt.Println("No changes.")
		default:
			fmt.Println(res.Report)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pollCmd)

	pollCmd.Flags().Bool("db", false, "Also record change history in the sqlite database")
	pollCmd.Flags().String("dbpath", "", "Path to SQLite DB file (default: canvaswatch.sqlite in the state dir)")
}
