package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/canvaswatch/canvaswatch/internal/utils"
)

// watchCmd implements: canvaswatch watch
//
// Runs the poll cycle on a fixed interval until interrupted. Cycles are
// serialized: if one is still running when the next tick fires, the tick is
// skipped (the snapshot store must never see two concurrent writers).
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll on an interval and notify on changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return fmt.Errorf("unknown command: '%s'. See 'canvaswatch watch --help'", args[0])
		}

		w, cleanup, err := buildWatcher(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		interval := viper.GetString("watch.interval")
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		runOnce := func() {
			cctx, cancel := context.WithTimeout(ctx, cycleTimeout)
			defer cancel()
			if _, err := w.RunCycle(cctx); err != nil {
				utils.Log.Errorf("poll cycle failed: %v", err)
			}
		}

		c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
		if _, err := c.AddFunc("@every "+interval, runOnce); err != nil {
			return fmt.Errorf("bad watch.interval %q: %w", interval, err)
		}

		utils.Log.Infof("watching course %s every %s", viper.GetString("canvas.course_id"), interval)
		runOnce()
		c.Start()
		<-ctx.Done()
		utils.Log.Info("shutting down")
		<-c.Stop().Done()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().Bool("db", false, "Also record change history in the sqlite database")
	watchCmd.Flags().String("dbpath", "", "Path to SQLite DB file (default: canvaswatch.sqlite in the state dir)")
}
