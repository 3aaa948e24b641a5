package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/canvaswatch/canvaswatch/internal/utils"
	"github.com/canvaswatch/canvaswatch/pkg/storage"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print per-course change counts from the history database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		dbPath, _ := cmd.Flags().GetString("dbpath")
		if dbPath == "" {
			stateDir, err := utils.DefaultStateDir(viper.GetString("watch.state_dir"))
			if err != nil {
				return err
			}
			dbPath = filepath.Join(stateDir, "canvaswatch.sqlite")
		}
		if _, err := os.Stat(dbPath); err != nil {
			return fmt.Errorf("history database not found: %s (run watch/poll with --db first)", dbPath)
		}

		db, err := storage.Open(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats(context.Background())
		if err != nil {
			return err
		}
		if len(stats) == 0 {
			fmt.Println("No changes recorded yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "COURSE\tCHANGES\tLAST CHANGE\t")

		total := 0
		for _, s := range stats {
			fmt.Fprintf(w, "%s\t%d\t%s\t\n", s.CourseID, s.ChangeCount, s.LastChangeAt.Format("2006-01-02 15:04:05"))
			total += s.ChangeCount
		}

		fmt.Fprintln(w, " \t \t \t")
		fmt.Fprintf(w, "TOTAL\t%d\t \t\n", total)

		w.Flush()

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().String("dbpath", "", "Path to SQLite DB file (default: canvaswatch.sqlite in the state dir)")
}
