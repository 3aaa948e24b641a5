package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/canvaswatch/canvaswatch/internal/utils"
	"github.com/canvaswatch/canvaswatch/pkg/storage"
)

var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "Show recent recorded changes (default 50)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		dbPath, _ := cmd.Flags().GetString("dbpath")
		limit, _ := cmd.Flags().GetInt("limit")
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
		changes, err := db.ListRecentChanges(context.Background(), limit)
		if err != nil {
			return err
		}
		for _, c := range changes {
			ts := c.OccurredAt.Format("2006-01-02 15:04:05")
			switch c.ChangeType {
			case "changed":
				fmt.Printf("%s  %-7s  course=%s quiz=%s pos=%d %s: %s → %s\n",
					ts, c.ChangeType, c.CourseID, c.QuizID, c.Position, c.Field, c.OldValue, c.NewValue)
			default:
				fmt.Printf("%s  %-7s  course=%s quiz=%s\n", ts, c.ChangeType, c.CourseID, c.QuizID)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(changesCmd)
	changesCmd.Flags().String("dbpath", "", "Path to SQLite DB file (default: canvaswatch.sqlite in the state dir)")
	changesCmd.Flags().Int("limit", 50, "Number of recent changes to show")
}
