package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/canvaswatch/canvaswatch/internal/utils"
	"github.com/canvaswatch/canvaswatch/pkg/snapshot"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Print the stored canonical snapshot",
	RunE: func(cmd *cobra.Command, _ []string) error {
		courseID := viper.GetString("canvas.course_id")
		if courseID == "" {
			return errors.New("canvas.course_id is not set (see ~/.canvaswatch.yaml)")
		}
		stateDir, err := utils.DefaultStateDir(viper.GetString("watch.state_dir"))
		if err != nil {
			return err
		}
		store := snapshot.NewStore(stateDir, courseID)
		data, err := os.ReadFile(store.SnapshotPath())
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("no snapshot yet for course %s (run watch/poll first)", courseID)
			}
			return err
		}
		// The file is already deterministic, pretty-printed JSON.
		fmt.Print(string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
}
