package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/canvaswatch/canvaswatch/internal/utils"
	"github.com/canvaswatch/canvaswatch/pkg/canvas"
	"github.com/canvaswatch/canvaswatch/pkg/notify"
	"github.com/canvaswatch/canvaswatch/pkg/snapshot"
	"github.com/canvaswatch/canvaswatch/pkg/storage"
	"github.com/canvaswatch/canvaswatch/pkg/watch"
)

// buildWatcher wires a Watcher from config and flags. The returned cleanup
// releases the state lock and closes the history DB; call it when the
// command is done polling.
func buildWatcher(cmd *cobra.Command) (*watch.Watcher, func(), error) {
	courseID := viper.GetString("canvas.course_id")
	if courseID == "" {
		return nil, nil, errors.New("canvas.course_id is not set (see ~/.canvaswatch.yaml)")
	}

	proxy, _ := cmd.Flags().GetString("proxy")
	client, err := canvas.NewClient(canvas.Config{
		BaseURL:  viper.GetString("canvas.base_url"),
		CourseID: courseID,
		Token:    viper.GetString("canvas.token"),
		Cookie:   viper.GetString("canvas.cookie"),
		PerPage:  viper.GetInt("canvas.per_page"),
		Proxy:    proxy,
	})
	if err != nil {
		return nil, nil, err
	}

	stateDir, err := utils.DefaultStateDir(viper.GetString("watch.state_dir"))
	if err != nil {
		return nil, nil, err
	}
	lock, err := utils.NewStateLock(stateDir)
	if err != nil {
		return nil, nil, err
	}
	if err := lock.Lock(); err != nil {
		return nil, nil, err
	}

	var notifiers []notify.Notifier
	if url := viper.GetString("discord.webhook_url"); url != "" {
		d, err := notify.NewDiscord(url)
		if err != nil {
			lock.Unlock()
			return nil, nil, err
		}
		notifiers = append(notifiers, d)
	}
	if token := viper.GetString("telegram.token"); token != "" {
		tg, err := notify.NewTelegram(token, viper.GetInt64("telegram.chat_id"))
		if err != nil {
			lock.Unlock()
			return nil, nil, err
		}
		notifiers = append(notifiers, tg)
	}
	if len(notifiers) == 0 {
		utils.Log.Warn("No notification transport configured; reports will only be printed.")
	}

	var db *storage.DB
	useDB, _ := cmd.Flags().GetBool("db")
	if useDB {
		dbPath, _ := cmd.Flags().GetString("dbpath")
		if dbPath == "" {
			dbPath = filepath.Join(stateDir, "canvaswatch.sqlite")
		}
		db, err = storage.Open(dbPath)
		if err != nil {
			lock.Unlock()
			return nil, nil, fmt.Errorf("opening history db: %w", err)
		}
	}

	w := watch.New(watch.Config{
		Fetcher:  client,
		Store:    snapshot.NewStore(stateDir, courseID),
		History:  db,
		Notifier: notify.Multi(notifiers),
		CourseID: courseID,
		Log:      utils.Log,
	})

	cleanup := func() {
		if db != nil {
			db.Close()
		}
		lock.Unlock()
	}
	return w, cleanup, nil
}
