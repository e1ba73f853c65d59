package main

import (
	"github.com/spf13/cobra"

	"github.com/orbit-chat/orbit/internal/app"
	"github.com/orbit-chat/orbit/internal/app/tasks"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the background worker (retention and database maintenance)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.close()

		taskMap := tasks.RegisterAllTasks(tasks.TaskDeps{
			Logger: rt.log,
			Store:  rt.store,
			Config: rt.cfg,
		})
		scheduler := app.NewScheduler(rt.log, &rt.cfg.Scheduler, taskMap)

		worker := app.NewApp(rt.log, rt.cfg, rt.db, rt.store, scheduler)
		return worker.Run(ctx)
	},
}
