package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/orbit-chat/orbit/internal/app"
)

var statsCmd = &cobra.Command{
	Use:   "stats <session-key>",
	Short: "Compute the statistics report for an imported chat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.close()

		upload, err := resolveUpload(ctx, rt.store, args[0])
		if err != nil {
			return err
		}

		pipeline := app.NewPipeline(rt.log, rt.cfg, rt.store, rt.gen, rt.registry)
		report, err := pipeline.ComputeStats(ctx, upload.ID)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}
