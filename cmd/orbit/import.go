package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/orbit-chat/orbit/internal/app"
)

var importCmd = &cobra.Command{
	Use:   "import <export-file>",
	Short: "Parse a chat export and store it for analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.close()

		pipeline := app.NewPipeline(rt.log, rt.cfg, rt.store, rt.gen, rt.registry)
		upload, err := pipeline.ImportFile(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Imported %d messages from %s (%s)\n", upload.MessageCount, upload.Filename, upload.Platform)
		fmt.Printf("Session: %s\n", upload.SessionKey)
		return nil
	},
}
