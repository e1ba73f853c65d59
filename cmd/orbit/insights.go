package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/orbit-chat/orbit/internal/app"
	"github.com/orbit-chat/orbit/internal/insights"
	"github.com/orbit-chat/orbit/internal/jobs"
)

var insightsCmd = &cobra.Command{
	Use:   "insights <session-key>",
	Short: "Run the hierarchical week/month/year summarization",
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

		type outcome struct {
			result *insights.Result
			err    error
		}
		done := make(chan outcome, 1)
		finished := make(chan struct{})
		go func() {
			result, runErr := pipeline.DeepInsights(ctx, upload.ID)
			done <- outcome{result, runErr}
			close(finished)
		}()

		// Stream job progress to stderr while the run is in flight.
		drained := streamLogs(cmd, pipeline, upload.ID, finished)

		o := <-done
		<-drained
		if o.err != nil {
			if errors.Is(o.err, insights.ErrCancelled) {
				fmt.Fprintln(cmd.ErrOrStderr(), "Run cancelled.")
				return nil
			}
			return o.err
		}

		out, err := json.MarshalIndent(o.result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

// streamLogs attaches to the upload's job once it appears in the
// registry and copies its log lines to stderr. When done closes the
// subscription is released, and the returned channel closes once the
// remaining lines have been flushed.
func streamLogs(cmd *cobra.Command, pipeline *app.Pipeline, uploadID int64, done <-chan struct{}) <-chan struct{} {
	drained := make(chan struct{})
	go func() {
		defer close(drained)

		var job *jobs.Job
		for job == nil {
			j, ok := pipeline.Registry().Get(uploadID)
			if ok {
				job = j
				break
			}
			select {
			case <-done:
				return
			case <-time.After(10 * time.Millisecond):
			}
		}

		ch, snapshot := job.Subscribe()
		go func() {
			<-done
			job.Unsubscribe(ch)
		}()

		for _, line := range snapshot {
			fmt.Fprintln(cmd.ErrOrStderr(), line)
		}
		for line := range ch {
			fmt.Fprintln(cmd.ErrOrStderr(), line)
		}
	}()
	return drained
}
