package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	resumeCmd.Flags().BoolP(flagWatch, "w", false, "Follow a resumed in-flight job to completion")
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Restore the persisted session and pick the tracked job back up",
	Long: `Resume restores the persisted selections and job record, re-attaches
polling to a job that is still in flight, and prints the restored state. The
job is never re-submitted; the server remains the source of truth for where
it actually is.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		tracker, err := newTracker(watchUpdater(cmd))
		if err != nil {
			return err
		}
		defer tracker.Close()

		if err := tracker.Resume(ctx); err != nil {
			return fmt.Errorf("error restoring session: %w", err)
		}

		sel := tracker.Selection()
		job, hasJob := tracker.Job()

		if !hasJob {
			output := sessionOutput{
				ProjectID: sel.ProjectID,
				DatasetID: sel.DatasetID,
				ModelID:   sel.ModelID,
			}
			prettyJSON, err := json.MarshalIndent(output, "", "  ")
			if err != nil {
				return fmt.Errorf("error formatting response: %w", err)
			}
			fmt.Println(string(prettyJSON))
			return nil
		}

		return finishJob(ctx, cmd, tracker, job)
	},
}

// GetResumeCmd returns the resume command
func GetResumeCmd() *cobra.Command {
	return resumeCmd
}
