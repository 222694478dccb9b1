package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vantagevision/vantage/internal/types"
	"github.com/vantagevision/vantage/internal/workflow"
)

// Inference flag names
const (
	flagFile       = "file"
	flagConfidence = "confidence"
)

func init() {
	inferCmd.AddCommand(startInferenceCmd)
	inferCmd.AddCommand(inferenceStatusCmd)
	inferCmd.AddCommand(cancelInferenceCmd)
	inferCmd.AddCommand(deleteInferenceCmd)
	inferCmd.AddCommand(inferenceResultsCmd)

	// Add flags for start
	startInferenceCmd.Flags().StringP(flagProject, "p", "", "Project ID")
	startInferenceCmd.Flags().StringP(flagDataset, "d", "", "Dataset ID to run inference on (dataset mode)")
	startInferenceCmd.Flags().StringP(flagModel, "m", "", "Model ID to run inference with")
	startInferenceCmd.Flags().StringArrayP(flagFile, "f", nil, "Uploaded file reference (custom-upload mode, repeatable)")
	startInferenceCmd.Flags().Float64(flagConfidence, 0, "Confidence threshold in [0,1]")
	startInferenceCmd.Flags().BoolP(flagWatch, "w", false, "Poll the job to completion")

	inferenceStatusCmd.Flags().BoolP(flagWatch, "w", false, "Poll the job to completion")
}

var inferCmd = &cobra.Command{
	Use:   "infer",
	Short: "Manage inference jobs",
}

var startInferenceCmd = &cobra.Command{
	Use:   "start",
	Short: "Submit an inference job in dataset or custom-upload mode",
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

		if err := applySelection(ctx, cmd, tracker); err != nil {
			return err
		}
		if cmd.Flags().Changed(flagConfidence) {
			confidence, _ := cmd.Flags().GetFloat64(flagConfidence)
			if err := tracker.SetConfidence(confidence); err != nil {
				return err
			}
		}

		files, _ := cmd.Flags().GetStringArray(flagFile)

		job, err := tracker.StartInference(ctx, files)
		if err != nil {
			return fmt.Errorf("error starting inference: %w", err)
		}

		return finishJob(ctx, cmd, tracker, job)
	},
}

var inferenceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the tracked inference job's status",
	RunE:  statusRunE(types.JobKindInference),
}

var cancelInferenceCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel the tracked inference job",
	RunE:  cancelRunE(types.JobKindInference),
}

var deleteInferenceCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the tracked inference job and its artifacts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		tracker, err := newTracker(nil)
		if err != nil {
			return err
		}
		defer tracker.Close()

		if err := tracker.Resume(ctx); err != nil {
			return fmt.Errorf("error restoring session: %w", err)
		}

		job, ok := tracker.Job()
		if !ok {
			return workflow.ErrNoActiveJob
		}

		if err := tracker.Delete(ctx); err != nil {
			return err
		}

		fmt.Printf("Job %s deleted\n", job.ID)
		return nil
	},
}

var inferenceResultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Fetch the results of the completed inference job",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		tracker, err := newTracker(nil)
		if err != nil {
			return err
		}
		defer tracker.Close()

		if err := tracker.Resume(ctx); err != nil {
			return fmt.Errorf("error restoring session: %w", err)
		}

		results, err := tracker.Results(ctx)
		if err != nil {
			return fmt.Errorf("error fetching results: %w", err)
		}

		prettyJSON, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("error formatting response: %w", err)
		}
		fmt.Println(string(prettyJSON))
		return nil
	},
}

// GetInferCmd returns the infer command
func GetInferCmd() *cobra.Command {
	return inferCmd
}
