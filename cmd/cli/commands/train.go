package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vantagevision/vantage/internal/types"
	"github.com/vantagevision/vantage/internal/workflow"
)

// Training flag names
const (
	flagProject      = "project"
	flagDataset      = "dataset"
	flagModel        = "model"
	flagEpochs       = "epochs"
	flagBatchSize    = "batch-size"
	flagLearningRate = "learning-rate"
	flagModelType    = "model-type"
)

// jobOutput represents the filtered output for a job
type jobOutput struct {
	ID      string         `json:"id,omitempty"`
	Kind    string         `json:"kind"`
	Status  string         `json:"status"`
	Percent int            `json:"percent"`
	Metrics map[string]any `json:"metrics,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func jobToOutput(job types.Job) jobOutput {
	return jobOutput{
		ID:      job.ID,
		Kind:    job.Kind.String(),
		Status:  job.Status.String(),
		Percent: job.Progress.Percent,
		Metrics: job.Metrics,
		Error:   job.Error,
	}
}

func printJob(job types.Job) error {
	prettyJSON, err := json.MarshalIndent(jobToOutput(job), "", "  ")
	if err != nil {
		return fmt.Errorf("error formatting response: %w", err)
	}
	fmt.Println(string(prettyJSON))
	return nil
}

func init() {
	trainCmd.AddCommand(startTrainingCmd)
	trainCmd.AddCommand(trainingStatusCmd)
	trainCmd.AddCommand(cancelTrainingCmd)
	trainCmd.AddCommand(retryTrainingCmd)
	trainCmd.AddCommand(trainingDefaultsCmd)

	// Add flags for start
	startTrainingCmd.Flags().StringP(flagProject, "p", "", "Project ID")
	startTrainingCmd.Flags().StringP(flagDataset, "d", "", "Dataset ID to train on")
	startTrainingCmd.Flags().StringP(flagModel, "m", "", "Base model ID to train from")
	startTrainingCmd.Flags().Int(flagEpochs, 0, "Training epochs")
	startTrainingCmd.Flags().Int(flagBatchSize, 0, "Training batch size")
	startTrainingCmd.Flags().Float64(flagLearningRate, 0, "Training learning rate")
	startTrainingCmd.Flags().BoolP(flagWatch, "w", false, "Poll the job to completion")

	trainingStatusCmd.Flags().BoolP(flagWatch, "w", false, "Poll the job to completion")
	retryTrainingCmd.Flags().BoolP(flagWatch, "w", false, "Poll the new job to completion")

	trainingDefaultsCmd.Flags().String(flagModelType, "", "Model type to fetch defaults for")
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Manage training jobs",
}

var startTrainingCmd = &cobra.Command{
	Use:   "start",
	Short: "Submit a training job from the current or given selection",
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
		if err := applyParams(cmd, tracker); err != nil {
			return err
		}

		job, err := tracker.StartTraining(ctx)
		if err != nil {
			return fmt.Errorf("error starting training: %w", err)
		}

		return finishJob(ctx, cmd, tracker, job)
	},
}

var trainingStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the tracked training job's status",
	RunE:  statusRunE(types.JobKindTraining),
}

var cancelTrainingCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel the tracked training job",
	RunE:  cancelRunE(types.JobKindTraining),
}

var retryTrainingCmd = &cobra.Command{
	Use:   "retry",
	Short: "Retry the tracked training job under a new job ID",
	RunE:  retryRunE(types.JobKindTraining),
}

var trainingDefaultsCmd = &cobra.Command{
	Use:   "defaults",
	Short: "Show the default hyperparameters for a model type",
	RunE: func(cmd *cobra.Command, _ []string) error {
		modelType, _ := cmd.Flags().GetString(flagModelType)

		params, err := apiClient.TrainingDefaults(cmd.Context(), modelType)
		if err != nil {
			return fmt.Errorf("error fetching training defaults: %w", err)
		}

		prettyJSON, err := json.MarshalIndent(params, "", "  ")
		if err != nil {
			return fmt.Errorf("error formatting response: %w", err)
		}
		fmt.Println(string(prettyJSON))
		return nil
	},
}

// GetTrainCmd returns the train command
func GetTrainCmd() *cobra.Command {
	return trainCmd
}

// applySelection overlays selection flags onto the restored session
func applySelection(ctx context.Context, cmd *cobra.Command, tracker *workflow.Tracker) error {
	if project, _ := cmd.Flags().GetString(flagProject); project != "" {
		if err := tracker.SetProject(ctx, project); err != nil {
			return err
		}
	}
	if tracker.Selection().ProjectID == "" {
		return workflow.ErrNoProject
	}
	if dataset, _ := cmd.Flags().GetString(flagDataset); dataset != "" {
		if err := tracker.SetDataset(dataset); err != nil {
			return err
		}
	}
	if model, _ := cmd.Flags().GetString(flagModel); model != "" {
		if err := tracker.SetModel(model); err != nil {
			return err
		}
	}
	return nil
}

// applyParams overlays hyperparameter flags, falling back to server defaults
// for anything not given
func applyParams(cmd *cobra.Command, tracker *workflow.Tracker) error {
	epochs, _ := cmd.Flags().GetInt(flagEpochs)
	batchSize, _ := cmd.Flags().GetInt(flagBatchSize)
	learningRate, _ := cmd.Flags().GetFloat64(flagLearningRate)
	if epochs == 0 && batchSize == 0 && learningRate == 0 {
		return nil
	}

	params, err := apiClient.TrainingDefaults(cmd.Context(), "")
	if err != nil {
		return fmt.Errorf("error fetching training defaults: %w", err)
	}
	if epochs != 0 {
		params.Epochs = epochs
	}
	if batchSize != 0 {
		params.BatchSize = batchSize
	}
	if learningRate != 0 {
		params.LearningRate = learningRate
	}
	return tracker.SetParams(params)
}

// watchUpdater returns a progress printer when --watch is set, nil otherwise
func watchUpdater(cmd *cobra.Command) func(types.Job) {
	watch, _ := cmd.Flags().GetBool(flagWatch)
	if !watch {
		return nil
	}
	return func(job types.Job) {
		fmt.Print(progressLine(job))
	}
}

// finishJob either prints the submitted job or, with --watch, waits for the
// terminal state and prints the final job
func finishJob(ctx context.Context, cmd *cobra.Command, tracker *workflow.Tracker, job types.Job) error {
	watch, _ := cmd.Flags().GetBool(flagWatch)
	if !watch {
		return printJob(job)
	}

	final, err := tracker.Wait(ctx)
	fmt.Println()
	if err != nil {
		return fmt.Errorf("error waiting for job: %w", err)
	}
	return printJob(final)
}

// statusRunE builds the shared status command for a job kind
func statusRunE(kind types.JobKind) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		tracker, err := newTracker(watchUpdater(cmd))
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
		if job.Kind != kind {
			return fmt.Errorf("tracked job %s is a %s job", job.ID, job.Kind)
		}

		return finishJob(ctx, cmd, tracker, job)
	}
}

// cancelRunE builds the shared cancel command for a job kind
func cancelRunE(kind types.JobKind) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
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
		if job.Kind != kind {
			return fmt.Errorf("tracked job %s is a %s job", job.ID, job.Kind)
		}

		if err := tracker.Cancel(ctx); err != nil {
			return err
		}

		final, _ := tracker.Job()
		return printJob(final)
	}
}

// retryRunE builds the shared retry command for a job kind
func retryRunE(kind types.JobKind) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		tracker, err := newTracker(watchUpdater(cmd))
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
		if job.Kind != kind {
			return fmt.Errorf("tracked job %s is a %s job", job.ID, job.Kind)
		}

		fresh, err := tracker.Retry(ctx)
		if err != nil {
			return fmt.Errorf("error retrying job: %w", err)
		}

		return finishJob(ctx, cmd, tracker, fresh)
	}
}
