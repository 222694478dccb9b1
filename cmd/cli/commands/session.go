package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vantagevision/vantage/internal/session"
)

// sessionOutput represents the filtered output for the persisted session
type sessionOutput struct {
	ProjectID string `json:"project_id,omitempty"`
	DatasetID string `json:"dataset_id,omitempty"`
	ModelID   string `json:"model_id,omitempty"`
	JobID     string `json:"job_id,omitempty"`
	JobKind   string `json:"job_kind,omitempty"`
	JobStatus string `json:"job_status,omitempty"`
	Percent   int    `json:"percent,omitempty"`
}

func init() {
	sessionCmd.AddCommand(showSessionCmd)
	sessionCmd.AddCommand(clearSessionCmd)
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect or reset the persisted session",
}

var showSessionCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the persisted selections and job record",
	RunE: func(_ *cobra.Command, _ []string) error {
		rec := session.LoadRecord(store)

		output := sessionOutput{
			ProjectID: rec.ProjectID,
			DatasetID: rec.DatasetID,
			ModelID:   rec.ModelID,
			JobID:     rec.JobID,
			JobKind:   rec.JobKind.String(),
			JobStatus: rec.JobStatus.String(),
			Percent:   rec.JobProgress.Percent,
		}

		prettyJSON, err := json.MarshalIndent(output, "", "  ")
		if err != nil {
			return fmt.Errorf("error formatting response: %w", err)
		}
		fmt.Println(string(prettyJSON))
		return nil
	},
}

var clearSessionCmd = &cobra.Command{
	Use:   "clear",
	Short: "Atomically remove every persisted session key",
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := store.Clear(); err != nil {
			return fmt.Errorf("error clearing session: %w", err)
		}
		fmt.Println("Session cleared")
		return nil
	},
}

// GetSessionCmd returns the session command
func GetSessionCmd() *cobra.Command {
	return sessionCmd
}
