package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// datasetOutput represents the filtered output for a dataset
type datasetOutput struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	ImageCount int    `json:"image_count"`
}

// modelOutput represents the filtered output for a base model
type modelOutput struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

func init() {
	datasetsCmd.AddCommand(listDatasetsCmd)
	modelsCmd.AddCommand(listModelsCmd)

	listDatasetsCmd.Flags().StringP(flagProject, "p", "", "Project ID to list datasets for")
	_ = listDatasetsCmd.MarkFlagRequired(flagProject)
}

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "Browse the dataset catalog",
}

var listDatasetsCmd = &cobra.Command{
	Use:   "list",
	Short: "List the ready datasets in a project",
	RunE: func(cmd *cobra.Command, _ []string) error {
		projectID, _ := cmd.Flags().GetString(flagProject)

		datasets, err := apiClient.Datasets(cmd.Context(), projectID)
		if err != nil {
			return fmt.Errorf("error fetching datasets: %w", err)
		}

		output := make([]datasetOutput, len(datasets))
		for i, d := range datasets {
			output[i] = datasetOutput{
				ID:         d.ID,
				Name:       d.Name,
				Status:     d.Status,
				ImageCount: d.ImageCount,
			}
		}

		prettyJSON, err := json.MarshalIndent(output, "", "  ")
		if err != nil {
			return fmt.Errorf("error formatting response: %w", err)
		}
		fmt.Println(string(prettyJSON))
		return nil
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Browse the base model catalog",
}

var listModelsCmd = &cobra.Command{
	Use:   "list",
	Short: "List the trainable base models",
	RunE: func(cmd *cobra.Command, _ []string) error {
		models, err := apiClient.BaseModels(cmd.Context())
		if err != nil {
			return fmt.Errorf("error fetching base models: %w", err)
		}

		output := make([]modelOutput, len(models))
		for i, m := range models {
			output[i] = modelOutput{
				ID:   m.ID,
				Name: m.Name,
				Type: m.Type,
			}
		}

		prettyJSON, err := json.MarshalIndent(output, "", "  ")
		if err != nil {
			return fmt.Errorf("error formatting response: %w", err)
		}
		fmt.Println(string(prettyJSON))
		return nil
	},
}

// GetDatasetsCmd returns the datasets command
func GetDatasetsCmd() *cobra.Command {
	return datasetsCmd
}

// GetModelsCmd returns the models command
func GetModelsCmd() *cobra.Command {
	return modelsCmd
}
