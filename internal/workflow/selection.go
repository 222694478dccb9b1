package workflow

import (
	"fmt"

	"github.com/vantagevision/vantage/internal/types"
)

// DefaultConfidenceThreshold is applied when the user has not chosen one
const DefaultConfidenceThreshold = 0.5

// Selection holds the user's current choices. A dataset or model id is only
// meaningful while it references an entry in the last-fetched catalog for the
// active project; reconcile clears anything that went stale server-side.
type Selection struct {
	ProjectID  string
	DatasetID  string
	ModelID    string
	Confidence float64
	Params     *types.TrainingParams // nil means use server defaults
}

// validateConfidence checks the [0,1] range shared by every inference flow
func validateConfidence(v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("confidence threshold must be between 0 and 1, got %g", v)
	}
	return nil
}

// trainingRequest builds the start payload from the selection
func (s Selection) trainingRequest() (types.StartTrainingRequest, error) {
	if s.ProjectID == "" {
		return types.StartTrainingRequest{}, ErrNoProject
	}
	if s.ModelID == "" {
		return types.StartTrainingRequest{}, ErrNoModel
	}
	if s.DatasetID == "" {
		return types.StartTrainingRequest{}, ErrNoDataset
	}

	req := types.StartTrainingRequest{
		ProjectID: s.ProjectID,
		ModelID:   s.ModelID,
		DatasetID: s.DatasetID,
	}
	if s.Params != nil {
		req.Params = *s.Params
	}
	return req, nil
}

// inferenceRequest builds the start payload from the selection. Exactly one
// input mode is required: the selected dataset, or the supplied file set.
func (s Selection) inferenceRequest(files []string) (types.StartInferenceRequest, error) {
	if s.ModelID == "" {
		return types.StartInferenceRequest{}, ErrNoModel
	}
	if s.DatasetID != "" && len(files) > 0 {
		return types.StartInferenceRequest{}, fmt.Errorf("dataset selection and file set are mutually exclusive")
	}
	if s.DatasetID == "" && len(files) == 0 {
		return types.StartInferenceRequest{}, ErrNoDataset
	}

	confidence := s.Confidence
	if confidence == 0 {
		confidence = DefaultConfidenceThreshold
	}

	return types.StartInferenceRequest{
		ProjectID:           s.ProjectID,
		ModelID:             s.ModelID,
		DatasetID:           s.DatasetID,
		Files:               files,
		ConfidenceThreshold: confidence,
	}, nil
}
