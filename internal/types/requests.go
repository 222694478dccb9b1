package types

import (
	"fmt"
)

// Hyperparameter bounds accepted by the training service
const (
	MinEpochs       = 1
	MaxEpochs       = 500
	MinBatchSize    = 1
	MaxBatchSize    = 512
	MinLearningRate = 1e-6
	MaxLearningRate = 1.0
)

// TrainingParams holds the tunable hyperparameters for a training job
type TrainingParams struct {
	Epochs       int     `json:"epochs"`
	BatchSize    int     `json:"batchSize"`
	LearningRate float64 `json:"learningRate"`
}

// Validate checks that every hyperparameter falls inside its declared range
func (p TrainingParams) Validate() error {
	if p.Epochs < MinEpochs || p.Epochs > MaxEpochs {
		return fmt.Errorf("epochs must be between %d and %d, got %d", MinEpochs, MaxEpochs, p.Epochs)
	}
	if p.BatchSize < MinBatchSize || p.BatchSize > MaxBatchSize {
		return fmt.Errorf("batch size must be between %d and %d, got %d", MinBatchSize, MaxBatchSize, p.BatchSize)
	}
	if p.LearningRate < MinLearningRate || p.LearningRate > MaxLearningRate {
		return fmt.Errorf("learning rate must be between %g and %g, got %g", MinLearningRate, MaxLearningRate, p.LearningRate)
	}
	return nil
}

// StartTrainingRequest is the body for submitting a training job
type StartTrainingRequest struct {
	ProjectID string         `json:"projectId,omitempty"`
	ModelID   string         `json:"modelId"`   // base model to train from
	DatasetID string         `json:"datasetId"` // dataset to train on
	Params    TrainingParams `json:"hyperparameters"`
}

// Validate performs the client-side checks that must never reach the server
func (r StartTrainingRequest) Validate() error {
	if r.ModelID == "" {
		return fmt.Errorf("model id is required")
	}
	if r.DatasetID == "" {
		return fmt.Errorf("dataset id is required")
	}
	return r.Params.Validate()
}

// StartInferenceRequest is the body for submitting an inference job. Exactly
// one input mode must be set: DatasetID (dataset mode) or Files
// (custom-upload mode). Neither or both is a client-side validation error and
// is never sent to the server.
type StartInferenceRequest struct {
	ProjectID           string   `json:"projectId,omitempty"`
	ModelID             string   `json:"modelId"`
	DatasetID           string   `json:"datasetId,omitempty"`
	Files               []string `json:"files,omitempty"`
	ConfidenceThreshold float64  `json:"confidenceThreshold"`
}

// Validate performs the client-side checks that must never reach the server
func (r StartInferenceRequest) Validate() error {
	if r.ModelID == "" {
		return fmt.Errorf("model id is required")
	}
	hasDataset := r.DatasetID != ""
	hasFiles := len(r.Files) > 0
	if !hasDataset && !hasFiles {
		return fmt.Errorf("either a dataset id or a file set is required")
	}
	if hasDataset && hasFiles {
		return fmt.Errorf("dataset id and file set are mutually exclusive")
	}
	if r.ConfidenceThreshold < 0 || r.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be between 0 and 1, got %g", r.ConfidenceThreshold)
	}
	return nil
}
