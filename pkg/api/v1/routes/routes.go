// Package routes defines the API routes and URL structure
package routes

import (
	"fmt"
	"net/url"
)

/*

To keep this file organized, routes should be organized in the following way:

1. Training routes first, then inference, then catalog.
2. Within a group, order by lifecycle: start, status, cancel, retry, delete, results.
3. Path patterns (for server registration) and URL builders (for the client)
   live next to each other so they cannot drift apart.

*/

// API base configuration
const (
	// DefaultPort is the default port for the API
	DefaultPort = "8080"
	// APIv1Prefix is the prefix for all API endpoints
	APIv1Prefix = "/api/v1"
)

// DefaultBaseURL is the default base URL for the API
var DefaultBaseURL = fmt.Sprintf("http://localhost:%s", DefaultPort)

// Path patterns, used by the simulator server when registering handlers
const (
	StartTrainingPath    = APIv1Prefix + "/train"
	TrainingStatusPath   = APIv1Prefix + "/train/:id/status"
	CancelTrainingPath   = APIv1Prefix + "/train/:id/cancel"
	RetryTrainingPath    = APIv1Prefix + "/train/:id/retry"
	BaseModelsPath       = APIv1Prefix + "/train/base-models"
	TrainingDefaultsPath = APIv1Prefix + "/train/defaults"

	StartInferencePath   = APIv1Prefix + "/inference/start"
	InferenceStatusPath  = APIv1Prefix + "/inference/:id/status"
	CancelInferencePath  = APIv1Prefix + "/inference/:id/cancel"
	DeleteInferencePath  = APIv1Prefix + "/inference/:id"
	InferenceResultsPath = APIv1Prefix + "/inference/:id/results"

	DatasetsPath = APIv1Prefix + "/datasets"
)

// Training URL builders

// StartTrainingURL returns the URL for submitting a training job
func StartTrainingURL() string {
	return APIv1Prefix + "/train"
}

// TrainingStatusURL returns the URL for polling a training job's status
func TrainingStatusURL(id string) string {
	return fmt.Sprintf("%s/train/%s/status", APIv1Prefix, url.PathEscape(id))
}

// CancelTrainingURL returns the URL for cancelling a training job
func CancelTrainingURL(id string) string {
	return fmt.Sprintf("%s/train/%s/cancel", APIv1Prefix, url.PathEscape(id))
}

// RetryTrainingURL returns the URL for retrying a terminal training job
func RetryTrainingURL(id string) string {
	return fmt.Sprintf("%s/train/%s/retry", APIv1Prefix, url.PathEscape(id))
}

// BaseModelsURL returns the URL for listing trainable base models
func BaseModelsURL() string {
	return APIv1Prefix + "/train/base-models"
}

// TrainingDefaultsURL returns the URL for fetching default hyperparameters
func TrainingDefaultsURL(modelType string) string {
	q := url.Values{}
	if modelType != "" {
		q.Set("modelType", modelType)
	}
	return withQuery(TrainingDefaultsPath, q)
}

// Inference URL builders

// StartInferenceURL returns the URL for submitting an inference job
func StartInferenceURL() string {
	return APIv1Prefix + "/inference/start"
}

// InferenceStatusURL returns the URL for polling an inference job's status
func InferenceStatusURL(id string) string {
	return fmt.Sprintf("%s/inference/%s/status", APIv1Prefix, url.PathEscape(id))
}

// CancelInferenceURL returns the URL for cancelling an inference job
func CancelInferenceURL(id string) string {
	return fmt.Sprintf("%s/inference/%s/cancel", APIv1Prefix, url.PathEscape(id))
}

// DeleteInferenceURL returns the URL for deleting a terminal inference job
func DeleteInferenceURL(id string) string {
	return fmt.Sprintf("%s/inference/%s", APIv1Prefix, url.PathEscape(id))
}

// InferenceResultsURL returns the URL for fetching a completed job's results
func InferenceResultsURL(id string) string {
	return fmt.Sprintf("%s/inference/%s/results", APIv1Prefix, url.PathEscape(id))
}

// Catalog URL builders

// DatasetsURL returns the URL for listing ready datasets in a project
func DatasetsURL(projectID string) string {
	q := url.Values{}
	q.Set("projectId", projectID)
	q.Set("status", "ready")
	return withQuery(DatasetsPath, q)
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
