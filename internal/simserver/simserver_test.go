package simserver

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantagevision/vantage/internal/types"
	"github.com/vantagevision/vantage/pkg/api/v1/routes"
)

func doRequest(t *testing.T, app *fiber.App, method, path string, body interface{}) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func submitTraining(t *testing.T, app *fiber.App) string {
	t.Helper()
	code, body := doRequest(t, app, http.MethodPost, routes.StartTrainingURL(), types.StartTrainingRequest{
		ProjectID: "proj-1",
		ModelID:   "mdl-detect-s",
		DatasetID: "ds-street-scenes",
		Params:    types.TrainingParams{Epochs: 10, BatchSize: 8, LearningRate: 0.01},
	})
	require.Equal(t, http.StatusOK, code, string(body))

	var resp types.StartJobResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	require.NotEmpty(t, resp.JobID)
	return resp.JobID
}

func pollStatus(t *testing.T, app *fiber.App, id string) types.StatusResponse {
	t.Helper()
	code, body := doRequest(t, app, http.MethodGet, routes.TrainingStatusURL(id), nil)
	require.Equal(t, http.StatusOK, code, string(body))

	var status types.StatusResponse
	require.NoError(t, json.Unmarshal(body, &status))
	return status
}

func TestJobLifecycle(t *testing.T) {
	app := New().App()
	id := submitTraining(t, app)

	// queued on the first poll, then running with increasing progress, then
	// completed carrying metrics.
	first := pollStatus(t, app, id)
	assert.Equal(t, types.JobStatusQueued, first.Status)

	var last types.StatusResponse
	for i := 0; i < progressSteps+2; i++ {
		last = pollStatus(t, app, id)
		if last.Status == types.JobStatusCompleted {
			break
		}
		assert.Equal(t, types.JobStatusRunning, last.Status)
	}

	assert.Equal(t, types.JobStatusCompleted, last.Status)
	assert.Equal(t, 100, last.Progress.Percent)
	assert.NotEmpty(t, last.Metrics)
}

func TestFailNextJobAt(t *testing.T) {
	srv := New()
	srv.FailNextJobAt(2)
	app := srv.App()

	id := submitTraining(t, app)

	var last types.StatusResponse
	for i := 0; i < progressSteps+2; i++ {
		last = pollStatus(t, app, id)
		if last.Status.Terminal() {
			break
		}
	}
	assert.Equal(t, types.JobStatusFailed, last.Status)

	// The failure applies to one job only.
	other := submitTraining(t, app)
	assert.Equal(t, types.JobStatusQueued, pollStatus(t, app, other).Status)
}

func TestStartRejectsUnknownCatalogEntries(t *testing.T) {
	app := New().App()

	code, _ := doRequest(t, app, http.MethodPost, routes.StartTrainingURL(), types.StartTrainingRequest{
		ProjectID: "proj-1",
		ModelID:   "mdl-detect-s",
		DatasetID: "ds-unknown",
		Params:    types.TrainingParams{Epochs: 10, BatchSize: 8, LearningRate: 0.01},
	})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = doRequest(t, app, http.MethodPost, routes.StartInferenceURL(), types.StartInferenceRequest{
		ModelID:             "mdl-unknown",
		DatasetID:           "ds-street-scenes",
		ConfidenceThreshold: 0.5,
	})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCancelPolicy(t *testing.T) {
	app := New().App()
	id := submitTraining(t, app)

	code, _ := doRequest(t, app, http.MethodPost, routes.CancelTrainingURL(id), nil)
	assert.Equal(t, http.StatusOK, code)

	// Already terminal; a second cancel is a policy rejection.
	code, _ = doRequest(t, app, http.MethodPost, routes.CancelTrainingURL(id), nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = doRequest(t, app, http.MethodPost, routes.CancelTrainingURL("nope"), nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRetryAllocatesNewJob(t *testing.T) {
	app := New().App()
	id := submitTraining(t, app)

	// Retry requires a terminal job.
	code, _ := doRequest(t, app, http.MethodPost, routes.RetryTrainingURL(id), nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = doRequest(t, app, http.MethodPost, routes.CancelTrainingURL(id), nil)
	require.Equal(t, http.StatusOK, code)

	code, body := doRequest(t, app, http.MethodPost, routes.RetryTrainingURL(id), nil)
	require.Equal(t, http.StatusOK, code)

	var resp types.StartJobResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.NotEqual(t, id, resp.JobID)
	assert.Equal(t, types.JobStatusQueued, resp.Status)

	// The old record stays queryable.
	assert.Equal(t, types.JobStatusCancelled, pollStatus(t, app, id).Status)
}

func startInference(t *testing.T, app *fiber.App) string {
	t.Helper()
	code, body := doRequest(t, app, http.MethodPost, routes.StartInferenceURL(), types.StartInferenceRequest{
		ModelID:             "mdl-detect-s",
		DatasetID:           "ds-warehouse",
		ConfidenceThreshold: 0.5,
	})
	require.Equal(t, http.StatusOK, code, string(body))

	var resp types.StartJobResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp.JobID
}

func TestDeletePolicy(t *testing.T) {
	app := New().App()
	id := startInference(t, app)

	// Active jobs cannot be deleted.
	code, _ := doRequest(t, app, http.MethodDelete, routes.DeleteInferenceURL(id), nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = doRequest(t, app, http.MethodPost, routes.CancelInferenceURL(id), nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = doRequest(t, app, http.MethodDelete, routes.DeleteInferenceURL(id), nil)
	assert.Equal(t, http.StatusNoContent, code)

	// Deleted jobs are gone for every endpoint.
	code, _ = doRequest(t, app, http.MethodGet, routes.InferenceStatusURL(id), nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = doRequest(t, app, http.MethodDelete, routes.DeleteInferenceURL(id), nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestResultsOnlyWhenCompleted(t *testing.T) {
	app := New().App()
	id := startInference(t, app)

	code, _ := doRequest(t, app, http.MethodGet, routes.InferenceResultsURL(id), nil)
	assert.Equal(t, http.StatusBadRequest, code)

	for i := 0; i < progressSteps+2; i++ {
		if pollStatus(t, app, id).Status == types.JobStatusCompleted {
			break
		}
	}

	code, body := doRequest(t, app, http.MethodGet, routes.InferenceResultsURL(id), nil)
	require.Equal(t, http.StatusOK, code)

	var results types.InferenceResults
	require.NoError(t, json.Unmarshal(body, &results))
	assert.Equal(t, id, results.JobID)
	assert.NotZero(t, results.TotalDetections)
	assert.NotEmpty(t, results.DetectionsByClass)
	assert.NotEmpty(t, results.AnnotatedImages)
}

func TestListDatasets(t *testing.T) {
	srv := New()
	srv.SetCatalog([]types.Dataset{
		{ID: "ds-ready", Name: "Ready", Status: types.DatasetStatusReady},
		{ID: "ds-processing", Name: "Processing", Status: "processing"},
	}, nil)
	app := srv.App()

	code, _ := doRequest(t, app, http.MethodGet, routes.APIv1Prefix+"/datasets", nil)
	assert.Equal(t, http.StatusBadRequest, code, "projectId is required")

	code, body := doRequest(t, app, http.MethodGet, routes.DatasetsURL("proj-1"), nil)
	require.Equal(t, http.StatusOK, code)

	var list types.ListResponse[types.Dataset]
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Rows, 1, "only ready datasets are served")
	assert.Equal(t, "ds-ready", list.Rows[0].ID)
}

func TestTrainingDefaults(t *testing.T) {
	app := New().App()

	code, body := doRequest(t, app, http.MethodGet, routes.TrainingDefaultsURL("detection"), nil)
	require.Equal(t, http.StatusOK, code)

	var params types.TrainingParams
	require.NoError(t, json.Unmarshal(body, &params))
	assert.NoError(t, params.Validate())
}

func TestStatusPollReportsNestedProgressShape(t *testing.T) {
	app := New().App()
	id := submitTraining(t, app)

	pollStatus(t, app, id) // queued
	pollStatus(t, app, id) // running, step 0

	_, body := doRequest(t, app, http.MethodGet, routes.TrainingStatusURL(id), nil)
	assert.True(t, strings.Contains(string(body), `"progress"`))
	assert.True(t, strings.Contains(string(body), `"processedImages"`))
}
