// Package client provides unit tests for the Vantage API client.
//
// The tests use httptest to create a mock server that simulates the job API,
// allowing the client to be tested without requiring an actual API server.
package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantagevision/vantage/internal/types"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name       string
		opts       *Options
		wantErr    bool
		validateFn func(t *testing.T, client Client)
	}{
		{
			name:    "nil options",
			opts:    nil,
			wantErr: false,
			validateFn: func(t *testing.T, client Client) {
				apiClient, ok := client.(*APIClient)
				assert.True(t, ok, "client should be an *APIClient")

				expectedDefaults := DefaultOptions()
				assert.Equal(t, expectedDefaults.BaseURL, apiClient.baseURL)
				assert.Equal(t, expectedDefaults.Timeout, apiClient.timeout)
			},
		},
		{
			name: "valid options",
			opts: &Options{
				BaseURL:   "http://example.com",
				Timeout:   10 * time.Second,
				AuthToken: "token-1",
			},
			wantErr: false,
			validateFn: func(t *testing.T, client Client) {
				apiClient, ok := client.(*APIClient)
				assert.True(t, ok, "client should be an *APIClient")

				assert.Equal(t, "http://example.com", apiClient.baseURL)
				assert.Equal(t, 10*time.Second, apiClient.timeout)
				assert.Equal(t, "token-1", apiClient.authToken)
			},
		},
		{
			name: "invalid base URL",
			opts: &Options{
				BaseURL: "://invalid-url",
			},
			wantErr:    true,
			validateFn: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, client)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, client)

				if tt.validateFn != nil {
					tt.validateFn(t, client)
				}
			}
		})
	}
}

// newTestClient builds a client pointed at the given handler
func newTestClient(t *testing.T, handler http.Handler) (Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := NewClient(&Options{
		BaseURL:   server.URL,
		Timeout:   5 * time.Second,
		AuthToken: "test-token",
	})
	require.NoError(t, err)
	return c, server
}

func TestStartTraining(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var sawAuth atomic.Value
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sawAuth.Store(r.Header.Get("Authorization"))
			assert.Equal(t, http.MethodPost, r.Method)

			var req types.StartTrainingRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "mdl-1", req.ModelID)

			_ = json.NewEncoder(w).Encode(types.StartJobResponse{JobID: "J1", Status: types.JobStatusQueued})
		}))

		resp, err := c.StartTraining(context.Background(), types.StartTrainingRequest{
			ModelID:   "mdl-1",
			DatasetID: "ds-1",
			Params:    types.TrainingParams{Epochs: 10, BatchSize: 8, LearningRate: 0.01},
		})

		require.NoError(t, err)
		assert.Equal(t, "J1", resp.JobID)
		assert.Equal(t, types.JobStatusQueued, resp.Status)
		assert.Equal(t, "Bearer test-token", sawAuth.Load())
	})

	t.Run("invalid payload never reaches the server", func(t *testing.T) {
		var calls atomic.Int64
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
		}))

		_, err := c.StartTraining(context.Background(), types.StartTrainingRequest{ModelID: "mdl-1"})

		assert.True(t, IsValidation(err))
		assert.Equal(t, int64(0), calls.Load())
	})

	t.Run("400 maps to validation", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: "dataset not found"})
		}))

		_, err := c.StartTraining(context.Background(), types.StartTrainingRequest{
			ModelID:   "mdl-1",
			DatasetID: "ds-gone",
			Params:    types.TrainingParams{Epochs: 10, BatchSize: 8, LearningRate: 0.01},
		})

		require.Error(t, err)
		assert.True(t, IsValidation(err))
		assert.ErrorContains(t, err, "dataset not found")
	})

	t.Run("429 maps to rate-limited with wait hint", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: "slow down", RetryAfterSeconds: 30})
		}))

		_, err := c.StartTraining(context.Background(), types.StartTrainingRequest{
			ModelID:   "mdl-1",
			DatasetID: "ds-1",
			Params:    types.TrainingParams{Epochs: 10, BatchSize: 8, LearningRate: 0.01},
		})

		require.Error(t, err)
		assert.True(t, IsRateLimited(err))
		assert.Equal(t, 30*time.Second, RetryAfterHint(err))
	})

	t.Run("500 maps to transient", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))

		_, err := c.StartTraining(context.Background(), types.StartTrainingRequest{
			ModelID:   "mdl-1",
			DatasetID: "ds-1",
			Params:    types.TrainingParams{Epochs: 10, BatchSize: 8, LearningRate: 0.01},
		})

		require.Error(t, err)
		assert.True(t, IsTransient(err))
	})
}

func TestTrainingStatus(t *testing.T) {
	t.Run("normalizes nested progress", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Contains(t, r.URL.Path, "/train/J1/status")
			_, _ = w.Write([]byte(`{
				"status": "running",
				"progress": {"processedImages": 5, "totalImages": 20, "progressPercent": 25}
			}`))
		}))

		status, err := c.TrainingStatus(context.Background(), "J1")

		require.NoError(t, err)
		assert.Equal(t, types.JobStatusRunning, status.Status)
		assert.Equal(t, types.Progress{Processed: 5, Total: 20, Percent: 25}, status.Progress)
	})

	t.Run("404 maps to stale reference", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: "job not found"})
		}))

		_, err := c.TrainingStatus(context.Background(), "J-gone")

		require.Error(t, err)
		assert.True(t, IsStale(err))
	})

	t.Run("non-JSON body maps to transient", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("<html>gateway</html>"))
		}))

		_, err := c.TrainingStatus(context.Background(), "J1")

		require.Error(t, err)
		assert.True(t, IsTransient(err))
	})
}

func TestCancelInference(t *testing.T) {
	t.Run("400 on non-cancellable job maps to policy", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: "job is not cancellable"})
		}))

		err := c.CancelInference(context.Background(), "J1")

		require.Error(t, err)
		assert.True(t, IsPolicy(err))
	})

	t.Run("success", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			_ = json.NewEncoder(w).Encode(types.CancelResponse{Status: types.JobStatusCancelled})
		}))

		assert.NoError(t, c.CancelInference(context.Background(), "J1"))
	})
}

func TestDeleteInference(t *testing.T) {
	t.Run("400 on active job maps to policy", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: "job must be cancelled before deletion"})
		}))

		err := c.DeleteInference(context.Background(), "J1")

		require.Error(t, err)
		assert.True(t, IsPolicy(err))
	})

	t.Run("success uses DELETE", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			w.WriteHeader(http.StatusNoContent)
		}))

		assert.NoError(t, c.DeleteInference(context.Background(), "J1"))
	})
}

func TestInferenceResults(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Contains(t, r.URL.Path, "/inference/J1/results")
			_ = json.NewEncoder(w).Encode(types.InferenceResults{
				JobID:             "J1",
				TotalDetections:   60,
				AverageConfidence: 0.87,
			})
		}))

		results, err := c.InferenceResults(context.Background(), "J1")

		require.NoError(t, err)
		assert.Equal(t, 60, results.TotalDetections)
	})

	t.Run("404 before artifact materialized maps to not-ready", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: "results not available"})
		}))

		_, err := c.InferenceResults(context.Background(), "J1")

		require.Error(t, err)
		assert.True(t, IsNotReady(err))
	})
}

func TestDatasets(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "proj-1", r.URL.Query().Get("projectId"))
		assert.Equal(t, "ready", r.URL.Query().Get("status"))
		_ = json.NewEncoder(w).Encode(types.ListResponse[types.Dataset]{
			Rows:  []types.Dataset{{ID: "ds-1", Name: "Street Scenes", Status: "ready"}},
			Total: 1,
		})
	}))

	datasets, err := c.Datasets(context.Background(), "proj-1")

	require.NoError(t, err)
	require.Len(t, datasets, 1)
	assert.Equal(t, "ds-1", datasets[0].ID)
}

func TestNetworkFailureIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	c, err := NewClient(&Options{BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.TrainingStatus(context.Background(), "J1")

	require.Error(t, err)
	assert.True(t, IsTransient(err))
}
