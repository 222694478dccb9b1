// Package client provides the API client for interacting with the Vantage job API
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/vantagevision/vantage/internal/types"
	"github.com/vantagevision/vantage/pkg/api/v1/routes"
)

// DefaultTimeout is the default timeout for API requests
const DefaultTimeout = 30 * time.Second

// Client is the interface for the API client
type Client interface {
	// Training endpoints
	StartTraining(ctx context.Context, req types.StartTrainingRequest) (types.StartJobResponse, error)
	TrainingStatus(ctx context.Context, id string) (types.StatusResponse, error)
	CancelTraining(ctx context.Context, id string) error
	RetryTraining(ctx context.Context, id string) (types.StartJobResponse, error)
	BaseModels(ctx context.Context) ([]types.BaseModel, error)
	TrainingDefaults(ctx context.Context, modelType string) (types.TrainingParams, error)

	// Inference endpoints
	StartInference(ctx context.Context, req types.StartInferenceRequest) (types.StartJobResponse, error)
	InferenceStatus(ctx context.Context, id string) (types.StatusResponse, error)
	CancelInference(ctx context.Context, id string) error
	DeleteInference(ctx context.Context, id string) error
	InferenceResults(ctx context.Context, id string) (types.InferenceResults, error)

	// Catalog endpoints
	Datasets(ctx context.Context, projectID string) ([]types.Dataset, error)
}

var _ Client = &APIClient{}

// Options contains configuration options for the API client
type Options struct {
	// BaseURL is the base URL of the API
	BaseURL string

	// Timeout is the request timeout
	Timeout time.Duration

	// AuthToken is the bearer credential attached to every request. Supplied
	// by the auth collaborator; the client only forwards it.
	AuthToken string
}

// DefaultOptions returns the default client options
func DefaultOptions() *Options {
	return &Options{
		BaseURL: routes.DefaultBaseURL,
		Timeout: DefaultTimeout,
	}
}

// APIClient implements the Client interface
type APIClient struct {
	baseURL   string
	timeout   time.Duration
	authToken string
}

// NewClient creates a new API client with the given options
func NewClient(opts *Options) (Client, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	// Validate the base URL
	_, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	return &APIClient{
		baseURL:   opts.BaseURL,
		timeout:   opts.Timeout,
		authToken: opts.AuthToken,
	}, nil
}

// createAgent creates a new Fiber Agent for the given method and endpoint
func (c *APIClient) createAgent(ctx context.Context, method, endpoint string, body interface{}) (*fiber.Agent, error) {
	fullURL := c.baseURL + endpoint

	var agent *fiber.Agent
	switch method {
	case http.MethodGet:
		agent = fiber.Get(fullURL)
	case http.MethodPost:
		agent = fiber.Post(fullURL)
	case http.MethodDelete:
		agent = fiber.Delete(fullURL)
	default:
		return nil, fmt.Errorf("unsupported HTTP method: %s", method)
	}

	// Set timeout from context or client default
	if deadline, ok := ctx.Deadline(); ok {
		agent.Timeout(time.Until(deadline))
	} else {
		agent.Timeout(c.timeout)
	}

	// Set common headers
	agent.Set("Content-Type", "application/json")
	agent.Set("Accept", "application/json")
	agent.Set("X-Request-ID", uuid.NewString())
	if c.authToken != "" {
		agent.Set("Authorization", "Bearer "+c.authToken)
	}

	if body != nil {
		agent.JSON(body)
	}

	return agent, nil
}

// doRequest sends the HTTP request and processes the response
func (c *APIClient) doRequest(ctx context.Context, agent *fiber.Agent, v interface{}) error {
	// The agent has no context plumbing of its own; an already-cancelled
	// context must short-circuit before the request goes out, and a result
	// arriving after cancellation must be discarded, not applied.
	if err := ctx.Err(); err != nil {
		return transportError(err)
	}

	statusCode, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return transportError(fmt.Errorf("error sending request: %w", errs[0]))
	}

	if err := ctx.Err(); err != nil {
		return transportError(err)
	}

	if statusCode < 200 || statusCode >= 300 {
		return newAPIError(statusCode, body)
	}

	if v != nil && len(body) > 0 {
		if err := json.Unmarshal(body, v); err != nil {
			return transportError(fmt.Errorf("error decoding response: %w", err))
		}
	}

	return nil
}

// executeRequest creates an agent, sends the request, and processes the response
func (c *APIClient) executeRequest(ctx context.Context, method, endpoint string, body, response interface{}) error {
	agent, err := c.createAgent(ctx, method, endpoint, body)
	if err != nil {
		return err
	}

	return c.doRequest(ctx, agent, response)
}

// Training methods implementation

// StartTraining submits a training job. A 400 or 404 means the selection was
// rejected and must be corrected by the user, never retried automatically.
func (c *APIClient) StartTraining(ctx context.Context, req types.StartTrainingRequest) (types.StartJobResponse, error) {
	if err := req.Validate(); err != nil {
		return types.StartJobResponse{}, &APIError{Kind: ErrKindValidation, Message: err.Error()}
	}

	var response types.StartJobResponse
	if err := c.executeRequest(ctx, http.MethodPost, routes.StartTrainingURL(), req, &response); err != nil {
		return types.StartJobResponse{}, remap(err, ErrKindValidation, fiber.StatusBadRequest, fiber.StatusNotFound)
	}
	return response, nil
}

// TrainingStatus polls the status of a training job. A 404 is authoritative:
// the job no longer exists server-side.
func (c *APIClient) TrainingStatus(ctx context.Context, id string) (types.StatusResponse, error) {
	var response types.StatusResponse
	if err := c.executeRequest(ctx, http.MethodGet, routes.TrainingStatusURL(id), nil, &response); err != nil {
		return types.StatusResponse{}, remap(err, ErrKindStale, fiber.StatusNotFound)
	}
	return response, nil
}

// CancelTraining cancels a queued or running training job. A 400 for a job
// that is no longer cancellable is expected, not an anomaly.
func (c *APIClient) CancelTraining(ctx context.Context, id string) error {
	var response types.CancelResponse
	if err := c.executeRequest(ctx, http.MethodPost, routes.CancelTrainingURL(id), nil, &response); err != nil {
		err = remap(err, ErrKindPolicy, fiber.StatusBadRequest)
		return remap(err, ErrKindStale, fiber.StatusNotFound)
	}
	return nil
}

// RetryTraining allocates a brand-new training job from a terminal one. The
// old job's record is left untouched server-side.
func (c *APIClient) RetryTraining(ctx context.Context, id string) (types.StartJobResponse, error) {
	var response types.StartJobResponse
	if err := c.executeRequest(ctx, http.MethodPost, routes.RetryTrainingURL(id), nil, &response); err != nil {
		err = remap(err, ErrKindPolicy, fiber.StatusBadRequest)
		return types.StartJobResponse{}, remap(err, ErrKindStale, fiber.StatusNotFound)
	}
	return response, nil
}

// BaseModels lists the trainable base models
func (c *APIClient) BaseModels(ctx context.Context) ([]types.BaseModel, error) {
	var response types.ListResponse[types.BaseModel]
	if err := c.executeRequest(ctx, http.MethodGet, routes.BaseModelsURL(), nil, &response); err != nil {
		return nil, err
	}
	return response.Rows, nil
}

// TrainingDefaults fetches the default hyperparameters for a model type
func (c *APIClient) TrainingDefaults(ctx context.Context, modelType string) (types.TrainingParams, error) {
	var response types.TrainingParams
	if err := c.executeRequest(ctx, http.MethodGet, routes.TrainingDefaultsURL(modelType), nil, &response); err != nil {
		return types.TrainingParams{}, err
	}
	return response, nil
}

// Inference methods implementation

// StartInference submits an inference job in dataset or custom-upload mode
func (c *APIClient) StartInference(ctx context.Context, req types.StartInferenceRequest) (types.StartJobResponse, error) {
	if err := req.Validate(); err != nil {
		return types.StartJobResponse{}, &APIError{Kind: ErrKindValidation, Message: err.Error()}
	}

	var response types.StartJobResponse
	if err := c.executeRequest(ctx, http.MethodPost, routes.StartInferenceURL(), req, &response); err != nil {
		return types.StartJobResponse{}, remap(err, ErrKindValidation, fiber.StatusBadRequest, fiber.StatusNotFound)
	}
	return response, nil
}

// InferenceStatus polls the status of an inference job
func (c *APIClient) InferenceStatus(ctx context.Context, id string) (types.StatusResponse, error) {
	var response types.StatusResponse
	if err := c.executeRequest(ctx, http.MethodGet, routes.InferenceStatusURL(id), nil, &response); err != nil {
		return types.StatusResponse{}, remap(err, ErrKindStale, fiber.StatusNotFound)
	}
	return response, nil
}

// CancelInference cancels a queued or running inference job
func (c *APIClient) CancelInference(ctx context.Context, id string) error {
	var response types.CancelResponse
	if err := c.executeRequest(ctx, http.MethodPost, routes.CancelInferenceURL(id), nil, &response); err != nil {
		err = remap(err, ErrKindPolicy, fiber.StatusBadRequest)
		return remap(err, ErrKindStale, fiber.StatusNotFound)
	}
	return nil
}

// DeleteInference deletes a terminal inference job and its artifacts. A 400
// means the job is still active and must be cancelled first.
func (c *APIClient) DeleteInference(ctx context.Context, id string) error {
	if err := c.executeRequest(ctx, http.MethodDelete, routes.DeleteInferenceURL(id), nil, nil); err != nil {
		err = remap(err, ErrKindPolicy, fiber.StatusBadRequest)
		return remap(err, ErrKindStale, fiber.StatusNotFound)
	}
	return nil
}

// InferenceResults fetches the terminal artifact of a completed job. A 400 or
// 404 despite a completed status means the artifact is not materialized yet;
// that is a soft, user-retryable condition, not a failure of the job.
func (c *APIClient) InferenceResults(ctx context.Context, id string) (types.InferenceResults, error) {
	var response types.InferenceResults
	if err := c.executeRequest(ctx, http.MethodGet, routes.InferenceResultsURL(id), nil, &response); err != nil {
		return types.InferenceResults{}, remap(err, ErrKindNotReady, fiber.StatusBadRequest, fiber.StatusNotFound)
	}
	return response, nil
}

// Catalog methods implementation

// Datasets lists the ready datasets for a project
func (c *APIClient) Datasets(ctx context.Context, projectID string) ([]types.Dataset, error) {
	var response types.ListResponse[types.Dataset]
	if err := c.executeRequest(ctx, http.MethodGet, routes.DatasetsURL(projectID), nil, &response); err != nil {
		return nil, err
	}
	return response.Rows, nil
}
