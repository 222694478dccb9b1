// Package simserver is an in-memory simulator of the remote job-execution
// API, covering every endpoint the client consumes. Jobs advance one
// lifecycle step per status poll, which makes end-to-end tests deterministic
// and gives local development a server that behaves like the real one.
package simserver

import (
	"strings"
	"sync"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/vantagevision/vantage/internal/types"
	"github.com/vantagevision/vantage/pkg/api/v1/routes"
)

// progressSteps is how many status polls a job needs to go from queued to
// completed: one to start running, then four progress increments.
const progressSteps = 4

// simJob is the server-side record of one submitted job
type simJob struct {
	ID      string
	Kind    types.JobKind
	Status  types.JobStatus
	Step    int
	Total   int
	FailAt  int // step at which the job fails; zero means never
	Deleted bool
}

// Server simulates the job-execution API
type Server struct {
	app *fiber.App

	mu       sync.Mutex
	jobs     map[string]*simJob
	datasets []types.Dataset
	models   []types.BaseModel

	// FailNextAt makes the next submitted job fail at the given step
	failNextAt int
}

// New creates a simulator with a small default catalog
func New() *Server {
	s := &Server{
		jobs: make(map[string]*simJob),
		datasets: []types.Dataset{
			{ID: "ds-street-scenes", Name: "Street Scenes", Status: types.DatasetStatusReady, ImageCount: 120},
			{ID: "ds-warehouse", Name: "Warehouse Shelves", Status: types.DatasetStatusReady, ImageCount: 80},
		},
		models: []types.BaseModel{
			{ID: "mdl-detect-s", Name: "Detector Small", Type: "detection"},
			{ID: "mdl-detect-l", Name: "Detector Large", Type: "detection"},
		},
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Post(routes.StartTrainingPath, s.startTraining)
	app.Get(routes.BaseModelsPath, s.listModels)
	app.Get(routes.TrainingDefaultsPath, s.trainingDefaults)
	app.Get(routes.TrainingStatusPath, s.jobStatus)
	app.Post(routes.CancelTrainingPath, s.cancelJob)
	app.Post(routes.RetryTrainingPath, s.retryJob)

	app.Post(routes.StartInferencePath, s.startInference)
	app.Get(routes.InferenceStatusPath, s.jobStatus)
	app.Post(routes.CancelInferencePath, s.cancelJob)
	app.Get(routes.InferenceResultsPath, s.inferenceResults)
	app.Delete(routes.DeleteInferencePath, s.deleteJob)

	app.Get(routes.DatasetsPath, s.listDatasets)

	s.app = app
	return s
}

// App returns the underlying fiber app, for listening or test adaptors
func (s *Server) App() *fiber.App {
	return s.app
}

// SetCatalog replaces the served catalog
func (s *Server) SetCatalog(datasets []types.Dataset, models []types.BaseModel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasets = datasets
	s.models = models
}

// FailNextJobAt makes the next submitted job fail at the given step
func (s *Server) FailNextJobAt(step int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNextAt = step
}

func errorBody(c *fiber.Ctx, code int, msg string) error {
	return c.Status(code).JSON(types.ErrorResponse{Error: msg})
}

func (s *Server) newJob(kind types.JobKind, total int) *simJob {
	job := &simJob{
		ID:     uuid.NewString(),
		Kind:   kind,
		Status: types.JobStatusQueued,
		Total:  total,
		FailAt: s.failNextAt,
	}
	s.failNextAt = 0
	s.jobs[job.ID] = job
	return job
}

func (s *Server) startTraining(c *fiber.Ctx) error {
	var req types.StartTrainingRequest
	if err := c.BodyParser(&req); err != nil {
		return errorBody(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return errorBody(c, fiber.StatusBadRequest, err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !hasDataset(s.datasets, req.DatasetID) {
		return errorBody(c, fiber.StatusNotFound, "dataset not found")
	}
	if !hasModel(s.models, req.ModelID) {
		return errorBody(c, fiber.StatusNotFound, "model not found")
	}

	job := s.newJob(types.JobKindTraining, 100)
	return c.JSON(types.StartJobResponse{JobID: job.ID, Status: job.Status})
}

func (s *Server) startInference(c *fiber.Ctx) error {
	var req types.StartInferenceRequest
	if err := c.BodyParser(&req); err != nil {
		return errorBody(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return errorBody(c, fiber.StatusBadRequest, err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	total := len(req.Files)
	if req.DatasetID != "" {
		d, ok := findDataset(s.datasets, req.DatasetID)
		if !ok {
			return errorBody(c, fiber.StatusNotFound, "dataset not found")
		}
		total = d.ImageCount
	}
	if !hasModel(s.models, req.ModelID) {
		return errorBody(c, fiber.StatusNotFound, "model not found")
	}

	job := s.newJob(types.JobKindInference, total)
	return c.JSON(types.StartJobResponse{JobID: job.ID, Status: job.Status})
}

// jobStatus reports the job's state and advances it one lifecycle step.
// Progress is reported in the nested wire shape.
func (s *Server) jobStatus(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[c.Params("id")]
	if !ok || job.Deleted {
		return errorBody(c, fiber.StatusNotFound, "job not found")
	}

	resp := fiber.Map{
		"jobId":  job.ID,
		"status": job.Status.String(),
		"progress": fiber.Map{
			"processedImages": job.Total * job.Step / progressSteps,
			"totalImages":     job.Total,
			"progressPercent": 100 * job.Step / progressSteps,
		},
	}
	if job.Status == types.JobStatusCompleted {
		resp["metrics"] = fiber.Map{
			"loss":            0.042,
			"mAP":             0.81,
			"totalDetections": 3 * job.Total,
		}
	}

	s.advance(job)
	return c.JSON(resp)
}

// advance moves a job one step along queued -> running -> terminal
func (s *Server) advance(job *simJob) {
	switch job.Status {
	case types.JobStatusQueued:
		job.Status = types.JobStatusRunning
	case types.JobStatusRunning:
		job.Step++
		if job.FailAt > 0 && job.Step >= job.FailAt {
			job.Status = types.JobStatusFailed
			return
		}
		if job.Step >= progressSteps {
			job.Step = progressSteps
			job.Status = types.JobStatusCompleted
		}
	}
}

func (s *Server) cancelJob(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[c.Params("id")]
	if !ok || job.Deleted {
		return errorBody(c, fiber.StatusNotFound, "job not found")
	}
	if !job.Status.Cancellable() {
		return errorBody(c, fiber.StatusBadRequest, "job is not cancellable")
	}

	job.Status = types.JobStatusCancelled
	return c.JSON(types.CancelResponse{Status: job.Status})
}

func (s *Server) retryJob(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[c.Params("id")]
	if !ok || job.Deleted {
		return errorBody(c, fiber.StatusNotFound, "job not found")
	}
	if !job.Status.Terminal() {
		return errorBody(c, fiber.StatusBadRequest, "job is still active")
	}

	// The old record stays untouched; retry allocates a new job.
	fresh := s.newJob(job.Kind, job.Total)
	return c.JSON(types.StartJobResponse{JobID: fresh.ID, Status: fresh.Status})
}

func (s *Server) deleteJob(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[c.Params("id")]
	if !ok || job.Deleted {
		return errorBody(c, fiber.StatusNotFound, "job not found")
	}
	if !job.Status.Terminal() {
		return errorBody(c, fiber.StatusBadRequest, "job must be cancelled before deletion")
	}

	job.Deleted = true
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) inferenceResults(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[c.Params("id")]
	if !ok || job.Deleted {
		return errorBody(c, fiber.StatusNotFound, "job not found")
	}
	if job.Status != types.JobStatusCompleted {
		return errorBody(c, fiber.StatusBadRequest, "results not available")
	}

	return c.JSON(types.InferenceResults{
		JobID:             job.ID,
		TotalDetections:   3 * job.Total,
		AverageConfidence: 0.87,
		DetectionsByClass: []types.ClassDetections{
			{Class: "person", Count: 2 * job.Total, AverageConfidence: 0.9},
			{Class: "vehicle", Count: job.Total, AverageConfidence: 0.81},
		},
		AnnotatedImages: annotated(job),
	})
}

func annotated(job *simJob) []types.AnnotatedImage {
	images := make([]types.AnnotatedImage, 0, 3)
	for i := 0; i < 3 && i < job.Total; i++ {
		images = append(images, types.AnnotatedImage{
			ImageID:    uuid.NewString(),
			URL:        "/artifacts/" + job.ID + "/" + uuid.NewString() + ".jpg",
			Detections: 3,
		})
	}
	return images
}

func (s *Server) listDatasets(c *fiber.Ctx) error {
	projectID := c.Query("projectId")
	if projectID == "" {
		return errorBody(c, fiber.StatusBadRequest, "projectId is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([]types.Dataset, 0, len(s.datasets))
	for _, d := range s.datasets {
		if strings.EqualFold(d.Status, types.DatasetStatusReady) {
			rows = append(rows, d)
		}
	}
	return c.JSON(types.ListResponse[types.Dataset]{Rows: rows, Total: len(rows)})
}

func (s *Server) listModels(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(types.ListResponse[types.BaseModel]{Rows: s.models, Total: len(s.models)})
}

func (s *Server) trainingDefaults(c *fiber.Ctx) error {
	return c.JSON(types.TrainingParams{
		Epochs:       50,
		BatchSize:    16,
		LearningRate: 0.001,
	})
}

func hasDataset(datasets []types.Dataset, id string) bool {
	_, ok := findDataset(datasets, id)
	return ok
}

func findDataset(datasets []types.Dataset, id string) (types.Dataset, bool) {
	for _, d := range datasets {
		if d.ID == id {
			return d, true
		}
	}
	return types.Dataset{}, false
}

func hasModel(models []types.BaseModel, id string) bool {
	for _, m := range models {
		if m.ID == id {
			return true
		}
	}
	return false
}
