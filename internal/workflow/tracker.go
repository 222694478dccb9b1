// Package workflow ties the selection context, job client, poller and
// persisted session store together into one job-tracking state machine. The
// server stays authoritative for job state; the tracker mirrors it, persists
// every transition, and can resume an in-flight job after a restart without
// re-submitting it.
package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vantagevision/vantage/internal/logger"
	"github.com/vantagevision/vantage/internal/poller"
	"github.com/vantagevision/vantage/internal/session"
	"github.com/vantagevision/vantage/internal/types"
	"github.com/vantagevision/vantage/pkg/api/v1/client"
)

// Options configures a Tracker
type Options struct {
	Client       client.Client
	Store        *session.Store
	PollInterval time.Duration

	// OnUpdate, when set, is invoked with a copy of the job after every
	// applied state change. Called from the poll goroutine.
	OnUpdate func(types.Job)
}

// Tracker drives the lifecycle of at most one job at a time
type Tracker struct {
	api      client.Client
	store    *session.Store
	poller   *poller.Poller
	onUpdate func(types.Job)

	mu             sync.Mutex
	sel            Selection
	catalog        types.Catalog
	haveCatalog    bool
	job            *types.Job
	starting       bool // a submission is in flight; the job slot is reserved
	results        *types.InferenceResults
	resultsFetched bool
	terminal       *terminalSignal
}

// terminalSignal fires when the tracked job stops being polled for good. The
// cancel path and the poll loop can both report terminal for the same job, so
// the close is guarded to fire at most once.
type terminalSignal struct {
	once sync.Once
	ch   chan struct{}
}

func newTerminalSignal() *terminalSignal {
	return &terminalSignal{ch: make(chan struct{})}
}

func (s *terminalSignal) fire() {
	s.once.Do(func() { close(s.ch) })
}

func (s *terminalSignal) done() <-chan struct{} {
	return s.ch
}

// New creates a tracker
func New(opts Options) (*Tracker, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}

	return &Tracker{
		api:      opts.Client,
		store:    opts.Store,
		poller:   poller.New(poller.Config{Interval: opts.PollInterval}),
		onUpdate: opts.OnUpdate,
	}, nil
}

// Close detaches the poller, aborting any in-flight status check. The
// persisted record stays behind so a later Resume can pick the job back up.
func (t *Tracker) Close() {
	t.poller.Detach()
}

// Selection returns a copy of the current selection
func (t *Tracker) Selection() Selection {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sel
}

// Job returns a copy of the tracked job; ok is false while idle
func (t *Tracker) Job() (types.Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.job == nil {
		return types.Job{}, false
	}
	return *t.job, true
}

// Status returns the effective status, idle when no job is tracked
func (t *Tracker) Status() types.JobStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.job == nil {
		return types.JobStatusIdle
	}
	return t.job.Status
}

// Catalog returns the last-fetched catalog; ok is false before the first fetch
func (t *Tracker) Catalog() (types.Catalog, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.catalog, t.haveCatalog
}

// Selection context

// SetProject selects the active project. Changing project invalidates the
// dataset, the model and any tracked job (a job belongs to exactly one
// project's catalog snapshot), then refetches the catalog.
func (t *Tracker) SetProject(ctx context.Context, id string) error {
	if id == "" {
		return ErrNoProject
	}

	t.mu.Lock()
	changed := id != t.sel.ProjectID
	if changed {
		t.sel = Selection{ProjectID: id}
		t.job = nil
		t.results = nil
		t.resultsFetched = false
		t.haveCatalog = false
		t.terminal = nil
	}
	t.mu.Unlock()

	if changed {
		t.poller.Detach()
		if err := t.store.Delete(append(session.JobKeys, session.KeyDataset, session.KeyModel)...); err != nil {
			return err
		}
		if err := t.store.Set(session.KeyProject, id); err != nil {
			return err
		}
	}

	if _, err := t.RefreshCatalog(ctx); err != nil {
		// The selection change itself already took effect; a failed catalog
		// fetch only delays reconciliation.
		return fmt.Errorf("project selected, but catalog fetch failed: %w", err)
	}
	return nil
}

// SetDataset selects a dataset. Only accepted while no job is tracked, and
// only for ids present in the current catalog once one has been fetched.
func (t *Tracker) SetDataset(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.job != nil {
		return ErrJobActive
	}
	if t.haveCatalog && id != "" && !t.catalog.HasDataset(id) {
		return fmt.Errorf("dataset %s: %w", id, ErrNotInCatalog)
	}

	t.sel.DatasetID = id
	if id == "" {
		return t.store.Delete(session.KeyDataset)
	}
	return t.store.Set(session.KeyDataset, id)
}

// SetModel selects a model under the same rules as SetDataset
func (t *Tracker) SetModel(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.job != nil {
		return ErrJobActive
	}
	if t.haveCatalog && id != "" && !t.catalog.HasModel(id) {
		return fmt.Errorf("model %s: %w", id, ErrNotInCatalog)
	}

	t.sel.ModelID = id
	if id == "" {
		return t.store.Delete(session.KeyModel)
	}
	return t.store.Set(session.KeyModel, id)
}

// SetConfidence sets the inference confidence threshold
func (t *Tracker) SetConfidence(v float64) error {
	if err := validateConfidence(v); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.sel.Confidence = v
	return t.store.Set(session.KeyConfidence, v)
}

// SetParams sets the training hyperparameters
func (t *Tracker) SetParams(p types.TrainingParams) error {
	if err := p.Validate(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.sel.Params = &p
	return t.store.Set(session.KeyParams, p)
}

// RefreshCatalog fetches the dataset and model catalogs for the active
// project and reconciles the selection against them. With no project set the
// fetches are skipped entirely rather than issued.
func (t *Tracker) RefreshCatalog(ctx context.Context) (types.Catalog, error) {
	t.mu.Lock()
	projectID := t.sel.ProjectID
	t.mu.Unlock()

	if projectID == "" {
		return types.Catalog{}, ErrNoProject
	}

	datasets, err := t.api.Datasets(ctx, projectID)
	if err != nil {
		return types.Catalog{}, fmt.Errorf("error fetching datasets: %w", err)
	}
	models, err := t.api.BaseModels(ctx)
	if err != nil {
		return types.Catalog{}, fmt.Errorf("error fetching base models: %w", err)
	}

	cat := types.Catalog{ProjectID: projectID, Datasets: datasets, Models: models}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.catalog = cat
	t.haveCatalog = true
	t.reconcileLocked()
	return cat, nil
}

// reconcileLocked clears any selected id that is absent from the catalog,
// along with its persisted key. Selections are never silently kept stale;
// the tracked job, if any, is deliberately left alone — a job already
// running server-side is not invalidated by a client-side catalog mismatch.
func (t *Tracker) reconcileLocked() {
	if t.sel.DatasetID != "" && !t.catalog.HasDataset(t.sel.DatasetID) {
		logger.WarnWithFields("selected dataset no longer in catalog, clearing", map[string]interface{}{
			"dataset_id": t.sel.DatasetID,
		})
		t.sel.DatasetID = ""
		if err := t.store.Delete(session.KeyDataset); err != nil {
			logger.Errorf("error clearing persisted dataset: %v", err)
		}
	}

	if t.sel.ModelID != "" && !t.catalog.HasModel(t.sel.ModelID) {
		logger.WarnWithFields("selected model no longer in catalog, clearing", map[string]interface{}{
			"model_id": t.sel.ModelID,
		})
		t.sel.ModelID = ""
		if err := t.store.Delete(session.KeyModel); err != nil {
			logger.Errorf("error clearing persisted model: %v", err)
		}
	}
}

// Job lifecycle

// StartTraining submits a training job from the current selection. A second
// start while a job is tracked or a submission is in flight is rejected,
// never silently duplicated.
func (t *Tracker) StartTraining(ctx context.Context) (types.Job, error) {
	sel, err := t.beginStart()
	if err != nil {
		return types.Job{}, err
	}
	defer t.endStart()

	req, err := t.buildTrainingRequest(ctx, sel)
	if err != nil {
		return types.Job{}, err
	}

	resp, err := t.api.StartTraining(ctx, req)
	if err != nil {
		return types.Job{}, t.handleStartError(types.JobKindTraining, err)
	}

	return t.trackNew(resp, types.JobKindTraining)
}

// StartInference submits an inference job. Input mode comes from the
// selection: the selected dataset, or the supplied file set, never both.
func (t *Tracker) StartInference(ctx context.Context, files []string) (types.Job, error) {
	sel, err := t.beginStart()
	if err != nil {
		return types.Job{}, err
	}
	defer t.endStart()

	req, err := sel.inferenceRequest(files)
	if err != nil {
		return types.Job{}, err
	}

	resp, err := t.api.StartInference(ctx, req)
	if err != nil {
		return types.Job{}, t.handleStartError(types.JobKindInference, err)
	}

	return t.trackNew(resp, types.JobKindInference)
}

// beginStart reserves the single job slot before the submission request goes
// out, so two concurrent starts cannot both pass the guard. Returns a copy of
// the selection to build the request from.
func (t *Tracker) beginStart() (Selection, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.job != nil || t.starting {
		return Selection{}, ErrJobActive
	}
	t.starting = true
	return t.sel, nil
}

func (t *Tracker) endStart() {
	t.mu.Lock()
	t.starting = false
	t.mu.Unlock()
}

// buildTrainingRequest materializes the start payload, filling in the
// server's default hyperparameters when none are selected.
func (t *Tracker) buildTrainingRequest(ctx context.Context, sel Selection) (types.StartTrainingRequest, error) {
	req, err := sel.trainingRequest()
	if err != nil {
		return types.StartTrainingRequest{}, err
	}
	if sel.Params == nil {
		params, err := t.api.TrainingDefaults(ctx, "")
		if err != nil {
			return types.StartTrainingRequest{}, fmt.Errorf("error fetching default hyperparameters: %w", err)
		}
		req.Params = params
	}
	return req, nil
}

// handleStartError applies the error taxonomy to a failed submission.
// Validation and rate-limit rejections leave the tracker idle; a transient
// failure marks the job failed locally so the caller is not left staring at
// an ambiguous spinner.
func (t *Tracker) handleStartError(kind types.JobKind, err error) error {
	if client.IsValidation(err) || client.IsRateLimited(err) {
		return err
	}

	logger.ErrorWithFields("job submission failed", map[string]interface{}{
		"kind":  kind.String(),
		"error": err.Error(),
	})

	t.mu.Lock()
	t.job = &types.Job{
		Kind:      kind,
		Status:    types.JobStatusFailed,
		Error:     err.Error(),
		CreatedAt: time.Now().UTC(),
	}
	t.mu.Unlock()
	return err
}

// trackNew records a freshly submitted job and attaches the poller
func (t *Tracker) trackNew(resp types.StartJobResponse, kind types.JobKind) (types.Job, error) {
	status := resp.Status
	if status == "" {
		status = types.JobStatusQueued
	}

	job := types.Job{
		ID:        resp.JobID,
		Kind:      kind,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}

	t.mu.Lock()
	t.job = &job
	t.results = nil
	t.resultsFetched = false
	t.terminal = newTerminalSignal()
	terminal := t.terminal
	if err := t.persistJobLocked(); err != nil {
		logger.Errorf("error persisting job state: %v", err)
	}
	t.mu.Unlock()

	logger.InfoWithFields("job submitted", map[string]interface{}{
		"job_id": job.ID,
		"kind":   kind.String(),
		"status": status.String(),
	})

	t.attach(job.ID, kind, terminal)
	return job, nil
}

// Cancel stops a queued or running job. The poller is detached before the
// request goes out so a superseded in-flight status check can never
// overwrite the cancellation.
func (t *Tracker) Cancel(ctx context.Context) error {
	t.mu.Lock()
	if t.job == nil {
		t.mu.Unlock()
		return ErrNoActiveJob
	}
	if !t.job.Status.Cancellable() {
		t.mu.Unlock()
		return ErrNotCancellable
	}
	jobID, kind := t.job.ID, t.job.Kind
	terminal := t.terminal
	t.mu.Unlock()

	t.poller.Detach()

	var err error
	switch kind {
	case types.JobKindTraining:
		err = t.api.CancelTraining(ctx, jobID)
	default:
		err = t.api.CancelInference(ctx, jobID)
	}
	if err != nil {
		if client.IsPolicy(err) {
			// The job raced us into a terminal state. Expected; re-attach so
			// the next poll reports the truth.
			logger.Infof("job %s no longer cancellable, resuming polling", jobID)
			t.attach(jobID, kind, terminal)
			return fmt.Errorf("job is no longer cancellable: %w", err)
		}
		t.attach(jobID, kind, terminal)
		return fmt.Errorf("error cancelling job %s: %w", jobID, err)
	}

	t.mu.Lock()
	if t.job != nil && t.job.ID == jobID {
		t.job.ApplyStatus(types.StatusResponse{Status: types.JobStatusCancelled})
		if err := t.persistJobLocked(); err != nil {
			logger.Errorf("error persisting job state: %v", err)
		}
	}
	t.mu.Unlock()

	if terminal != nil {
		terminal.fire()
	}

	logger.InfoWithFields("job cancelled", map[string]interface{}{"job_id": jobID})
	return nil
}

// Retry allocates a brand-new job for a terminal one. The old record is left
// untouched server-side; the tracker switches to the new id and polling
// restarts from queued with zero progress. Inference jobs have no retry
// endpoint, so a retry re-submits the original payload.
func (t *Tracker) Retry(ctx context.Context) (types.Job, error) {
	t.mu.Lock()
	if t.job == nil {
		t.mu.Unlock()
		return types.Job{}, ErrNoActiveJob
	}
	if !t.job.Status.Terminal() {
		t.mu.Unlock()
		return types.Job{}, ErrNotTerminal
	}
	jobID, kind := t.job.ID, t.job.Kind
	sel := t.sel
	t.job = nil
	t.starting = true
	t.mu.Unlock()
	defer t.endStart()

	var (
		resp types.StartJobResponse
		err  error
	)
	switch {
	case kind == types.JobKindTraining && jobID != "":
		resp, err = t.api.RetryTraining(ctx, jobID)
	case kind == types.JobKindTraining:
		// A failed submission never reached the server, so there is no job
		// to retry by id; re-submit the original selection instead.
		var req types.StartTrainingRequest
		req, err = t.buildTrainingRequest(ctx, sel)
		if err == nil {
			resp, err = t.api.StartTraining(ctx, req)
		}
	default:
		var req types.StartInferenceRequest
		req, err = sel.inferenceRequest(nil)
		if err == nil {
			resp, err = t.api.StartInference(ctx, req)
		}
	}
	if err != nil {
		return types.Job{}, t.handleStartError(kind, err)
	}

	logger.InfoWithFields("job retried", map[string]interface{}{
		"old_job_id": jobID,
		"new_job_id": resp.JobID,
	})
	return t.trackNew(resp, kind)
}

// Delete destroys a terminal inference job server-side and clears every
// client-held reference to it. Deleting a job that is still active is a
// policy error surfaced as "cancel it first".
func (t *Tracker) Delete(ctx context.Context) error {
	t.mu.Lock()
	if t.job == nil {
		t.mu.Unlock()
		return ErrNoActiveJob
	}
	if !t.job.Status.Terminal() {
		t.mu.Unlock()
		return ErrNotTerminal
	}
	jobID, kind := t.job.ID, t.job.Kind
	t.mu.Unlock()

	if kind != types.JobKindInference {
		return fmt.Errorf("delete is only available for inference jobs")
	}

	if err := t.api.DeleteInference(ctx, jobID); err != nil {
		switch {
		case client.IsPolicy(err):
			return fmt.Errorf("%w: %v", ErrNotTerminal, err)
		case client.IsStale(err):
			// Already gone server-side; clearing locally is the right move.
			logger.Infof("job %s already deleted server-side", jobID)
		default:
			return fmt.Errorf("error deleting job %s: %w", jobID, err)
		}
	}

	t.mu.Lock()
	t.job = nil
	t.results = nil
	t.resultsFetched = false
	t.terminal = nil
	t.mu.Unlock()

	if err := t.store.Delete(session.JobKeys...); err != nil {
		return err
	}

	logger.InfoWithFields("job deleted", map[string]interface{}{"job_id": jobID})
	return nil
}

// Reset is the explicit "start new" acknowledgment: it drops the tracked job,
// the cached results and every persisted key in one atomic clear.
func (t *Tracker) Reset() error {
	t.poller.Detach()

	t.mu.Lock()
	t.sel = Selection{}
	t.job = nil
	t.results = nil
	t.resultsFetched = false
	t.haveCatalog = false
	t.terminal = nil
	t.mu.Unlock()

	return t.store.Clear()
}

// Resume performs the read-on-mount recovery: restore the persisted
// selections and job, re-attach the poller to a non-terminal job (never
// re-submit), and reconcile the restored selection against a fresh catalog.
// A catalog mismatch only drops selection fields; polling resumption is
// independent and proceeds regardless.
func (t *Tracker) Resume(ctx context.Context) error {
	rec := session.LoadRecord(t.store)

	t.mu.Lock()
	t.sel = Selection{
		ProjectID:  rec.ProjectID,
		DatasetID:  rec.DatasetID,
		ModelID:    rec.ModelID,
		Confidence: rec.Confidence,
		Params:     rec.Params,
	}

	var terminal *terminalSignal
	if rec.HasJob() {
		// Restored state renders immediately; the first poll refines it.
		t.job = &types.Job{
			ID:       rec.JobID,
			Kind:     rec.JobKind,
			Status:   rec.JobStatus,
			Progress: rec.JobProgress,
		}
		if !rec.JobStatus.Terminal() {
			t.terminal = newTerminalSignal()
			terminal = t.terminal
		}
	}
	t.mu.Unlock()

	if rec.HasJob() && !rec.JobStatus.Terminal() {
		logger.InfoWithFields("resuming in-flight job", map[string]interface{}{
			"job_id": rec.JobID,
			"status": rec.JobStatus.String(),
		})
		t.attach(rec.JobID, rec.JobKind, terminal)
	}

	if rec.ProjectID != "" {
		if _, err := t.RefreshCatalog(ctx); err != nil {
			// Recovered locally: stale selections will be reconciled on the
			// next successful fetch, and the resumed job is unaffected.
			logger.Warnf("catalog refresh during resume failed: %v", err)
		}
	}

	return nil
}

// Wait blocks until the tracked job stops being polled (terminal status,
// cancellation or stale reference) or the context ends, and returns the
// final job state.
func (t *Tracker) Wait(ctx context.Context) (types.Job, error) {
	t.mu.Lock()
	terminal := t.terminal
	job := t.job
	t.mu.Unlock()

	if job == nil {
		return types.Job{}, ErrNoActiveJob
	}
	if terminal == nil || job.Status.Terminal() {
		return *job, nil
	}

	select {
	case <-ctx.Done():
		return types.Job{}, ctx.Err()
	case <-terminal.done():
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.job == nil {
		return types.Job{}, ErrNoActiveJob
	}
	return *t.job, nil
}

// Results returns the terminal artifact of the completed inference job,
// fetching it if the completed-transition fetch did not succeed. Re-invoking
// after success returns the cached artifact.
func (t *Tracker) Results(ctx context.Context) (types.InferenceResults, error) {
	t.mu.Lock()
	if t.results != nil {
		res := *t.results
		t.mu.Unlock()
		return res, nil
	}
	if t.job == nil {
		t.mu.Unlock()
		return types.InferenceResults{}, ErrNoActiveJob
	}
	if t.job.Status != types.JobStatusCompleted {
		t.mu.Unlock()
		return types.InferenceResults{}, ErrNotCompleted
	}
	jobID := t.job.ID
	t.mu.Unlock()

	res, err := t.api.InferenceResults(ctx, jobID)
	if err != nil {
		return types.InferenceResults{}, err
	}

	t.mu.Lock()
	t.results = &res
	t.resultsFetched = true
	t.mu.Unlock()
	return res, nil
}

// Poller plumbing

func (t *Tracker) attach(jobID string, kind types.JobKind, terminal *terminalSignal) {
	check := t.checkFunc(jobID, kind)
	t.poller.Attach(jobID, check, poller.Handler{
		OnStatus:   func(r types.StatusResponse) { t.handleStatus(jobID, r) },
		OnTerminal: func(r types.StatusResponse) { t.handleTerminal(jobID, kind, terminal, r) },
		OnStale:    func() { t.handleStale(jobID, terminal) },
	})
}

func (t *Tracker) checkFunc(jobID string, kind types.JobKind) poller.CheckFunc {
	if kind == types.JobKindTraining {
		return func(ctx context.Context) (types.StatusResponse, error) {
			return t.api.TrainingStatus(ctx, jobID)
		}
	}
	return func(ctx context.Context) (types.StatusResponse, error) {
		return t.api.InferenceStatus(ctx, jobID)
	}
}

// handleStatus merges a poll report into the job and persists it. Reports
// for a job that is no longer the tracked one are discarded.
func (t *Tracker) handleStatus(jobID string, r types.StatusResponse) {
	t.mu.Lock()
	if t.job == nil || t.job.ID != jobID {
		t.mu.Unlock()
		return
	}

	changed := t.job.ApplyStatus(r)
	if changed {
		if err := t.persistJobLocked(); err != nil {
			logger.Errorf("error persisting job state: %v", err)
		}
	}
	job := *t.job
	t.mu.Unlock()

	if changed && t.onUpdate != nil {
		t.onUpdate(job)
	}
}

// handleTerminal runs once when polling stops on a terminal status. On
// completed inference jobs it triggers the results fetch exactly once.
func (t *Tracker) handleTerminal(jobID string, kind types.JobKind, terminal *terminalSignal, r types.StatusResponse) {
	t.mu.Lock()
	current := t.job != nil && t.job.ID == jobID
	fetch := current && r.Status == types.JobStatusCompleted &&
		kind == types.JobKindInference && !t.resultsFetched
	if fetch {
		t.resultsFetched = true
	}
	t.mu.Unlock()

	if !current {
		return
	}

	if fetch {
		res, err := t.api.InferenceResults(context.Background(), jobID)
		if err != nil {
			// Artifact not materialized yet is soft: the user can re-fetch.
			logger.Warnf("results for job %s not available yet: %v", jobID, err)
			t.mu.Lock()
			t.resultsFetched = false
			t.mu.Unlock()
		} else {
			t.mu.Lock()
			t.results = &res
			t.mu.Unlock()
		}
	}

	if terminal != nil {
		terminal.fire()
	}
}

// handleStale runs when the server reports the job gone (404 on status).
// Authoritative: the job reference and its persisted record are dropped and
// the tracker returns to idle. Selections are untouched.
func (t *Tracker) handleStale(jobID string, terminal *terminalSignal) {
	t.mu.Lock()
	if t.job == nil || t.job.ID != jobID {
		t.mu.Unlock()
		return
	}
	t.job = nil
	t.results = nil
	t.resultsFetched = false
	t.terminal = nil
	t.mu.Unlock()

	if err := t.store.Delete(session.JobKeys...); err != nil {
		logger.Errorf("error clearing persisted job: %v", err)
	}

	if terminal != nil {
		terminal.fire()
	}
}

// persistJobLocked mirrors the job subset of the state into the store.
// Caller holds t.mu.
func (t *Tracker) persistJobLocked() error {
	if t.job == nil || t.job.ID == "" {
		return nil
	}
	return t.store.SetAll(map[string]interface{}{
		session.KeyJobID:       t.job.ID,
		session.KeyJobKind:     t.job.Kind.String(),
		session.KeyJobStatus:   t.job.Status.String(),
		session.KeyJobProgress: t.job.Progress,
	})
}
