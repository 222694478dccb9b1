package workflow

import "errors"

// Sentinel errors returned by the tracker. All of these are recovered
// locally; none leaves the tracker in an undefined state.
var (
	// ErrNoProject is returned when an operation needs a selected project.
	// Dependent catalog fetches are skipped, not issued, while unset.
	ErrNoProject = errors.New("no project selected")

	// ErrNoModel is returned when a submission is missing a model selection
	ErrNoModel = errors.New("no model selected")

	// ErrNoDataset is returned when a training submission is missing a dataset
	ErrNoDataset = errors.New("no dataset selected")

	// ErrJobActive guards the idempotent-start and selection rules: while a
	// job is tracked, selections are frozen and a second start is rejected.
	ErrJobActive = errors.New("a job is already being tracked; cancel, delete, or reset it first")

	// ErrNoActiveJob is returned when no job is being tracked
	ErrNoActiveJob = errors.New("no job is being tracked")

	// ErrNotCancellable is returned when cancelling a job that is not queued or running
	ErrNotCancellable = errors.New("job is not queued or running")

	// ErrNotTerminal is returned when deleting or retrying a job that is
	// still active. Maps to a "cancel first" message, not a generic error.
	ErrNotTerminal = errors.New("job is still active; cancel it first")

	// ErrNotCompleted is returned when fetching results for a job that has
	// not reached the completed status
	ErrNotCompleted = errors.New("job has not completed")

	// ErrNotInCatalog is returned when a selection does not reference an
	// entry in the last-fetched catalog
	ErrNotInCatalog = errors.New("selection not present in the current catalog")
)
