package types

import (
	"encoding/json"
	"fmt"
)

// StartJobResponse is returned by the start and retry endpoints
type StartJobResponse struct {
	JobID  string    `json:"jobId"`  // server-assigned id for the new job
	Status JobStatus `json:"status"` // initial status, normally queued
}

// CancelResponse is returned by the cancel endpoints
type CancelResponse struct {
	Status JobStatus `json:"status"`
}

// StatusResponse is the normalized result of a status poll
type StatusResponse struct {
	JobID    string         `json:"jobId,omitempty"`
	Status   JobStatus      `json:"status"`
	Progress Progress       `json:"progress"`
	Metrics  map[string]any `json:"metrics,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// rawProgress is the wire shape of the progress object
type rawProgress struct {
	ProcessedImages int `json:"processedImages"`
	TotalImages     int `json:"totalImages"`
	ProgressPercent int `json:"progressPercent"`
}

func (p rawProgress) canonical() Progress {
	percent := p.ProgressPercent
	if percent == 0 && p.TotalImages > 0 {
		percent = p.ProcessedImages * 100 / p.TotalImages
	}
	return Progress{
		Processed: p.ProcessedImages,
		Total:     p.TotalImages,
		Percent:   percent,
	}
}

// UnmarshalJSON normalizes the two progress shapes the server is known to
// emit: a nested {"progress": {processedImages, totalImages, progressPercent}}
// object, or the same three fields flattened onto the top level. Everything
// past this point only ever sees the canonical Progress struct.
func (r *StatusResponse) UnmarshalJSON(data []byte) error {
	var raw struct {
		JobID           string         `json:"jobId"`
		Status          string         `json:"status"`
		Progress        *rawProgress   `json:"progress"`
		ProcessedImages *int           `json:"processedImages"`
		TotalImages     *int           `json:"totalImages"`
		ProgressPercent *int           `json:"progressPercent"`
		Metrics         map[string]any `json:"metrics"`
		Error           string         `json:"error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("error decoding status response: %w", err)
	}

	status, err := ParseJobStatus(raw.Status)
	if err != nil {
		return err
	}

	r.JobID = raw.JobID
	r.Status = status
	r.Metrics = raw.Metrics
	r.Error = raw.Error

	switch {
	case raw.Progress != nil:
		r.Progress = raw.Progress.canonical()
	case raw.ProcessedImages != nil || raw.TotalImages != nil || raw.ProgressPercent != nil:
		flat := rawProgress{}
		if raw.ProcessedImages != nil {
			flat.ProcessedImages = *raw.ProcessedImages
		}
		if raw.TotalImages != nil {
			flat.TotalImages = *raw.TotalImages
		}
		if raw.ProgressPercent != nil {
			flat.ProgressPercent = *raw.ProgressPercent
		}
		r.Progress = flat.canonical()
	default:
		r.Progress = Progress{}
	}

	return nil
}

// ErrorResponse is the JSON body the API returns for non-2xx responses
type ErrorResponse struct {
	Error             string `json:"error"`
	RetryAfterSeconds int    `json:"retryAfterSeconds,omitempty"` // wait hint on 429
}
