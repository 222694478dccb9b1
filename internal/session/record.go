package session

import (
	"github.com/vantagevision/vantage/internal/types"
)

// Record is the typed view of everything the store holds, read once at
// startup to resume a session. It mirrors a subset of the live state: the
// selections and the last known job id/status/progress.
type Record struct {
	ProjectID  string
	DatasetID  string
	ModelID    string
	Confidence float64
	Params     *types.TrainingParams

	JobID       string
	JobKind     types.JobKind
	JobStatus   types.JobStatus
	JobProgress types.Progress
}

// HasJob reports whether the record references a tracked job
func (r Record) HasJob() bool {
	return r.JobID != ""
}

// LoadRecord reads the full record from the store. Individually unreadable
// keys are skipped: a bad fragment must not block recovery of the rest.
func LoadRecord(s *Store) Record {
	var r Record

	r.ProjectID, _ = s.GetString(KeyProject)
	r.DatasetID, _ = s.GetString(KeyDataset)
	r.ModelID, _ = s.GetString(KeyModel)
	_, _ = s.Get(KeyConfidence, &r.Confidence)

	var params types.TrainingParams
	if ok, err := s.Get(KeyParams, &params); err == nil && ok {
		r.Params = &params
	}

	r.JobID, _ = s.GetString(KeyJobID)
	if kindStr, ok := s.GetString(KeyJobKind); ok {
		if kind, err := types.ParseJobKind(kindStr); err == nil {
			r.JobKind = kind
		}
	}
	if statusStr, ok := s.GetString(KeyJobStatus); ok {
		if status, err := types.ParseJobStatus(statusStr); err == nil {
			r.JobStatus = status
		}
	}
	_, _ = s.Get(KeyJobProgress, &r.JobProgress)

	return r
}
