package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantagevision/vantage/internal/types"
)

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, store.Set(KeyProject, "proj-1"))
	require.NoError(t, store.Set(KeyJobProgress, types.Progress{Processed: 5, Total: 20, Percent: 25}))

	got, ok := store.GetString(KeyProject)
	assert.True(t, ok)
	assert.Equal(t, "proj-1", got)

	var progress types.Progress
	ok, err = store.Get(KeyJobProgress, &progress)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 25, progress.Percent)

	_, ok = store.GetString(KeyDataset)
	assert.False(t, ok)
}

func TestStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, store.SetAll(map[string]interface{}{
		KeyJobID:     "J1",
		KeyJobStatus: "running",
	}))

	// Writes go through on every Set, so a fresh Open sees them without any
	// explicit save step.
	reopened, err := Open(dir)
	require.NoError(t, err)

	jobID, ok := reopened.GetString(KeyJobID)
	assert.True(t, ok)
	assert.Equal(t, "J1", jobID)

	status, ok := reopened.GetString(KeyJobStatus)
	assert.True(t, ok)
	assert.Equal(t, "running", status)
}

func TestStoreDeleteSubset(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, store.Set(KeyProject, "proj-1"))
	require.NoError(t, store.Set(KeyDataset, "ds-1"))
	require.NoError(t, store.Set(KeyJobID, "J1"))

	// Dropping the dataset key leaves the other subsets untouched
	require.NoError(t, store.Delete(KeyDataset))

	_, ok := store.GetString(KeyDataset)
	assert.False(t, ok)

	project, ok := store.GetString(KeyProject)
	assert.True(t, ok)
	assert.Equal(t, "proj-1", project)

	jobID, ok := store.GetString(KeyJobID)
	assert.True(t, ok)
	assert.Equal(t, "J1", jobID)
}

func TestStoreClearIsAtomicAndNamespaced(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, store.Set(KeyProject, "proj-1"))
	require.NoError(t, store.Set(KeyJobID, "J1"))
	require.NoError(t, store.Set("other.tool.key", "kept"))

	require.NoError(t, store.Clear())

	_, ok := store.GetString(KeyProject)
	assert.False(t, ok)
	_, ok = store.GetString(KeyJobID)
	assert.False(t, ok)

	// Keys outside the namespace survive the reset
	kept, ok := store.GetString("other.tool.key")
	assert.True(t, ok)
	assert.Equal(t, "kept", kept)

	reopened, err := Open(dir)
	require.NoError(t, err)
	_, ok = reopened.GetString(KeyJobID)
	assert.False(t, ok)
}

func TestStoreCorruptFileStartsClean(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "session.json"), []byte("{not json"), 0o600))

	store, err := Open(dir)
	require.NoError(t, err)
	assert.Empty(t, store.Keys())

	require.NoError(t, store.Set(KeyProject, "proj-1"))
	got, ok := store.GetString(KeyProject)
	assert.True(t, ok)
	assert.Equal(t, "proj-1", got)
}

func TestLoadRecord(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, store.SetAll(map[string]interface{}{
		KeyProject:     "proj-1",
		KeyDataset:     "ds-1",
		KeyModel:       "mdl-1",
		KeyConfidence:  0.25,
		KeyJobID:       "J1",
		KeyJobKind:     "inference",
		KeyJobStatus:   "running",
		KeyJobProgress: types.Progress{Processed: 42, Total: 100, Percent: 42},
	}))

	rec := LoadRecord(store)

	assert.True(t, rec.HasJob())
	assert.Equal(t, "proj-1", rec.ProjectID)
	assert.Equal(t, "ds-1", rec.DatasetID)
	assert.Equal(t, "mdl-1", rec.ModelID)
	assert.InDelta(t, 0.25, rec.Confidence, 1e-9)
	assert.Equal(t, "J1", rec.JobID)
	assert.Equal(t, types.JobKindInference, rec.JobKind)
	assert.Equal(t, types.JobStatusRunning, rec.JobStatus)
	assert.Equal(t, 42, rec.JobProgress.Percent)
}

func TestLoadRecordEmptyStore(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)

	rec := LoadRecord(store)
	assert.False(t, rec.HasJob())
	assert.Empty(t, rec.ProjectID)
}
