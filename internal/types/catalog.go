package types

// DatasetStatusReady is the only dataset status eligible for job submission
const DatasetStatusReady = "ready"

// Dataset is a catalog entry for an annotated image dataset
type Dataset struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	ImageCount int    `json:"imageCount"`
}

// BaseModel is a catalog entry for a trainable base model
type BaseModel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"` // model family, e.g. detection
}

// Catalog is the authoritative server-provided list of selectable entities
// for one project. Selections are only valid while they reference an entry
// in the most recently fetched catalog.
type Catalog struct {
	ProjectID string      `json:"projectId"`
	Datasets  []Dataset   `json:"datasets"`
	Models    []BaseModel `json:"models"`
}

// HasDataset reports whether the catalog contains the dataset id
func (c Catalog) HasDataset(id string) bool {
	for _, d := range c.Datasets {
		if d.ID == id {
			return true
		}
	}
	return false
}

// HasModel reports whether the catalog contains the model id
func (c Catalog) HasModel(id string) bool {
	for _, m := range c.Models {
		if m.ID == id {
			return true
		}
	}
	return false
}

// ListResponse is the generic wrapper for catalog list endpoints
type ListResponse[T any] struct {
	Rows  []T `json:"rows"`
	Total int `json:"total"`
}
