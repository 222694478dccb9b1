package types

// ClassDetections aggregates detections for one object class
type ClassDetections struct {
	Class             string  `json:"class"`
	Count             int     `json:"count"`
	AverageConfidence float64 `json:"averageConfidence"`
}

// AnnotatedImage is a reference to one annotated output image
type AnnotatedImage struct {
	ImageID    string `json:"imageId"`
	URL        string `json:"url"`
	Detections int    `json:"detections"`
}

// InferenceResults is the terminal artifact of a completed inference job.
// Fetching it never mutates server state; re-fetching returns the same
// artifact.
type InferenceResults struct {
	JobID             string            `json:"jobId"`
	TotalDetections   int               `json:"totalDetections"`
	AverageConfidence float64           `json:"averageConfidence"`
	DetectionsByClass []ClassDetections `json:"detectionsByClass"`
	AnnotatedImages   []AnnotatedImage  `json:"annotatedImages"`
}
