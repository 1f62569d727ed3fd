package model

// Region is a bounding box normalized to the image size
type Region struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Detection is a single object-detection result
type Detection struct {
	ClassName  string  `json:"class_name"`
	Confidence float64 `json:"confidence"` // 0-100
	Region     Region  `json:"region"`
	ImageIndex int     `json:"image_index"`
}

// DetectionClassSummary aggregates detections sharing a class name
type DetectionClassSummary struct {
	ClassName         string
	Count             int
	AverageConfidence float64
}

// VisionAnalysisSummary is the normalized output of the general image-analysis service
type VisionAnalysisSummary struct {
	Confidence float64  `json:"confidence"` // 0-100
	Labels     []string `json:"labels"`
	Objects    []string `json:"objects"`
	Features   []string `json:"features"`
}

// SegmentationMask is the mask set returned for one damage type prompt
type SegmentationMask struct {
	Masks        [][][]int   `json:"masks,omitempty"`
	Boxes        [][]float64 `json:"boxes"`
	Scores       []float64   `json:"scores"`
	NumInstances int         `json:"num_instances"`
	Error        string      `json:"error,omitempty"`
}

// SegmentationEvidence holds precise masks for the primary damage type of the first image
type SegmentationEvidence struct {
	ImageURL   string                      `json:"image_url"`
	DamageType string                      `json:"damage_type"`
	Results    map[string]SegmentationMask `json:"results"`
}

// FeatureSource identifies which extractor produced a feature vector
type FeatureSource string

const (
	FeatureSourceLearned     FeatureSource = "learned"
	FeatureSourceHandcrafted FeatureSource = "handcrafted"
)

// Evidence bundles everything the assessment was derived from
type Evidence struct {
	Detections       []Detection            `json:"detections"`
	Vision           *VisionAnalysisSummary `json:"vision,omitempty"`
	Segmentation     *SegmentationEvidence  `json:"segmentation,omitempty"`
	MemoryAdjustment MemoryAdjustment       `json:"memory_adjustment"`
	FeatureSource    FeatureSource          `json:"feature_source"`
}
