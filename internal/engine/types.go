package engine

// GenerateOptions holds the sampling parameters for one completion. A zero
// field defers to the backend's default for that parameter. Greedy decoding
// is expressed as Temperature 0.
type GenerateOptions struct {
	MaxNewTokens  int
	Temperature   float64
	TopK          int
	TopP          float64
	RepeatPenalty float64
}

// PullProgress reports download progress for a model pull operation.
type PullProgress struct {
	Status    string `json:"status"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
}
