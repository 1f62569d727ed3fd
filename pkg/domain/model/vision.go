package model

// VisionRequest is one structured-output call to a vision-language model
type VisionRequest struct {
	SystemPrompt string
	UserPrompt   string
	ImageURLs    []string
	Temperature  float64
	MaxTokens    int
	JSON         bool
}

// VisionResponse is the raw content of the model reply plus usage
type VisionResponse struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
}
