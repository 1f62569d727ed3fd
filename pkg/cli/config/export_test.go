package config

import "github.com/mintenance/surveyor/pkg/usecase"

var ParseWindow = parseWindow

// NewPolicyForTest creates a Policy config for testing purposes
func NewPolicyForTest(path string, timeouts usecase.Timeouts) *Policy {
	return &Policy{path: path, timeouts: timeouts}
}

// NewSlackForTest creates a Slack config for testing purposes
func NewSlackForTest(botToken, channelID, apiURL string) *Slack {
	return &Slack{botToken: botToken, channelID: channelID, apiURL: apiURL}
}

// NewGeminiForTest creates a Gemini config for testing purposes
func NewGeminiForTest(projectID, location string) *Gemini {
	return &Gemini{projectID: projectID, location: location}
}

// NewRepositoryForTest creates a Repository config for testing purposes
func NewRepositoryForTest(backend, sqlitePath string) *Repository {
	return &Repository{backend: backend, sqlitePath: sqlitePath}
}

// NewLoggerForTest creates a Logger config for testing purposes
func NewLoggerForTest(level, format string) *Logger {
	return &Logger{level: level, format: format}
}

// NewExportForTest creates an Export config for testing purposes
func NewExportForTest(bucket, dir, schedule string) *Export {
	return &Export{bucket: bucket, dir: dir, schedule: schedule}
}

// NewVisionModelForTest creates a VisionModel config for testing purposes
func NewVisionModelForTest(provider, apiKey string) *VisionModel {
	return &VisionModel{provider: provider, apiKey: apiKey, detail: "high", burst: 1}
}

// NewEvidenceForTest creates an Evidence config with only segmentation settings
func NewEvidenceForTest(segmentationEnabled bool, segmentationURL string) *Evidence {
	return &Evidence{segmentationEnabled: segmentationEnabled, segmentationURL: segmentationURL}
}
