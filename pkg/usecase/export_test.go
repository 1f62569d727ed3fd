package usecase

// CalibrateConfidence is exported for testing
var CalibrateConfidence = calibrateConfidence

// ParseAssessment is exported for testing
var ParseAssessment = parseAssessment

// Feature slots exported for testing
const (
	FeatPropertyAge       = featPropertyAge
	FeatDetectionCount    = featDetectionCount
	FeatDamageTypeStart   = featDamageTypeStart
	FeatVisionConfidence  = featVisionConfidence
	FeatPriorSeverity     = featPriorSeverity
	FeatPriorUrgency      = featPriorUrgency
	FeatPriorAvailable    = featPriorAvailable
	FeatEvidenceAvailable = featEvidenceAvailable
)
