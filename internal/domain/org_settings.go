package domain

import "time"

// OrganizationAISettings holds the per-organization AI configuration.
// The core reads these flags; they are managed elsewhere.
type OrganizationAISettings struct {
	OrganizationID         string
	AIEnabled              bool
	PIIDetectionEnabled    bool
	SentimentEnabled       bool
	SuggestionsEnabled     bool
	TranslationEnabled     bool
	SummarizationEnabled   bool
	AutoExecutionEnabled   bool
	AutoExecutionThreshold int
	RequireConsentForPII   bool
	AutoAnonymize          bool
	UpdatedAt              time.Time
}
