package domain

import "time"

// PIICategory tags a kind of personally identifiable or sensitive content.
type PIICategory string

const (
	PIIEmail      PIICategory = "email"
	PIIPhone      PIICategory = "phone"
	PIICreditCard PIICategory = "credit_card"
	PIISSN        PIICategory = "ssn"
	PIIIPAddress  PIICategory = "ip_address"
	PIIPostalCode PIICategory = "postal_code"
	PIIMedical    PIICategory = "medical"
	PIIFinancial  PIICategory = "financial"
	PIIPersonal   PIICategory = "personal"
	PIIAuth       PIICategory = "auth"
)

// SensitivityLevel grades how carefully ticket content must be handled.
type SensitivityLevel string

const (
	SensitivityLow      SensitivityLevel = "low"
	SensitivityMedium   SensitivityLevel = "medium"
	SensitivityHigh     SensitivityLevel = "high"
	SensitivityCritical SensitivityLevel = "critical"
)

// PIIClassification is the single per-ticket record of detected PII and
// the consent state attached to it. Re-classification overwrites the row.
type PIIClassification struct {
	TicketID         string
	OrganizationID   string
	ContainsPII      bool
	PIITypes         []PIICategory
	SensitivityLevel SensitivityLevel
	GDPRRelevant     bool
	AIUsageConsent   bool
	ConsentGivenAt   *time.Time
	ConsentGivenBy   *string
	DataAnonymized   bool
	LastAnalyzedAt   time.Time
}

// HasCategory reports whether the classification includes a category.
func (c *PIIClassification) HasCategory(cat PIICategory) bool {
	for _, t := range c.PIITypes {
		if t == cat {
			return true
		}
	}
	return false
}
