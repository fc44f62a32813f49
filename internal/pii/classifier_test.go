package pii

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/domain"
)

func TestClassifyCleanText(t *testing.T) {
	result := Classify("The app crashes when I open the settings page.")

	assert.False(t, result.ContainsPII)
	assert.Empty(t, result.PIITypes)
	assert.Equal(t, domain.SensitivityLow, result.SensitivityLevel)
	assert.False(t, result.GDPRRelevant)
}

func TestClassifyPatternCategories(t *testing.T) {
	cases := []struct {
		name     string
		text     string
		category domain.PIICategory
	}{
		{"email", "reach me at bob.smith@example.com please", domain.PIIEmail},
		{"phone", "call 555-123-4567 tomorrow", domain.PIIPhone},
		{"credit card", "charged card 4111 1111 1111 1111 twice", domain.PIICreditCard},
		{"ssn", "my ssn is 123-45-6789", domain.PIISSN},
		{"ip address", "login from 192.168.1.77 looks odd", domain.PIIIPAddress},
		{"postal code", "shipped to 90210 last week", domain.PIIPostalCode},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := Classify(tc.text)
			require.True(t, result.ContainsPII)
			assert.Contains(t, result.PIITypes, tc.category)
		})
	}
}

func TestClassifyKeywordCategoriesAreCaseInsensitive(t *testing.T) {
	result := Classify("I forgot my PASSWORD again")

	require.True(t, result.ContainsPII)
	assert.Contains(t, result.PIITypes, domain.PIIAuth)
	assert.Equal(t, domain.SensitivityCritical, result.SensitivityLevel)
}

func TestClassifyKeywordNeedsWholeWord(t *testing.T) {
	// "passwords" ends at a word boundary after "password", so the plural
	// still hits; a keyword embedded mid-word must not.
	result := Classify("the medically-reviewed article")
	assert.NotContains(t, result.PIITypes, domain.PIIMedical)
}

func TestClassifyGDPRRelevance(t *testing.T) {
	medical := Classify("my diagnosis came back yesterday")
	require.True(t, medical.ContainsPII)
	assert.True(t, medical.GDPRRelevant)
	assert.Equal(t, domain.SensitivityCritical, medical.SensitivityLevel)

	financial := Classify("the mortgage payment bounced")
	require.True(t, financial.ContainsPII)
	assert.True(t, financial.GDPRRelevant)

	email := Classify("mail me at a@b.co")
	assert.False(t, email.GDPRRelevant)
}

func TestSensitivityPrecedence(t *testing.T) {
	assert.Equal(t, domain.SensitivityLow, SensitivityFor(nil, false))
	assert.Equal(t, domain.SensitivityLow,
		SensitivityFor([]domain.PIICategory{domain.PIIEmail}, false))
	assert.Equal(t, domain.SensitivityMedium,
		SensitivityFor([]domain.PIICategory{domain.PIIEmail, domain.PIIPhone}, false))
	assert.Equal(t, domain.SensitivityHigh,
		SensitivityFor([]domain.PIICategory{domain.PIIEmail, domain.PIIPhone, domain.PIIIPAddress}, false))
	// A critical category wins regardless of breadth.
	assert.Equal(t, domain.SensitivityCritical,
		SensitivityFor([]domain.PIICategory{domain.PIISSN}, false))
	assert.Equal(t, domain.SensitivityCritical,
		SensitivityFor([]domain.PIICategory{domain.PIIPersonal}, true))
}

func TestClassifyDeterministicOrder(t *testing.T) {
	text := "email a@b.co, phone 555-123-4567, and my password"
	first := Classify(text)
	second := Classify(text)
	assert.Equal(t, first.PIITypes, second.PIITypes)
	assert.Equal(t,
		[]domain.PIICategory{domain.PIIEmail, domain.PIIPhone, domain.PIIAuth},
		first.PIITypes)
}
