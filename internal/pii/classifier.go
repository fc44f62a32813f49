package pii

import (
	"regexp"
	"strings"

	"github.com/spec-kit/support-desk/internal/domain"
)

// Result is the outcome of scanning a piece of text for PII.
type Result struct {
	ContainsPII      bool
	PIITypes         []domain.PIICategory
	SensitivityLevel domain.SensitivityLevel
	GDPRRelevant     bool
}

// patternCategories are detected by regex; a category is present iff the
// text has at least one match.
var patternCategories = map[domain.PIICategory]*regexp.Regexp{
	domain.PIIEmail:      regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),
	domain.PIIPhone:      regexp.MustCompile(`(\+\d{1,3}[ .\-]?)?\(?\d{3}\)?[ .\-]\d{3}[ .\-]\d{4}\b`),
	domain.PIICreditCard: regexp.MustCompile(`\b\d{4}[ \-]?\d{4}[ \-]?\d{4}[ \-]?\d{4}\b`),
	domain.PIISSN:        regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	domain.PIIIPAddress:  regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
	domain.PIIPostalCode: regexp.MustCompile(`\b\d{5}(?:-\d{4})?\b`),
}

// keywordCategories are detected by whole-word case-insensitive keyword
// hits. Keyword context cannot be bounded to a token, so the anonymizer
// redacts the whole containing sentence for these.
var keywordCategories = map[domain.PIICategory][]string{
	domain.PIIMedical: {
		"diagnosis", "prescription", "medication", "illness", "disease",
		"treatment", "hospital", "surgery", "therapy", "mental health",
		"disability", "medical",
	},
	domain.PIIFinancial: {
		"bank account", "iban", "credit card", "salary", "income", "loan",
		"mortgage", "debt", "account balance", "routing number",
	},
	domain.PIIPersonal: {
		"date of birth", "birthday", "passport", "driver license",
		"drivers license", "national id", "home address",
	},
	domain.PIIAuth: {
		"password", "passphrase", "pin code", "security question",
		"api key", "secret key", "access token", "credentials",
	},
}

// keywordMatchers holds one compiled whole-word matcher per keyword category.
var keywordMatchers = buildKeywordMatchers()

func buildKeywordMatchers() map[domain.PIICategory]*regexp.Regexp {
	matchers := make(map[domain.PIICategory]*regexp.Regexp, len(keywordCategories))
	for cat, words := range keywordCategories {
		escaped := make([]string, len(words))
		for i, w := range words {
			escaped[i] = regexp.QuoteMeta(w)
		}
		matchers[cat] = regexp.MustCompile(`(?i)\b(?:` + strings.Join(escaped, "|") + `)\b`)
	}
	return matchers
}

// classifierOrder fixes the category order in results so classification is
// deterministic across runs.
var classifierOrder = []domain.PIICategory{
	domain.PIIEmail,
	domain.PIIPhone,
	domain.PIICreditCard,
	domain.PIISSN,
	domain.PIIIPAddress,
	domain.PIIPostalCode,
	domain.PIIMedical,
	domain.PIIFinancial,
	domain.PIIPersonal,
	domain.PIIAuth,
}

// Classify scans text for PII categories and grades the result.
func Classify(text string) Result {
	var types []domain.PIICategory
	for _, cat := range classifierOrder {
		if re, ok := patternCategories[cat]; ok {
			if re.MatchString(text) {
				types = append(types, cat)
			}
			continue
		}
		if keywordMatchers[cat].MatchString(text) {
			types = append(types, cat)
		}
	}

	gdpr := gdprRelevant(types)
	return Result{
		ContainsPII:      len(types) > 0,
		PIITypes:         types,
		SensitivityLevel: SensitivityFor(types, gdpr),
		GDPRRelevant:     gdpr,
	}
}

// gdprRelevant reports whether the detected categories intersect the
// GDPR Art. 9 special categories.
func gdprRelevant(types []domain.PIICategory) bool {
	for _, t := range types {
		if t == domain.PIIMedical || t == domain.PIIFinancial {
			return true
		}
	}
	return false
}

// SensitivityFor computes the sensitivity level by strict precedence:
// critical categories or GDPR relevance first, then breadth of detection.
func SensitivityFor(types []domain.PIICategory, gdpr bool) domain.SensitivityLevel {
	if len(types) == 0 {
		return domain.SensitivityLow
	}
	for _, t := range types {
		switch t {
		case domain.PIICreditCard, domain.PIISSN, domain.PIIMedical, domain.PIIAuth:
			return domain.SensitivityCritical
		}
	}
	if gdpr {
		return domain.SensitivityCritical
	}
	if len(types) >= 3 {
		return domain.SensitivityHigh
	}
	if len(types) >= 2 {
		return domain.SensitivityMedium
	}
	return domain.SensitivityLow
}
