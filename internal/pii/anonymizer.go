package pii

import (
	"regexp"
	"strings"

	"github.com/spec-kit/support-desk/internal/domain"
)

// Placeholder tokens. None of them re-match any detection pattern, which
// makes Anonymize idempotent.
const (
	placeholderEmail      = "[EMAIL REDACTED]"
	placeholderPhone      = "[PHONE REDACTED]"
	placeholderCreditCard = "[CARD NUMBER REDACTED]"
	placeholderSSN        = "[SSN REDACTED]"
	placeholderIPAddress  = "[IP REDACTED]"
	placeholderPostalCode = "[POSTAL CODE REDACTED]"
	placeholderName       = "[NAME REDACTED]"
)

var tokenPlaceholders = map[domain.PIICategory]string{
	domain.PIIEmail:      placeholderEmail,
	domain.PIIPhone:      placeholderPhone,
	domain.PIICreditCard: placeholderCreditCard,
	domain.PIISSN:        placeholderSSN,
	domain.PIIIPAddress:  placeholderIPAddress,
	domain.PIIPostalCode: placeholderPostalCode,
}

// Sentence placeholders stay off the keyword lists too, so a rescan of
// already-redacted text comes back clean.
var sentencePlaceholders = map[domain.PIICategory]string{
	domain.PIIMedical:   "[HEALTH DATA REDACTED]",
	domain.PIIFinancial: "[FINANCIAL INFORMATION REDACTED]",
	domain.PIIPersonal:  "[PERSONAL INFORMATION REDACTED]",
	domain.PIIAuth:      "[LOGIN DATA REDACTED]",
}

// tokenOrder applies the narrower patterns first so a card number or SSN is
// never partially consumed by the phone or postal-code patterns.
var tokenOrder = []domain.PIICategory{
	domain.PIICreditCard,
	domain.PIISSN,
	domain.PIIEmail,
	domain.PIIPhone,
	domain.PIIIPAddress,
	domain.PIIPostalCode,
}

var sentenceOrder = []domain.PIICategory{
	domain.PIIMedical,
	domain.PIIFinancial,
	domain.PIIPersonal,
	domain.PIIAuth,
}

// Anonymize produces a redacted copy of text for the given detected
// categories. Pattern categories are replaced token-by-token; keyword
// categories replace the whole containing sentence, re-scanned after the
// token pass. Pure function.
func Anonymize(text string, types []domain.PIICategory) string {
	if text == "" || len(types) == 0 {
		return text
	}
	present := make(map[domain.PIICategory]bool, len(types))
	for _, t := range types {
		present[t] = true
	}
	// Financial keyword hits frequently co-occur with unredacted card
	// numbers, so financial implies the card pattern too.
	if present[domain.PIIFinancial] {
		present[domain.PIICreditCard] = true
	}

	for _, cat := range tokenOrder {
		if !present[cat] {
			continue
		}
		text = patternCategories[cat].ReplaceAllString(text, tokenPlaceholders[cat])
	}
	for _, cat := range sentenceOrder {
		if !present[cat] {
			continue
		}
		text = redactSentences(text, keywordMatchers[cat], sentencePlaceholders[cat])
	}
	return text
}

// redactSentences replaces every sentence containing a keyword match with
// the placeholder, keeping the sentence terminator and leading whitespace.
func redactSentences(text string, matcher *regexp.Regexp, placeholder string) string {
	var b strings.Builder
	b.Grow(len(text))
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			b.WriteString(redactSegment(text[start:i], matcher, placeholder))
			b.WriteByte(text[i])
			start = i + 1
		}
	}
	if start < len(text) {
		b.WriteString(redactSegment(text[start:], matcher, placeholder))
	}
	return b.String()
}

func redactSegment(segment string, matcher *regexp.Regexp, placeholder string) string {
	if !matcher.MatchString(segment) {
		return segment
	}
	trimmed := strings.TrimLeft(segment, " \t\r\n")
	lead := segment[:len(segment)-len(trimmed)]
	return lead + placeholder
}

// AnonymizeTicket returns a redacted copy of the ticket. Title and
// description go through Anonymize; customer identity fields are replaced
// wholesale when their category was detected.
func AnonymizeTicket(ticket domain.Ticket, types []domain.PIICategory) domain.Ticket {
	out := ticket
	out.Title = Anonymize(ticket.Title, types)
	out.Description = Anonymize(ticket.Description, types)
	for _, t := range types {
		switch t {
		case domain.PIIEmail:
			if out.CustomerEmail != "" {
				out.CustomerEmail = placeholderEmail
			}
		case domain.PIIPhone:
			if out.CustomerPhone != "" {
				out.CustomerPhone = placeholderPhone
			}
		case domain.PIIPersonal:
			if out.CustomerName != "" {
				out.CustomerName = placeholderName
			}
		}
	}
	return out
}

// AnonymizeMessages maps the ticket treatment over a conversation.
func AnonymizeMessages(messages []domain.TicketMessage, types []domain.PIICategory) []domain.TicketMessage {
	if len(messages) == 0 {
		return messages
	}
	redactName := false
	for _, t := range types {
		if t == domain.PIIPersonal {
			redactName = true
		}
	}
	out := make([]domain.TicketMessage, len(messages))
	for i, msg := range messages {
		redacted := msg
		redacted.Content = Anonymize(msg.Content, types)
		if redactName && redacted.SenderType == domain.SenderTypeCustomer && redacted.SenderName != "" {
			redacted.SenderName = placeholderName
		}
		out[i] = redacted
	}
	return out
}
