package ingestion

import (
	"regexp"
	"strings"
	"time"
)

// timestampLayout is the only accepted textual timestamp form:
// YYYY-MM-DDTHH:MM:SS followed by exactly six fractional digits.
const timestampLayout = "2006-01-02T15:04:05.000000"

var (
	nonDigits   = regexp.MustCompile(`[^0-9]`)
	indiaPrefix = regexp.MustCompile(`^\+?91`)
	phoneShape  = regexp.MustCompile(`^[6-9][0-9]{9}$`)
	emailShape  = regexp.MustCompile(`^[\w.-]+@[\w.-]+\.\w+$`)
)

// NormalizePhone reduces a free-form Indian phone number to a bare 10-digit
// subscriber number. The prefix checks run against the raw input, not the
// digit string, so "+91 98765 43210", "919876543210" and "09876543210" all
// normalize to "9876543210" while a bare 10-digit number that itself starts
// with 91 is rejected as an underlength international form.
func NormalizePhone(raw string) (string, bool) {
	digits := nonDigits.ReplaceAllString(raw, "")

	var candidate string
	switch {
	case indiaPrefix.MatchString(raw):
		if len(digits) < 12 {
			return "", false
		}
		candidate = digits[2:12]
	case strings.HasPrefix(raw, "0"):
		if len(digits) < 11 {
			return "", false
		}
		candidate = digits[1:11]
	case len(digits) == 10:
		candidate = digits
	default:
		return "", false
	}

	if !phoneShape.MatchString(candidate) {
		return "", false
	}
	return candidate, true
}

// NormalizeEmail lowercases and trims the address. Validity is a shape
// check only, not RFC 5322 parsing.
func NormalizeEmail(raw string) (string, bool) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if !emailShape.MatchString(email) {
		return "", false
	}
	return email, true
}

// ParseTimestamp parses the fixed microsecond-precision layout. Any other
// shape, including missing or shorter fractional digits, is invalid.
func ParseTimestamp(raw string) (time.Time, bool) {
	ts, err := time.Parse(timestampLayout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// Canonicalize turns one staged row into a durable record. It reports false
// when the row must be dropped: an invalid phone, an invalid email, or an
// unparseable timestamp all disqualify the whole row. Dropped rows are not
// recorded anywhere; that silence is part of the contract.
func Canonicalize(row StagedTransaction) (Transaction, bool) {
	phone, ok := NormalizePhone(row.PhoneNumber)
	if !ok {
		return Transaction{}, false
	}

	email, ok := NormalizeEmail(row.Email)
	if !ok {
		return Transaction{}, false
	}

	createdAt, ok := ParseTimestamp(row.CreatedAt)
	if !ok {
		return Transaction{}, false
	}

	updatedAt, ok := ParseTimestamp(row.UpdatedAt)
	if !ok {
		return Transaction{}, false
	}

	return Transaction{
		TransactionID: row.TransactionID,
		AgentName:     row.AgentName,
		Amount:        row.Amount,
		Status:        row.Status,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
		Lat:           row.Lat,
		Lon:           row.Lon,
		Email:         email,
		PhoneNumber:   phone,
	}, true
}
