package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// keySeparator joins the hashed tuple; it cannot appear in a trimmed user ID or ISO date.
	keySeparator       = "\x1f"
	candidateSeparator = "|"
)

// TransactionKey derives the persisted identity of a transaction for a user.
// The amount is formatted to two decimals as a magnitude and the description is trimmed and
// lower-cased, so logically identical entries always hash the same.
func TransactionKey(userID, date string, amount decimal.Decimal, description string) string {
	canonical := strings.Join([]string{
		strings.TrimSpace(userID),
		strings.TrimSpace(date),
		amount.Abs().StringFixed(2),
		NormalizeDescription(description),
	}, keySeparator)

	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// CandidateKey is the un-hashed date|amount|description tuple used to compare import rows
// against existing ledger rows of the same user.
func CandidateKey(date string, amount decimal.Decimal, description string) string {
	return strings.Join([]string{
		strings.TrimSpace(date),
		amount.Abs().StringFixed(2),
		NormalizeDescription(description),
	}, candidateSeparator)
}

// CandidateKeyOf returns the candidate key of a stored transaction
func CandidateKeyOf(t *Transaction) string {
	return CandidateKey(FormatDate(t.Date), t.Amount, t.Description)
}

// NormalizeDescription trims and lower-cases a description for key comparison
func NormalizeDescription(description string) string {
	return strings.ToLower(strings.TrimSpace(description))
}
