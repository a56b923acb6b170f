package csvimport

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/household-ledger/internal/domain/ledger"
)

// Sign restricts an inference rule to positive or negative amounts
type Sign int

const (
	Positive Sign = 1
	Negative Sign = -1
)

// InferenceRule maps a signed amount and a description to a transaction type.
// A rule with no keywords matches every description of its sign.
type InferenceRule struct {
	Name     string
	Sign     Sign
	Keywords []string
	Type     ledger.TransactionType
}

// Matches reports whether the rule applies to the row
func (r InferenceRule) Matches(amount decimal.Decimal, description string) bool {
	if amount.Sign() != int(r.Sign) {
		return false
	}
	if len(r.Keywords) == 0 {
		return true
	}
	desc := strings.ToLower(description)
	for _, kw := range r.Keywords {
		if containsWord(desc, kw) {
			return true
		}
	}
	return false
}

// DefaultInferenceRules is evaluated in order; the first matching rule wins.
var DefaultInferenceRules = []InferenceRule{
	{
		Name: "deposit",
		Sign: Positive,
		Keywords: []string{
			"deposit", "direct dep", "dir dep", "cash reward", "zelle payment from",
			"payroll", "paychex", "adp", "gusto",
		},
		Type: ledger.TypeIncome,
	},
	{Name: "credit", Sign: Positive, Type: ledger.TypeAdjustment},
	{
		Name:     "payment",
		Sign:     Negative,
		Keywords: []string{"online banking payment", "payment", "pmt", "repay", "autopay"},
		Type:     ledger.TypePayment,
	},
	{Name: "debit", Sign: Negative, Type: ledger.TypeExpense},
}

// Infer returns the type of the first matching rule, or adjustment when none matches
func Infer(rules []InferenceRule, amount decimal.Decimal, description string) ledger.TransactionType {
	for _, r := range rules {
		if r.Matches(amount, description) {
			return r.Type
		}
	}
	return ledger.TypeAdjustment
}

// shortKeyword is the longest keyword that must start at a word boundary
const shortKeyword = 3

// containsWord reports whether kw occurs in s. Bank descriptions glue words together
// ("EPAYMENT", "CHECKDEPOSIT"), so longer keywords match anywhere. Keywords of up to
// shortKeyword bytes must start a word, so "adp" does not match "roadpass". s must be lower-case.
func containsWord(s, kw string) bool {
	kw = strings.ToLower(kw)
	if len(kw) > shortKeyword {
		return strings.Contains(s, kw)
	}
	for offset := 0; offset < len(s); {
		i := strings.Index(s[offset:], kw)
		if i < 0 {
			return false
		}
		start := offset + i
		if start == 0 || !isWordByte(s[start-1]) {
			return true
		}
		offset = start + 1
	}
	return false
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}
