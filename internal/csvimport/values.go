package csvimport

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/household-ledger/internal/domain/ledger"
)

var (
	errEmptyDate   = errors.New("empty date")
	errEmptyAmount = errors.New("empty amount")

	isoDatePattern = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})(?:[T ].*)?$`)
	usDatePattern  = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{2}|\d{4})$`)
)

// pivotYear splits two-digit years: below it is 20xx, otherwise 19xx
const pivotYear = 50

// NormalizeDate converts an ISO or M/D/YYYY, M/D/YY date into ISO form.
// ISO dates with a time suffix are truncated to the calendar date.
func NormalizeDate(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", errEmptyDate
	}

	if m := isoDatePattern.FindStringSubmatch(s); m != nil {
		iso := m[1] + "-" + m[2] + "-" + m[3]
		if _, err := time.Parse(ledger.DateLayout, iso); err != nil {
			return "", fmt.Errorf("invalid date %q: %w", raw, err)
		}
		return iso, nil
	}

	if m := usDatePattern.FindStringSubmatch(s); m != nil {
		month, _ := strconv.Atoi(m[1])
		dayOfMonth, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if len(m[3]) == 2 {
			if year < pivotYear {
				year += 2000
			} else {
				year += 1900
			}
		}
		iso := fmt.Sprintf("%04d-%02d-%02d", year, month, dayOfMonth)
		if _, err := time.Parse(ledger.DateLayout, iso); err != nil {
			return "", fmt.Errorf("invalid date %q: %w", raw, err)
		}
		return iso, nil
	}

	return "", fmt.Errorf("unrecognised date format %q", raw)
}

// NormalizeAmount parses a statement amount. Thousands separators, currency symbols and
// whitespace are ignored; an amount in parentheses is negative.
func NormalizeAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.NewReplacer(",", "", "$", "", " ", "").Replace(s)
	if s == "" {
		return decimal.Zero, errEmptyAmount
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}
