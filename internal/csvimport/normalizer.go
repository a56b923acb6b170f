// Package csvimport normalizes statement CSV files into ledger transaction candidates.
//
// Two layouts are understood. The generic layout names every field explicitly:
//
//	date,type,amount,description,category,fromAccountId,toAccountId,metadata
//
// The bank statement layout has date, description, amount and a running balance column but
// no type; the type is inferred from the amount sign and the description.
package csvimport

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/household-ledger/internal/domain/ledger"
)

const byteOrderMark = "\ufeff"

// Format identifies the detected CSV layout
type Format string

const (
	FormatGeneric Format = "generic"
	FormatBank    Format = "bank"
)

// Column names after lower-casing and trimming the header
const (
	colDate        = "date"
	colType        = "type"
	colAmount      = "amount"
	colDescription = "description"
	colCategory    = "category"
	colMetadata    = "metadata"
)

var (
	runningBalanceColumns = []string{"running bal", "running bal.", "running balance"}
	fromAccountColumns    = []string{"fromaccountid", "from_account_id", "from account id"}
	toAccountColumns      = []string{"toaccountid", "to_account_id", "to account id"}
)

// NormalizedRow is one statement line converted into a transaction candidate.
// Amount keeps the sign it had in the file.
type NormalizedRow struct {
	Line          int                    `json:"line"`
	Date          string                 `json:"date"`
	Type          ledger.TransactionType `json:"type"`
	Amount        decimal.Decimal        `json:"amount"`
	Description   string                 `json:"description,omitempty"`
	Category      string                 `json:"category,omitempty"`
	FromAccountID string                 `json:"fromAccountId,omitempty"`
	ToAccountID   string                 `json:"toAccountId,omitempty"`
	Metadata      map[string]any         `json:"metadata,omitempty"`
}

// Result describes a parsed file. DataLines counts non-blank lines after the header whether or
// not they produced a row, which lets callers tell a header-only file from a file whose rows
// were all rejected.
type Result struct {
	Format    Format          `json:"format"`
	Headers   []string        `json:"headers"`
	DataLines int             `json:"data_lines"`
	Rows      []NormalizedRow `json:"rows"`
}

// HasHeader reports whether a header line was found
func (r *Result) HasHeader() bool {
	return len(r.Headers) > 0
}

// Normalizer parses CSV statements with a configurable type inference rule list
type Normalizer struct {
	rules []InferenceRule
}

// NewNormalizer creates a normalizer; nil rules selects DefaultInferenceRules
func NewNormalizer(rules []InferenceRule) *Normalizer {
	if rules == nil {
		rules = DefaultInferenceRules
	}
	return &Normalizer{rules: rules}
}

// Parse normalizes text with the default rules and returns only the rows
func Parse(text string) []NormalizedRow {
	return NewNormalizer(nil).Inspect(text).Rows
}

// ParseReader reads a whole statement from r and normalizes it
func ParseReader(r io.Reader) ([]NormalizedRow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return Parse(string(data)), nil
}

// Inspect normalizes text and reports the detected layout alongside the rows
func (n *Normalizer) Inspect(text string) *Result {
	text = strings.TrimPrefix(text, byteOrderMark)

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	result := &Result{}
	var columns columnIndex

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				if result.HasHeader() {
					result.DataLines++
				}
				continue
			}
			break
		}
		if isBlank(record) {
			continue
		}

		if !result.HasHeader() {
			result.Headers = normalizeHeaders(record)
			columns = newColumnIndex(result.Headers)
			result.Format = DetectFormat(result.Headers)
			continue
		}

		result.DataLines++
		if !columns.has(colDate) || !columns.has(colAmount) {
			continue
		}

		line, _ := reader.FieldPos(0)
		if row, ok := n.normalizeRecord(result.Format, columns, record); ok {
			row.Line = line
			result.Rows = append(result.Rows, row)
		}
	}

	return result
}

// DetectFormat chooses the bank statement layout when a running balance column sits next to
// date, description and amount; everything else is the generic layout. headers must already be
// lower-cased and trimmed.
func DetectFormat(headers []string) Format {
	columns := newColumnIndex(headers)
	if columns.has(colDate) && columns.has(colDescription) && columns.has(colAmount) {
		if _, ok := columns.first(runningBalanceColumns...); ok {
			return FormatBank
		}
	}
	return FormatGeneric
}

func (n *Normalizer) normalizeRecord(format Format, columns columnIndex, record []string) (NormalizedRow, bool) {
	date, err := NormalizeDate(columns.value(record, colDate))
	if err != nil {
		return NormalizedRow{}, false
	}
	amount, err := NormalizeAmount(columns.value(record, colAmount))
	if err != nil {
		return NormalizedRow{}, false
	}

	row := NormalizedRow{
		Date:          date,
		Amount:        amount,
		Description:   strings.TrimSpace(columns.value(record, colDescription)),
		Category:      strings.TrimSpace(columns.value(record, colCategory)),
		FromAccountID: strings.TrimSpace(columns.valueOf(record, fromAccountColumns...)),
		ToAccountID:   strings.TrimSpace(columns.valueOf(record, toAccountColumns...)),
	}

	if format == FormatBank {
		row.Type = Infer(n.rules, amount, row.Description)
	} else {
		row.Type = ledger.ParseType(columns.value(record, colType))
	}

	if raw := strings.TrimSpace(columns.value(record, colMetadata)); raw != "" {
		row.Metadata = parseMetadata(raw)
	}

	if raw := strings.TrimSpace(columns.valueOf(record, runningBalanceColumns...)); raw != "" {
		if bal, err := NormalizeAmount(raw); err == nil {
			if row.Metadata == nil {
				row.Metadata = make(map[string]any)
			}
			row.Metadata[ledger.MetaRunningBalance] = bal.String()
		}
	}

	return row, true
}

// parseMetadata decodes a JSON object, keeping undecodable text under "raw"
func parseMetadata(raw string) map[string]any {
	var meta map[string]any
	if err := json.Unmarshal([]byte(raw), &meta); err != nil || meta == nil {
		return map[string]any{ledger.MetaRaw: raw}
	}
	return meta
}

func normalizeHeaders(record []string) []string {
	headers := make([]string, len(record))
	for i, h := range record {
		headers[i] = strings.ToLower(strings.TrimSpace(h))
	}
	return headers
}

func isBlank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// columnIndex maps a lower-cased header name to its position
type columnIndex map[string]int

func newColumnIndex(headers []string) columnIndex {
	idx := make(columnIndex, len(headers))
	for i, h := range headers {
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	return idx
}

func (c columnIndex) has(name string) bool {
	_, ok := c[name]
	return ok
}

func (c columnIndex) first(names ...string) (int, bool) {
	for _, name := range names {
		if i, ok := c[name]; ok {
			return i, true
		}
	}
	return 0, false
}

func (c columnIndex) value(record []string, name string) string {
	return c.valueOf(record, name)
}

func (c columnIndex) valueOf(record []string, names ...string) string {
	i, ok := c.first(names...)
	if !ok || i >= len(record) {
		return ""
	}
	return record[i]
}
