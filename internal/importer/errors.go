package importer

import (
	"errors"
	"strings"
)

var (
	// ErrNoDataRows is returned for a file that has a header line but no data lines
	ErrNoDataRows = errors.New("csv contains headers but no data rows")

	// ErrNoValidRows is returned for an empty file, a file without date and amount columns, or
	// a file whose every data line was rejected
	ErrNoValidRows = errors.New("no valid rows parsed from csv")
)

// ErrUnknownAccounts lists every referenced account that does not exist or belongs to another
// user. IDs are sorted; unparseable references appear verbatim.
type ErrUnknownAccounts struct {
	IDs []string
}

func (e ErrUnknownAccounts) Error() string {
	return "unknown accounts: " + strings.Join(e.IDs, ", ")
}

// Is implements the errors.Is interface for ErrUnknownAccounts.
// A target without IDs matches any ErrUnknownAccounts.
func (e ErrUnknownAccounts) Is(target error) bool {
	t, ok := target.(ErrUnknownAccounts)
	if !ok {
		return false
	}
	if len(t.IDs) == 0 {
		return true
	}
	return strings.Join(e.IDs, ",") == strings.Join(t.IDs, ",")
}

// IsRejection reports whether err is caused by the submitted file rather than by the stores.
// Retrying a rejected import cannot succeed.
func IsRejection(err error) bool {
	return errors.Is(err, ErrNoDataRows) || errors.Is(err, ErrNoValidRows) || errors.Is(err, ErrUnknownAccounts{})
}
