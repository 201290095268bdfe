/*
errors.go - Shared sentinel errors

PURPOSE:
  Errors that more than one package needs to recognise with errors.Is.
  Domain packages wrap these with context (which record, which field).

SEE ALSO:
  - finance/errors.go: Configuration errors raised before a simulation
  - store/sqlite/sqlite.go: Returns ErrNotFound for missing rows
*/
package generic

import "errors"

var (
	// ErrInvalidDate is returned when a date string is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidAmount is returned when a money string cannot be parsed.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrNotFound is returned by stores when a run or scenario doesn't exist.
	ErrNotFound = errors.New("not found")
)

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
