package domain

import "fmt"

// MaxCaseSequence is the largest per-year sequence a case number can hold.
const MaxCaseSequence = 999999

// FormatCaseNumber renders the user-visible case number, e.g. LSP-2024-000042.
func FormatCaseNumber(year, seq int) string {
	return fmt.Sprintf("LSP-%04d-%06d", year, seq)
}
