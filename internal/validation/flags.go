// Package validation provides input validation utilities
package validation

import "strings"

// TruthyTokens is the complete set of form values that parse as true.
// Matching is case-insensitive after trimming whitespace; anything else,
// including the empty string, is false.
var TruthyTokens = []string{"1", "true", "yes", "on"}

// ParseFlag interprets a boolean form field.
func ParseFlag(raw string) bool {
	v := strings.ToLower(strings.TrimSpace(raw))
	for _, tok := range TruthyTokens {
		if v == tok {
			return true
		}
	}
	return false
}
