package validation

import (
	"fmt"
	"unicode/utf8"
)

// Column limits of the users table.
const (
	MaxUsernameLength = 150
	MaxEmailLength    = 254
)

// MaxLength rejects values longer than limit characters. Content is not
// otherwise inspected.
func MaxLength(field, value string, limit int) error {
	if utf8.RuneCountInString(value) > limit {
		return fmt.Errorf("%s must not exceed %d characters", field, limit)
	}
	return nil
}

// MissingFields returns the names of fields whose values are empty, in the
// order given. Whitespace counts as a value.
func MissingFields(fields map[string]string, order ...string) []string {
	var missing []string
	for _, name := range order {
		if fields[name] == "" {
			missing = append(missing, name)
		}
	}
	return missing
}
