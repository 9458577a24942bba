package orgcode

import (
	"errors"
	"regexp"
	"strings"
)

var ErrInvalid = errors.New("organization_code_invalid")

var codePattern = regexp.MustCompile(`^[A-Z0-9_-]{1,16}$`)

// Normalize upper-cases a candidate organization code and validates it
// against the canonical pattern. Leading or trailing whitespace is rejected
// rather than silently stripped.
func Normalize(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" || trimmed != input {
		return "", ErrInvalid
	}
	normalized := strings.ToUpper(trimmed)
	if !codePattern.MatchString(normalized) {
		return "", ErrInvalid
	}
	return normalized, nil
}
