package activity

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/trezcool/matembezi/core"
)

const (
	MinNameLength = 1
	MaxNameLength = 50

	// InvalidNameChars may not appear in titles, categories or state names.
	InvalidNameChars = ":#/|_%<>[]{}�\\\x7f"

	whitespaceChars = " \t\n\r\v\f"
)

var adjacentWhitespaceRegex = regexp.MustCompile(`[ \t\n\r\v\f]{2,}`)

// RequireValidName validates a title, category or state name.
// nameType is a human-readable description such as "the adventure title"; it shows in error messages.
func RequireValidName(name, nameType string) error {
	if n := utf8.RuneCountInString(name); n < MinNameLength || n > MaxNameLength {
		return core.NewValidationErrorf(
			"The length of %s should be between %d and %d characters; received %s",
			nameType, MinNameLength, MaxNameLength, name)
	}

	first, _ := utf8.DecodeRuneInString(name)
	last, _ := utf8.DecodeLastRuneInString(name)
	if strings.ContainsRune(whitespaceChars, first) || strings.ContainsRune(whitespaceChars, last) {
		return core.NewValidationErrorf("Names should not start or end with whitespace.")
	}

	if adjacentWhitespaceRegex.MatchString(name) {
		return core.NewValidationErrorf("Adjacent whitespace in %s should be collapsed.", nameType)
	}

	for _, c := range InvalidNameChars {
		if strings.ContainsRune(name, c) {
			return core.NewValidationErrorf("Invalid character %s in %s: %s", string(c), nameType, name)
		}
	}
	return nil
}
