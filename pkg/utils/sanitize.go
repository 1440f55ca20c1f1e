package utils

import "regexp"

var controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)

// SanitizeComment strips control characters from free-text user input
// before it is persisted and hashed.
func SanitizeComment(s string) string {
	return controlChars.ReplaceAllString(s, "")
}
