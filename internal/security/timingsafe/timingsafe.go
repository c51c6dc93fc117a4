// Package timingsafe compares secrets without leaking where they differ.
package timingsafe

import "crypto/subtle"

// Equal reports whether a and b are identical. Inputs of different length
// return false immediately; only the length can leak, never the content.
func Equal(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// EqualAny reports whether candidate matches any of secrets. Every secret
// is compared, so the scan does not reveal which one matched. An empty
// candidate never matches.
func EqualAny(candidate string, secrets []string) bool {
	if candidate == "" {
		return false
	}
	matched := 0
	for _, s := range secrets {
		if s == "" {
			continue
		}
		if Equal(candidate, s) {
			matched = 1
		}
	}
	return matched == 1
}
