package token

import (
	"slices"
	"strings"
)

// ParseScope splits a space-delimited scope parameter, dropping duplicates
// while keeping the first-seen order.
func ParseScope(scope string) []string {
	var out []string
	for s := range strings.FieldsSeq(scope) {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

// JoinScope renders scopes as the space-delimited wire format.
func JoinScope(scopes []string) string {
	return strings.Join(scopes, " ")
}

// ScopeSet parses a space-separated scope string into a boolean lookup map.
func ScopeSet(scopes string) map[string]bool {
	set := make(map[string]bool)
	for s := range strings.FieldsSeq(scopes) {
		set[s] = true
	}
	return set
}

// IsSubset reports whether every scope in requested is present in granted.
func IsSubset(requested []string, granted string) bool {
	set := ScopeSet(granted)
	for _, s := range requested {
		if !set[s] {
			return false
		}
	}
	return true
}

// Intersect returns the scopes of requested that appear in allowed, in
// request order.
func Intersect(requested []string, allowed []string) []string {
	var out []string
	for _, s := range requested {
		if slices.Contains(allowed, s) && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
