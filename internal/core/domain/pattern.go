package domain

import "strings"

// MatchesPattern reports whether path matches a glob-style pattern where
// '*' matches any run of characters. The pattern is split on '*' into
// literal fragments that must appear in order; the first fragment is
// anchored at the start unless the pattern begins with '*', and the last
// is anchored at the end unless the pattern ends with '*'.
func MatchesPattern(path, pattern string) bool {
	if pattern == "*" {
		return true
	}

	parts := strings.Split(pattern, "*")

	pos := 0
	for i, part := range parts {
		if part == "" {
			continue
		}
		switch {
		case i == 0 && !strings.HasPrefix(pattern, "*"):
			if !strings.HasPrefix(path, part) {
				return false
			}
			pos = len(part)
		case i == len(parts)-1 && !strings.HasSuffix(pattern, "*"):
			if !strings.HasSuffix(path[pos:], part) {
				return false
			}
		default:
			found := strings.Index(path[pos:], part)
			if found < 0 {
				return false
			}
			pos += found + len(part)
		}
	}
	return true
}

// PatternPrefix returns the literal prefix of a wildcard pattern, up to
// the first '*'. Index scans use it to narrow the range of candidate
// paths before applying MatchesPattern.
func PatternPrefix(pattern string) string {
	if i := strings.IndexByte(pattern, '*'); i >= 0 {
		return pattern[:i]
	}
	return pattern
}
