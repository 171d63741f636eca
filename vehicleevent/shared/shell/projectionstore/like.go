package projectionstore

import (
	"regexp"
	"strings"
)

// likeToRegexp translates a LIKE pattern into an anchored regular expression.
func likeToRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder

	b.WriteString(`(?s)^`)

	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(`.*`)
		case '_':
			b.WriteString(`.`)
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}

	b.WriteString(`$`)

	return regexp.Compile(b.String())
}

// HasWildcard reports whether pattern contains a LIKE wildcard.
func HasWildcard(pattern string) bool {
	return strings.ContainsAny(pattern, "%_")
}
