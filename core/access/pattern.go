package access

import (
	"regexp"
	"strings"
)

// compilePattern compiles an allow-rule or access-rule path pattern.
//
// A pattern starting with '~' is taken as a literal regular expression.
// Otherwise it is a path template: segments starting with '@' match any
// single segment, a '*' segment matches any suffix, everything else matches
// literally.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	if strings.HasPrefix(pattern, "~") {
		return regexp.Compile(pattern[1:])
	}
	segments := strings.Split(pattern, "/")
	for i, segment := range segments {
		switch {
		case segment == "*":
			segments[i] = ".*"
		case strings.HasPrefix(segment, "@") && len(segment) > 1:
			segments[i] = "[^/]+"
		default:
			segments[i] = regexp.QuoteMeta(segment)
		}
	}
	return regexp.Compile("^" + strings.Join(segments, "/") + "$")
}
