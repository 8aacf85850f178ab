package access

import (
	"testing"
)

func TestCompilePattern(t *testing.T) {
	testCases := []struct {
		pattern string
		path    string
		match   bool
	}{
		{"/admin/*", "/admin/stats", true},
		{"/admin/*", "/admin/deep/nested", true},
		{"/admin/*", "/admin/", true},
		{"/admin/*", "/api/users", false},
		{"/users/@id", "/users/42", true},
		{"/users/@id", "/users/42/notes", false},
		{"/users/@id", "/users/", false},
		{"/users/@id/notes", "/users/42/notes", true},
		{"/login", "/login", true},
		{"/login", "/login/extra", false},
		{"/login", "/loginx", false},
		{"~^/health$", "/health", true},
		{"~^/health$", "/healthz", false},
		{"~^/v[0-9]+/", "/v2/anything", true},
	}
	for _, tc := range testCases {
		t.Run(tc.pattern+" "+tc.path, func(t *testing.T) {
			re, err := compilePattern(tc.pattern)
			if err != nil {
				t.Fatal(err)
			}
			if got := re.MatchString(tc.path); got != tc.match {
				t.Fatalf("pattern %q on %q: expected %v, got %v", tc.pattern, tc.path, tc.match, got)
			}
		})
	}
}

func TestCompilePatternQuotesLiterals(t *testing.T) {
	re, err := compilePattern("/files/a.b")
	if err != nil {
		t.Fatal(err)
	}
	if re.MatchString("/files/aXb") {
		t.Fatal("dot must match literally, not as a wildcard")
	}
	if !re.MatchString("/files/a.b") {
		t.Fatal("literal path must match")
	}
}

func TestCompilePatternInvalidRegexp(t *testing.T) {
	if _, err := compilePattern("~["); err == nil {
		t.Fatal("an invalid literal regexp must not compile")
	}
}
