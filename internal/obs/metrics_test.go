package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                            "/",
		"/metrics":                    "/metrics",
		"/v1/files":                   "/v1/files",
		"/v1/files/01ABCDEF":          "/v1/files/:id",
		"/v1/files/01ABCDEF/download": "/v1/files/:id/download",
		"/v1/files/a/b/c":             "/v1/files/a/b/c",
		"/v1/audit?page=2":            "/v1/audit",
		"/v1/auth/login":              "/v1/auth/login",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
