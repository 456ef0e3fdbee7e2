package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                               "/",
		"/metrics":                       "/metrics",
		"/v1/loans/abc":                  "/v1/loans/:id",
		"/v1/loans/abc/history":          "/v1/loans/:id/history",
		"/v1/loans/abc/transitions":      "/v1/loans/:id/transitions",
		"/v1/loans/abc/extra":            "/v1/loans/abc/extra",
		"/v1/loans?status=SUBMITTED":     "/v1/loans",
		"/v1/menus/FOO_BAR/category":     "/v1/menus/:code/category",
		"/v1/menus/FOO/BAR/category":     "/v1/menus/FOO/BAR/category",
		"/v1/stream/loans":               "/v1/stream/loans",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
