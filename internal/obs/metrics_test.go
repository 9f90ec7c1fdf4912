package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                   "/",
		"/metrics":                           "/metrics",
		"/v1/postings":                       "/v1/postings",
		"/v1/postings/abc":                   "/v1/postings/:id",
		"/v1/postings/abc/reverse":           "/v1/postings/:id/reverse",
		"/v1/open-items/abc/allocations":     "/v1/open-items/:id/allocations",
		"/v1/tenants/t1/trial-balance":       "/v1/tenants/:id/trial-balance",
		"/v1/tenants/t1/periods/p1/finalize": "/v1/tenants/:id/periods/:id/finalize",
		"/v1/tenants/t1/open-items?party=x":  "/v1/tenants/:id/open-items",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
