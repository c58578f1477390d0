package storage_test

import "net/url"

func mustParseURL(t interface{ Fatalf(string, ...any) }, raw string) url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return *u
}
