package logging

import (
	"strings"
	"testing"
)

func TestFormatHTTPPayload_RedactsCredentials(t *testing.T) {
	raw := []byte(`{"success":true,"data":{"user":{"email":"a@b.com"},"accessToken":"eyJhbGciOi","refreshToken":"r-123"}}`)
	got := FormatHTTPPayload(raw)
	if strings.Contains(got, "eyJhbGciOi") || strings.Contains(got, "r-123") {
		t.Fatalf("tokens leaked into payload log: %s", got)
	}
	if !strings.Contains(got, "a@b.com") {
		t.Fatalf("non-secret field lost: %s", got)
	}
}

func TestFormatHTTPPayload_PlainTextAndEmpty(t *testing.T) {
	if got := FormatHTTPPayload([]byte("  ")); got != "<empty>" {
		t.Fatalf("FormatHTTPPayload(empty) = %q", got)
	}
	if got := FormatHTTPPayload([]byte("Bad Gateway")); got != "Bad Gateway" {
		t.Fatalf("FormatHTTPPayload(text) = %q", got)
	}
}

func TestRedactToken(t *testing.T) {
	tests := map[string]string{
		"":                  "",
		"short":             "***",
		"eyJhbGciOiJIUzI1N": "eyJhbG***",
	}
	for in, want := range tests {
		if got := RedactToken(in); got != want {
			t.Fatalf("RedactToken(%q) = %q, want %q", in, got, want)
		}
	}
}
