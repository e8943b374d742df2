package config

import "testing"

func TestBuildEndpoints_NormalizeAPIBaseURL(t *testing.T) {
	tests := []struct {
		name         string
		api          string
		ws           string
		wantAPI      string
		wantRealtime string
	}{
		{name: "root host", api: "http://localhost:3002", wantAPI: "http://localhost:3002/api", wantRealtime: "http://localhost:3002"},
		{name: "already api", api: "http://localhost:3002/api", wantAPI: "http://localhost:3002/api", wantRealtime: "http://localhost:3002"},
		{name: "trailing slashes", api: "http://localhost:3002/api///", wantAPI: "http://localhost:3002/api", wantRealtime: "http://localhost:3002"},
		{name: "pasted data endpoint", api: "https://zs.example.com/api/data/messages?limit=5", wantAPI: "https://zs.example.com/api", wantRealtime: "https://zs.example.com"},
		{name: "subpath kept", api: "https://example.com/zs/api", wantAPI: "https://example.com/zs/api", wantRealtime: "https://example.com"},
		{name: "explicit realtime origin", api: "https://example.com/api", ws: "https://rt.example.com/", wantAPI: "https://example.com/api", wantRealtime: "https://rt.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			endpoints, err := BuildEndpoints(tt.api, tt.ws)
			if err != nil {
				t.Fatalf("BuildEndpoints failed: %v", err)
			}
			if endpoints.APIURL != tt.wantAPI {
				t.Fatalf("APIURL = %q, want %q", endpoints.APIURL, tt.wantAPI)
			}
			if endpoints.RealtimeURL != tt.wantRealtime {
				t.Fatalf("RealtimeURL = %q, want %q", endpoints.RealtimeURL, tt.wantRealtime)
			}
		})
	}
}

func TestBuildEndpoints_InvalidScheme(t *testing.T) {
	for _, base := range []string{"ftp://example.com", "ws://example.com", "example.com/api"} {
		t.Run(base, func(t *testing.T) {
			if _, err := BuildEndpoints(base, ""); err == nil {
				t.Fatalf("expected error for %q", base)
			}
		})
	}
}

func TestParseOptions_FlagsAndEnv(t *testing.T) {
	t.Setenv("ZEROSTACK_API_KEY", "zs_env")
	opts, err := ParseOptions([]string{"--api-url", "http://localhost:3002/api", "--debug"})
	if err != nil {
		t.Fatalf("ParseOptions() error = %v", err)
	}
	if opts.APIURL != "http://localhost:3002/api" || opts.APIKey != "zs_env" || !opts.Debug {
		t.Fatalf("opts = %#v", opts)
	}
	if err := ValidateRequired(opts); err != nil {
		t.Fatalf("ValidateRequired() error = %v", err)
	}
	if err := ValidateRequired(Options{APIURL: "http://x"}); err == nil {
		t.Fatalf("ValidateRequired() expected missing API key error")
	}
}
