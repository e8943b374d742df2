package config

import (
	"errors"
	"net/url"
	"strings"

	flags "github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

type Options struct {
	APIURL      string `long:"api-url" env:"ZEROSTACK_API_URL" description:"ZeroStack API base URL (e.g. https://zerostack.example.com/api)"`
	RealtimeURL string `long:"ws-url" env:"ZEROSTACK_WS_URL" description:"Realtime server origin; defaults to the API URL origin"`
	APIKey      string `long:"api-key" env:"ZEROSTACK_API_KEY" description:"Project API key (zs_...)"`
	SessionFile string `long:"session-file" env:"ZEROSTACK_SESSION_FILE" description:"Where to persist the login session and guest identity"`
	Debug       bool   `long:"debug" env:"ZEROSTACK_DEBUG" description:"Enable verbose debug output"`
	LogFile     bool   `long:"log-file" env:"ZEROSTACK_LOG_FILE" description:"Persist logs as JSONL under the user cache directory"`
}

type APIEndpoints struct {
	APIURL      string
	RealtimeURL string
}

// ParseOptions loads .env (if present) and then parses flags, which fall back to env vars.
func ParseOptions(args []string) (Options, error) {
	_ = godotenv.Load()
	opts := Options{}
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return Options{}, err
	}
	return opts, nil
}

func ValidateRequired(opts Options) error {
	if strings.TrimSpace(opts.APIURL) == "" {
		return errors.New("API URL is required")
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return errors.New("API key is required")
	}
	return nil
}

func BuildEndpoints(rawAPIURL string, rawRealtimeURL string) (APIEndpoints, error) {
	apiURL, err := parseHTTPURL(rawAPIURL)
	if err != nil {
		return APIEndpoints{}, err
	}

	realtimeURL := *apiURL
	if strings.TrimSpace(rawRealtimeURL) != "" {
		parsed, parseErr := parseHTTPURL(rawRealtimeURL)
		if parseErr != nil {
			return APIEndpoints{}, parseErr
		}
		realtimeURL = *parsed
	}
	// The realtime server hangs its own path off the origin.
	realtimeURL.Path = ""
	realtimeURL.RawPath = ""

	// Normalize a pasted endpoint (e.g. .../api/data/messages) to the API root.
	if idx := strings.Index(apiURL.Path, "/api"); idx >= 0 {
		apiURL.Path = apiURL.Path[:idx] + "/api"
	} else {
		apiURL.Path = strings.TrimRight(apiURL.Path, "/") + "/api"
	}
	apiURL.RawPath = ""

	return APIEndpoints{
		APIURL:      strings.TrimRight(apiURL.String(), "/"),
		RealtimeURL: strings.TrimRight(realtimeURL.String(), "/"),
	}, nil
}

func parseHTTPURL(raw string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, errors.New("expected absolute URL like https://example.com")
	}
	if !strings.EqualFold(parsed.Scheme, "http") && !strings.EqualFold(parsed.Scheme, "https") {
		return nil, errors.New("URL scheme must be http or https")
	}
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed, nil
}
