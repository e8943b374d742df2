package client

import (
	"net/http"

	"zerostack-chat/internal/config"
	"zerostack-chat/internal/identity"
	"zerostack-chat/internal/logging"
)

const (
	HeaderAPIKey      = "x-api-key"
	headerContentType = "Content-Type"
	contentTypeJSON   = "application/json"

	// maxResponseBytes caps how much of a response body is buffered.
	maxResponseBytes = 4 << 20
)

// ZeroStackClient issues request/response exchanges against the ZeroStack API.
// It never retries; callers own retry policy.
type ZeroStackClient struct {
	http      *http.Client
	apiKey    string
	endpoints config.APIEndpoints
	identity  *identity.Resolver
	logger    *logging.Logger
}

func New(httpClient *http.Client, apiKey string, endpoints config.APIEndpoints, resolver *identity.Resolver, logger *logging.Logger) *ZeroStackClient {
	if logger == nil {
		panic("client.New: logger must not be nil")
	}
	if resolver == nil {
		panic("client.New: identity resolver must not be nil")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ZeroStackClient{
		http:      httpClient,
		apiKey:    apiKey,
		endpoints: endpoints,
		identity:  resolver,
		logger:    logger.Component("client"),
	}
}

func (c *ZeroStackClient) Identity() *identity.Resolver {
	return c.identity
}
