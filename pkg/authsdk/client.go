package authsdk

import (
	"net/http"
	"strings"
	"time"
)

// SDKClient is a client for the admitgate identity service. It covers the
// unauthenticated flows and creates Sessions on login.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a new client with a 10 second request timeout.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NewSessionFromToken wraps an existing session token, e.g. one persisted by
// a previous login.
func (c *SDKClient) NewSessionFromToken(token string, expiresAt time.Time) *Session {
	return &Session{client: c, token: token, expiresAt: expiresAt}
}
