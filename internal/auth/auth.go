// Package auth maps API keys to the clients allowed to call the server.
package auth

import (
	"fmt"
	"strings"

	"github.com/straja-ai/aidetect/internal/config"
)

// Client is the caller an API key belongs to.
type Client struct {
	Name string
}

// Auth holds mappings from API keys to clients.
type Auth struct {
	apiKeyToClient map[string]Client
}

// NewFromConfig builds an Auth instance from the configured keys. No keys
// means authentication is disabled.
func NewFromConfig(keys []config.APIKeyConfig) (*Auth, error) {
	m := make(map[string]Client, len(keys))
	for _, k := range keys {
		name := strings.TrimSpace(k.Name)
		if name == "" {
			return nil, fmt.Errorf("api key with empty client name in config")
		}
		if k.Key == "" {
			return nil, fmt.Errorf("client %q has an empty api key", name)
		}
		if prev, exists := m[k.Key]; exists {
			return nil, fmt.Errorf("api key for %q is also assigned to %q", name, prev.Name)
		}
		m[k.Key] = Client{Name: name}
	}
	return &Auth{apiKeyToClient: m}, nil
}

// Enabled reports whether any key is configured.
func (a *Auth) Enabled() bool {
	return a != nil && len(a.apiKeyToClient) > 0
}

// Lookup returns the client for a given API key, if any.
func (a *Auth) Lookup(apiKey string) (Client, bool) {
	if a == nil || apiKey == "" {
		return Client{}, false
	}
	c, ok := a.apiKeyToClient[apiKey]
	return c, ok
}

// ParseBearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. The scheme is case-insensitive.
func ParseBearerToken(h string) (string, bool) {
	if h == "" {
		return "", false
	}
	parts := strings.Fields(h)
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}
