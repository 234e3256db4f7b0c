package abillio

import (
	"net/url"
	"strings"
)

// DefaultBaseURL is used when ABILLIO_API_URL is not set
const DefaultBaseURL = "https://api-staging.abill.io"

// Credentials identify this application to the abillio API.
// The secret is only ever used as the HMAC key and is never sent.
type Credentials struct {
	BaseURL   string
	APIKey    string
	APISecret string
}

// validate is called by NewClient and again before every request so that a
// zero Client can never sign with an empty secret.
func (c Credentials) validate() error {
	var missing []string
	if c.APIKey == "" {
		missing = append(missing, "ABILLIO_API_KEY")
	}
	if c.APISecret == "" {
		missing = append(missing, "ABILLIO_API_SECRET")
	}
	if len(missing) > 0 {
		return NewConfigurationError(strings.Join(missing, ", ") + " not set")
	}

	if c.BaseURL == "" {
		return NewConfigurationError("ABILLIO_API_URL is empty")
	}
	u, err := url.ParseRequestURI(c.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return NewConfigurationError("ABILLIO_API_URL is not a valid http(s) URL: " + c.BaseURL)
	}
	return nil
}
