package settings

import (
	"net/url"
	"strings"

	"github.com/sv4u/playlistroulette/game/config"
)

// Messages returned by ExtractToken.
const (
	MsgEmptyURL      = "URL cannot be empty"
	MsgWrongHost     = "Invalid URL. Please use the correct API URL"
	MsgTokenNotFound = "Invalid URL. Token not found"
	MsgNotConfigured = "API URL and token must be configured in settings"
)

// TokenResult is the outcome of a successful extraction.
type TokenResult struct {
	BaseURL string `json:"base_url"`
	Token   string `json:"token"`
}

// ExtractToken parses a pasted callback URL of the form
// https://<expectedHost>/path?token=<value>&... and returns the part before
// "?" together with the token. The token segment match is case-sensitive.
func ExtractToken(rawURL, expectedHost string) (TokenResult, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return TokenResult{}, &config.ConfigError{Message: MsgEmptyURL}
	}

	base, query, _ := strings.Cut(rawURL, "?")
	if !hostMatches(base, expectedHost) {
		return TokenResult{}, &config.ConfigError{Message: MsgWrongHost}
	}

	for _, segment := range strings.Split(query, "&") {
		value, ok := strings.CutPrefix(segment, "token=")
		if !ok {
			continue
		}
		if value == "" {
			break
		}
		return TokenResult{BaseURL: base, Token: value}, nil
	}
	return TokenResult{}, &config.ConfigError{Message: MsgTokenNotFound}
}

func hostMatches(base, expectedHost string) bool {
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	u, err := url.Parse(base)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Hostname(), expectedHost)
}
