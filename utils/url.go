package utils

import (
	"net/url"
	"strings"
)

// NormalizeStreamURL re-encodes a playlist or subtitle URL handed back by an
// upstream provider. Some providers emit raw spaces in file names, which break
// when the player fetches them.
func NormalizeStreamURL(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	normalized := parsed.Scheme + "://" + parsed.Host + parsed.EscapedPath()
	if parsed.RawQuery != "" {
		normalized += "?" + strings.ReplaceAll(parsed.RawQuery, " ", "%20")
	}
	return normalized, nil
}
