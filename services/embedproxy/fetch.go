package embedproxy

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

const (
	documentUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	assetUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

	defaultFetchTimeout = 20 * time.Second
)

// edgeBlockStatuses are upstream statuses interpreted as "our address was
// blocked by the upstream edge" rather than a hard failure.
var edgeBlockStatuses = map[int]struct{}{
	http.StatusUnauthorized:       {},
	http.StatusForbidden:          {},
	http.StatusTooManyRequests:    {},
	http.StatusServiceUnavailable: {},
}

// IsEdgeBlockStatus reports whether an upstream status triggers the
// direct-redirect fallback.
func IsEdgeBlockStatus(status int) bool {
	_, ok := edgeBlockStatuses[status]
	return ok
}

// Fetcher performs outbound requests with browser-mimicking headers. Upstream
// mirrors are unreliable, so every request carries the client timeout; a
// timeout surfaces like any other upstream failure.
type Fetcher struct {
	client *http.Client
}

// NewFetcher wraps the given client. A nil client gets a default with the
// standard fetch timeout applied.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	return &Fetcher{client: client}
}

// FetchDocument requests an HTML document the way a navigating browser would.
// Redirects are followed by the underlying client. The caller owns the
// response body and the status-code branching.
func (f *Fetcher) FetchDocument(ctx context.Context, target *url.URL) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}

	req.Header.Set("User-Agent", documentUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", originOf(target)+"/")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "none")
	req.Header.Set("Sec-Fetch-User", "?1")
	req.Header.Set("Cache-Control", "max-age=0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}
	return resp, nil
}

// FetchAsset requests a single non-HTML resource with a minimal browser-like
// header set and the asset's own origin as Referer.
func (f *Fetcher) FetchAsset(ctx context.Context, target *url.URL) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}

	req.Header.Set("User-Agent", assetUserAgent)
	req.Header.Set("Referer", originOf(target))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}
	return resp, nil
}

func originOf(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}
