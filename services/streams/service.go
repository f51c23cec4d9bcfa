package streams

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"

	"flashplay/models"
	"flashplay/utils"
)

const providerRetryAttempts = 2

// Service extracts direct ad-free streams for a title. Providers are tried in
// order of reliability: VidLink first, VidSrc as fallback. Retries live here,
// at the provider-chain level; the embed proxy below never retries.
type Service struct {
	vidlink *vidlinkClient
	vidsrc  *vidsrcExtractor

	vidlinkEnabled bool
	vidsrcEnabled  bool
}

// Config toggles individual providers.
type Config struct {
	VidLinkEnabled bool
	VidSrcEnabled  bool
}

func NewService(httpClient *http.Client, cfg Config) *Service {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Service{
		vidlink:        newVidlinkClient(httpClient),
		vidsrc:         newVidsrcExtractor(httpClient),
		vidlinkEnabled: cfg.VidLinkEnabled,
		vidsrcEnabled:  cfg.VidSrcEnabled,
	}
}

// ExtractMovie resolves stream sources for a movie by TMDB id.
func (s *Service) ExtractMovie(ctx context.Context, tmdbID string) (*models.StreamResponse, error) {
	return s.extract(ctx, tmdbID, 0, 0)
}

// ExtractSeries resolves stream sources for one episode by TMDB id.
func (s *Service) ExtractSeries(ctx context.Context, tmdbID string, season, episode int) (*models.StreamResponse, error) {
	return s.extract(ctx, tmdbID, season, episode)
}

type provider struct {
	name string
	run  func(context.Context) (*models.StreamResponse, error)
}

func (s *Service) extract(ctx context.Context, tmdbID string, season, episode int) (*models.StreamResponse, error) {
	var providers []provider
	if s.vidlinkEnabled {
		providers = append(providers, provider{name: "vidlink", run: func(ctx context.Context) (*models.StreamResponse, error) {
			if season > 0 {
				return s.vidlink.ExtractSeries(ctx, tmdbID, season, episode)
			}
			return s.vidlink.ExtractMovie(ctx, tmdbID)
		}})
	}
	if s.vidsrcEnabled {
		providers = append(providers, provider{name: "vidsrc", run: func(ctx context.Context) (*models.StreamResponse, error) {
			if season > 0 {
				return s.vidsrc.ExtractSeries(ctx, tmdbID, season, episode)
			}
			return s.vidsrc.ExtractMovie(ctx, tmdbID)
		}})
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no stream providers enabled")
	}

	var lastErr error
	for _, p := range providers {
		res, err := retry.DoWithData(
			func() (*models.StreamResponse, error) { return p.run(ctx) },
			retry.Attempts(providerRetryAttempts),
			retry.Context(ctx),
			retry.Delay(300*time.Millisecond),
			retry.LastErrorOnly(true),
		)
		if err != nil {
			log.Printf("[streams] provider %s failed: %v", p.name, err)
			lastErr = err
			continue
		}
		if res != nil && len(res.Sources) > 0 && res.Sources[0].URL != "" {
			normalizeResponse(res)
			log.Printf("[streams] provider %s returned %d source(s)", p.name, len(res.Sources))
			return res, nil
		}
		log.Printf("[streams] provider %s returned no sources", p.name)
	}

	if lastErr != nil {
		return nil, fmt.Errorf("all stream providers failed: %w", lastErr)
	}
	return nil, fmt.Errorf("no streams found")
}

// normalizeResponse re-encodes provider URLs in place. URLs that fail to
// parse are left as extracted.
func normalizeResponse(res *models.StreamResponse) {
	for i, src := range res.Sources {
		if fixed, err := utils.NormalizeStreamURL(src.URL); err == nil {
			res.Sources[i].URL = fixed
		}
	}
	for i, sub := range res.Subtitles {
		if fixed, err := utils.NormalizeStreamURL(sub.URL); err == nil {
			res.Subtitles[i].URL = fixed
		}
	}
}
