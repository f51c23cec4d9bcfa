package adblock

import "regexp"

// urlPattern is a compiled blocklist rule. When unless is non-nil, a URL that
// matches it is exempt from this rule (but may still trip other rules).
type urlPattern struct {
	re     *regexp.Regexp
	unless *regexp.Regexp
}

// Blocklist holds the immutable ad/tracker matching data shared by the
// classifier and the guard script. Built once at startup and read concurrently
// by all requests without locking.
type Blocklist struct {
	domains        []string
	urlPatterns    []urlPattern
	inlinePatterns []*regexp.Regexp
}

// defaultBlockedDomains are matched as lowercased substrings of the full URL,
// not exact hosts. Substring matching intentionally over-blocks (subdomains,
// path-embedded domains); the failure mode is a missing ad-adjacent resource,
// not a broken stream.
var defaultBlockedDomains = []string{
	// Ad networks
	"doubleclick.net",
	"googlesyndication.com",
	"googleadservices.com",
	"adservice.google.com",
	"popads.net",
	"popcash.net",
	"propellerads.com",
	"mgid.com",
	"taboola.com",
	"outbrain.com",
	"adnxs.com",
	"criteo.com",
	"pubmatic.com",
	"revcontent.com",
	"exoclick.com",
	"juicyads.com",
	"trafficjunky.com",
	// Tracking/analytics (these trigger popups too)
	"googletagmanager.com",
	"google-analytics.com",
	"mc.yandex.ru",
	"yandex.ru/watch",
	"static.cloudflareinsights.com",
	"cloudflareinsights.com",
	// More ad networks
	"adskeeper.com",
	"adsterra.com",
	"bidvertiser.com",
	"clickadu.com",
	"hilltopads.net",
	"monetag.com",
	"richads.com",
	"trafficstars.com",
}

// defaultURLPatternSpecs target path/filename conventions of ad and tracking
// scripts. Matched case-insensitively against the full URL or a script src.
var defaultURLPatternSpecs = []struct {
	pattern string
	unless  string
}{
	{pattern: `ads?\.js`},
	{pattern: `pop(up)?\.js`},
	{pattern: `doubleclick`},
	{pattern: `googlesyndication`},
	{pattern: `adservice`},
	{pattern: `popunder`},
	{pattern: `tracking`},
	{pattern: `analytics`, unless: `analytics\.video`}, // video analytics is player telemetry, not ads
	{pattern: `taboola`},
	{pattern: `outbrain`},
	{pattern: `mgid`},
	{pattern: `revcontent`},
	{pattern: `adnxs`},
	{pattern: `criteo`},
	{pattern: `pubmatic`},
	{pattern: `googletagmanager`},
	{pattern: `gtag/js`},
	{pattern: `google-analytics`},
	{pattern: `mc\.yandex`},
	{pattern: `yandex.*watch`},
	{pattern: `cloudflareinsights`},
	{pattern: `beacon\.min\.js`},
	{pattern: `rum\?`},
	{pattern: `cdn-cgi/rum`},
	{pattern: `overlay`},
	{pattern: `interstitial`},
	{pattern: `prebid`},
	{pattern: `click.*track`},
}

// defaultInlinePatterns flag dangerous inline <script> bodies: popup calls,
// location hijacking idioms, ad-library globals.
var defaultInlinePatterns = []string{
	`window\.open\s*\(`,
	`\.pop(up|under)`,
	`onclick\s*=.*window\.open`,
	`adsbygoogle`,
	`location\s*=\s*["']`,
	`top\.location`,
	`parent\.location`,
	`window\.location\s*=`,
	`document\.location\s*=`,
}

// DefaultBlocklist compiles the built-in domain and pattern sets.
func DefaultBlocklist() *Blocklist {
	return NewBlocklist(nil)
}

// NewBlocklist compiles the built-in sets plus any extra blocked domains from
// configuration. The returned Blocklist is immutable.
func NewBlocklist(extraDomains []string) *Blocklist {
	bl := &Blocklist{
		domains: make([]string, 0, len(defaultBlockedDomains)+len(extraDomains)),
	}
	bl.domains = append(bl.domains, defaultBlockedDomains...)
	bl.domains = append(bl.domains, extraDomains...)

	for _, spec := range defaultURLPatternSpecs {
		p := urlPattern{re: regexp.MustCompile(`(?i)` + spec.pattern)}
		if spec.unless != "" {
			p.unless = regexp.MustCompile(`(?i)` + spec.unless)
		}
		bl.urlPatterns = append(bl.urlPatterns, p)
	}
	for _, spec := range defaultInlinePatterns {
		bl.inlinePatterns = append(bl.inlinePatterns, regexp.MustCompile(`(?i)`+spec))
	}
	return bl
}
