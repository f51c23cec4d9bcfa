package adblock

import (
	"regexp"
	"strings"
)

// popupHandlerRe flags inline onclick handlers that open popups or redirect.
var popupHandlerRe = regexp.MustCompile(`(?i)window\.open|pop|redirect`)

// Classifier decides whether URLs and scripts are ad/tracker material.
// All methods are pure and safe for concurrent use.
type Classifier struct {
	bl *Blocklist
}

func NewClassifier(bl *Blocklist) *Classifier {
	if bl == nil {
		bl = DefaultBlocklist()
	}
	return &Classifier{bl: bl}
}

// IsAdURL reports whether the URL matches the domain or pattern blocklist.
// Empty or malformed input returns false; absolute-resolution failures are the
// caller's concern.
func (c *Classifier) IsAdURL(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	lower := strings.ToLower(rawURL)
	for _, domain := range c.bl.domains {
		if strings.Contains(lower, domain) {
			return true
		}
	}
	return c.matchesURLPattern(rawURL)
}

// ShouldStripScript reports whether a script element should be removed, based
// on its src attribute and its inline text body. Either may be empty.
func (c *Classifier) ShouldStripScript(src, inlineText string) bool {
	if src != "" && c.matchesURLPattern(src) {
		return true
	}
	if inlineText != "" {
		for _, re := range c.bl.inlinePatterns {
			if re.MatchString(inlineText) {
				return true
			}
		}
	}
	return false
}

// IsPopupHandler reports whether an onclick attribute value looks like a
// popup/redirect handler. Matching elements keep the element but lose the
// attribute.
func (c *Classifier) IsPopupHandler(onclick string) bool {
	return onclick != "" && popupHandlerRe.MatchString(onclick)
}

func (c *Classifier) matchesURLPattern(s string) bool {
	for _, p := range c.bl.urlPatterns {
		if p.re.MatchString(s) {
			if p.unless != nil && p.unless.MatchString(s) {
				continue
			}
			return true
		}
	}
	return false
}
