package adblock

import "strings"

// Client-side keyword sets mirroring the server blocklists. These are baked
// into the guard payload at construction time, never from per-request input.
var (
	anchorClickKeywords = `ads?|pop|redirect|track|click|offer|sponsor`
	iframeSrcKeywords   = `ads?|pop|track|doubleclick|googlead|sponsor`
	scriptSrcKeywords   = `ads?|pop|track|googletagmanager|analytics|doubleclick`
	fetchBlockKeywords  = `googletagmanager|analytics|doubleclick|mc\.yandex|cloudflareinsights|rum\?`
	beaconBlockKeywords = `analytics|track|rum|beacon`

	// Class-name prefixes of known player libraries (JWPlayer, ArtPlayer,
	// VideoJS, Plyr) whose overlay-like controls must keep receiving clicks.
	playerClassPrefixes = []string{"jw-", "art-", "vjs-", "plyr"}
	playerContainers    = []string{".jw-controls", ".art-video-player", ".video-js", ".plyr"}
)

// GuardMarker identifies the injected guard script element.
const GuardMarker = "flashplay-adblocker"

// Guard produces the anti-popup script injected as the first child of <head>
// in every rewritten document. The payload is assembled once and reused for
// the lifetime of the process.
type Guard struct {
	payload string
}

func NewGuard() *Guard {
	return &Guard{payload: buildGuardPayload()}
}

// Payload returns the full <script> element, ready for injection.
func (g *Guard) Payload() string {
	return g.payload
}

func buildGuardPayload() string {
	var safeChecks strings.Builder
	for _, prefix := range playerClassPrefixes {
		safeChecks.WriteString("className.indexOf('" + prefix + "') > -1 ||\n                    ")
	}
	var containerChecks strings.Builder
	for i, sel := range playerContainers {
		if i > 0 {
			containerChecks.WriteString(" ||\n                    ")
		}
		containerChecks.WriteString("el.closest('" + sel + "')")
	}

	r := strings.NewReplacer(
		"__MARKER__", GuardMarker,
		"__ANCHOR_KEYWORDS__", anchorClickKeywords,
		"__IFRAME_KEYWORDS__", iframeSrcKeywords,
		"__SCRIPT_KEYWORDS__", scriptSrcKeywords,
		"__FETCH_KEYWORDS__", fetchBlockKeywords,
		"__BEACON_KEYWORDS__", beaconBlockKeywords,
		"__SAFE_CLASS_CHECKS__", safeChecks.String(),
		"__SAFE_CONTAINER_CHECKS__", containerChecks.String(),
	)
	return r.Replace(guardTemplate)
}

const guardTemplate = `<script data-guard="__MARKER__">
(function() {
    'use strict';
    console.log("[FlashPlay Guard] Anti-popup guard active");

    // ====== 1. Block window.open completely ======
    var fakeWindow = {
        close: function(){},
        focus: function(){},
        blur: function(){},
        postMessage: function(){},
        document: { write: function(){}, open: function(){}, close: function(){} },
        location: { href: 'about:blank' },
        closed: false,
        opener: null,
        parent: window,
        self: null,
        name: ''
    };
    Object.freeze(fakeWindow);

    try {
        Object.defineProperty(window, 'open', {
            configurable: false,
            writable: false,
            value: function(url) {
                console.warn("[FlashPlay Guard] Blocked popup:", url);
                return fakeWindow;
            }
        });
    } catch(e) {
        window.open = function() { return fakeWindow; };
    }

    // ====== 2. Block frame-escape via top/parent ======
    try {
        Object.defineProperty(window, 'top', { get: function() { return window; } });
    } catch(e) {}
    try {
        Object.defineProperty(window, 'parent', { get: function() { return window; } });
    } catch(e) {}

    // ====== 3. Intercept clicks on suspicious elements ======
    document.addEventListener('click', function(e) {
        var target = e.target;

        // A. Prevent form submissions via click
        if (target.type === 'submit' || target.tagName === 'BUTTON') {
            var form = target.closest('form');
            if (form) {
                e.preventDefault();
                e.stopPropagation();
                console.warn("[FlashPlay Guard] Blocked form submission button");
                return false;
            }
        }

        // B. Walk ancestors looking for an invisible/high-z overlay
        var isOverlay = false;
        var el = target;
        while (el && el !== document.body) {
            var style = window.getComputedStyle ? window.getComputedStyle(el) : el.style;
            var pos = style.position;
            var zIndex = parseInt(style.zIndex) || 0;
            var opacity = parseFloat(style.opacity);

            if ((pos === 'fixed' || pos === 'absolute') &&
                (zIndex > 100 || opacity < 0.1 || style.pointerEvents === 'auto')) {

                var tagName = el.tagName.toLowerCase();
                var className = (el.className && typeof el.className === 'string') ? el.className.toLowerCase() : '';

                // Whitelist legitimate player controls
                var isSafe =
                    tagName === 'video' ||
                    tagName === 'iframe' ||
                    __SAFE_CLASS_CHECKS____SAFE_CONTAINER_CHECKS__;

                if (!isSafe) {
                    isOverlay = true;
                    console.warn("[FlashPlay Guard] Overlay detected on:", tagName, className);
                    break;
                }
            }
            el = el.parentElement;
        }

        if (isOverlay) {
            e.preventDefault();
            e.stopPropagation();
            e.stopImmediatePropagation();
            console.warn("[FlashPlay Guard] Blocked overlay click");
            return false;
        }

        // C. Block all external navigation from anchors
        var a = target.closest ? target.closest('a') : null;
        if (a) {
            var href = a.getAttribute('href') || '';
            if (href.startsWith('#') || href === 'javascript:void(0)' || href === 'javascript:;') {
                // safe
            } else {
                e.preventDefault();
                e.stopPropagation();
                console.warn("[FlashPlay Guard] Blocked external navigation:", href);
                return false;
            }
        }
    }, true);

    // ====== 4. Block form submissions ======
    document.addEventListener('submit', function(e) {
        e.preventDefault();
        e.stopPropagation();
        console.warn("[FlashPlay Guard] Blocked form submission");
        return false;
    }, true);

    // ====== 5. Block programmatic clicks on ad anchors ======
    var realClick = HTMLElement.prototype.click;
    HTMLElement.prototype.click = function() {
        var tag = (this.tagName || '').toLowerCase();
        if (tag === 'a') {
            var href = this.getAttribute('href') || '';
            if (/__ANCHOR_KEYWORDS__/i.test(href)) {
                console.warn("[FlashPlay Guard] Blocked programmatic click:", href);
                return;
            }
        }
        return realClick.apply(this, arguments);
    };

    // ====== 6. Block beforeunload hijacking ======
    window.onbeforeunload = null;
    try {
        Object.defineProperty(window, 'onbeforeunload', {
            configurable: false,
            set: function() {},
            get: function() { return null; }
        });
    } catch(e) {}

    // ====== 7. Intercept createElement for ad iframes/scripts ======
    var realCreateElement = document.createElement.bind(document);
    document.createElement = function(tag) {
        var el = realCreateElement(tag);
        var tagLower = tag.toLowerCase();

        if (tagLower === 'iframe') {
            var iframeSrc = Object.getOwnPropertyDescriptor(HTMLIFrameElement.prototype, 'src');
            Object.defineProperty(el, 'src', {
                set: function(v) {
                    if (/__IFRAME_KEYWORDS__/i.test(v)) {
                        console.warn("[FlashPlay Guard] Blocked ad iframe:", v);
                        return;
                    }
                    if (iframeSrc && iframeSrc.set) {
                        iframeSrc.set.call(this, v);
                    }
                },
                get: function() {
                    return iframeSrc && iframeSrc.get ? iframeSrc.get.call(this) : '';
                }
            });
        }

        if (tagLower === 'script') {
            var scriptSrc = Object.getOwnPropertyDescriptor(HTMLScriptElement.prototype, 'src');
            Object.defineProperty(el, 'src', {
                set: function(v) {
                    if (/__SCRIPT_KEYWORDS__/i.test(v)) {
                        console.warn("[FlashPlay Guard] Blocked ad script:", v);
                        return;
                    }
                    if (scriptSrc && scriptSrc.set) {
                        scriptSrc.set.call(this, v);
                    }
                },
                get: function() {
                    return scriptSrc && scriptSrc.get ? scriptSrc.get.call(this) : '';
                }
            });
        }

        return el;
    };

    // ====== 8. Short-circuit tracking fetch/sendBeacon ======
    var realFetch = window.fetch;
    window.fetch = function(url) {
        var urlStr = typeof url === 'string' ? url : (url && url.url) || '';
        if (/__FETCH_KEYWORDS__/i.test(urlStr)) {
            console.warn("[FlashPlay Guard] Blocked tracking fetch:", urlStr);
            return Promise.resolve(new Response('', {status: 204}));
        }
        return realFetch.apply(this, arguments);
    };

    if (navigator.sendBeacon) {
        var realSendBeacon = navigator.sendBeacon.bind(navigator);
        navigator.sendBeacon = function(url, data) {
            if (/__BEACON_KEYWORDS__/i.test(url)) {
                console.warn("[FlashPlay Guard] Blocked beacon:", url);
                return true;
            }
            return realSendBeacon(url, data);
        };
    }

    // ====== 9. Sandbox dynamically inserted iframes ======
    var observer = new MutationObserver(function(mutations) {
        mutations.forEach(function(mutation) {
            mutation.addedNodes.forEach(function(node) {
                if (node.nodeType === 1 && node.tagName === 'IFRAME') {
                    try {
                        node.setAttribute('sandbox', 'allow-scripts allow-same-origin allow-forms allow-presentation');
                    } catch(e) {}
                    // Patch the nested window when same-origin access allows it
                    try {
                        if (node.contentWindow) {
                            node.contentWindow.open = function() { return fakeWindow; };
                        }
                    } catch(e) {}
                }
            });
        });
    });
    observer.observe(document.documentElement, { childList: true, subtree: true });
})();
</script>`
