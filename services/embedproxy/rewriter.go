package embedproxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"flashplay/services/adblock"
)

const (
	// EmbedPath serves rewritten documents; nested frames recurse through it.
	EmbedPath = "/embed"
	// AssetPath serves leaf resources (images, scripts, media segments).
	AssetPath = "/embed/asset"

	// sandboxTokens permit scripts, same-origin access, forms, and
	// presentation, but not navigation or popups.
	sandboxTokens = "allow-scripts allow-same-origin allow-forms allow-presentation"

	// maxDocumentBytes bounds the buffered upstream HTML. Embed pages are
	// small; anything larger is not a player page.
	maxDocumentBytes = 4 << 20
)

var (
	httpSchemeRe = regexp.MustCompile(`(?i)^https?://`)

	// rewriteAttrs are the element attributes resolved and rewritten during
	// the DOM walk, in processing order.
	rewriteAttrs = []string{"src", "href", "poster", "data-src"}
)

// Options carries per-request rewrite switches derived from query parameters.
type Options struct {
	// DisableSandbox skips the sandbox attribute on nested frames. Some embed
	// providers detect a sandboxed frame and refuse to run.
	DisableSandbox bool
}

// Result is a fully rewritten document ready to serve.
type Result struct {
	HTML []byte
}

// Rewriter fetches upstream embed pages, strips ad/tracking elements, rewrites
// resource URLs back through the proxy, and injects the guard script. It holds
// no per-request state and is safe for concurrent use.
type Rewriter struct {
	classifier *adblock.Classifier
	guard      *adblock.Guard
	fetcher    *Fetcher
}

func NewRewriter(classifier *adblock.Classifier, guard *adblock.Guard, fetcher *Fetcher) *Rewriter {
	return &Rewriter{classifier: classifier, guard: guard, fetcher: fetcher}
}

// Rewrite runs the full pipeline for one target URL. The returned error is
// ErrInvalidTarget, *EdgeBlockedError, *UpstreamError, or a parse/serialize
// failure; on any error no partial document is returned.
func (rw *Rewriter) Rewrite(ctx context.Context, target string, opts Options) (*Result, error) {
	targetURL, err := url.Parse(target)
	if err != nil || !targetURL.IsAbs() || targetURL.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}

	resp, err := rw.fetcher.FetchDocument(ctx, targetURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if IsEdgeBlockStatus(resp.StatusCode) {
			log.Printf("[embed-proxy] blocked by upstream (%d), redirecting directly: %s", resp.StatusCode, target)
			return nil, &EdgeBlockedError{Target: target, Status: resp.StatusCode}
		}
		return nil, &UpstreamError{Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse upstream document: %w", err)
	}

	rw.walk(doc, targetURL, opts)

	if err := rw.injectHead(doc, originOf(targetURL)); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := html.Render(&out, doc); err != nil {
		return nil, fmt.Errorf("serialize rewritten document: %w", err)
	}
	return &Result{HTML: out.Bytes()}, nil
}

// walk visits every element in document order. Children are captured before
// processing so that ad-element removal does not break iteration; removed
// subtrees are not descended into.
func (rw *Rewriter) walk(n *html.Node, base *url.URL, opts Options) {
	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling
		if c.Type == html.ElementNode && rw.processElement(c, base, opts) {
			continue
		}
		rw.walk(c, base, opts)
	}
}

// processElement applies the filter/rewrite policy to one element. Returns
// true when the element was removed from the tree.
func (rw *Rewriter) processElement(el *html.Node, base *url.URL, opts Options) bool {
	if el.DataAtom == atom.Script {
		src := attrValue(el, "src")
		if rw.classifier.ShouldStripScript(src, textContent(el)) {
			label := src
			if label == "" {
				label = "[inline]"
			}
			log.Printf("[embed-proxy] stripped script: %s", label)
			el.Parent.RemoveChild(el)
			return true
		}
	}

	for _, name := range rewriteAttrs {
		idx := attrIndex(el, name)
		if idx < 0 {
			continue
		}
		val := strings.TrimSpace(el.Attr[idx].Val)
		if val == "" {
			continue
		}
		// Fragment and pseudo-URL hrefs stay untouched.
		if name == "href" && (strings.HasPrefix(val, "#") || strings.HasPrefix(val, "javascript:")) {
			continue
		}

		abs := resolveURL(base, val)
		if abs == "" {
			continue
		}

		if rw.classifier.IsAdURL(abs) {
			log.Printf("[embed-proxy] stripped ad element: %s", abs)
			el.Parent.RemoveChild(el)
			return true
		}

		if !httpSchemeRe.MatchString(abs) {
			continue
		}

		// Frames recurse through the embed proxy so nested documents get the
		// guard script too; data-src covers lazy-loaded frames. Everything
		// else is a leaf asset.
		if (el.DataAtom == atom.Iframe || name == "data-src") && name != "poster" {
			el.Attr[idx].Val = embedProxyURL(abs, opts.DisableSandbox)
			if opts.DisableSandbox {
				// Provider detects sandboxing; the injected guard is the only
				// containment layer for this frame.
				removeAttr(el, "sandbox")
			} else {
				setAttr(el, "sandbox", sandboxTokens)
			}
		} else {
			el.Attr[idx].Val = assetProxyURL(abs)
		}
	}

	if rw.classifier.IsPopupHandler(attrValue(el, "onclick")) {
		removeAttr(el, "onclick")
	}
	return false
}

// injectHead places the guard script as the first element child of <head> and
// a <base href="{origin}/"> right after it, so any URL the walk missed still
// resolves against the true origin.
func (rw *Rewriter) injectHead(doc *html.Node, origin string) error {
	head := findElement(doc, atom.Head)
	if head == nil {
		// html.Parse always materializes html/head/body; this covers
		// hand-built trees in tests.
		htmlEl := findElement(doc, atom.Html)
		if htmlEl == nil {
			return fmt.Errorf("rewritten document has no html element")
		}
		head = &html.Node{Type: html.ElementNode, Data: "head", DataAtom: atom.Head}
		htmlEl.InsertBefore(head, htmlEl.FirstChild)
	}

	guard, err := parseGuardFragment(rw.guard.Payload())
	if err != nil {
		return err
	}
	head.InsertBefore(guard, head.FirstChild)

	baseTag := &html.Node{
		Type:     html.ElementNode,
		Data:     "base",
		DataAtom: atom.Base,
		Attr:     []html.Attribute{{Key: "href", Val: origin + "/"}},
	}
	head.InsertBefore(baseTag, guard.NextSibling)
	return nil
}

func parseGuardFragment(payload string) (*html.Node, error) {
	headCtx := &html.Node{Type: html.ElementNode, Data: "head", DataAtom: atom.Head}
	nodes, err := html.ParseFragment(strings.NewReader(payload), headCtx)
	if err != nil {
		return nil, fmt.Errorf("parse guard script: %w", err)
	}
	for _, n := range nodes {
		if n.Type == html.ElementNode && n.DataAtom == atom.Script {
			return n, nil
		}
	}
	return nil, fmt.Errorf("guard payload produced no script element")
}

// embedProxyURL builds the recursive proxy URL for a nested frame.
func embedProxyURL(absolute string, disableSandbox bool) string {
	u := EmbedPath + "?url=" + url.QueryEscape(absolute)
	if disableSandbox {
		u += "&ns=1"
	}
	return u
}

// assetProxyURL builds the passthrough URL for a leaf resource.
func assetProxyURL(absolute string) string {
	return AssetPath + "?url=" + url.QueryEscape(absolute)
}

// resolveURL resolves a possibly-relative attribute value against the target
// document URL. Returns "" when the value cannot be resolved.
func resolveURL(base *url.URL, val string) string {
	resolved, err := base.Parse(val)
	if err != nil {
		return ""
	}
	return resolved.String()
}

func attrIndex(el *html.Node, name string) int {
	for i, a := range el.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			return i
		}
	}
	return -1
}

func attrValue(el *html.Node, name string) string {
	if i := attrIndex(el, name); i >= 0 {
		return el.Attr[i].Val
	}
	return ""
}

func setAttr(el *html.Node, name, val string) {
	if i := attrIndex(el, name); i >= 0 {
		el.Attr[i].Val = val
		return
	}
	el.Attr = append(el.Attr, html.Attribute{Key: name, Val: val})
}

func removeAttr(el *html.Node, name string) {
	if i := attrIndex(el, name); i >= 0 {
		el.Attr = append(el.Attr[:i], el.Attr[i+1:]...)
	}
}

// textContent concatenates the direct text children of an element.
func textContent(el *html.Node) string {
	var b strings.Builder
	for c := el.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}
