package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gorilla/mux"

	"flashplay/services/adblock"
	"flashplay/services/embedproxy"
)

// embedCSP locks the rewritten document down: inline/eval scripting stays
// allowed because third-party players depend on it, everything else is
// restricted. X-Frame-Options is deliberately never set so the result can be
// embedded in the site's own player iframe.
const embedCSP = "default-src 'self'; " +
	"script-src 'self' 'unsafe-inline' 'unsafe-eval'; " +
	"style-src 'self' 'unsafe-inline'; " +
	"img-src 'self' data: blob: https:; " +
	"media-src 'self' data: blob: https:; " +
	"connect-src 'self' https:; " +
	"frame-src 'self' https:; " +
	"font-src 'self' data: https:; " +
	"object-src 'none'; " +
	"base-uri 'self'; " +
	"form-action 'none'; " +
	"upgrade-insecure-requests"

// sniffLimit bounds how much of an asset body is buffered for content-type
// detection when the upstream omits the header.
const sniffLimit = 3072

type embedRewriter interface {
	Rewrite(ctx context.Context, target string, opts embedproxy.Options) (*embedproxy.Result, error)
}

type assetFetcher interface {
	FetchAsset(ctx context.Context, target *url.URL) (*http.Response, error)
}

type adClassifier interface {
	IsAdURL(rawURL string) bool
}

var (
	_ embedRewriter = (*embedproxy.Rewriter)(nil)
	_ assetFetcher  = (*embedproxy.Fetcher)(nil)
	_ adClassifier  = (*adblock.Classifier)(nil)
)

// EmbedHandler serves the rewriting embed proxy and the asset passthrough.
type EmbedHandler struct {
	Rewriter   embedRewriter
	Fetcher    assetFetcher
	Classifier adClassifier
}

func NewEmbedHandler(rewriter embedRewriter, fetcher assetFetcher, classifier adClassifier) *EmbedHandler {
	return &EmbedHandler{Rewriter: rewriter, Fetcher: fetcher, Classifier: classifier}
}

// Register mounts the embed routes on the router.
func (h *EmbedHandler) Register(r *mux.Router) {
	r.HandleFunc(embedproxy.EmbedPath, h.ServeEmbed).Methods(http.MethodGet)
	r.HandleFunc(embedproxy.AssetPath, h.ServeAsset).Methods(http.MethodGet)
}

// ServeEmbed handles GET /embed?url=&ns=.
func (h *EmbedHandler) ServeEmbed(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		http.Error(w, "Missing url parameter", http.StatusBadRequest)
		return
	}

	opts := embedproxy.Options{DisableSandbox: r.URL.Query().Get("ns") == "1"}

	log.Printf("[embed-proxy] fetching: %s", target)
	res, err := h.Rewriter.Rewrite(r.Context(), target, opts)
	if err != nil {
		var blocked *embedproxy.EdgeBlockedError
		switch {
		case errors.As(err, &blocked):
			// Availability beats ad-blocking: send the client straight to the
			// source when our address is blocked at the upstream edge.
			http.Redirect(w, r, blocked.Target, http.StatusFound)
		case errors.Is(err, embedproxy.ErrInvalidTarget):
			http.Error(w, "Invalid url parameter", http.StatusBadRequest)
		default:
			log.Printf("[embed-proxy] error: %v", err)
			http.Error(w, fmt.Sprintf("Proxy Error: %v", err), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Security-Policy", embedCSP)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(res.HTML)
}

// ServeAsset handles GET /embed/asset?url=. Ad-classified URLs are answered
// with 204 before any upstream fetch; everything else streams through with
// the upstream content type.
func (h *EmbedHandler) ServeAsset(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		http.Error(w, "Missing url parameter", http.StatusBadRequest)
		return
	}

	if h.Classifier.IsAdURL(target) {
		log.Printf("[asset-proxy] blocked ad url: %s", target)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	targetURL, err := url.Parse(target)
	if err != nil || !targetURL.IsAbs() || targetURL.Host == "" {
		http.Error(w, "Invalid url parameter", http.StatusBadRequest)
		return
	}

	resp, err := h.Fetcher.FetchAsset(r.Context(), targetURL)
	if err != nil {
		log.Printf("[asset-proxy] error: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	defer resp.Body.Close()

	// Mirror upstream failures with an empty body so the browser's native
	// resource failure handling kicks in.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		w.WriteHeader(resp.StatusCode)
		return
	}

	body := io.Reader(resp.Body)
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		head := make([]byte, sniffLimit)
		n, _ := io.ReadFull(resp.Body, head)
		head = head[:n]
		contentType = mimetype.Detect(head).String()
		body = io.MultiReader(strings.NewReader(string(head)), resp.Body)
	}
	w.Header().Set("Content-Type", contentType)

	if isMediaContentType(contentType) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	}

	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		log.Printf("[asset-proxy] stream interrupted for %s: %v", target, err)
	}
}

func isMediaContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "video") || strings.Contains(ct, "audio") || strings.Contains(ct, "mpegurl")
}
