package streams

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"strings"
	"testing"
)

const embedPageFixture = `<html><head></head><body>
<div id="player"></div>
<script>
var player = new Playerjs({
  file: "https://edge.cdn.test/hls/movie/master.m3u8?token=abc",
  subtitle: "https://edge.cdn.test/subs/en.vtt"
});
</script>
</body></html>`

func TestVidsrcEmbedPageScrape(t *testing.T) {
	httpc := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/embed/movie/603692" {
			t.Errorf("unexpected path %q", req.URL.Path)
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(embedPageFixture)),
			Header:     make(http.Header),
		}, nil
	})}

	v := newVidsrcExtractor(httpc)
	res, err := v.extractFromEmbedPage(context.Background(), "movie", "603692", 0, 0)
	if err != nil {
		t.Fatalf("extractFromEmbedPage: %v", err)
	}

	if len(res.Sources) != 1 || res.Sources[0].URL != "https://edge.cdn.test/hls/movie/master.m3u8?token=abc" {
		t.Fatalf("unexpected sources: %+v", res.Sources)
	}
	if len(res.Subtitles) != 1 || res.Subtitles[0].URL != "https://edge.cdn.test/subs/en.vtt" {
		t.Fatalf("unexpected subtitles: %+v", res.Subtitles)
	}
}

func TestVidsrcAjaxFlow(t *testing.T) {
	encoded := base64.URLEncoding.EncodeToString([]byte("https://edge.cdn.test/hls/source1.m3u8"))

	httpc := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		var body string
		switch {
		case strings.HasPrefix(req.URL.Path, "/embed/tv/1399"):
			body = `<html><body><a data-id="ep-77" href="#">play</a></body></html>`
		case req.URL.Path == "/ajax/embed/episode/ep-77/sources":
			if req.Header.Get("X-Requested-With") != "XMLHttpRequest" {
				t.Error("missing XHR header on ajax call")
			}
			body = `{"result":[{"id":101,"title":"Server A"},{"id":102,"title":"Server B"}]}`
		case req.URL.Path == "/ajax/embed/source/101":
			body = `{"result":{"url":"` + encoded + `"}}`
		case req.URL.Path == "/ajax/embed/source/102":
			// Key-encrypted payload we cannot decode; must be skipped.
			body = `{"result":{"url":"!!not-base64!!"}}`
		default:
			t.Errorf("unhandled request %s", req.URL.Path)
			body = `{}`
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     make(http.Header),
		}, nil
	})}

	v := newVidsrcExtractor(httpc)
	res, err := v.extractFromAjaxAPI(context.Background(), "tv", "1399", 1, 3)
	if err != nil {
		t.Fatalf("extractFromAjaxAPI: %v", err)
	}

	if len(res.Sources) != 1 {
		t.Fatalf("expected 1 decodable source, got %d", len(res.Sources))
	}
	if res.Sources[0].URL != "https://edge.cdn.test/hls/source1.m3u8" {
		t.Errorf("unexpected source URL %q", res.Sources[0].URL)
	}
	if res.Sources[0].Name != "Server A" {
		t.Errorf("unexpected source name %q", res.Sources[0].Name)
	}
}

func TestDecodeSourceURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{base64.URLEncoding.EncodeToString([]byte("https://cdn.test/x.m3u8")), "https://cdn.test/x.m3u8"},
		{strings.TrimRight(base64.URLEncoding.EncodeToString([]byte("https://cdn.test/y.m3u8")), "="), "https://cdn.test/y.m3u8"},
		{base64.URLEncoding.EncodeToString([]byte("garbage")), ""},
		{"!!not-base64!!", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := decodeSourceURL(tc.in); got != tc.want {
			t.Errorf("decodeSourceURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
