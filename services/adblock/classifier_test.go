package adblock

import "testing"

func TestIsAdURLKnownDomains(t *testing.T) {
	c := NewClassifier(nil)

	cases := []struct {
		url  string
		want bool
	}{
		{"https://pagead2.googlesyndication.com/x", true},
		{"https://doubleclick.net/track.gif", true},
		{"https://cdn.taboola.com/libtrc/loader.js", true},
		{"https://static.cloudflareinsights.com/beacon.min.js", true},
		{"https://image.tmdb.org/t/p/w500/poster.jpg", false},
		{"https://player.example.com/hls/master.m3u8", false},
		{"", false},
		{"::not a url::", false},
	}

	for _, tc := range cases {
		if got := c.IsAdURL(tc.url); got != tc.want {
			t.Errorf("IsAdURL(%q) = %v, want %v", tc.url, got, tc.want)
		}
	}
}

func TestIsAdURLPatterns(t *testing.T) {
	c := NewClassifier(nil)

	if !c.IsAdURL("https://cdn.example.com/js/ads.js") {
		t.Error("expected ads.js to be classified as ad")
	}
	if !c.IsAdURL("https://example.com/popup.js") {
		t.Error("expected popup.js to be classified as ad")
	}
	if !c.IsAdURL("https://example.com/overlay-layer.png") {
		t.Error("expected overlay resource to be classified as ad")
	}
	// The analytics pattern must not trip on player telemetry.
	if c.IsAdURL("https://player.example.com/analytics.video/events") {
		t.Error("analytics.video must be exempt from the analytics pattern")
	}
	if !c.IsAdURL("https://cdn.example.com/lib/analytics.js") {
		t.Error("expected plain analytics script to be classified as ad")
	}
}

func TestIsAdURLDeterministic(t *testing.T) {
	c := NewClassifier(nil)
	url := "https://adservice.google.com/adsid/integrator.js"
	first := c.IsAdURL(url)
	for i := 0; i < 100; i++ {
		if c.IsAdURL(url) != first {
			t.Fatal("IsAdURL returned different results for identical input")
		}
	}
}

func TestIsAdURLExtraDomains(t *testing.T) {
	c := NewClassifier(NewBlocklist([]string{"evil-cdn.example"}))
	if !c.IsAdURL("https://static.evil-cdn.example/banner.png") {
		t.Error("extra configured domain not blocked")
	}
}

func TestShouldStripScript(t *testing.T) {
	c := NewClassifier(nil)

	cases := []struct {
		name   string
		src    string
		inline string
		want   bool
	}{
		{"ad src", "https://cdn.example.com/ads.js", "", true},
		{"benign src", "https://cdn.example.com/player.js", "", false},
		{"inline popup", "", `setTimeout(function(){ window.open("https://x.test"); }, 100)`, true},
		{"inline location hijack", "", `top.location = "https://x.test"`, true},
		{"inline adsbygoogle", "", `(adsbygoogle = window.adsbygoogle || []).push({})`, true},
		{"benign inline", "", `console.log("hi")`, false},
		{"both empty", "", "", false},
	}

	for _, tc := range cases {
		if got := c.ShouldStripScript(tc.src, tc.inline); got != tc.want {
			t.Errorf("%s: ShouldStripScript(%q, %q) = %v, want %v", tc.name, tc.src, tc.inline, got, tc.want)
		}
	}
}

func TestIsPopupHandler(t *testing.T) {
	c := NewClassifier(nil)

	if !c.IsPopupHandler(`window.open('https://x.test')`) {
		t.Error("window.open handler not flagged")
	}
	if !c.IsPopupHandler(`doRedirect()`) {
		t.Error("redirect handler not flagged")
	}
	if c.IsPopupHandler(`togglePlayback()`) {
		t.Error("benign handler flagged")
	}
	if c.IsPopupHandler("") {
		t.Error("empty handler flagged")
	}
}
