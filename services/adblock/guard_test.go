package adblock

import (
	"strings"
	"testing"
)

func TestGuardPayloadStable(t *testing.T) {
	g := NewGuard()
	if g.Payload() != g.Payload() {
		t.Fatal("payload changed between calls")
	}
	if NewGuard().Payload() != g.Payload() {
		t.Fatal("payload differs between instances")
	}
}

func TestGuardPayloadContents(t *testing.T) {
	payload := NewGuard().Payload()

	for _, want := range []string{
		`data-guard="` + GuardMarker + `"`,
		"window.open",
		"fakeWindow",
		"onbeforeunload",
		"MutationObserver",
		"sendBeacon",
		"allow-scripts allow-same-origin allow-forms allow-presentation",
		"document.createElement",
		"HTMLElement.prototype.click",
	} {
		if !strings.Contains(payload, want) {
			t.Errorf("guard payload missing %q", want)
		}
	}

	if strings.Contains(payload, "__") {
		t.Error("guard payload contains unexpanded template placeholders")
	}
	if !strings.HasPrefix(payload, "<script") || !strings.HasSuffix(payload, "</script>") {
		t.Error("guard payload is not a script element")
	}
}

func TestGuardPayloadWhitelistsPlayers(t *testing.T) {
	payload := NewGuard().Payload()
	for _, prefix := range playerClassPrefixes {
		if !strings.Contains(payload, "'"+prefix+"'") {
			t.Errorf("guard payload missing player class prefix %q", prefix)
		}
	}
}
