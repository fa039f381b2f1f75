package components

import (
	"strings"
	"testing"
)

func TestRenderStatusBadge(t *testing.T) {
	t.Parallel()

	for status, want := range map[string]string{
		"ok":        "✓ OK",
		"saved":     "✓ SAVED",
		" WARN ":    "▲ WARN",
		"cancelled": "▲ CANCELLED",
		"fail":      "✗ FAIL",
		"mystery":   "? MYSTERY",
		"":          "? UNKNOWN",
	} {
		if got := RenderStatusBadge(status); !strings.Contains(got, want) {
			t.Errorf("RenderStatusBadge(%q) = %q, want it to show %q", status, got, want)
		}
	}
	if got := RenderStatusBadge("fail", WithBadgeBold(true), nil); !strings.Contains(got, "✗ FAIL") {
		t.Errorf("bold badge = %q", got)
	}
}
