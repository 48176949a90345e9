package acquisition

import (
	"testing"

	"github.com/use-agent/cortex/cartography"
)

func TestPathOf(t *testing.T) {
	cases := map[string]string{
		"https://example.com/a/b": "/a/b",
		"http://example.com":      "/",
		"https://example.com/":    "/",
	}
	for in, want := range cases {
		if got := pathOf(in); got != want {
			t.Errorf("pathOf(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFilterAllowedDedupesAndDropsDisallowed(t *testing.T) {
	robots := cartography.ParseRobots("User-agent: *\nDisallow: /private\n", "Cortex-Agent")

	candidates := []string{
		"https://example.com/a",
		"https://example.com/a",
		"https://example.com/private/x",
		"https://other.com/a",
		"",
	}

	got := filterAllowed(candidates, robots, "example.com")
	if len(got) != 1 || got[0] != "https://example.com/a" {
		t.Fatalf("expected only https://example.com/a to survive, got %v", got)
	}
}
