package cartography

import (
	"strconv"
	"strings"
)

// RobotsRules is a parsed robots.txt, scoped to the user agent it was parsed
// for (§4.2 strategy 1).
type RobotsRules struct {
	Allowed     []string
	Disallowed  []string
	CrawlDelay  *float32
	Sitemaps    []string
}

// IsAllowed reports whether path is allowed under the robots rules. Among
// allow/disallow entries matching the path (prefix, with "*" suffix glob and
// "$" anchor), the longest pattern wins; allow wins ties.
func (r *RobotsRules) IsAllowed(path string) bool {
	longestDisallow := 0
	disallowed := false
	for _, pattern := range r.Disallowed {
		if pathMatches(path, pattern) && len(pattern) > longestDisallow {
			longestDisallow = len(pattern)
			disallowed = true
		}
	}

	longestAllow := 0
	allowed := false
	for _, pattern := range r.Allowed {
		if pathMatches(path, pattern) && len(pattern) > longestAllow {
			longestAllow = len(pattern)
			allowed = true
		}
	}

	if allowed && disallowed {
		return longestAllow >= longestDisallow
	}
	if disallowed {
		return false
	}
	return true
}

// ParseRobots parses a robots.txt document for the given user agent.
// "User-agent: *" rules apply unless a more specific matching group is
// found; sitemap directives are global and collected regardless of which
// group they appear under.
func ParseRobots(txt, userAgent string) *RobotsRules {
	rules := &RobotsRules{}
	inMatchingGroup := true
	foundMatchingGroup := false
	uaLower := strings.ToLower(userAgent)

	for _, rawLine := range strings.Split(txt, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			ua := strings.ToLower(value)
			if ua == uaLower {
				if !foundMatchingGroup {
					// The first group naming this agent replaces the wildcard rules.
					rules.Allowed, rules.Disallowed, rules.CrawlDelay = nil, nil, nil
				}
				inMatchingGroup, foundMatchingGroup = true, true
			} else {
				inMatchingGroup = ua == "*" && !foundMatchingGroup
			}
		case "allow":
			if inMatchingGroup && value != "" {
				rules.Allowed = append(rules.Allowed, value)
			}
		case "disallow":
			if inMatchingGroup && value != "" {
				rules.Disallowed = append(rules.Disallowed, value)
			}
		case "crawl-delay":
			if inMatchingGroup {
				if delay, err := strconv.ParseFloat(value, 32); err == nil {
					d := float32(delay)
					rules.CrawlDelay = &d
				}
			}
		case "sitemap":
			if value != "" {
				rules.Sitemaps = append(rules.Sitemaps, value)
			}
		}
	}

	return rules
}

// pathMatches reports whether path matches a single robots.txt pattern:
// prefix match, "*" suffix glob, or "$" exact-end anchor.
func pathMatches(path, pattern string) bool {
	if pattern == "" {
		return false
	}
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(path, prefix)
	}
	if exact, ok := strings.CutSuffix(pattern, "$"); ok {
		return path == exact
	}
	return strings.HasPrefix(path, pattern)
}
