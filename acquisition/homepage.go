package acquisition

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// commonLoginPaths are well-known login endpoints tried regardless of
// whether the homepage links to them (§4.2 strategy 3).
var commonLoginPaths = []string{"/login", "/signin", "/auth/login", "/account/login", "/wp-login.php"}

// HomepageLinks is what the homepage-scan strategy extracts: internal
// anchors plus candidate login URLs.
type HomepageLinks struct {
	InternalURLs []string
	LoginURLs    []string
}

// ScanHomepage parses the homepage HTML for internal <a href> links and
// assembles the well-known login path candidates for domain.
func ScanHomepage(homepageHTML, domain string) HomepageLinks {
	var result HomepageLinks
	seen := make(map[string]struct{})

	add := func(u string) {
		if u == "" {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		result.InternalURLs = append(result.InternalURLs, u)
	}

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(homepageHTML)); err == nil {
		doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
			href, _ := s.Attr("href")
			if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
				return
			}
			abs := resolveFeedURL(href, domain)
			if sameDomain(abs, domain) {
				add(abs)
			}
		})
	}

	for _, path := range commonLoginPaths {
		result.LoginURLs = append(result.LoginURLs, fmt.Sprintf("https://%s%s", domain, path))
	}

	return result
}

func sameDomain(rawURL, domain string) bool {
	rest := strings.TrimPrefix(strings.TrimPrefix(rawURL, "https://"), "http://")
	host, _, _ := strings.Cut(rest, "/")
	return strings.EqualFold(host, domain)
}
