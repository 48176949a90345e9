package acquisition

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// maxFeedEntries bounds how many entries DiscoverFeeds returns in total
// across every feed it reads (§4.2 strategy 4, §8 boundary behavior).
const maxFeedEntries = 500

const feedFetchTimeout = 10 * time.Second

// commonFeedPaths are tried even when no <link rel=alternate> is present.
var commonFeedPaths = []string{"/feed", "/rss", "/atom.xml", "/feed.xml", "/rss.xml"}

// FeedEntry is one RSS/Atom entry discovered from a feed.
type FeedEntry struct {
	URL       string
	Title     string
	Published string
}

// DiscoverFeedURLs finds feed links from homepage HTML (<link
// rel="alternate" type="application/rss+xml|application/atom+xml">) plus
// the common well-known paths, resolved against domain.
func DiscoverFeedURLs(homepageHTML, domain string) []string {
	var urls []string
	seen := make(map[string]struct{})

	add := func(u string) {
		if u == "" {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}

	if homepageHTML != "" {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(homepageHTML)); err == nil {
			doc.Find(`link[type="application/rss+xml"], link[type="application/atom+xml"]`).Each(func(_ int, s *goquery.Selection) {
				if href, ok := s.Attr("href"); ok {
					add(resolveFeedURL(href, domain))
				}
			})
		}
	}

	for _, path := range commonFeedPaths {
		add(fmt.Sprintf("https://%s%s", domain, path))
	}

	return urls
}

func resolveFeedURL(href, domain string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if strings.HasPrefix(href, "/") {
		return fmt.Sprintf("https://%s%s", domain, href)
	}
	return fmt.Sprintf("https://%s/%s", domain, href)
}

// DiscoverFeeds fetches every candidate feed URL and parses its entries,
// stopping once maxFeedEntries total entries have been collected.
func DiscoverFeeds(ctx context.Context, client *HttpClient, homepageHTML, domain string) []FeedEntry {
	var entries []FeedEntry
	for _, feedURL := range DiscoverFeedURLs(homepageHTML, domain) {
		result, err := client.Get(ctx, feedURL, feedFetchTimeout)
		if err != nil || result.Status != 200 {
			continue
		}
		parsed := ParseFeed(result.Body)
		entries = append(entries, parsed...)
		if len(entries) >= maxFeedEntries {
			return entries[:maxFeedEntries]
		}
	}
	return entries
}

type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Link    string `xml:"link"`
	Title   string `xml:"title"`
	PubDate string `xml:"pubDate"`
	DCDate  string `xml:"date"` // dc:date, namespace-stripped by encoding/xml's local-name match
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title     string `xml:"title"`
	Published string `xml:"published"`
	Updated   string `xml:"updated"`
	Links     []struct {
		Href string `xml:"href,attr"`
	} `xml:"link"`
}

// ParseFeed parses RSS 2.0 or Atom feed XML into entries, preferring RSS's
// pubDate over dc:date and Atom's published over updated (§9 SUPPLEMENTED
// FEATURES field precedence).
func ParseFeed(body []byte) []FeedEntry {
	text := string(body)

	if strings.Contains(text, "<rss") || strings.Contains(text, "<channel>") {
		var feed rssFeed
		if err := xml.Unmarshal(body, &feed); err == nil {
			var entries []FeedEntry
			for _, item := range feed.Channel.Items {
				if item.Link == "" {
					continue
				}
				date := item.PubDate
				if date == "" {
					date = item.DCDate
				}
				entries = append(entries, FeedEntry{URL: item.Link, Title: item.Title, Published: date})
			}
			if len(entries) > 0 {
				return entries
			}
		}
	}

	if strings.Contains(text, "<feed") || strings.Contains(text, "<entry>") {
		var feed atomFeed
		if err := xml.Unmarshal(body, &feed); err == nil {
			var entries []FeedEntry
			for _, e := range feed.Entries {
				if len(e.Links) == 0 || e.Links[0].Href == "" {
					continue
				}
				date := e.Published
				if date == "" {
					date = e.Updated
				}
				entries = append(entries, FeedEntry{URL: e.Links[0].Href, Title: e.Title, Published: date})
			}
			return entries
		}
	}

	return nil
}
