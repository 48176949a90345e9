package acquisition

import (
	"context"
	"strings"
	"time"
)

// headScanConcurrency is the default number of in-flight HEAD requests
// (§4.2 strategy 5).
const headScanConcurrency = 20

const headScanTimeout = 5 * time.Second

// HeadResult is per-URL metadata gathered without downloading a body.
type HeadResult struct {
	URL             string
	Status          int
	ContentType     string
	ContentLanguage string
	IsFresh         bool
	IsHTML          bool
}

// ScanHeads issues concurrency-limited HEAD requests against every URL and
// classifies each by status, content-type, language, and freshness.
func ScanHeads(ctx context.Context, client *HttpClient, urls []string) []HeadResult {
	responses := client.HeadMany(ctx, urls, headScanConcurrency, headScanTimeout)

	results := make([]HeadResult, len(urls))
	for i, u := range urls {
		resp := responses[i]
		if resp == nil {
			results[i] = HeadResult{URL: u}
			continue
		}
		results[i] = headResponseToResult(u, resp)
	}
	return results
}

func headResponseToResult(url string, resp *FetchResult) HeadResult {
	contentType := resp.Headers.Get("Content-Type")
	isHTML := contentType == "" || strings.Contains(contentType, "text/html") || strings.Contains(contentType, "application/xhtml")

	cacheControl := strings.ToLower(resp.Headers.Get("Cache-Control"))
	isFresh := strings.Contains(cacheControl, "no-cache") || strings.Contains(cacheControl, "must-revalidate") || resp.Headers.Get("Last-Modified") != ""

	return HeadResult{
		URL:             url,
		Status:          resp.Status,
		ContentType:     contentType,
		ContentLanguage: resp.Headers.Get("Content-Language"),
		IsFresh:         isFresh,
		IsHTML:          isHTML,
	}
}

// FilterHTMLURLs keeps only URLs that resolved to a 200 status HTML page,
// dropping everything else from the renderable set.
func FilterHTMLURLs(results []HeadResult) []string {
	var urls []string
	for _, r := range results {
		if r.Status == 200 && r.IsHTML {
			urls = append(urls, r.URL)
		}
	}
	return urls
}
