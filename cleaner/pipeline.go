package cleaner

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// Cleaner renders a rendered page's raw HTML down to the Markdown PERCEIVE
// and MAP's content samples hand back to an agent: two independent
// extraction strategies — readability and scoring-based pruning — race
// concurrently, the one with more extracted text wins, and the result
// converts to Markdown. The converter is built once and reused across
// requests (goroutine-safe), matching the teacher's cleaner/pipeline.go
// Cleaner and its "auto" extract mode.
type Cleaner struct {
	mdConverter *converter.Converter
}

// NewCleaner builds a Cleaner with a pre-configured Markdown converter.
func NewCleaner() *Cleaner {
	return &Cleaner{mdConverter: newMarkdownConverter()}
}

// Markdown extracts rawHTML's main content and renders it as Markdown,
// resolving relative links/images against sourceURL. Extraction never
// fails outright — a live render always has some content to show an
// agent, even if both extraction strategies missed the article boundary.
func (c *Cleaner) Markdown(rawHTML, sourceURL string) (string, error) {
	article := autoExtract(rawHTML, sourceURL)
	return ToMarkdown(c.mdConverter, article.Content, sourceURL)
}

// autoExtract runs readability and the scoring-based pruner concurrently
// and keeps whichever extracted more text content, ported from the
// teacher's Cleaner.Clean "auto" extract mode.
func autoExtract(rawHTML, sourceURL string) readability.Article {
	var (
		readabilityArticle readability.Article
		prunedHTML         string
		pruneErr           error
	)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		readabilityArticle, _ = ExtractContent(rawHTML, sourceURL)
	}()

	go func() {
		defer wg.Done()
		prunedHTML, pruneErr = PruneContent(rawHTML, sourceURL)
	}()

	wg.Wait()

	if pruneErr != nil {
		slog.Warn("cleaner: pruning failed, using readability result",
			"url", sourceURL, "error", pruneErr,
		)
		return readabilityArticle
	}

	prunedText := stripTags(prunedHTML)
	readabilityText := strings.TrimSpace(readabilityArticle.TextContent)

	// Pick the result with more extracted text; when one side is wildly
	// longer (>10x) it likely pulled in noise rather than content, so
	// prefer the shorter, tighter extraction instead.
	useReadability := len(readabilityText) >= len(prunedText)
	if useReadability && len(prunedText) > minContentLength {
		if len(readabilityText) > 10*len(prunedText) {
			useReadability = false
		}
	} else if !useReadability && len(readabilityText) > minContentLength {
		if len(prunedText) > 10*len(readabilityText) {
			useReadability = true
		}
	}

	if useReadability {
		return readabilityArticle
	}

	return readability.Article{
		Title:       readabilityArticle.Title,
		Byline:      readabilityArticle.Byline,
		Excerpt:     readabilityArticle.Excerpt,
		SiteName:    readabilityArticle.SiteName,
		Language:    readabilityArticle.Language,
		Content:     prunedHTML,
		TextContent: prunedText,
	}
}

// stripTags extracts visible text from an HTML fragment via goquery, for
// comparing extraction strategies by content length.
func stripTags(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	return strings.TrimSpace(doc.Text())
}
