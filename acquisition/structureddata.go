package acquisition

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/cortex/cartography"
)

// ExtractStructuredData scans rawHTML for JSON-LD, microdata, and
// OpenGraph metadata, producing the SchemaMetadata shape the classifier
// consumes. Its rules are a copy of those in cartography's DOM extraction
// (extractMetadata), so HTTP-fetched and rendered pages are read by the
// same schema rules.
func ExtractStructuredData(rawHTML string) cartography.SchemaMetadata {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return cartography.SchemaMetadata{}
	}

	var meta cartography.SchemaMetadata

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var payload map[string]any
		if err := json.Unmarshal([]byte(s.Text()), &payload); err != nil {
			return true
		}
		meta.HasJSONLD = true
		if t, ok := payload["@type"].(string); ok {
			meta.JSONLDType = t
		}
		if offers, ok := payload["offers"].(map[string]any); ok {
			if avail, ok := offers["availability"].(string); ok {
				meta.Availability = lastSegment(avail)
			}
		}
		return meta.JSONLDType == ""
	})

	if typ, ok := doc.Find("[itemtype]").First().Attr("itemtype"); ok {
		meta.HasSchemaOrg = true
		meta.SchemaOrgType = lastSegment(typ)
	}

	if og, ok := doc.Find(`meta[property^="og:"]`).First().Attr("content"); ok && og != "" {
		meta.HasOpenGraph = true
	}

	if robots, ok := doc.Find(`meta[name="robots"]`).Attr("content"); ok {
		meta.Robots = strings.ToLower(robots)
	}

	return meta
}

func lastSegment(s string) string {
	if idx := strings.LastIndexByte(s, '/'); idx >= 0 {
		return s[idx+1:]
	}
	return s
}
