package acquisition

import (
	_ "embed"
	"encoding/json"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/cortex/sitemap"
)

// DragLibrary is the drag-and-drop library detected on a page.
type DragLibrary int

const (
	DragLibraryUnknown DragLibrary = iota
	DragLibraryReactBeautifulDnd
	DragLibrarySortableJS
	DragLibraryAngularCdk
	DragLibraryDndKit
	DragLibraryJQueryUI
	DragLibraryHtml5Native
)

// ApiEndpoint is an HTTP endpoint discovered from JS analysis.
type ApiEndpoint struct {
	URL          string
	Method       string
	BodyTemplate string
}

// DragAction is a discovered drag-and-drop interaction, replayable over
// HTTP instead of simulating a mouse drag (§4.2 strategy 7).
type DragAction struct {
	DragLibrary       DragLibrary
	DraggableSelector string
	SourceIDAttr      string
	DropZoneSelector  string
	TargetIDAttr      string
	APIEndpoint       *ApiEndpoint
	PositionParam     string
	OpCode            sitemap.OpCode
	Confidence        float32
}

//go:embed drag_platforms.json
var dragPlatformsJSON []byte

type platformDragAPI struct {
	Method string          `json:"method"`
	Path   string          `json:"path"`
	Body   json.RawMessage `json:"body"`
}

type platformDragConfig struct {
	DragType       string           `json:"drag_type"`
	API            platformDragAPI  `json:"api"`
	SourceSelector string           `json:"source_selector"`
	SourceID       string           `json:"source_id"`
	TargetSelector string           `json:"target_selector"`
	TargetID       string           `json:"target_id"`
}

var (
	dragPlatformRegistryOnce sync.Once
	dragPlatformRegistry     map[string]platformDragConfig
)

func loadDragPlatformRegistry() map[string]platformDragConfig {
	dragPlatformRegistryOnce.Do(func() {
		dragPlatformRegistry = make(map[string]platformDragConfig)
		_ = json.Unmarshal(dragPlatformsJSON, &dragPlatformRegistry)
	})
	return dragPlatformRegistry
}

// DiscoverDragActions layers platform-registry lookup, library detection,
// and JS API extraction into a single drag-and-drop discovery pass.
func DiscoverDragActions(html string, jsBundles []string) []DragAction {
	if domain, ok := extractDomainFromHTML(html); ok {
		if actions := DiscoverDragFromPlatform(domain); len(actions) > 0 {
			return actions
		}
	}

	library := DetectDragLibrary(html, jsBundles)
	if library == DragLibraryUnknown {
		return nil
	}

	draggableSel, sourceIDAttr, dropZoneSel, targetIDAttr := findDragElements(html, library)
	apiEndpoint := scanJSForDragAPI(jsBundles)
	confidence := computeDragConfidence(library, apiEndpoint, draggableSel)

	return []DragAction{{
		DragLibrary:       library,
		DraggableSelector: draggableSel,
		SourceIDAttr:      sourceIDAttr,
		DropZoneSelector:  dropZoneSel,
		TargetIDAttr:      targetIDAttr,
		APIEndpoint:       apiEndpoint,
		PositionParam:     "position",
		OpCode:            sitemap.OpCode{Category: sitemap.CategoryDragDrop, Action: 0x00},
		Confidence:        confidence,
	}}
}

// DetectDragLibrary checks HTML DOM attributes first (most specific
// signal), then JS bundle source, falling back to the least specific
// native-HTML5 signal last (§4.2 strategy 7 detection-rule table).
func DetectDragLibrary(html string, jsBundles []string) DragLibrary {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err == nil {
		if doc.Find("[data-rbd-draggable-id]").Length() > 0 {
			return DragLibraryReactBeautifulDnd
		}
		if doc.Find("[cdkDrag], [cdkdrag]").Length() > 0 {
			return DragLibraryAngularCdk
		}
		if doc.Find(".ui-sortable").Length() > 0 {
			return DragLibraryJQueryUI
		}
		if doc.Find(".sortable").Length() > 0 {
			return DragLibrarySortableJS
		}
	}

	jsCombined := strings.Join(jsBundles, "\n")

	if strings.Contains(jsCombined, "DragDropContext") || strings.Contains(jsCombined, "data-rbd-draggable-id") {
		return DragLibraryReactBeautifulDnd
	}
	if strings.Contains(jsCombined, "useDraggable") || strings.Contains(jsCombined, "@dnd-kit") {
		return DragLibraryDndKit
	}
	if strings.Contains(jsCombined, "Sortable.create") || strings.Contains(jsCombined, "new Sortable") {
		return DragLibrarySortableJS
	}
	if strings.Contains(jsCombined, "cdkDrag") || strings.Contains(jsCombined, "CdkDragDrop") {
		return DragLibraryAngularCdk
	}

	if err == nil && doc.Find(`[draggable="true"]`).Length() > 0 {
		return DragLibraryHtml5Native
	}

	return DragLibraryUnknown
}

// DiscoverDragFromPlatform looks up domain in the embedded platform
// registry (exact match, then suffix match) and returns its
// pre-configured drag action.
func DiscoverDragFromPlatform(domain string) []DragAction {
	registry := loadDragPlatformRegistry()

	config, ok := registry[domain]
	if !ok {
		for key, c := range registry {
			if strings.HasSuffix(domain, key) {
				config, ok = c, true
				break
			}
		}
	}
	if !ok {
		return nil
	}

	var bodyTemplate string
	if len(config.API.Body) > 0 && string(config.API.Body) != "null" {
		bodyTemplate = string(config.API.Body)
	}

	return []DragAction{{
		DragLibrary:       DragLibraryUnknown,
		DraggableSelector: config.SourceSelector,
		SourceIDAttr:      config.SourceID,
		DropZoneSelector:  config.TargetSelector,
		TargetIDAttr:      config.TargetID,
		APIEndpoint: &ApiEndpoint{
			URL:          config.API.Path,
			Method:       config.API.Method,
			BodyTemplate: bodyTemplate,
		},
		PositionParam: "position",
		OpCode:        sitemap.OpCode{Category: sitemap.CategoryDragDrop, Action: 0x00},
		Confidence:    0.95,
	}}
}

var dragHandlerNameRe = regexp.MustCompile(`(?:onDragEnd|handleDrop|onSortEnd|dropHandler|onDragStop)\s*(?:=\s*(?:async\s*)?(?:\([^)]*\)|[a-zA-Z_]\w*)\s*=>|[:=]\s*(?:async\s+)?function\s*\([^)]*\))\s*\{`)
var fetchCallRe = regexp.MustCompile("fetch\\(\\s*['\"`]([^'\"`]+)['\"`]\\s*(?:,\\s*\\{[^}]*method\\s*:\\s*['\"`](\\w+)['\"`])?")
var axiosCallRe = regexp.MustCompile(`axios\.(get|post|put|patch|delete)\(\s*['"` + "`" + `]([^'"` + "`" + `]+)['"` + "`" + `]`)
var ajaxCallRe = regexp.MustCompile(`\$\.ajax\(\s*\{([^}]*)\}`)
var ajaxURLRe = regexp.MustCompile("url\\s*:\\s*['\"`]([^'\"`]+)['\"`]")
var ajaxTypeRe = regexp.MustCompile("type\\s*:\\s*['\"`](\\w+)['\"`]")
var stringifyBodyRe = regexp.MustCompile(`JSON\.stringify\(\s*(\{[^}]+\})`)
var bodyObjRe = regexp.MustCompile(`body\s*:\s*(\{[^}]+\})`)

// scanJSForDragAPI scans drag-handler function bodies (onDragEnd,
// handleDrop, onSortEnd, dropHandler, onDragStop) for the fetch/axios/
// $.ajax call made after a drop.
func scanJSForDragAPI(jsBundles []string) *ApiEndpoint {
	jsCombined := strings.Join(jsBundles, "\n")

	for _, loc := range dragHandlerNameRe.FindAllStringIndex(jsCombined, -1) {
		body := extractBraceBody(jsCombined[loc[1]:])

		if m := fetchCallRe.FindStringSubmatch(body); m != nil {
			method := "POST"
			if m[2] != "" {
				method = strings.ToUpper(m[2])
			}
			return &ApiEndpoint{URL: m[1], Method: method, BodyTemplate: extractDragBodyTemplate(body)}
		}

		if m := axiosCallRe.FindStringSubmatch(body); m != nil {
			return &ApiEndpoint{URL: m[2], Method: strings.ToUpper(m[1]), BodyTemplate: extractDragBodyTemplate(body)}
		}

		if m := ajaxCallRe.FindStringSubmatch(body); m != nil {
			ajaxBlock := m[1]
			if urlMatch := ajaxURLRe.FindStringSubmatch(ajaxBlock); urlMatch != nil {
				method := "POST"
				if typeMatch := ajaxTypeRe.FindStringSubmatch(ajaxBlock); typeMatch != nil {
					method = strings.ToUpper(typeMatch[1])
				}
				return &ApiEndpoint{URL: urlMatch[1], Method: method}
			}
		}
	}

	return nil
}

// extractBraceBody returns the text between a matched opening '{' (s must
// start right after it) and its balancing closing '}', tracking string
// literals so braces inside strings don't affect depth.
func extractBraceBody(s string) string {
	depth := 1
	inString := false
	var stringChar byte
	var prevChar byte

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			if ch == stringChar && prevChar != '\\' {
				inString = false
			}
			prevChar = ch
			continue
		}
		switch ch {
		case '"', '\'', '`':
			inString = true
			stringChar = ch
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i]
			}
		}
		prevChar = ch
	}
	return s
}

func extractDragBodyTemplate(jsBody string) string {
	if m := stringifyBodyRe.FindStringSubmatch(jsBody); m != nil {
		return m[1]
	}
	if m := bodyObjRe.FindStringSubmatch(jsBody); m != nil {
		return m[1]
	}
	return ""
}

// extractDomainFromHTML reads <base href>, <link rel=canonical>, or
// <meta property=og:url> to recover the page's domain.
func extractDomainFromHTML(html string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if domain, ok := hostFromURL(href); ok {
			return domain, true
		}
	}
	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		if domain, ok := hostFromURL(href); ok {
			return domain, true
		}
	}
	if content, ok := doc.Find(`meta[property="og:url"]`).First().Attr("content"); ok {
		if domain, ok := hostFromURL(content); ok {
			return domain, true
		}
	}
	return "", false
}

func hostFromURL(rawURL string) (string, bool) {
	host := hostOf(rawURL)
	if host == "" {
		return "", false
	}
	return host, true
}

func findDragElements(html string, library DragLibrary) (draggableSel, sourceIDAttr, dropZoneSel, targetIDAttr string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		doc = nil
	}

	switch library {
	case DragLibraryReactBeautifulDnd:
		return "[data-rbd-draggable-id]", "data-rbd-draggable-id", "[data-rbd-droppable-id]", "data-rbd-droppable-id"
	case DragLibrarySortableJS:
		return ".sortable > *", findDataIDAttr(doc, ".sortable > *"), ".sortable", findDataIDAttr(doc, ".sortable")
	case DragLibraryAngularCdk:
		return "[cdkDrag], [cdkdrag]", findDataIDAttr(doc, "[cdkDrag], [cdkdrag]"), "[cdkDropList], [cdkdroplist]", findDataIDAttr(doc, "[cdkDropList], [cdkdroplist]")
	case DragLibraryDndKit:
		return "[data-dnd-draggable]", "data-dnd-draggable", "[data-dnd-droppable]", "data-dnd-droppable"
	case DragLibraryJQueryUI:
		return ".ui-sortable > *", findDataIDAttr(doc, ".ui-sortable > *"), ".ui-sortable", findDataIDAttr(doc, ".ui-sortable")
	case DragLibraryHtml5Native:
		return `[draggable="true"]`, findDataIDAttr(doc, `[draggable="true"]`), "[data-drop-zone], [ondrop]", findDataIDAttr(doc, "[data-drop-zone], [ondrop]")
	default:
		return "", "", "", ""
	}
}

// findDataIDAttr finds a data-*-id or data-id attribute on the first
// element matching selector, falling back to "id".
func findDataIDAttr(doc *goquery.Document, selector string) string {
	if doc == nil {
		return "id"
	}
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return "id"
	}
	if node := sel.Get(0); node != nil {
		for _, attr := range node.Attr {
			if strings.HasPrefix(attr.Key, "data-") && (strings.HasSuffix(attr.Key, "-id") || attr.Key == "data-id") {
				return attr.Key
			}
		}
	}
	return "id"
}

func computeDragConfidence(library DragLibrary, apiEndpoint *ApiEndpoint, draggableSelector string) float32 {
	var confidence float32
	switch library {
	case DragLibraryReactBeautifulDnd:
		confidence += 0.40
	case DragLibrarySortableJS, DragLibraryAngularCdk, DragLibraryDndKit:
		confidence += 0.35
	case DragLibraryJQueryUI:
		confidence += 0.30
	case DragLibraryHtml5Native:
		confidence += 0.20
	}
	if apiEndpoint != nil {
		confidence += 0.40
	}
	if draggableSelector != "" {
		confidence += 0.15
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}
