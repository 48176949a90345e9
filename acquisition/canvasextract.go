package acquisition

import (
	"context"
	_ "embed"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/cortex/renderer"
)

// CanvasAppType is the kind of canvas/WebGL application detected.
type CanvasAppType int

const (
	CanvasAppUnknown CanvasAppType = iota
	CanvasAppSpreadsheet
	CanvasAppDesignTool
	CanvasAppMap
	CanvasAppWhiteboard
	CanvasAppGame
	CanvasAppDiagram
)

// ExtractionTier identifies which canvas-extraction strategy produced a
// CanvasState (§4.2 strategy 7: three-tier canvas extraction).
type ExtractionTier int

const (
	TierNone ExtractionTier = iota
	TierKnownAPI
	TierAccessibilityTree
	TierAppState
)

// GridCell is one populated cell of a spreadsheet-like grid.
type GridCell struct {
	Row, Col uint32
	Value    string
}

// GridData is structured data extracted from a grid-based canvas app.
type GridData struct {
	Rows, Cols uint32
	Cells      []GridCell
	Headers    []string
}

// CanvasElement is an interactive element discovered on a canvas.
type CanvasElement struct {
	Label  string
	Role   string
	Bounds *[4]float32 // x, y, width, height
	Action string
}

// Layer is a layer in a design/whiteboard tool.
type Layer struct {
	Name     string
	Visible  bool
	Children []CanvasElement
}

// TextEntry is one piece of visible text positioned near a canvas.
type TextEntry struct {
	Text string
	X, Y float32
}

// CanvasState is the complete state extracted from a canvas application.
type CanvasState struct {
	AppType             CanvasAppType
	Grid                *GridData
	Layers              []Layer
	TextContent         []TextEntry
	InteractiveElements []CanvasElement
	RawState            any
	ExtractionTier       ExtractionTier
}

//go:embed known_canvas_apis.json
var knownCanvasAPIsJSON []byte

type knownCanvasAPI struct {
	DataAPI string `json:"data_api"`
	Format  string `json:"format"`
	AppType string `json:"app_type"`
}

var (
	canvasAPIRegistryOnce sync.Once
	canvasAPIRegistry     map[string]knownCanvasAPI
)

func loadCanvasAPIRegistry() map[string]knownCanvasAPI {
	canvasAPIRegistryOnce.Do(func() {
		canvasAPIRegistry = make(map[string]knownCanvasAPI)
		_ = json.Unmarshal(knownCanvasAPIsJSON, &canvasAPIRegistry)
	})
	return canvasAPIRegistry
}

// IsCanvasApp is a quick, browser-free heuristic for whether a page is a
// canvas/WebGL application.
func IsCanvasApp(html string) bool {
	return strings.Contains(html, "<canvas") ||
		strings.Contains(html, "getContext('webgl')") ||
		strings.Contains(html, `getContext("webgl")`) ||
		strings.Contains(html, "getContext('2d')") ||
		strings.Contains(html, `getContext("2d")`) ||
		strings.Contains(html, "WebGLRenderingContext")
}

// ExtractViaKnownAPI is Tier 1: fetch structured data directly from a
// known canvas app's REST API (zero browser overhead). Returns nil if
// url does not match any registered app.
func ExtractViaKnownAPI(ctx context.Context, client *HttpClient, pageURL string) *CanvasState {
	var domainKey string
	var config knownCanvasAPI
	found := false
	for prefix, c := range loadCanvasAPIRegistry() {
		if strings.Contains(pageURL, prefix) {
			domainKey, config, found = prefix, c, true
			break
		}
	}
	if !found {
		return nil
	}
	_ = domainKey

	apiURL := config.DataAPI
	if !strings.HasPrefix(apiURL, "http") {
		base, _, _ := strings.Cut(pageURL, "?")
		apiURL = strings.TrimSuffix(base, "/") + config.DataAPI
	}

	resp, err := client.Get(ctx, apiURL, 10*time.Second)
	if err != nil || resp.Status != 200 {
		return nil
	}

	appType := canvasAppTypeFromString(config.AppType)

	var rawState any
	if config.Format == "json" {
		_ = json.Unmarshal(resp.Body, &rawState)
	}

	var grid *GridData
	if appType == CanvasAppSpreadsheet {
		grid = extractGridFromJSON(rawState)
	}
	var layers []Layer
	if appType == CanvasAppDesignTool {
		layers = extractLayersFromJSON(rawState)
	}

	return &CanvasState{
		AppType:        appType,
		Grid:           grid,
		Layers:         layers,
		RawState:       rawState,
		ExtractionTier: TierKnownAPI,
	}
}

const accessibilityTreeJS = `
(() => {
    const result = { elements: [], text: [] };
    const all = document.querySelectorAll('[role], [aria-label], [aria-valuetext]');
    for (const el of all) {
        const rect = el.getBoundingClientRect();
        const entry = {
            role: el.getAttribute('role') || el.tagName.toLowerCase(),
            label: el.getAttribute('aria-label') || el.textContent?.trim()?.substring(0, 200) || '',
            x: rect.x, y: rect.y, w: rect.width, h: rect.height,
            action: el.getAttribute('href') || el.getAttribute('data-action') || null
        };
        if (entry.label && rect.width > 0 && rect.height > 0) {
            result.elements.push(entry);
        }
    }
    const textEls = document.querySelectorAll('canvas ~ *, canvas + *, [aria-live]');
    for (const el of textEls) {
        const text = el.textContent?.trim();
        if (text && text.length > 0 && text.length < 1000) {
            const rect = el.getBoundingClientRect();
            result.text.push({ text, x: rect.x, y: rect.y });
        }
    }
    const grids = document.querySelectorAll('[role="grid"], [role="table"], [role="spreadsheet"]');
    if (grids.length > 0) {
        const grid = grids[0];
        const rows = grid.querySelectorAll('[role="row"]');
        const gridData = { rows: rows.length, cols: 0, cells: [], headers: [] };
        rows.forEach((row, ri) => {
            const cells = row.querySelectorAll('[role="gridcell"], [role="columnheader"], [role="cell"]');
            gridData.cols = Math.max(gridData.cols, cells.length);
            cells.forEach((cell, ci) => {
                const text = cell.textContent?.trim() || '';
                if (cell.getAttribute('role') === 'columnheader') {
                    gridData.headers.push(text);
                }
                if (text) {
                    gridData.cells.push([ri, ci, text]);
                }
            });
        });
        result.grid = gridData;
    }
    return JSON.stringify(result);
})()
`

// ExtractViaAccessibility is Tier 2: read the browser's accessibility
// tree for ARIA-labeled elements and grid/table patterns. Requires one
// render but reads structured data instead of pixels.
func ExtractViaAccessibility(ctx context.Context, rc renderer.RenderContext) *CanvasState {
	raw, err := rc.ExecuteJS(ctx, accessibilityTreeJS)
	if err != nil {
		return nil
	}
	resultStr, ok := raw.(string)
	if !ok {
		return nil
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(resultStr), &parsed); err != nil {
		return nil
	}

	var elements []CanvasElement
	if arr, ok := parsed["elements"].([]any); ok {
		for _, item := range arr {
			el, ok := item.(map[string]any)
			if !ok {
				continue
			}
			label, _ := el["label"].(string)
			role, _ := el["role"].(string)
			if label == "" || role == "" {
				continue
			}
			x := floatOf(el["x"])
			y := floatOf(el["y"])
			w := floatOf(el["w"])
			h := floatOf(el["h"])
			action, _ := el["action"].(string)
			bounds := [4]float32{x, y, w, h}
			elements = append(elements, CanvasElement{Label: label, Role: role, Bounds: &bounds, Action: action})
		}
	}

	var textContent []TextEntry
	if arr, ok := parsed["text"].([]any); ok {
		for _, item := range arr {
			t, ok := item.(map[string]any)
			if !ok {
				continue
			}
			text, _ := t["text"].(string)
			if text == "" {
				continue
			}
			textContent = append(textContent, TextEntry{Text: text, X: floatOf(t["x"]), Y: floatOf(t["y"])})
		}
	}

	grid := gridFromAccessibilityJSON(parsed["grid"])

	var appType CanvasAppType
	switch {
	case grid != nil:
		appType = CanvasAppSpreadsheet
	case len(elements) > 0:
		appType = CanvasAppUnknown
	default:
		return nil
	}

	return &CanvasState{
		AppType:             appType,
		Grid:                grid,
		TextContent:         textContent,
		InteractiveElements: elements,
		ExtractionTier:      TierAccessibilityTree,
	}
}

func gridFromAccessibilityJSON(v any) *GridData {
	g, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	rows := uint32(intOf(g["rows"]))
	cols := uint32(intOf(g["cols"]))
	var cells []GridCell
	if arr, ok := g["cells"].([]any); ok {
		for _, c := range arr {
			triple, ok := c.([]any)
			if !ok || len(triple) != 3 {
				continue
			}
			cells = append(cells, GridCell{
				Row:   uint32(intOf(triple[0])),
				Col:   uint32(intOf(triple[1])),
				Value: strOf(triple[2]),
			})
		}
	}
	var headers []string
	if arr, ok := g["headers"].([]any); ok {
		for _, h := range arr {
			if s, ok := h.(string); ok {
				headers = append(headers, s)
			}
		}
	}
	return &GridData{Rows: rows, Cols: cols, Cells: cells, Headers: headers}
}

const appStateJS = `
(() => {
    const candidates = [
        window.__INITIAL_STATE__,
        window.__NEXT_DATA__,
        window.__NUXT__,
        window.__APP_STATE__,
        window.__PRELOADED_STATE__,
    ];
    for (const state of candidates) {
        if (state && typeof state === 'object') {
            try {
                const json = JSON.stringify(state);
                if (json.length > 10 && json.length < 5000000) {
                    return json;
                }
            } catch(e) {}
        }
    }
    try {
        if (window.__REDUX_DEVTOOLS_EXTENSION__ || window.__store__) {
            const store = window.__store__ || document.querySelector('[data-reactroot]')?.__store__;
            if (store && typeof store.getState === 'function') {
                const state = store.getState();
                const json = JSON.stringify(state);
                if (json.length > 10 && json.length < 5000000) {
                    return json;
                }
            }
        }
    } catch(e) {}
    return null;
})()
`

// ExtractViaAppState is Tier 3: read the application's own JavaScript
// state (window.__INITIAL_STATE__, Next.js/Nuxt payloads, Redux store).
// Brittle by nature since it depends on undocumented globals; preserved
// as-is rather than hardened, per the canvas-extraction open question.
func ExtractViaAppState(ctx context.Context, rc renderer.RenderContext) *CanvasState {
	raw, err := rc.ExecuteJS(ctx, appStateJS)
	if err != nil {
		return nil
	}
	resultStr, ok := raw.(string)
	if !ok || resultStr == "" {
		return nil
	}
	var rawState any
	if err := json.Unmarshal([]byte(resultStr), &rawState); err != nil {
		return nil
	}

	return &CanvasState{
		AppType:        classifyAppFromState(rawState),
		Grid:           extractGridFromJSON(rawState),
		Layers:         extractLayersFromJSON(rawState),
		RawState:       rawState,
		ExtractionTier: TierAppState,
	}
}

func canvasAppTypeFromString(s string) CanvasAppType {
	switch s {
	case "spreadsheet":
		return CanvasAppSpreadsheet
	case "design":
		return CanvasAppDesignTool
	case "map":
		return CanvasAppMap
	case "whiteboard":
		return CanvasAppWhiteboard
	case "diagram":
		return CanvasAppDiagram
	default:
		return CanvasAppUnknown
	}
}

// classifyAppFromState guesses the canvas app type from the shape of its
// JS state blob (§9 SUPPLEMENTED FEATURES: preserved substring heuristic,
// not hardened — brittle by design, per the open question on canvas
// app-state detection).
func classifyAppFromState(state any) CanvasAppType {
	blob, err := json.Marshal(state)
	if err != nil {
		return CanvasAppUnknown
	}
	s := strings.ToLower(string(blob))

	switch {
	case strings.Contains(s, "spreadsheet") || strings.Contains(s, `"cells"`) ||
		(strings.Contains(s, `"rows"`) && strings.Contains(s, `"columns"`)):
		return CanvasAppSpreadsheet
	case strings.Contains(s, `"layers"`) || (strings.Contains(s, `"canvas"`) && strings.Contains(s, `"frames"`)):
		return CanvasAppDesignTool
	case (strings.Contains(s, `"lat"`) && strings.Contains(s, `"lng"`)) || strings.Contains(s, `"latitude"`):
		return CanvasAppMap
	case strings.Contains(s, `"whiteboard"`) || (strings.Contains(s, `"board"`) && strings.Contains(s, `"shapes"`)):
		return CanvasAppWhiteboard
	default:
		return CanvasAppUnknown
	}
}

// extractGridFromJSON tries two common grid shapes: a `cells` map keyed
// by spreadsheet references ("A1"), or a `rows` array of row objects.
func extractGridFromJSON(state any) *GridData {
	obj, ok := state.(map[string]any)
	if !ok {
		return nil
	}

	if cellsObj, ok := obj["cells"].(map[string]any); ok {
		var cells []GridCell
		var headers []string
		var maxRow, maxCol uint32
		for key, val := range cellsObj {
			row, col, ok := parseCellRef(key)
			if !ok {
				continue
			}
			value := valueFieldOf(val)
			if value == "" {
				continue
			}
			cells = append(cells, GridCell{Row: row, Col: col, Value: value})
			if row > maxRow {
				maxRow = row
			}
			if col > maxCol {
				maxCol = col
			}
			if row == 0 {
				headers = append(headers, value)
			}
		}
		if len(cells) > 0 {
			return &GridData{Rows: maxRow + 1, Cols: maxCol + 1, Cells: cells, Headers: headers}
		}
	}

	if rowsArr, ok := obj["rows"].([]any); ok {
		var cells []GridCell
		var headers []string
		var maxCol uint32
		for ri, rowAny := range rowsArr {
			row, ok := rowAny.(map[string]any)
			if !ok {
				continue
			}
			rowCells, ok := row["cells"].([]any)
			if !ok {
				continue
			}
			for ci, cellAny := range rowCells {
				value := valueFieldOf(cellAny)
				if value == "" {
					continue
				}
				cells = append(cells, GridCell{Row: uint32(ri), Col: uint32(ci), Value: value})
				if uint32(ci) > maxCol {
					maxCol = uint32(ci)
				}
				if ri == 0 {
					headers = append(headers, value)
				}
			}
		}
		if len(cells) > 0 {
			return &GridData{Rows: uint32(len(rowsArr)), Cols: maxCol + 1, Cells: cells, Headers: headers}
		}
	}

	return nil
}

func valueFieldOf(v any) string {
	cell, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	val, ok := cell["value"]
	if !ok {
		val, ok = cell["v"]
		if !ok {
			return ""
		}
	}
	return strOf(val)
}

// parseCellRef parses a spreadsheet cell reference like "A1" into
// 0-indexed (row, col).
func parseCellRef(cellRef string) (row, col uint32, ok bool) {
	var colPart, rowPart strings.Builder
	for _, ch := range cellRef {
		switch {
		case ch >= 'A' && ch <= 'Z' || ch >= 'a' && ch <= 'z':
			colPart.WriteRune(ch)
		case ch >= '0' && ch <= '9':
			rowPart.WriteRune(ch)
		default:
			return 0, 0, false
		}
	}
	if colPart.Len() == 0 || rowPart.Len() == 0 {
		return 0, 0, false
	}

	var colNum uint32
	for _, ch := range strings.ToUpper(colPart.String()) {
		colNum = colNum*26 + uint32(ch-'A'+1)
	}
	colNum--

	rowNum, err := strconv.ParseUint(rowPart.String(), 10, 32)
	if err != nil || rowNum == 0 {
		return 0, 0, false
	}

	return uint32(rowNum - 1), colNum, true
}

// extractLayersFromJSON pulls a `layers` (or `document.layers`, or
// `children`) array out of a JS state blob into a layer hierarchy.
func extractLayersFromJSON(state any) []Layer {
	obj, ok := state.(map[string]any)
	if !ok {
		return nil
	}

	layersArr, ok := obj["layers"].([]any)
	if !ok {
		if doc, ok := obj["document"].(map[string]any); ok {
			layersArr, _ = doc["layers"].([]any)
		}
	}
	if layersArr == nil {
		layersArr, _ = obj["children"].([]any)
	}
	if layersArr == nil {
		return nil
	}

	var layers []Layer
	for _, lAny := range layersArr {
		l, ok := lAny.(map[string]any)
		if !ok {
			continue
		}
		name := strOf(l["name"])
		if name == "" {
			name = strOf(l["id"])
		}
		if name == "" {
			continue
		}
		visible := true
		if v, ok := l["visible"].(bool); ok {
			visible = v
		}
		var children []CanvasElement
		if childrenArr, ok := l["children"].([]any); ok {
			for _, cAny := range childrenArr {
				c, ok := cAny.(map[string]any)
				if !ok {
					continue
				}
				label := strOf(c["name"])
				if label == "" {
					label = strOf(c["id"])
				}
				if label == "" {
					continue
				}
				role := strOf(c["type"])
				if role == "" {
					role = "unknown"
				}
				children = append(children, CanvasElement{Label: label, Role: role})
			}
		}
		layers = append(layers, Layer{Name: name, Visible: visible, Children: children})
	}

	if len(layers) == 0 {
		return nil
	}
	return layers
}

func floatOf(v any) float32 {
	if f, ok := v.(float64); ok {
		return float32(f)
	}
	return 0
}

func intOf(v any) int64 {
	if f, ok := v.(float64); ok {
		return int64(f)
	}
	return 0
}

func strOf(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
