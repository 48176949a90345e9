package acquisition

import (
	"strings"
	"testing"
)

func TestDetectReactBeautifulDnd(t *testing.T) {
	html := `
	<html><body>
		<div data-rbd-droppable-id="list-1">
			<div data-rbd-draggable-id="item-1"><span>Task 1</span></div>
			<div data-rbd-draggable-id="item-2"><span>Task 2</span></div>
		</div>
	</body></html>`

	if got := DetectDragLibrary(html, nil); got != DragLibraryReactBeautifulDnd {
		t.Fatalf("expected ReactBeautifulDnd from HTML, got %v", got)
	}

	js := []string{"import { DragDropContext, Droppable } from 'react-beautiful-dnd';"}
	if got := DetectDragLibrary("<html><body></body></html>", js); got != DragLibraryReactBeautifulDnd {
		t.Fatalf("expected ReactBeautifulDnd from JS, got %v", got)
	}
}

func TestDetectSortableJS(t *testing.T) {
	html := `
	<html><body>
		<ul class="sortable" id="task-list">
			<li data-item-id="1">Item 1</li>
			<li data-item-id="2">Item 2</li>
		</ul>
	</body></html>`
	js := []string{"var sortable = Sortable.create(document.getElementById('task-list'), { animation: 150 });"}

	if got := DetectDragLibrary(html, js); got != DragLibrarySortableJS {
		t.Fatalf("expected SortableJS, got %v", got)
	}
}

func TestDetectAngularCdk(t *testing.T) {
	html := `
	<html><body>
		<div cdkDropList>
			<div cdkDrag data-item-id="a1">Item A</div>
		</div>
	</body></html>`
	if got := DetectDragLibrary(html, nil); got != DragLibraryAngularCdk {
		t.Fatalf("expected AngularCdk, got %v", got)
	}
}

func TestDetectJQueryUI(t *testing.T) {
	html := `
	<html><body>
		<ul class="ui-sortable">
			<li class="ui-sortable-handle" data-task-id="t1">Task 1</li>
		</ul>
	</body></html>`
	if got := DetectDragLibrary(html, nil); got != DragLibraryJQueryUI {
		t.Fatalf("expected JQueryUI, got %v", got)
	}
}

func TestDetectDndKitFromJS(t *testing.T) {
	js := []string{"import { useDraggable, useDroppable } from '@dnd-kit/core';"}
	if got := DetectDragLibrary("<html><body></body></html>", js); got != DragLibraryDndKit {
		t.Fatalf("expected DndKit, got %v", got)
	}
}

func TestDetectHtml5Native(t *testing.T) {
	html := `
	<html><body>
		<div draggable="true" data-item-id="x1">Drag me</div>
		<div data-drop-zone="zone-1" ondrop="handleDrop(event)">Drop here</div>
	</body></html>`
	if got := DetectDragLibrary(html, nil); got != DragLibraryHtml5Native {
		t.Fatalf("expected Html5Native, got %v", got)
	}
}

func TestDiscoverDragFromPlatformTrello(t *testing.T) {
	actions := DiscoverDragFromPlatform("trello.com")
	if len(actions) == 0 {
		t.Fatal("expected at least one action")
	}
	action := actions[0]
	if action.Confidence <= 0 {
		t.Fatalf("expected positive confidence, got %f", action.Confidence)
	}
	if action.APIEndpoint == nil {
		t.Fatal("expected an API endpoint")
	}
	if action.APIEndpoint.Method != "PUT" {
		t.Fatalf("unexpected method: %s", action.APIEndpoint.Method)
	}
	if !strings.Contains(action.APIEndpoint.URL, "/cards/") {
		t.Fatalf("unexpected url: %s", action.APIEndpoint.URL)
	}
}

func TestDiscoverDragFromPlatformUnknown(t *testing.T) {
	actions := DiscoverDragFromPlatform("unknown-site.example.org")
	if len(actions) != 0 {
		t.Fatalf("expected no actions, got %v", actions)
	}
}

func TestScanJSForDragAPI(t *testing.T) {
	js := `
		const onDragEnd = async (result) => {
			if (!result.destination) return;
			const { source, destination } = result;
			await fetch('/api/reorder', {
				method: 'PUT',
				headers: { 'Content-Type': 'application/json' },
				body: JSON.stringify({ itemId: source.index, newPosition: destination.index })
			});
		};
	`
	endpoint := scanJSForDragAPI([]string{js})
	if endpoint == nil {
		t.Fatal("expected an endpoint")
	}
	if endpoint.URL != "/api/reorder" || endpoint.Method != "PUT" {
		t.Fatalf("unexpected endpoint: %+v", endpoint)
	}
	if endpoint.BodyTemplate == "" {
		t.Fatal("expected a body template")
	}
}

func TestDiscoverDragActionsEmpty(t *testing.T) {
	actions := DiscoverDragActions("", nil)
	if len(actions) != 0 {
		t.Fatalf("expected no actions, got %v", actions)
	}
}

func TestDiscoverDragActionsWithRbdAndApi(t *testing.T) {
	html := `
	<html>
	<head><link rel="canonical" href="https://myapp.example.com/board" /></head>
	<body>
		<div data-rbd-droppable-id="col-1">
			<div data-rbd-draggable-id="card-1">Card 1</div>
		</div>
	</body>
	</html>`
	js := []string{`
		const onDragEnd = (result) => {
			fetch('/api/cards/reorder', {
				method: 'POST',
				body: JSON.stringify({ cardId: result.draggableId, column: result.destination.droppableId })
			});
		};
	`}

	actions := DiscoverDragActions(html, js)
	if len(actions) == 0 {
		t.Fatal("expected at least one action")
	}
	action := actions[0]
	if action.DragLibrary != DragLibraryReactBeautifulDnd {
		t.Fatalf("expected ReactBeautifulDnd, got %v", action.DragLibrary)
	}
	if action.DraggableSelector != "[data-rbd-draggable-id]" {
		t.Fatalf("unexpected draggable selector: %s", action.DraggableSelector)
	}
	if action.APIEndpoint == nil {
		t.Fatal("expected an API endpoint")
	}
	if action.Confidence <= 0.5 {
		t.Fatalf("expected confidence > 0.5, got %f", action.Confidence)
	}
}

func TestExtractDomainFromHTML(t *testing.T) {
	html := `
	<html><head><base href="https://trello.com/b/abc123" /></head><body></body></html>`
	domain, ok := extractDomainFromHTML(html)
	if !ok || domain != "trello.com" {
		t.Fatalf("expected trello.com, got %q (ok=%v)", domain, ok)
	}
}

func TestComputeDragConfidenceRanges(t *testing.T) {
	high := computeDragConfidence(DragLibraryReactBeautifulDnd, &ApiEndpoint{URL: "/api/reorder", Method: "POST"}, "[data-rbd-draggable-id]")
	if high < 0.90 {
		t.Fatalf("expected >= 0.90, got %f", high)
	}
	low := computeDragConfidence(DragLibraryUnknown, nil, "")
	if low != 0 {
		t.Fatalf("expected 0, got %f", low)
	}
}
