package live

import (
	"context"
	"testing"

	"github.com/use-agent/cortex/cartography"
	"github.com/use-agent/cortex/renderer"
	"github.com/use-agent/cortex/sitemap"
)

func newTestMap() *sitemap.SiteMap {
	return &sitemap.SiteMap{
		Domain: "example.com",
		URLs:   []string{"https://example.com/a", "https://example.com/b"},
		Nodes: []sitemap.NodeRecord{
			{PageType: sitemap.PageHome, Confidence: 200, Freshness: 10},
			{PageType: sitemap.PageArticle, Confidence: 180, Freshness: 250},
		},
		Features:    make([][sitemap.FeatureDim]float32, 2),
		EdgeIndex:   []uint32{0, 0, 0},
		ActionIndex: []uint32{0, 0, 0},
		ClusterAssignments: []uint16{0, 1},
	}
}

func TestSelectNodesToRefreshExplicit(t *testing.T) {
	m := newTestMap()
	nodes := SelectNodesToRefresh(m, RefreshRequest{Nodes: []uint32{1}})
	if len(nodes) != 1 || nodes[0] != 1 {
		t.Fatalf("expected explicit node list [1], got %v", nodes)
	}
}

func TestSelectNodesToRefreshCluster(t *testing.T) {
	m := newTestMap()
	cluster := uint16(1)
	nodes := SelectNodesToRefresh(m, RefreshRequest{Cluster: &cluster})
	if len(nodes) != 1 || nodes[0] != 1 {
		t.Fatalf("expected cluster-1 node [1], got %v", nodes)
	}
}

func TestSelectNodesToRefreshStaleness(t *testing.T) {
	m := newTestMap()
	threshold := 0.5
	nodes := SelectNodesToRefresh(m, RefreshRequest{StaleThreshold: &threshold})
	if len(nodes) != 1 || nodes[0] != 0 {
		t.Fatalf("expected stale node [0], got %v", nodes)
	}
}

func TestSelectNodesToRefreshDefault(t *testing.T) {
	m := newTestMap()
	nodes := SelectNodesToRefresh(m, RefreshRequest{})
	if len(nodes) != 2 {
		t.Fatalf("expected all nodes, got %v", nodes)
	}
}

func TestDetectChanges(t *testing.T) {
	var old, new [sitemap.FeatureDim]float32
	old[5] = 0.2
	new[5] = 0.2005
	if DetectChanges(old, new, changeThreshold) {
		t.Fatal("expected no change within threshold")
	}
	new[5] = 0.25
	if !DetectChanges(old, new, changeThreshold) {
		t.Fatal("expected change beyond threshold")
	}
}

func TestRefreshUpdatesMap(t *testing.T) {
	m := newTestMap()
	fake := renderer.NewFakeRenderer()
	fake.Navigations["https://example.com/a"] = &renderer.NavigationResult{
		FinalURL: "https://example.com/a", Status: 200, LoadTimeMs: 50,
	}
	loader := &stubExtractionLoader{byURL: map[string]*cartography.ExtractionResult{}}

	result, err := Refresh(context.Background(), fake, loader, m, RefreshRequest{Nodes: []uint32{0}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.UpdatedCount != 1 {
		t.Fatalf("expected 1 update, got %d", result.UpdatedCount)
	}
	if m.Nodes[0].FeatureNorm == 0 {
		t.Fatal("expected non-zero feature norm after refresh")
	}
}
