package sitemap

import "testing"

func mkMap() *SiteMap {
	return &SiteMap{
		Version: 1,
		Domain:  "example.com",
		URLs:    []string{"https://example.com/", "https://example.com/a", "https://example.com/b"},
		Nodes: []NodeRecord{
			{PageType: PageHome, Confidence: 230, Flags: FlagIsRendered, Freshness: 255, FeatureNorm: 1.0},
			{PageType: PageArticle, Confidence: 190, Flags: FlagIsRendered, Freshness: 255, FeatureNorm: 2.0},
			{PageType: PageProductDetail, Confidence: 200, Flags: 0, Freshness: 0, FeatureNorm: 0.0},
		},
		Features: [][FeatureDim]float32{{}, {}, {}},
		EdgeIndex: []uint32{0, 1, 2, 2},
		Edges: []EdgeRecord{
			{TargetNode: 1, EdgeType: EdgeNavigation, Weight: 1},
			{TargetNode: 2, EdgeType: EdgeNavigation, Weight: 1},
		},
		ActionIndex:        []uint32{0, 0, 0, 0},
		Actions:            nil,
		ClusterAssignments: []uint16{0, 0, 1},
		ClusterCentroids:   [][FeatureDim]float32{{}, {}},
	}
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	m := mkMap()
	m.Features[0][0] = 1.0
	m.Features[1][0] = 0.5
	m.Features[1][10] = 0.3

	data, err := Serialize(m)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	got, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	if got.Domain != m.Domain || got.Version != m.Version {
		t.Fatalf("header mismatch: %+v", got)
	}
	if len(got.Nodes) != len(m.Nodes) {
		t.Fatalf("node count mismatch: got %d want %d", len(got.Nodes), len(m.Nodes))
	}
	for i := range m.URLs {
		if got.URLs[i] != m.URLs[i] {
			t.Fatalf("url[%d] = %q, want %q", i, got.URLs[i], m.URLs[i])
		}
	}
	if got.Features[1][10] != 0.3 {
		t.Fatalf("feature mismatch: %v", got.Features[1])
	}
	if len(got.Edges) != len(m.Edges) || got.Edges[0].TargetNode != 1 {
		t.Fatalf("edges mismatch: %+v", got.Edges)
	}
}

func TestDeserializeBadMagic(t *testing.T) {
	data := []byte("XXXX0000")
	if _, err := Deserialize(data); err == nil {
		t.Fatalf("expected error for bad magic")
	}
}

func TestDeserializeBadCRC(t *testing.T) {
	m := mkMap()
	data, err := Serialize(m)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	// Corrupt one byte in the body, past the header.
	data[len(data)-1] ^= 0xFF
	if _, err := Deserialize(data); err == nil {
		t.Fatalf("expected CRC mismatch error")
	}
}

func TestEdgesFromCSR(t *testing.T) {
	m := mkMap()
	edges := m.EdgesFrom(0)
	if len(edges) != 1 || edges[0].TargetNode != 1 {
		t.Fatalf("unexpected edges for node 0: %+v", edges)
	}
	if len(m.EdgesFrom(2)) != 0 {
		t.Fatalf("expected no outgoing edges for node 2")
	}
	if m.EdgesFrom(99) != nil {
		t.Fatalf("expected nil for out-of-range node")
	}
}

func TestFilterByPageType(t *testing.T) {
	m := mkMap()
	q := NodeQuery{PageTypes: map[PageType]struct{}{PageArticle: {}}}
	results := m.Filter(q)
	if len(results) != 1 || results[0].Index != 1 {
		t.Fatalf("unexpected filter results: %+v", results)
	}
}

func TestFilterStableOrderWhenUnsorted(t *testing.T) {
	m := mkMap()
	results := m.Filter(NodeQuery{})
	if len(results) != 3 {
		t.Fatalf("expected all 3 nodes, got %d", len(results))
	}
	for i, r := range results {
		if r.Index != uint32(i) {
			t.Fatalf("expected ascending node-index order, got %+v", results)
		}
	}
}

func TestNearestExcludesZeroNorm(t *testing.T) {
	m := mkMap()
	m.Features[0][0] = 1.0
	m.Features[1][0] = 1.0

	target := [FeatureDim]float32{}
	target[0] = 1.0

	matches := m.Nearest(target, 5)
	for _, match := range matches {
		if match.Index == 2 {
			t.Fatalf("node 2 has zero norm and should be excluded: %+v", matches)
		}
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
}

func TestCosineNearestOneHot(t *testing.T) {
	// Fixture from spec.md §8 item 6: 10 one-hot vectors with a shared small
	// bias at dim 0; target e_3 + 0.1*e_0 should match node 3 first.
	m := &SiteMap{}
	for i := 0; i < 10; i++ {
		var f [FeatureDim]float32
		f[i] = 1.0
		f[0] += 0.05
		var norm float32
		for _, v := range f {
			norm += v * v
		}
		m.URLs = append(m.URLs, "")
		m.Nodes = append(m.Nodes, NodeRecord{FeatureNorm: sqrtf(norm)})
		m.Features = append(m.Features, f)
	}

	var target [FeatureDim]float32
	target[3] = 1.0
	target[0] = 0.1

	matches := m.Nearest(target, 1)
	if len(matches) != 1 || matches[0].Index != 3 {
		t.Fatalf("expected top match node 3, got %+v", matches)
	}
}

func sqrtf(v float32) float32 {
	x := v
	if x == 0 {
		return 0
	}
	// Newton's method; good enough for test fixture precision.
	g := x
	for i := 0; i < 20; i++ {
		g = 0.5 * (g + x/g)
	}
	return g
}

func TestShortestPathWeightedVsHops(t *testing.T) {
	// Fixture from spec.md §8 item 4: 0->1->2->3 each weight 1, shortcut
	// 0->4->3 each weight 5.
	m := &SiteMap{
		URLs: []string{"0", "1", "2", "3", "4"},
		Nodes: []NodeRecord{{}, {}, {}, {}, {}},
		Features: [][FeatureDim]float32{{}, {}, {}, {}, {}},
		EdgeIndex: []uint32{0, 2, 3, 4, 4, 5},
		Edges: []EdgeRecord{
			{TargetNode: 1, Weight: 1},
			{TargetNode: 4, Weight: 5},
			{TargetNode: 2, Weight: 1},
			{TargetNode: 3, Weight: 1},
			{TargetNode: 3, Weight: 5},
		},
		ActionIndex: []uint32{0, 0, 0, 0, 0, 0},
	}

	path := m.ShortestPath(0, 3, PathConstraints{Minimize: MinimizeWeight})
	if path == nil {
		t.Fatalf("expected a path")
	}
	if path.Hops != 3 || path.TotalWeight != 3.0 {
		t.Fatalf("unexpected path: hops=%d weight=%v nodes=%v", path.Hops, path.TotalWeight, path.Nodes)
	}
	want := []uint32{0, 1, 2, 3}
	for i, n := range want {
		if path.Nodes[i] != n {
			t.Fatalf("unexpected path nodes: %v", path.Nodes)
		}
	}
}

func TestShortestPathSameNode(t *testing.T) {
	m := mkMap()
	path := m.ShortestPath(0, 0, PathConstraints{})
	if path == nil {
		t.Fatalf("expected path of length 0")
	}
	if path.Hops != 0 || len(path.Nodes) != 1 || path.Nodes[0] != 0 {
		t.Fatalf("unexpected self path: %+v", path)
	}
}

func TestShortestPathUnreachable(t *testing.T) {
	m := mkMap()
	path := m.ShortestPath(2, 0, PathConstraints{})
	if path != nil {
		t.Fatalf("expected no path from a dead-end node: %+v", path)
	}
}

func TestShortestPathAvoidsAuthEdge(t *testing.T) {
	m := &SiteMap{
		URLs:        []string{"0", "1", "2"},
		Nodes:       []NodeRecord{{}, {}, {}},
		Features:    [][FeatureDim]float32{{}, {}, {}},
		EdgeIndex:   []uint32{0, 1, 2, 2},
		Edges: []EdgeRecord{
			{TargetNode: 1, Weight: 1, Flags: EdgeFlagRequiresAuth},
			{TargetNode: 2, Weight: 1},
		},
		ActionIndex: []uint32{0, 0, 0, 0},
	}
	path := m.ShortestPath(0, 1, PathConstraints{AvoidAuth: true})
	if path != nil {
		t.Fatalf("expected no path when avoiding the only auth-gated edge: %+v", path)
	}
}
