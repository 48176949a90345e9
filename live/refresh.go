package live

import (
	"context"
	"math"

	"github.com/use-agent/cortex/cartography"
	"github.com/use-agent/cortex/renderer"
	"github.com/use-agent/cortex/sitemap"
)

// RefreshRequest selects which nodes REFRESH should re-render.
type RefreshRequest struct {
	Nodes          []uint32
	Cluster        *uint16
	StaleThreshold *float64 // freshness below this (0.0-1.0) is refreshed
}

// RefreshResult summarizes one REFRESH call.
type RefreshResult struct {
	UpdatedCount uint32   `json:"updated_count"`
	ChangedNodes []uint32 `json:"changed_nodes"`
}

// changeThreshold is the per-dimension epsilon for "changed" (§4.10: ε ≈ 0.01).
const changeThreshold = 0.01

// SelectNodesToRefresh resolves a RefreshRequest against the map: an
// explicit node list wins, then cluster membership, then a freshness
// threshold, defaulting to every node.
func SelectNodesToRefresh(m *sitemap.SiteMap, req RefreshRequest) []uint32 {
	if req.Nodes != nil {
		return req.Nodes
	}

	if req.Cluster != nil {
		var nodes []uint32
		for i, c := range m.ClusterAssignments {
			if c == *req.Cluster {
				nodes = append(nodes, uint32(i))
			}
		}
		return nodes
	}

	if req.StaleThreshold != nil {
		var nodes []uint32
		for i, node := range m.Nodes {
			freshness := float64(node.Freshness) / 255.0
			if freshness < *req.StaleThreshold {
				nodes = append(nodes, uint32(i))
			}
		}
		return nodes
	}

	nodes := make([]uint32, len(m.Nodes))
	for i := range nodes {
		nodes[i] = uint32(i)
	}
	return nodes
}

// DetectChanges reports whether any dimension of old and new differs by
// more than threshold.
func DetectChanges(old, new [sitemap.FeatureDim]float32, threshold float32) bool {
	for i := range old {
		if diff := old[i] - new[i]; diff > threshold || -diff > threshold {
			return true
		}
	}
	return false
}

// Refresh re-renders the selected nodes, recomputes their feature
// vectors, and updates the map in place (§4.10).
func Refresh(ctx context.Context, r renderer.Renderer, extractor cartography.ExtractionLoader, m *sitemap.SiteMap, req RefreshRequest) (*RefreshResult, error) {
	nodes := SelectNodesToRefresh(m, req)

	result := &RefreshResult{}
	for _, idx := range nodes {
		if int(idx) >= len(m.Nodes) {
			continue
		}
		url := m.NodeURL(idx)
		oldFeatures := m.NodeFeatures(idx)

		rc, err := r.NewContext(ctx, false)
		if err != nil {
			continue
		}
		perceived, err := Perceive(ctx, rc, extractor, nil, url, false)
		rc.Close()
		if err != nil {
			continue
		}

		newFeatures := denseFeatures(perceived.Features)
		record := m.Nodes[idx]
		record.PageType = perceived.PageType
		record.Confidence = uint8(perceived.Confidence * 255)
		record.FeatureNorm = featureNorm(newFeatures)
		m.UpdateNode(idx, record, newFeatures)

		result.UpdatedCount++
		if DetectChanges(oldFeatures, newFeatures, changeThreshold) {
			result.ChangedNodes = append(result.ChangedNodes, idx)
		}
	}

	return result, nil
}

func denseFeatures(sparse []SparseFeature) [sitemap.FeatureDim]float32 {
	var f [sitemap.FeatureDim]float32
	for _, s := range sparse {
		if s.Dim >= 0 && s.Dim < sitemap.FeatureDim {
			f[s.Dim] = s.Value
		}
	}
	return f
}

func featureNorm(f [sitemap.FeatureDim]float32) float32 {
	var sumSq float32
	for _, v := range f {
		sumSq += v * v
	}
	return float32(math.Sqrt(float64(sumSq)))
}
