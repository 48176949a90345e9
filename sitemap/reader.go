package sitemap

import (
	"container/heap"
	"math"
	"sort"
)

// FeatureRange constrains one feature dimension to an optional [min, max].
type FeatureRange struct {
	Dimension int
	Min       *float32
	Max       *float32
}

// NodeQuery describes a Filter call (§4.1).
type NodeQuery struct {
	PageTypes      map[PageType]struct{} // nil means "no restriction"
	FeatureRanges  []FeatureRange
	RequireFlags   *NodeFlags
	ExcludeFlags   *NodeFlags
	SortByFeature  *int
	SortAscending  bool
	Limit          int
}

// KeyFeature is one named feature value carried back on a NodeMatch.
type KeyFeature struct {
	Dimension int     `json:"dimension"`
	Value     float32 `json:"value"`
}

// NodeMatch is one query result.
type NodeMatch struct {
	Index      uint32       `json:"index"`
	URL        string       `json:"url"`
	PageType   PageType     `json:"page_type"`
	Confidence float32      `json:"confidence"`
	Features   []KeyFeature `json:"features,omitempty"`
	Similarity *float32     `json:"similarity,omitempty"`
}

// Filter returns nodes matching q, in node-index order unless a sort
// dimension is requested (§4.1).
func (m *SiteMap) Filter(q NodeQuery) []NodeMatch {
	var results []NodeMatch

	for i, node := range m.Nodes {
		if q.PageTypes != nil {
			if _, ok := q.PageTypes[node.PageType]; !ok {
				continue
			}
		}

		features := m.Features[i]
		skip := false
		for _, r := range q.FeatureRanges {
			if r.Dimension >= FeatureDim {
				continue
			}
			val := features[r.Dimension]
			if r.Min != nil && val < *r.Min {
				skip = true
				break
			}
			if r.Max != nil && val > *r.Max {
				skip = true
				break
			}
		}
		if skip {
			continue
		}

		if q.RequireFlags != nil {
			if node.Flags&*q.RequireFlags != *q.RequireFlags {
				continue
			}
		}
		if q.ExcludeFlags != nil {
			if node.Flags&*q.ExcludeFlags != 0 {
				continue
			}
		}

		var keyFeatures []KeyFeature
		for _, r := range q.FeatureRanges {
			if r.Dimension < FeatureDim {
				keyFeatures = append(keyFeatures, KeyFeature{Dimension: r.Dimension, Value: features[r.Dimension]})
			}
		}

		results = append(results, NodeMatch{
			Index:      uint32(i),
			URL:        m.URLs[i],
			PageType:   node.PageType,
			Confidence: float32(node.Confidence) / 255.0,
			Features:   keyFeatures,
		})
	}

	if q.SortByFeature != nil {
		dim := *q.SortByFeature
		if dim < FeatureDim {
			sort.SliceStable(results, func(a, b int) bool {
				va := m.Features[results[a].Index][dim]
				vb := m.Features[results[b].Index][dim]
				if q.SortAscending {
					return va < vb
				}
				return va > vb
			})
		}
	}

	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}

	return results
}

// Nearest returns the top k nodes by descending cosine similarity to target,
// ties broken by lower node index. Nodes with zero feature norm are
// excluded.
func (m *SiteMap) Nearest(target [FeatureDim]float32, k int) []NodeMatch {
	var targetNormSq float32
	for _, f := range target {
		targetNormSq += f * f
	}
	targetNorm := float32(math.Sqrt(float64(targetNormSq)))
	if targetNorm == 0 {
		return nil
	}

	type scored struct {
		idx uint32
		sim float32
	}
	var candidates []scored
	for i, feat := range m.Features {
		nodeNorm := m.Nodes[i].FeatureNorm
		if nodeNorm == 0 {
			continue
		}
		var dot float32
		for d := 0; d < FeatureDim; d++ {
			dot += feat[d] * target[d]
		}
		sim := dot / (nodeNorm * targetNorm)
		candidates = append(candidates, scored{idx: uint32(i), sim: sim})
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		if candidates[a].sim != candidates[b].sim {
			return candidates[a].sim > candidates[b].sim
		}
		return candidates[a].idx < candidates[b].idx
	})

	if k > len(candidates) {
		k = len(candidates)
	}

	out := make([]NodeMatch, 0, k)
	for _, c := range candidates[:k] {
		sim := c.sim
		out = append(out, NodeMatch{
			Index:      c.idx,
			URL:        m.URLs[c.idx],
			PageType:   m.Nodes[c.idx].PageType,
			Confidence: float32(m.Nodes[c.idx].Confidence) / 255.0,
			Similarity: &sim,
		})
	}
	return out
}

// EdgesFrom returns the contiguous slice of outgoing edges for node, using
// the CSR index. Returns nil if node is out of range.
func (m *SiteMap) EdgesFrom(node uint32) []EdgeRecord {
	n := int(node)
	if n >= len(m.Nodes) {
		return nil
	}
	start, end := m.EdgeIndex[n], m.EdgeIndex[n+1]
	return m.Edges[start:end]
}

// ActionsFor returns the contiguous slice of actions for node, using the CSR
// index. Returns nil if node is out of range.
func (m *SiteMap) ActionsFor(node uint32) []ActionRecord {
	n := int(node)
	if n >= len(m.Nodes) {
		return nil
	}
	start, end := m.ActionIndex[n], m.ActionIndex[n+1]
	return m.Actions[start:end]
}

// NodeURL returns the URL for a node index.
func (m *SiteMap) NodeURL(node uint32) string { return m.URLs[node] }

// NodeFeatures returns the feature vector for a node index.
func (m *SiteMap) NodeFeatures(node uint32) [FeatureDim]float32 { return m.Features[node] }

// UpdateNode overwrites a node's record and feature vector in place (used by
// REFRESH/WATCH). No-op if index is out of range.
func (m *SiteMap) UpdateNode(index uint32, record NodeRecord, features [FeatureDim]float32) {
	i := int(index)
	if i < len(m.Nodes) {
		m.Nodes[i] = record
		m.Features[i] = features
	}
}

// PathMinimize selects the edge-cost function for ShortestPath.
type PathMinimize int

const (
	MinimizeHops PathMinimize = iota
	MinimizeWeight
	MinimizeStateChanges
)

// PathConstraints restricts which edges ShortestPath may traverse.
type PathConstraints struct {
	AvoidAuth          bool
	AvoidStateChanges  bool
	Minimize           PathMinimize
}

// Path is the result of a successful ShortestPath call.
type Path struct {
	Hops        uint32   `json:"hops"`
	TotalWeight float32  `json:"total_weight"`
	Nodes       []uint32 `json:"nodes"`
}

// pqItem is one entry in the Dijkstra priority queue.
type pqItem struct {
	cost float32
	node uint32
}

type priorityQueue []pqItem

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].cost != pq[j].cost {
		return pq[i].cost < pq[j].cost
	}
	return pq[i].node < pq[j].node
}
func (pq priorityQueue) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x any)   { *pq = append(*pq, x.(pqItem)) }
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// ShortestPath finds the lowest-cost path from `from` to `to` under
// constraints using Dijkstra on the CSR edge graph (§4.1). Ties on equal
// cost are broken by lower target node index. Returns nil if unreachable or
// either endpoint is out of range.
func (m *SiteMap) ShortestPath(from, to uint32, constraints PathConstraints) *Path {
	n := len(m.Nodes)
	if int(from) >= n || int(to) >= n {
		return nil
	}

	dist := make([]float32, n)
	prev := make([]int64, n)
	for i := range dist {
		dist[i] = float32(math.Inf(1))
		prev[i] = -1
	}
	dist[from] = 0

	pq := &priorityQueue{{cost: 0, node: from}}
	heap.Init(pq)

	for pq.Len() > 0 {
		item := heap.Pop(pq).(pqItem)
		if item.node == to {
			break
		}
		if item.cost > dist[item.node] {
			continue
		}

		edges := m.EdgesFrom(item.node)
		// Visit edges in ascending target-index order so that, combined with
		// the heap's node-index tie-break, ties on total cost resolve to the
		// lower target node index (§4.1).
		order := make([]int, len(edges))
		for i := range order {
			order[i] = i
		}
		sort.Slice(order, func(a, b int) bool { return edges[order[a]].TargetNode < edges[order[b]].TargetNode })

		for _, oi := range order {
			edge := edges[oi]
			target := edge.TargetNode
			if int(target) >= n {
				continue
			}
			if constraints.AvoidAuth && edge.Flags.RequiresAuth() {
				continue
			}
			if constraints.AvoidStateChanges && edge.Flags.ChangesState() {
				continue
			}

			var edgeCost float32
			switch constraints.Minimize {
			case MinimizeWeight:
				edgeCost = float32(edge.Weight)
			case MinimizeStateChanges:
				if edge.Flags.ChangesState() {
					edgeCost = 10
				} else {
					edgeCost = 1
				}
			default:
				edgeCost = 1
			}

			newCost := item.cost + edgeCost
			if newCost < dist[target] {
				dist[target] = newCost
				prev[target] = int64(item.node)
				heap.Push(pq, pqItem{cost: newCost, node: target})
			}
		}
	}

	if math.IsInf(float64(dist[to]), 1) {
		return nil
	}

	var nodes []uint32
	current := int64(to)
	for current != int64(from) {
		nodes = append(nodes, uint32(current))
		current = prev[current]
		if current == -1 {
			return nil
		}
	}
	nodes = append(nodes, from)
	for l, r := 0, len(nodes)-1; l < r; l, r = l+1, r-1 {
		nodes[l], nodes[r] = nodes[r], nodes[l]
	}

	return &Path{
		Hops:        uint32(len(nodes) - 1),
		TotalWeight: dist[to],
		Nodes:       nodes,
	}
}
