package cartography

import (
	"math"

	"github.com/use-agent/cortex/sitemap"
)

// maxKMeansIterations bounds how long ComputeClusters will run before
// accepting whatever assignment it has reached (§4.6).
const maxKMeansIterations = 20

// ComputeClusters runs k-means over a SiteMap's feature vectors and writes
// ClusterAssignments/ClusterCentroids in place (§4.6):
//
//	k = max(3, floor(sqrt(n/10))), capped at n; for n<30, k = max(1, n/3).
//
// Centroids are initialized by evenly spaced indices into the node list. At
// most 20 iterations run, exiting early once no assignment changes.
func ComputeClusters(m *sitemap.SiteMap) {
	n := len(m.Nodes)
	if n == 0 {
		return
	}

	var k int
	if n < 30 {
		k = n / 3
		if k < 1 {
			k = 1
		}
	} else {
		k = int(math.Sqrt(float64(n) / 10.0))
		if k < 3 {
			k = 3
		}
	}
	if k > n {
		k = n
	}

	centroids := make([][sitemap.FeatureDim]float32, k)
	for i := 0; i < k; i++ {
		idx := i * n / k
		centroids[i] = m.Features[idx]
	}

	assignments := make([]uint16, n)

	for iter := 0; iter < maxKMeansIterations; iter++ {
		changed := false

		for i, feat := range m.Features {
			best := uint16(0)
			bestDist := float32(math.MaxFloat32)
			for c, centroid := range centroids {
				var dist float32
				for d := 0; d < sitemap.FeatureDim; d++ {
					diff := feat[d] - centroid[d]
					dist += diff * diff
				}
				if dist < bestDist {
					bestDist = dist
					best = uint16(c)
				}
			}
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}

		if !changed {
			break
		}

		sums := make([][sitemap.FeatureDim]float32, k)
		counts := make([]uint32, k)
		for i, feat := range m.Features {
			c := assignments[i]
			counts[c]++
			for d := 0; d < sitemap.FeatureDim; d++ {
				sums[c][d] += feat[d]
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				continue
			}
			for d := 0; d < sitemap.FeatureDim; d++ {
				centroids[c][d] = sums[c][d] / float32(counts[c])
			}
		}
	}

	m.ClusterAssignments = assignments
	m.ClusterCentroids = centroids
}

// ClusterType returns the modal PageType among a cluster's members, or
// PageUnknown if the cluster has no members.
func ClusterType(m *sitemap.SiteMap, clusterID uint16) sitemap.PageType {
	counts := make(map[sitemap.PageType]int)
	for i, a := range m.ClusterAssignments {
		if a == clusterID {
			counts[m.Nodes[i].PageType]++
		}
	}

	best := sitemap.PageUnknown
	bestCount := 0
	for pt, count := range counts {
		if count > bestCount {
			bestCount = count
			best = pt
		}
	}
	return best
}

// ClusterMembers returns the node indices belonging to a cluster, in
// ascending order.
func ClusterMembers(m *sitemap.SiteMap, clusterID uint16) []uint32 {
	var members []uint32
	for i, a := range m.ClusterAssignments {
		if a == clusterID {
			members = append(members, uint32(i))
		}
	}
	return members
}
