package live

import (
	"testing"
	"time"

	"github.com/use-agent/cortex/sitemap"
)

func TestComputeDeltaNoChange(t *testing.T) {
	var old, new [sitemap.FeatureDim]float32
	old[3] = 0.5
	new[3] = 0.5001
	delta := ComputeDelta(0, old, new, nil, changeThreshold, time.Now())
	if delta != nil {
		t.Fatalf("expected no delta, got %+v", delta)
	}
}

func TestComputeDeltaChange(t *testing.T) {
	var old, new [sitemap.FeatureDim]float32
	old[3] = 0.1
	new[3] = 0.9
	now := time.Now()
	delta := ComputeDelta(7, old, new, nil, changeThreshold, now)
	if delta == nil {
		t.Fatal("expected a delta")
	}
	if delta.Node != 7 {
		t.Fatalf("expected node 7, got %d", delta.Node)
	}
	if len(delta.ChangedFeatures) != 1 || delta.ChangedFeatures[0].Dim != 3 {
		t.Fatalf("expected single changed dim 3, got %+v", delta.ChangedFeatures)
	}
}

func TestComputeDeltaRestrictedDims(t *testing.T) {
	var old, new [sitemap.FeatureDim]float32
	old[3] = 0.1
	new[3] = 0.9
	old[10] = 0.1
	new[10] = 0.9
	delta := ComputeDelta(0, old, new, []int{10}, changeThreshold, time.Now())
	if delta == nil {
		t.Fatal("expected a delta restricted to dim 10")
	}
	if len(delta.ChangedFeatures) != 1 || delta.ChangedFeatures[0].Dim != 10 {
		t.Fatalf("expected only dim 10 to be reported, got %+v", delta.ChangedFeatures)
	}
}

func TestSelectWatchNodesIgnoresStaleness(t *testing.T) {
	m := newTestMap()
	nodes := SelectWatchNodes(m, WatchRequest{})
	if len(nodes) != 2 {
		t.Fatalf("expected all nodes regardless of staleness, got %v", nodes)
	}
}
