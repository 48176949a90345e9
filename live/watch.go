package live

import (
	"context"
	"time"

	"github.com/use-agent/cortex/acquisition"
	"github.com/use-agent/cortex/cartography"
	"github.com/use-agent/cortex/renderer"
	"github.com/use-agent/cortex/sitemap"
)

// WatchRequest parameterizes a WATCH poll loop (§4.10).
type WatchRequest struct {
	Domain   string
	Nodes    []uint32
	Cluster  *uint16
	Features []int // dimensions to monitor; nil means all
	Interval time.Duration
}

// WatchDelta is one detected change during a WATCH poll.
type WatchDelta struct {
	Node            uint32           `json:"node"`
	ChangedFeatures []ChangedFeature `json:"changed_features"`
	Timestamp       time.Time        `json:"timestamp"`
}

// ChangedFeature is one feature dimension whose value moved.
type ChangedFeature struct {
	Dim int     `json:"dim"`
	Old float32 `json:"old"`
	New float32 `json:"new"`
}

// SelectWatchNodes resolves a WatchRequest's node/cluster selector the
// same way REFRESH does, ignoring staleness (WATCH always re-renders the
// requested set regardless of freshness).
func SelectWatchNodes(m *sitemap.SiteMap, req WatchRequest) []uint32 {
	return SelectNodesToRefresh(m, RefreshRequest{Nodes: req.Nodes, Cluster: req.Cluster})
}

// ComputeDelta compares feature vectors across the watched dimensions
// (default: all 128) and returns a WatchDelta if any moved by more than
// threshold.
func ComputeDelta(node uint32, old, new [sitemap.FeatureDim]float32, watchFeatures []int, threshold float32, now time.Time) *WatchDelta {
	dims := watchFeatures
	if dims == nil {
		dims = make([]int, sitemap.FeatureDim)
		for i := range dims {
			dims[i] = i
		}
	}

	var changed []ChangedFeature
	for _, dim := range dims {
		if dim < 0 || dim >= sitemap.FeatureDim {
			continue
		}
		o, n := old[dim], new[dim]
		if diff := o - n; diff > threshold || -diff > threshold {
			changed = append(changed, ChangedFeature{Dim: dim, Old: o, New: n})
		}
	}

	if len(changed) == 0 {
		return nil
	}
	return &WatchDelta{Node: node, ChangedFeatures: changed, Timestamp: now}
}

// FetchNodeFeaturesHTTP re-encodes a node's features from a plain HTTP GET
// plus structured-data extraction, avoiding a browser render entirely.
// It only succeeds when the page carries JSON-LD or OpenGraph data;
// callers fall back to a full render otherwise (§4.10 WATCH preference).
func FetchNodeFeaturesHTTP(ctx context.Context, client *acquisition.HttpClient, url string) (*[sitemap.FeatureDim]float32, bool) {
	resp, err := client.Get(ctx, url, 10*time.Second)
	if err != nil || resp.Status != 200 {
		return nil, false
	}

	meta := acquisition.ExtractStructuredData(string(resp.Body))
	if !meta.HasJSONLD && !meta.HasOpenGraph {
		return nil, false
	}

	extraction, err := cartography.ExtractFromHTML(string(resp.Body), resp.FinalURL)
	if err != nil {
		return nil, false
	}

	nav := &renderer.NavigationResult{FinalURL: resp.FinalURL, Status: resp.Status, LoadTimeMs: 0}
	pageType, confidence := cartography.ClassifyPage(extraction, resp.FinalURL)
	features := cartography.EncodeFeatures(extraction, nav, resp.FinalURL, pageType, confidence)
	return &features, true
}

// Watch polls the selected nodes every interval, preferring the HTTP
// structured-data path and falling back to a full render, yielding a
// WatchDelta whenever a watched dimension moves. Stops when duration
// elapses or ctx is cancelled. When onDelta is non-nil it is invoked as
// each delta is found, letting a caller stream them out (e.g. over SSE)
// instead of waiting for the full duration to collect the batch Watch
// also returns.
func Watch(ctx context.Context, r renderer.Renderer, client *acquisition.HttpClient, extractor cartography.ExtractionLoader, m *sitemap.SiteMap, req WatchRequest, duration time.Duration, onDelta func(WatchDelta)) []WatchDelta {
	nodes := SelectWatchNodes(m, req)
	deadline := time.Now().Add(duration)

	var deltas []WatchDelta
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return deltas
		default:
		}

		for _, idx := range nodes {
			if int(idx) >= len(m.Nodes) {
				continue
			}
			url := m.NodeURL(idx)
			oldFeatures := m.NodeFeatures(idx)

			newFeatures, ok := FetchNodeFeaturesHTTP(ctx, client, url)
			if !ok {
				rc, err := r.NewContext(ctx, false)
				if err != nil {
					continue
				}
				perceived, err := Perceive(ctx, rc, extractor, nil, url, false)
				rc.Close()
				if err != nil {
					continue
				}
				dense := denseFeatures(perceived.Features)
				newFeatures = &dense
			}

			if delta := ComputeDelta(idx, oldFeatures, *newFeatures, req.Features, changeThreshold, time.Now()); delta != nil {
				record := m.Nodes[idx]
				record.FeatureNorm = featureNorm(*newFeatures)
				m.UpdateNode(idx, record, *newFeatures)
				deltas = append(deltas, *delta)
				if onDelta != nil {
					onDelta(*delta)
				}
			}
		}

		select {
		case <-ctx.Done():
			return deltas
		case <-time.After(req.Interval):
		}
	}

	return deltas
}
