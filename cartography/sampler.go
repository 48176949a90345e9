package cartography

import (
	"math"
	"sort"

	"github.com/use-agent/cortex/sitemap"
)

// ClassifiedURL is one URL that survived classification, carrying the page
// type and confidence the classifier assigned it.
type ClassifiedURL struct {
	URL        string
	PageType   sitemap.PageType
	Confidence float32
}

// minSamplesPerType is the number of per-PageType samples the sampler
// guarantees before filling the remaining budget proportionally (§4.5).
const minSamplesPerType = 2

// SelectSamples chooses a budget-bounded subset of classified URLs for
// browser rendering (§4.5):
//
//  1. Always include the Home node, or the first URL if none is classified
//     as Home.
//  2. Group by PageType, each group sorted by confidence descending.
//  3. Reserve up to 2 samples per type.
//  4. Fill remaining budget proportionally: each type gets
//     ceil((group_size/total) * remaining) more slots, processed in
//     descending allocation order. No node included twice.
func SelectSamples(classified []ClassifiedURL, maxRender int) []string {
	if len(classified) == 0 {
		return nil
	}

	budget := maxRender
	if budget > len(classified) {
		budget = len(classified)
	}

	selected := make([]string, 0, budget)
	seen := make(map[string]struct{}, budget)

	add := func(url string) bool {
		if len(selected) >= budget {
			return false
		}
		if _, ok := seen[url]; ok {
			return true
		}
		seen[url] = struct{}{}
		selected = append(selected, url)
		return true
	}

	homeFound := false
	for _, c := range classified {
		if c.PageType == sitemap.PageHome {
			add(c.URL)
			homeFound = true
			break
		}
	}
	if !homeFound {
		add(classified[0].URL)
	}

	byType := make(map[sitemap.PageType][]ClassifiedURL)
	for _, c := range classified {
		byType[c.PageType] = append(byType[c.PageType], c)
	}
	for pt := range byType {
		entries := byType[pt]
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Confidence > entries[j].Confidence })
		byType[pt] = entries
	}

	for _, entries := range byType {
		n := minSamplesPerType
		if n > len(entries) {
			n = len(entries)
		}
		for _, c := range entries[:n] {
			if !add(c.URL) {
				return selected
			}
		}
	}

	if len(selected) >= budget {
		return selected
	}

	remaining := budget - len(selected)
	total := float64(len(classified))

	type allocation struct {
		pageType sitemap.PageType
		count    int
	}
	allocations := make([]allocation, 0, len(byType))
	for pt, entries := range byType {
		proportion := float64(len(entries)) / total
		alloc := int(math.Ceil(proportion * float64(remaining)))
		allocations = append(allocations, allocation{pt, alloc})
	}
	sort.SliceStable(allocations, func(i, j int) bool { return allocations[i].count > allocations[j].count })

	for _, a := range allocations {
		added := 0
		for _, c := range byType[a.pageType] {
			if added >= a.count {
				break
			}
			if _, dup := seen[c.URL]; dup {
				continue
			}
			if !add(c.URL) {
				return selected
			}
			added++
		}
	}

	return selected
}
