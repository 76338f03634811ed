// Package analyzer folds parsed tag trees into aggregate structural
// statistics. Aggregation is deterministic: folding the same set of trees in
// any order yields the same result.
package analyzer

import (
	"htmlstat/pkg/types"
)

// Aggregator folds tag trees into an AnalysisResult.
//
// TopValues bounds how many distinct values are tracked per attribute; once
// the bound is reached new values are ignored while counts for already
// tracked values keep increasing. Zero means unlimited.
type Aggregator struct {
	TopValues int
}

// New returns an empty result ready to receive folds.
func (a *Aggregator) New() *types.AnalysisResult {
	return &types.AnalysisResult{
		Tags:     make(map[string]*types.TagStats),
		TagEdges: make(map[string]map[string]int),
	}
}

// Fold merges one parsed tree into the running result. The tree's root is at
// depth 1 and every element level below it adds one.
func (a *Aggregator) Fold(result *types.AnalysisResult, root *types.TagNode) {
	if root == nil {
		return
	}
	result.FilesAnalyzed++
	a.walk(result, root, 1)
}

func (a *Aggregator) walk(result *types.AnalysisResult, node *types.TagNode, depth int) {
	if depth > result.MaxDepth {
		result.MaxDepth = depth
	}

	stats := result.Tags[node.Name]
	if stats == nil {
		stats = &types.TagStats{
			Name:       node.Name,
			Attributes: make(map[string]*types.AttributeStats),
		}
		result.Tags[node.Name] = stats
	}
	stats.Count++

	for _, attr := range node.Attributes {
		as := stats.Attributes[attr.Name]
		if as == nil {
			as = &types.AttributeStats{
				Name:        attr.Name,
				ValueCounts: make(map[string]int),
			}
			stats.Attributes[attr.Name] = as
		}
		as.Count++
		if _, tracked := as.ValueCounts[attr.Value]; tracked || a.TopValues == 0 || len(as.ValueCounts) < a.TopValues {
			as.ValueCounts[attr.Value]++
		}
	}

	for _, child := range node.Children {
		edges := result.TagEdges[node.Name]
		if edges == nil {
			edges = make(map[string]int)
			result.TagEdges[node.Name] = edges
		}
		edges[child.Name]++
		a.walk(result, child, depth+1)
	}
}

// Merge folds src into dst. Counts add up, MaxDepth takes the larger value.
// src is left untouched.
func Merge(dst, src *types.AnalysisResult) {
	if src == nil {
		return
	}
	dst.FilesAnalyzed += src.FilesAnalyzed
	if src.MaxDepth > dst.MaxDepth {
		dst.MaxDepth = src.MaxDepth
	}
	for name, stats := range src.Tags {
		existing := dst.Tags[name]
		if existing == nil {
			existing = &types.TagStats{
				Name:       name,
				Attributes: make(map[string]*types.AttributeStats),
			}
			dst.Tags[name] = existing
		}
		existing.Count += stats.Count
		for attrName, as := range stats.Attributes {
			target := existing.Attributes[attrName]
			if target == nil {
				target = &types.AttributeStats{
					Name:        attrName,
					ValueCounts: make(map[string]int),
				}
				existing.Attributes[attrName] = target
			}
			target.Count += as.Count
			for value, n := range as.ValueCounts {
				target.ValueCounts[value] += n
			}
		}
	}
	for parent, children := range src.TagEdges {
		edges := dst.TagEdges[parent]
		if edges == nil {
			edges = make(map[string]int)
			dst.TagEdges[parent] = edges
		}
		for child, n := range children {
			edges[child] += n
		}
	}
}
