package analyzer

import (
	"reflect"
	"testing"

	"htmlstat/internal/parser"
	"htmlstat/pkg/types"
)

func parseDoc(t *testing.T, doc string) *types.TagNode {
	t.Helper()
	root, err := parser.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return root
}

func TestFoldCountsTagsAttributesAndValues(t *testing.T) {
	agg := &Aggregator{}
	result := agg.New()
	agg.Fold(result, parseDoc(t, `<html><body><p class="a">x</p><p class="a">y</p></body></html>`))

	if result.FilesAnalyzed != 1 {
		t.Errorf("files_analyzed = %d", result.FilesAnalyzed)
	}
	if result.MaxDepth != 3 {
		t.Errorf("max_depth = %d, want 3", result.MaxDepth)
	}
	p := result.Tags["p"]
	if p == nil || p.Count != 2 {
		t.Fatalf("p stats = %+v", p)
	}
	class := p.Attributes["class"]
	if class == nil || class.Count != 2 {
		t.Fatalf("class stats = %+v", class)
	}
	if class.ValueCounts["a"] != 2 {
		t.Errorf("value_counts[a] = %d", class.ValueCounts["a"])
	}
}

func TestFoldTagCountEqualsNodeCount(t *testing.T) {
	agg := &Aggregator{}
	result := agg.New()
	root := parseDoc(t, `<html><head><title>t</title></head><body><div><p>a</p><p>b</p></div><div></div></body></html>`)
	agg.Fold(result, root)

	var nodes int
	var count func(*types.TagNode)
	count = func(n *types.TagNode) {
		nodes++
		for _, c := range n.Children {
			count(c)
		}
	}
	count(root)

	var total int
	for _, stats := range result.Tags {
		total += stats.Count
	}
	if total != nodes {
		t.Errorf("sum of tag counts = %d, tree has %d nodes", total, nodes)
	}
}

func TestFoldAttributeCountEqualsValueSum(t *testing.T) {
	agg := &Aggregator{}
	result := agg.New()
	agg.Fold(result, parseDoc(t, `<html><body>
		<a href="/x">1</a><a href="/y">2</a><a href="/x">3</a>
	</body></html>`))

	href := result.Tags["a"].Attributes["href"]
	if href.Count != 3 {
		t.Fatalf("href count = %d", href.Count)
	}
	var sum int
	for _, n := range href.ValueCounts {
		sum += n
	}
	if sum != href.Count {
		t.Errorf("sum(value_counts) = %d, count = %d", sum, href.Count)
	}
}

func TestFoldOrderDoesNotMatter(t *testing.T) {
	docs := []string{
		`<html><body><p class="a">x</p></body></html>`,
		`<html><body><div id="main"><p class="b">y</p></div></body></html>`,
		`<html><head><meta charset="utf-8"></head><body><a href="/">h</a></body></html>`,
	}

	fold := func(order []int) *types.AnalysisResult {
		agg := &Aggregator{}
		result := agg.New()
		for _, i := range order {
			agg.Fold(result, parseDoc(t, docs[i]))
		}
		return result
	}

	want := fold([]int{0, 1, 2})
	for _, order := range [][]int{{2, 1, 0}, {1, 0, 2}, {0, 2, 1}} {
		got := fold(order)
		if !reflect.DeepEqual(want, got) {
			t.Errorf("fold order %v changed the result", order)
		}
	}
}

func TestMergeEqualsSequentialFold(t *testing.T) {
	docA := `<html><body><p class="a">x</p></body></html>`
	docB := `<html><body><div><p class="b">y</p><p class="a">z</p></div></body></html>`

	agg := &Aggregator{}
	sequential := agg.New()
	agg.Fold(sequential, parseDoc(t, docA))
	agg.Fold(sequential, parseDoc(t, docB))

	partA := agg.New()
	agg.Fold(partA, parseDoc(t, docA))
	partB := agg.New()
	agg.Fold(partB, parseDoc(t, docB))
	merged := agg.New()
	Merge(merged, partA)
	Merge(merged, partB)

	if !reflect.DeepEqual(sequential, merged) {
		t.Errorf("merge of partial results differs from sequential fold\nseq: %+v\nmerged: %+v", sequential, merged)
	}
}

func TestTopValuesLimit(t *testing.T) {
	agg := &Aggregator{TopValues: 2}
	result := agg.New()
	agg.Fold(result, parseDoc(t, `<html><body>
		<a href="/1">1</a><a href="/2">2</a><a href="/3">3</a><a href="/1">4</a>
	</body></html>`))

	href := result.Tags["a"].Attributes["href"]
	if href.Count != 4 {
		t.Errorf("count = %d", href.Count)
	}
	if len(href.ValueCounts) != 2 {
		t.Errorf("tracked values = %d, want 2", len(href.ValueCounts))
	}
	// Already tracked values keep counting past the limit.
	if href.ValueCounts["/1"] != 2 {
		t.Errorf("value_counts[/1] = %d", href.ValueCounts["/1"])
	}
}

func TestFoldRecordsEdges(t *testing.T) {
	agg := &Aggregator{}
	result := agg.New()
	agg.Fold(result, parseDoc(t, `<html><body><div><p>a</p><p>b</p></div></body></html>`))

	if result.TagEdges["div"]["p"] != 2 {
		t.Errorf("div->p edges = %d", result.TagEdges["div"]["p"])
	}
	if result.TagEdges["body"]["div"] != 1 {
		t.Errorf("body->div edges = %d", result.TagEdges["body"]["div"])
	}
}

func TestDeepNestingDepth(t *testing.T) {
	agg := &Aggregator{}
	result := agg.New()
	agg.Fold(result, parseDoc(t, `<html><body><div><div><div><span>deep</span></div></div></div></body></html>`))
	if result.MaxDepth != 6 {
		t.Errorf("max_depth = %d, want 6", result.MaxDepth)
	}
}
