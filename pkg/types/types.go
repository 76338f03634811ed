package types

// Attribute is a single name/value pair as it appeared in the source markup,
// in source order.
type Attribute struct {
	Name  string
	Value string
}

// TagNode is one element of a parsed tag tree. A tree is owned by the request
// that parsed it and is discarded once folded into an AnalysisResult.
type TagNode struct {
	Name       string
	Attributes []Attribute
	Children   []*TagNode
}

// AttributeStats accumulates occurrences of one attribute across all
// instances of the owning tag.
type AttributeStats struct {
	Name        string         `json:"name"`
	Count       int            `json:"count"`
	ValueCounts map[string]int `json:"value_counts"`
}

// TagStats accumulates occurrences of one tag across all analyzed resources.
type TagStats struct {
	Name       string                     `json:"name"`
	Count      int                        `json:"count"`
	Attributes map[string]*AttributeStats `json:"attributes"`
}

// AnalysisResult is the aggregate produced for a single analysis request.
// It is mutated only by the aggregator during the fold phase and treated as
// immutable afterwards, which makes it safe to publish to a shared cache.
//
// TagEdges maps parent tag -> child tag -> number of observed containments;
// it backs the graph export.
type AnalysisResult struct {
	Tags          map[string]*TagStats      `json:"tags"`
	FilesAnalyzed int                       `json:"files_analyzed"`
	MaxDepth      int                       `json:"max_depth"`
	TagEdges      map[string]map[string]int `json:"tag_edges"`
}
