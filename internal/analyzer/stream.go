package analyzer

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"htmlstat/pkg/types"
)

// ErrNoMarkup reports a stream that contained no elements at all.
var ErrNoMarkup = errors.New("no markup in stream")

// Void elements never take children and are not pushed on the open tag stack.
var voidElements = map[string]struct{}{
	"area": {}, "base": {}, "br": {}, "col": {}, "embed": {},
	"hr": {}, "img": {}, "input": {}, "link": {}, "meta": {},
	"param": {}, "source": {}, "track": {}, "wbr": {},
}

// FoldStream tokenizes markup from r and folds it into result without
// building a tree, so arbitrarily large local files can be analyzed in
// constant memory. Unlike tree parsing no implied elements are synthesized;
// only tags literally present in the stream are counted.
func (a *Aggregator) FoldStream(result *types.AnalysisResult, r io.Reader) error {
	z := html.NewTokenizer(r)
	var stack []string
	seen := false

	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return fmt.Errorf("tokenize: %w", err)
			}
			if !seen {
				return ErrNoMarkup
			}
			result.FilesAnalyzed++
			return nil

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			name := strings.ToLower(tok.Data)
			seen = true

			depth := len(stack) + 1
			if depth > result.MaxDepth {
				result.MaxDepth = depth
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				edges := result.TagEdges[parent]
				if edges == nil {
					edges = make(map[string]int)
					result.TagEdges[parent] = edges
				}
				edges[name]++
			}

			stats := result.Tags[name]
			if stats == nil {
				stats = &types.TagStats{
					Name:       name,
					Attributes: make(map[string]*types.AttributeStats),
				}
				result.Tags[name] = stats
			}
			stats.Count++
			for _, attr := range tok.Attr {
				key := strings.ToLower(attr.Key)
				as := stats.Attributes[key]
				if as == nil {
					as = &types.AttributeStats{
						Name:        key,
						ValueCounts: make(map[string]int),
					}
					stats.Attributes[key] = as
				}
				as.Count++
				if _, tracked := as.ValueCounts[attr.Val]; tracked || a.TopValues == 0 || len(as.ValueCounts) < a.TopValues {
					as.ValueCounts[attr.Val]++
				}
			}

			if tok.Type == html.StartTagToken {
				if _, void := voidElements[name]; !void {
					stack = append(stack, name)
				}
			}

		case html.EndTagToken:
			tok := z.Token()
			name := strings.ToLower(tok.Data)
			// Pop to the matching open tag; stray end tags are ignored.
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i] == name {
					stack = stack[:i]
					break
				}
			}
		}
	}
}
