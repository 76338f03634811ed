// Package render serializes analysis results into the supported report and
// export formats. All output is deterministic: tags and attributes are
// ordered by count descending, then name ascending.
package render

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"

	"htmlstat/pkg/types"
)

// Format identifies an output serialization.
type Format string

const (
	FormatJSON  Format = "json"
	FormatCSV   Format = "csv"
	FormatTree  Format = "tree"
	FormatFlat  Format = "flat"
	FormatGraph Format = "graph"
	FormatXLSX  Format = "xlsx"
)

// ErrUnsupportedFormat reports a format name this package cannot produce.
var ErrUnsupportedFormat = errors.New("unsupported format")

// How many attribute values the tree view shows per attribute.
const treeValueLimit = 5

// ParseFormat validates a raw format name.
func ParseFormat(raw string) (Format, error) {
	switch Format(raw) {
	case FormatJSON, FormatCSV, FormatTree, FormatFlat, FormatGraph, FormatXLSX:
		return Format(raw), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, raw)
	}
}

// Render writes result to w in the requested format.
func Render(w io.Writer, result *types.AnalysisResult, format Format) error {
	switch format {
	case FormatJSON:
		return renderJSON(w, result)
	case FormatCSV:
		return renderCSV(w, result)
	case FormatTree:
		return renderTree(w, result)
	case FormatFlat:
		return renderFlat(w, result)
	case FormatGraph:
		return renderGraph(w, result)
	case FormatXLSX:
		return renderXLSX(w, result)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// ContentType returns the MIME type served for a format.
func ContentType(format Format) string {
	switch format {
	case FormatJSON:
		return "application/json; charset=utf-8"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatGraph:
		return "text/vnd.graphviz; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/plain; charset=utf-8"
	}
}

// FileExtension returns the download extension for a format.
func FileExtension(format Format) string {
	switch format {
	case FormatJSON:
		return "json"
	case FormatCSV:
		return "csv"
	case FormatGraph:
		return "dot"
	case FormatXLSX:
		return "xlsx"
	default:
		return "txt"
	}
}

func renderJSON(w io.Writer, result *types.AnalysisResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

var csvHeader = []string{"Tag", "Count", "Attribute", "Attribute Count", "Value", "Value Count"}

func renderCSV(w io.Writer, result *types.AnalysisResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, row := range flattenRows(result) {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// flattenRows produces the shared tabular form used by csv and xlsx: one row
// per tag, then one row per attribute value (or a single valueless row when
// an attribute has no tracked values).
func flattenRows(result *types.AnalysisResult) [][]string {
	var rows [][]string
	for _, tag := range sortedTags(result) {
		count := strconv.Itoa(tag.Count)
		rows = append(rows, []string{tag.Name, count, "", "", "", ""})
		for _, attr := range sortedAttributes(tag) {
			attrCount := strconv.Itoa(attr.Count)
			values := sortedValues(attr)
			if len(values) == 0 {
				rows = append(rows, []string{tag.Name, count, attr.Name, attrCount, "", ""})
				continue
			}
			for _, v := range values {
				rows = append(rows, []string{tag.Name, count, attr.Name, attrCount, v.value, strconv.Itoa(v.count)})
			}
		}
	}
	return rows
}

func renderTree(w io.Writer, result *types.AnalysisResult) error {
	if _, err := fmt.Fprintf(w, "Files analyzed: %d\nMax depth: %d\n\n", result.FilesAnalyzed, result.MaxDepth); err != nil {
		return err
	}
	for _, tag := range sortedTags(result) {
		fmt.Fprintf(w, "%s (%d)\n", tag.Name, tag.Count)
		attrs := sortedAttributes(tag)
		for i, attr := range attrs {
			lastAttr := i == len(attrs)-1
			connector, childPrefix := "├── ", "│   "
			if lastAttr {
				connector, childPrefix = "└── ", "    "
			}
			fmt.Fprintf(w, "%s%s (%d)\n", connector, attr.Name, attr.Count)

			values := sortedValues(attr)
			if len(values) > treeValueLimit {
				values = values[:treeValueLimit]
			}
			for j, v := range values {
				valueConnector := "├── "
				if j == len(values)-1 {
					valueConnector = "└── "
				}
				fmt.Fprintf(w, "%s%s%s (%d)\n", childPrefix, valueConnector, v.value, v.count)
			}
		}
	}
	return nil
}

func renderFlat(w io.Writer, result *types.AnalysisResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TAG\tCOUNT\tATTRIBUTE\tATTR COUNT")
	for _, tag := range sortedTags(result) {
		fmt.Fprintf(tw, "%s\t%d\t\t\n", tag.Name, tag.Count)
		for _, attr := range sortedAttributes(tag) {
			fmt.Fprintf(tw, "\t\t%s\t%d\n", attr.Name, attr.Count)
		}
	}
	return tw.Flush()
}

func renderGraph(w io.Writer, result *types.AnalysisResult) error {
	if _, err := fmt.Fprintln(w, "digraph tags {"); err != nil {
		return err
	}
	fmt.Fprintln(w, "\trankdir=TB;")
	fmt.Fprintln(w, "\tnode [shape=box];")
	for _, tag := range sortedTags(result) {
		fmt.Fprintf(w, "\t%q [label=\"%s (%d)\"];\n", tag.Name, tag.Name, tag.Count)
	}

	parents := make([]string, 0, len(result.TagEdges))
	for parent := range result.TagEdges {
		parents = append(parents, parent)
	}
	sort.Strings(parents)
	for _, parent := range parents {
		children := make([]string, 0, len(result.TagEdges[parent]))
		for child := range result.TagEdges[parent] {
			children = append(children, child)
		}
		sort.Strings(children)
		for _, child := range children {
			fmt.Fprintf(w, "\t%q -> %q [label=\"%d\"];\n", parent, child, result.TagEdges[parent][child])
		}
	}
	_, err := fmt.Fprintln(w, "}")
	return err
}

func sortedTags(result *types.AnalysisResult) []*types.TagStats {
	tags := make([]*types.TagStats, 0, len(result.Tags))
	for _, t := range result.Tags {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Count != tags[j].Count {
			return tags[i].Count > tags[j].Count
		}
		return tags[i].Name < tags[j].Name
	})
	return tags
}

func sortedAttributes(tag *types.TagStats) []*types.AttributeStats {
	attrs := make([]*types.AttributeStats, 0, len(tag.Attributes))
	for _, a := range tag.Attributes {
		attrs = append(attrs, a)
	}
	sort.Slice(attrs, func(i, j int) bool {
		if attrs[i].Count != attrs[j].Count {
			return attrs[i].Count > attrs[j].Count
		}
		return attrs[i].Name < attrs[j].Name
	})
	return attrs
}

type valueCount struct {
	value string
	count int
}

func sortedValues(attr *types.AttributeStats) []valueCount {
	values := make([]valueCount, 0, len(attr.ValueCounts))
	for v, n := range attr.ValueCounts {
		values = append(values, valueCount{value: v, count: n})
	}
	sort.Slice(values, func(i, j int) bool {
		if values[i].count != values[j].count {
			return values[i].count > values[j].count
		}
		return values[i].value < values[j].value
	})
	return values
}
