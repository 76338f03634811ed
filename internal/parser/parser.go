// Package parser turns raw markup into a tag tree suitable for aggregation.
// Only elements survive the conversion; text, comments, doctypes, and
// processing instructions are dropped.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"htmlstat/pkg/types"
)

// ErrParse reports input that does not contain any markup at all.
var ErrParse = errors.New("parse error")

// Parse converts an HTML document into a TagNode tree rooted at the document
// element. Malformed markup is repaired the way browsers repair it, so the
// returned tree always has an <html> root for non-empty input.
func Parse(data []byte) (*types.TagNode, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrParse)
	}

	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	root := firstElement(doc)
	if root == nil {
		return nil, fmt.Errorf("%w: no elements found", ErrParse)
	}
	return convert(root), nil
}

func firstElement(n *html.Node) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

func convert(n *html.Node) *types.TagNode {
	node := &types.TagNode{Name: strings.ToLower(n.Data)}
	for _, attr := range n.Attr {
		node.Attributes = append(node.Attributes, types.Attribute{
			Name:  strings.ToLower(attr.Key),
			Value: attr.Val,
		})
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		node.Children = append(node.Children, convert(c))
	}
	return node
}
