// Package attrparse parses raw block attribute markup into structured values.
package attrparse

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"blockeditor/internal/template"
)

const (
	SourceChildren = template.SourceChildren
	SourceText     = "text"
	SourceHTML     = "html"
)

// ErrUnsupportedSource is returned for attribute sources the parser cannot read.
var ErrUnsupportedSource = errors.New("unsupported attribute source")

// Parser implements template.AttributeParser on top of an HTML5 fragment parser.
type Parser struct{}

// New creates a Parser.
func New() *Parser {
	return &Parser{}
}

// ParseStructured parses raw as an HTML fragment and extracts the value
// described by src. A selector is a comma separated list of tag names; with
// one, extraction starts at the first element in document order whose tag is
// in the list. A selector that matches nothing yields an empty value.
//
// The children source returns a []any of text strings and element nodes of
// the form {"type": tag, "props": {attrs..., "children": []any}}.
func (p *Parser) ParseStructured(raw string, src template.AttributeSource) (any, error) {
	root, err := parseFragment(raw)
	if err != nil {
		return nil, err
	}
	if src.Selector != "" {
		root = findElement(root, selectorTags(src.Selector))
	}

	switch src.Source {
	case SourceChildren:
		if root == nil {
			return []any{}, nil
		}
		return childrenOf(root), nil
	case SourceText:
		if root == nil {
			return "", nil
		}
		return textOf(root), nil
	case SourceHTML:
		if root == nil {
			return "", nil
		}
		return innerHTML(root)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSource, src.Source)
	}
}

// parseFragment parses raw in a <body> context and hangs the resulting nodes
// under a synthetic root element.
func parseFragment(raw string) (*html.Node, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(raw), body)
	if err != nil {
		return nil, fmt.Errorf("parse attribute markup: %w", err)
	}
	root := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return root, nil
}

func selectorTags(selector string) []string {
	var tags []string
	for _, part := range strings.Split(selector, ",") {
		if tag := strings.ToLower(strings.TrimSpace(part)); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func findElement(n *html.Node, tags []string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if slices.Contains(tags, c.Data) {
			return c
		}
		if found := findElement(c, tags); found != nil {
			return found
		}
	}
	return nil
}

func childrenOf(n *html.Node) []any {
	children := []any{}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			if strings.TrimSpace(c.Data) == "" {
				continue
			}
			children = append(children, c.Data)
		case html.ElementNode:
			props := make(map[string]any, len(c.Attr)+1)
			for _, a := range c.Attr {
				props[a.Key] = a.Val
			}
			props["children"] = childrenOf(c)
			children = append(children, map[string]any{
				"type":  c.Data,
				"props": props,
			})
		}
	}
	return children
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func innerHTML(n *html.Node) (string, error) {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&sb, c); err != nil {
			return "", fmt.Errorf("render attribute markup: %w", err)
		}
	}
	return sb.String(), nil
}
