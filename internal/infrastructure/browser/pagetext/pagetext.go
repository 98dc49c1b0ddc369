// Package pagetext distills raw page HTML into the ordered visible-text
// lines the snapshot carries. App-agnostic: it strips non-content markup
// and collapses whitespace, nothing more.
package pagetext

import (
	"strings"

	"golang.org/x/net/html"
)

// skippedTags never contribute visible text.
var skippedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"svg":      true,
	"iframe":   true,
	"template": true,
	"head":     true,
	"title":    true,
	"link":     true,
	"meta":     true,
}

const maxLines = 500

// VisibleLines extracts the visible text lines from the document body, in
// document order. Unparseable input yields no lines rather than an error;
// the snapshot simply carries less context.
func VisibleLines(rawHTML string) []string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}

	root := findBody(doc)
	if root == nil {
		root = doc
	}

	var lines []string
	collect(root, &lines)
	return lines
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

func collect(n *html.Node, lines *[]string) {
	if len(*lines) >= maxLines {
		return
	}
	switch n.Type {
	case html.CommentNode:
		return
	case html.ElementNode:
		if skippedTags[n.Data] || isHidden(n) {
			return
		}
	case html.TextNode:
		if text := collapseSpace(n.Data); text != "" {
			*lines = append(*lines, text)
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collect(c, lines)
	}
}

func isHidden(n *html.Node) bool {
	for _, attr := range n.Attr {
		switch attr.Key {
		case "hidden":
			return true
		case "aria-hidden":
			if attr.Val == "true" {
				return true
			}
		case "style":
			if strings.Contains(strings.ReplaceAll(attr.Val, " ", ""), "display:none") {
				return true
			}
		}
	}
	return false
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
