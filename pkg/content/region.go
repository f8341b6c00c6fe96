// Package content finds the main readable region of an HTML document and
// merges translated markup back into it.
package content

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrNoContentFound is returned when no element qualifies as the main content.
var ErrNoContentFound = errors.New("no main content region found")

// skippedElements never contribute to visible text.
var skippedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
}

// Region is a live reference to the element chosen as a page's main content.
// Mutations through Reconcile are visible in the owning document.
type Region struct {
	node *html.Node
}

// NewRegion wraps the first element of sel.
func NewRegion(sel *goquery.Selection) (*Region, error) {
	if sel == nil {
		return nil, fmt.Errorf("nil selection")
	}
	for _, n := range sel.Nodes {
		if n.Type == html.ElementNode {
			return &Region{node: n}, nil
		}
	}
	return nil, fmt.Errorf("selection holds no element")
}

// Node returns the underlying document node.
func (r *Region) Node() *html.Node {
	return r.node
}

// Tag returns the lower-case tag name of the region element.
func (r *Region) Tag() string {
	return r.node.Data
}

// TextLength returns the number of characters of visible text in the region.
func (r *Region) TextLength() int {
	return textLength(r.node)
}

// DescendantCount returns the number of element nodes below the region.
func (r *Region) DescendantCount() int {
	return descendantCount(r.node)
}

// OuterHTML renders the region element including its own tag.
func (r *Region) OuterHTML() (string, error) {
	var b strings.Builder
	if err := html.Render(&b, r.node); err != nil {
		return "", fmt.Errorf("render region: %w", err)
	}
	return b.String(), nil
}

func visibleText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.CommentNode:
			return
		case html.ElementNode:
			if skippedElements[n.DataAtom] || hasAttr(n, "hidden") {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func textLength(n *html.Node) int {
	return utf8.RuneCountInString(visibleText(n))
}

func descendantCount(n *html.Node) int {
	count := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			count++
		}
		count += descendantCount(c)
	}
	return count
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return true
		}
	}
	return false
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}
