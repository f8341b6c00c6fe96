package content

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Mode reports how translated markup was merged into the document.
type Mode int

const (
	// ModeElementSwap replaced the region element with the translated root element.
	ModeElementSwap Mode = iota + 1
	// ModeContentOnly kept the region element and replaced only its children.
	ModeContentOnly
)

func (m Mode) String() string {
	switch m {
	case ModeElementSwap:
		return "element_swap"
	case ModeContentOnly:
		return "content_only"
	default:
		return "unknown"
	}
}

// Reconcile merges translated markup into the document at region.
//
// When the translated root element has the region's tag, it takes the
// region's place and inherits every attribute of the original element.
// Otherwise the original element stays and only its content is replaced.
// After an element swap the region refers to the replacement node.
func Reconcile(region *Region, translated string) (Mode, error) {
	if region == nil || region.node == nil {
		return 0, fmt.Errorf("reconcile: nil region")
	}

	container := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(translated), container)
	if err != nil {
		return 0, fmt.Errorf("parse translated markup: %w", err)
	}

	original := region.node
	if root := firstElement(nodes); root != nil && root.Data == original.Data && original.Parent != nil {
		root.Attr = mergeAttributes(original.Attr, root.Attr)
		parent := original.Parent
		parent.InsertBefore(root, original)
		parent.RemoveChild(original)
		region.node = root
		return ModeElementSwap, nil
	}

	for c := original.FirstChild; c != nil; {
		next := c.NextSibling
		original.RemoveChild(c)
		c = next
	}
	for _, n := range nodes {
		original.AppendChild(n)
	}
	return ModeContentOnly, nil
}

func firstElement(nodes []*html.Node) *html.Node {
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			return n
		}
	}
	return nil
}

// mergeAttributes returns the original attributes in order, followed by
// attributes only the replacement carries. Original values win.
func mergeAttributes(original, replacement []html.Attribute) []html.Attribute {
	merged := make([]html.Attribute, 0, len(original)+len(replacement))
	merged = append(merged, original...)
	for _, a := range replacement {
		if !containsAttr(original, a) {
			merged = append(merged, a)
		}
	}
	return merged
}

func containsAttr(attrs []html.Attribute, a html.Attribute) bool {
	for _, o := range attrs {
		if o.Namespace == a.Namespace && o.Key == a.Key {
			return true
		}
	}
	return false
}
