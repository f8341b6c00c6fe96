package content

import (
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	// IndicatorID is the element id of the in-progress indicator.
	IndicatorID = "translating-indicator"
	// DefaultIndicatorLabel is shown while a translation is running.
	DefaultIndicatorLabel = "Translating..."

	indicatorStyle = "position: fixed; bottom: 20px; right: 20px; " +
		"background-color: rgba(66, 133, 244, 0.9); color: white; padding: 8px 15px; " +
		"border-radius: 4px; box-shadow: 0 2px 5px rgba(0, 0, 0, 0.2); z-index: 10000; " +
		"font-family: Arial, sans-serif; font-size: 14px;"
)

// ShowIndicator appends the in-progress indicator to the document body and
// returns a function that removes it. The release function is safe to call
// more than once. If an indicator is already present, the caller does not
// own it and release is a no-op.
func ShowIndicator(doc *goquery.Document, label string) (release func()) {
	noop := func() {}
	if doc.Find("#" + IndicatorID).Length() > 0 {
		return noop
	}
	body := doc.Find("body").First()
	if body.Length() == 0 {
		return noop
	}
	if label == "" {
		label = DefaultIndicatorLabel
	}

	indicator := &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
		Attr: []html.Attribute{
			{Key: "id", Val: IndicatorID},
			{Key: "style", Val: indicatorStyle},
		},
	}
	indicator.AppendChild(&html.Node{Type: html.TextNode, Data: label})
	body.Nodes[0].AppendChild(indicator)

	var once sync.Once
	return func() {
		once.Do(func() {
			if indicator.Parent != nil {
				indicator.Parent.RemoveChild(indicator)
			}
		})
	}
}
