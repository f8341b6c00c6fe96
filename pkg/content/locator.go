package content

import (
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
)

const (
	// DefaultSelectorMinText is the visible text a priority selector match must exceed.
	DefaultSelectorMinText = 100
	// DefaultCandidateMinText is the visible text a density candidate must exceed.
	DefaultCandidateMinText = 200
	// DefaultCandidateSelector enumerates generic block containers for the density scan.
	DefaultCandidateSelector = "div, section, article"
)

// DefaultSelectors lists conventional content containers, most specific first.
var DefaultSelectors = []string{
	"article",
	"main",
	".content",
	"#content",
	".post-content",
	".article-content",
	".main-content",
}

// DefaultStopTokens mark containers that are page chrome rather than content.
var DefaultStopTokens = []string{"nav", "sidebar", "footer", "header"}

// Locator picks the element holding a page's main content.
type Locator struct {
	// Selectors are tried in order; the first qualifying match wins.
	Selectors []string
	// SelectorMinText is the text length a selector match must exceed.
	SelectorMinText int
	// CandidateSelector enumerates density scan candidates.
	CandidateSelector string
	// CandidateMinText is the text length a density candidate must exceed.
	CandidateMinText int
	// StopTokens exclude candidates whose id or class contains any of them.
	StopTokens []string

	logger *logrus.Logger
}

// NewLocator creates a Locator with the default selectors and thresholds.
func NewLocator(logger *logrus.Logger) *Locator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Locator{
		Selectors:         DefaultSelectors,
		SelectorMinText:   DefaultSelectorMinText,
		CandidateSelector: DefaultCandidateSelector,
		CandidateMinText:  DefaultCandidateMinText,
		StopTokens:        DefaultStopTokens,
		logger:            logger,
	}
}

type candidate struct {
	node       *html.Node
	textLength int
	density    float64
}

// Locate returns the main content region of doc, or ErrNoContentFound.
func (l *Locator) Locate(doc *goquery.Document) (*Region, error) {
	if region := l.scanSelectors(doc); region != nil {
		return region, nil
	}
	if region := l.scanDensity(doc); region != nil {
		return region, nil
	}
	l.logger.Debug("No content region qualified")
	return nil, ErrNoContentFound
}

func (l *Locator) scanSelectors(doc *goquery.Document) *Region {
	for _, selector := range l.Selectors {
		match := doc.Find(selector).First()
		if match.Length() == 0 {
			continue
		}
		node := match.Nodes[0]
		length := textLength(node)
		if length > l.SelectorMinText {
			l.logger.WithFields(logrus.Fields{
				"selector":    selector,
				"text_length": length,
			}).Debug("Content region matched priority selector")
			return &Region{node: node}
		}
	}
	return nil
}

func (l *Locator) scanDensity(doc *goquery.Document) *Region {
	var candidates []candidate
	doc.Find(l.CandidateSelector).Each(func(_ int, s *goquery.Selection) {
		node := s.Nodes[0]
		if l.isChrome(node) {
			return
		}
		length := textLength(node)
		descendants := descendantCount(node)
		if length <= l.CandidateMinText || descendants == 0 {
			return
		}
		candidates = append(candidates, candidate{
			node:       node,
			textLength: length,
			density:    float64(length) / float64(descendants),
		})
	})
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].density > candidates[j].density
	})

	best := candidates[0]
	l.logger.WithFields(logrus.Fields{
		"tag":         best.node.Data,
		"text_length": best.textLength,
		"density":     best.density,
		"candidates":  len(candidates),
	}).Debug("Content region chosen by text density")
	return &Region{node: best.node}
}

// isChrome reports whether the id or class of n names navigation or layout chrome.
func (l *Locator) isChrome(n *html.Node) bool {
	id := strings.ToLower(attrValue(n, "id"))
	class := strings.ToLower(attrValue(n, "class"))
	for _, token := range l.StopTokens {
		if id != "" && strings.Contains(id, token) {
			return true
		}
		if class != "" && strings.Contains(class, token) {
			return true
		}
	}
	return false
}
