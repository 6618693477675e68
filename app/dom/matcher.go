package dom

import (
	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// StylesheetLinks matches every stylesheet link element.
var StylesheetLinks = cascadia.MustCompile(`link[rel~="stylesheet"]`)

// idMatcher matches every element whose id attribute equals id exactly,
// including ids that are not valid CSS identifiers.
type idMatcher string

var (
	_ cascadia.Matcher = idMatcher("")
	_ goquery.Matcher  = idMatcher("")
)

func (m idMatcher) Match(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	val, ok := Attr(n, "id")
	return ok && val == string(m)
}

func (m idMatcher) MatchAll(n *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if m.Match(c) {
			out = append(out, c)
		}
		for child := c.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return out
}

func (m idMatcher) Filter(nodes []*html.Node) []*html.Node {
	var out []*html.Node
	for _, n := range nodes {
		if m.Match(n) {
			out = append(out, n)
		}
	}
	return out
}

// Attr returns the value of key on n.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// Detach removes n from its parent, if any.
func Detach(n *html.Node) *html.Node {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
	return n
}
