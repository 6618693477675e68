// Package dom holds the shared page document that every feed instance
// renders into. Mutations go through Page.Do so that concurrent instances
// never interleave inside a single read-modify-write.
package dom

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type Page struct {
	mu  sync.Mutex
	doc *goquery.Document
}

// NewPage creates an empty document with a body.
func NewPage() *Page {
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader("<!DOCTYPE html><html><head></head><body></body></html>"))
	return &Page{doc: doc}
}

// Do runs fn with exclusive access to the document.
func (p *Page) Do(fn func(doc *goquery.Document)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p.doc)
}

// Body returns the body selection. Only use it inside Do.
func Body(doc *goquery.Document) *goquery.Selection {
	return doc.Find("body").First()
}

// ByID finds elements carrying the given id attribute. Ids are matched by
// attribute value so that duplicates are all returned.
func ByID(doc *goquery.Document, id string) *goquery.Selection {
	return doc.FindMatcher(idMatcher(id))
}

// EnsureElement returns the element with the given id, appending a new
// one built by create under the body when it is absent.
func EnsureElement(doc *goquery.Document, id string, create func() *html.Node) *goquery.Selection {
	existing := ByID(doc, id)
	if existing.Length() > 0 {
		return existing.First()
	}
	node := create()
	setAttr(node, "id", id)
	Body(doc).AppendNodes(node)
	return ByID(doc, id).First()
}

// NewElement builds a detached element node.
func NewElement(tag string, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
		Attr:     attrs,
	}
}

// ParseFragment parses markup in a <div> context so that leading <link>
// and <script> elements stay in document order instead of moving into a
// synthetic <head>.
func ParseFragment(markup []byte) (*goquery.Document, error) {
	root := NewElement("div")
	nodes, err := html.ParseFragment(bytes.NewReader(markup), root)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fragment: %w", err)
	}
	for _, n := range nodes {
		root.AppendChild(Detach(n))
	}
	return goquery.NewDocumentFromNode(root), nil
}

// Render serializes the whole document.
func (p *Page) Render() (string, error) {
	var out string
	var err error
	p.Do(func(doc *goquery.Document) {
		out, err = goquery.OuterHtml(doc.Selection)
	})
	return out, err
}

// InnerHTML serializes the children of s.
func InnerHTML(s *goquery.Selection) string {
	markup, err := s.Html()
	if err != nil {
		return ""
	}
	return markup
}

// CloneNode deep-copies n so that it can be inserted into another tree.
func CloneNode(n *html.Node) *html.Node {
	clone := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		clone.AppendChild(CloneNode(c))
	}
	return clone
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
