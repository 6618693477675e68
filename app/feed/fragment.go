package feed

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/lysyi3m/feedsync/app/dom"
)

var metadataSelector = cascadia.MustCompile("[data-has-results], [data-has-next], [data-has-prev], [data-total-count], [data-display-count]")

type Metadata struct {
	HasPrev      bool
	HasNext      bool
	HasResults   bool
	TotalCount   int
	DisplayCount string
}

// Fragment is a parsed response body. Content holds the markup to commit
// with metadata and stylesheet links already removed; Styles holds the
// removed links for the asset cache.
type Fragment struct {
	Meta    Metadata
	HasMeta bool
	Content string
	Nodes   []*html.Node
	Styles  *goquery.Document
}

// ParseFragment extracts pagination metadata and stylesheet links from a
// response body. A missing metadata node yields zero values.
func ParseFragment(body []byte) (*Fragment, error) {
	doc, err := dom.ParseFragment(body)
	if err != nil {
		return nil, err
	}

	frag := &Fragment{}

	meta := doc.FindMatcher(metadataSelector)
	if meta.Length() > 0 {
		frag.HasMeta = true
		frag.Meta = readMetadata(meta.First())
		meta.Remove()
	}

	stylesRoot := dom.NewElement("div")
	doc.FindMatcher(dom.StylesheetLinks).Each(func(_ int, link *goquery.Selection) {
		stylesRoot.AppendChild(dom.Detach(link.Get(0)))
	})
	frag.Styles = goquery.NewDocumentFromNode(stylesRoot)

	frag.Content = strings.TrimSpace(dom.InnerHTML(doc.Selection))
	for c := doc.Get(0).FirstChild; c != nil; c = c.NextSibling {
		frag.Nodes = append(frag.Nodes, c)
	}

	return frag, nil
}

func readMetadata(s *goquery.Selection) Metadata {
	meta := Metadata{
		HasPrev:      parseFlag(s.AttrOr("data-has-prev", "")),
		HasNext:      parseFlag(s.AttrOr("data-has-next", "")),
		TotalCount:   parseCount(s.AttrOr("data-total-count", "")),
		DisplayCount: strings.TrimSpace(s.AttrOr("data-display-count", "")),
	}

	// Older endpoints omit data-has-results; fall back to the other
	// metadata, never to the item markup.
	if value, ok := s.Attr("data-has-results"); ok {
		meta.HasResults = parseFlag(value)
	} else {
		meta.HasResults = meta.TotalCount > 0 || meta.HasNext || meta.HasPrev
	}

	return meta
}

func parseFlag(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

func parseCount(value string) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
