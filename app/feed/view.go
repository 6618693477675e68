package feed

import (
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/lysyi3m/feedsync/app/dom"
)

// The helpers below run inside Page.Do with i.mu held.

// renderBlock replaces the block element, or appends it to the body when
// the page has none yet.
func (i *Instance) renderBlock(doc *goquery.Document) {
	markup := i.renderer.Run(i.cfg, i.state)
	existing := dom.ByID(doc, i.cfg.ID)
	if existing.Length() > 0 {
		existing.First().ReplaceWithHtml(markup)
		return
	}
	dom.Body(doc).AppendHtml(markup)
}

func (i *Instance) renderContent(doc *goquery.Document) {
	content := dom.ByID(doc, i.cfg.ContentID()).First()
	content.SetAttr("aria-busy", boolAttr(i.state.Loading))
	content.SetHtml(i.renderer.Body(i.cfg, i.state))
}

func (i *Instance) renderStatus(doc *goquery.Document) {
	dom.ByID(doc, i.cfg.ContentID()).First().SetAttr("aria-busy", boolAttr(i.state.Loading))
	status := dom.ByID(doc, i.cfg.StatusID())
	if status.Length() == 0 {
		return
	}
	status.First().ReplaceWithHtml(i.renderer.Status(i.cfg, i.state))
}

// commitNodes moves the parsed response nodes into the content element.
// Without results the no-results view replaces the content instead, also
// when appending.
func (i *Instance) commitNodes(doc *goquery.Document, nodes []*html.Node, appendMode bool) *goquery.Selection {
	content := dom.ByID(doc, i.cfg.ContentID()).First()

	if !i.state.HasResults {
		content.SetHtml(i.renderer.Body(i.cfg, i.state))
		return content
	}

	if !appendMode {
		content.Empty()
	}
	for _, n := range nodes {
		content.AppendNodes(dom.Detach(n))
	}
	return content
}

// itemCount counts the element children of the content element. It takes
// the page lock itself.
func (i *Instance) itemCount(cfg *Config) int {
	n := 0
	i.page.Do(func(doc *goquery.Document) {
		n = dom.ByID(doc, cfg.ContentID()).First().Children().Length()
	})
	return n
}

func boolAttr(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
