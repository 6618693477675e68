// Package assets deduplicates the stylesheets and scripts that arrive with
// every partial feed response so that each one exists once per page.
package assets

import (
	"context"
	"log/slog"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/lysyi3m/feedsync/app/dom"
)

// ContainerID is the id of the hidden element holding cached assets.
const ContainerID = "feedsync-asset-cache"

// Loader waits for a stylesheet to become available.
type Loader interface {
	Load(ctx context.Context, href string) error
}

// Cache is shared by every feed instance rendering into the same page.
type Cache struct {
	page   *dom.Page
	loader Loader

	// pending is only touched inside page.Do.
	pending map[string]chan struct{}
}

func NewCache(page *dom.Page, loader Loader) *Cache {
	return &Cache{
		page:    page,
		loader:  loader,
		pending: make(map[string]chan struct{}),
	}
}

// SyncStyles ensures every identified stylesheet link in fragment is present
// in the cache container and returns once all of them finished loading.
func (c *Cache) SyncStyles(ctx context.Context, fragment *goquery.Document) error {
	var g errgroup.Group

	fragment.FindMatcher(dom.StylesheetLinks).Each(func(_ int, link *goquery.Selection) {
		id, ok := link.Attr("id")
		if !ok || id == "" {
			slog.Debug("Skipping stylesheet without id", "href", link.AttrOr("href", ""))
			return
		}
		node := link.Get(0)
		g.Go(func() error {
			return c.EnsureStylesheet(ctx, id, node)
		})
	})

	return g.Wait()
}

// EnsureStylesheet copies node into the cache container unless a node with
// the same id is already there. The call returns after the stylesheet
// loaded or failed, including when another caller started the load.
func (c *Cache) EnsureStylesheet(ctx context.Context, id string, node *html.Node) error {
	var wait chan struct{}
	var href string
	owner := false

	c.page.Do(func(doc *goquery.Document) {
		container := c.container(doc)
		if findByID(container, id).Length() > 0 {
			wait = c.pending[id]
			return
		}

		clone := dom.CloneNode(node)
		container.AppendNodes(clone)
		href, _ = dom.Attr(clone, "href")

		wait = make(chan struct{})
		c.pending[id] = wait
		owner = true
	})

	if owner {
		defer c.finish(id, wait)

		if href == "" {
			return nil
		}
		if err := c.loader.Load(ctx, href); err != nil {
			slog.Warn("Stylesheet failed to load", "id", id, "href", href, "error", err)
		}
		return nil
	}

	if wait == nil {
		return nil
	}

	select {
	case <-wait:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Cache) finish(id string, ch chan struct{}) {
	c.page.Do(func(*goquery.Document) {
		if c.pending[id] == ch {
			delete(c.pending, id)
		}
	})
	close(ch)
}

// SyncScripts dedups every identified script inside the committed element
// with id containerID.
func (c *Cache) SyncScripts(containerID string) {
	c.page.Do(func(doc *goquery.Document) {
		committed := dom.ByID(doc, containerID)
		if committed.Length() == 0 {
			return
		}

		var scripts []*html.Node
		committed.Find("script[id]").Each(func(_ int, s *goquery.Selection) {
			scripts = append(scripts, s.Get(0))
		})

		for _, node := range scripts {
			id, _ := dom.Attr(node, "id")
			if id == "" {
				continue
			}
			c.relocateOrDropScript(doc, id, node)
		}
	})
}

// RelocateOrDropScript removes node when its id already exists at least
// twice on the page, and otherwise moves it into the cache container.
func (c *Cache) RelocateOrDropScript(id string, node *html.Node) {
	c.page.Do(func(doc *goquery.Document) {
		c.relocateOrDropScript(doc, id, node)
	})
}

func (c *Cache) relocateOrDropScript(doc *goquery.Document, id string, node *html.Node) {
	if dom.ByID(doc, id).Length() >= 2 {
		dom.Detach(node)
		slog.Debug("Dropped duplicate script", "id", id)
		return
	}

	container := c.container(doc)
	if node.Parent == container.Get(0) {
		return
	}
	container.AppendNodes(dom.Detach(node))
}

// container looks the cache element up on every call because the host
// page may provide one of its own.
func (c *Cache) container(doc *goquery.Document) *goquery.Selection {
	return dom.EnsureElement(doc, ContainerID, func() *html.Node {
		return dom.NewElement("div",
			html.Attribute{Key: "hidden"},
			html.Attribute{Key: "aria-hidden", Val: "true"},
			html.Attribute{Key: "style", Val: "display:none"},
		)
	})
}

// Count returns how many nodes with id exist on the page.
func (c *Cache) Count(id string) int {
	n := 0
	c.page.Do(func(doc *goquery.Document) {
		n = dom.ByID(doc, id).Length()
	})
	return n
}

// CachedCount returns how many nodes with id the cache container holds.
func (c *Cache) CachedCount(id string) int {
	n := 0
	c.page.Do(func(doc *goquery.Document) {
		container := dom.ByID(doc, ContainerID)
		if container.Length() == 0 {
			return
		}
		n = findByID(container.First(), id).Length()
	})
	return n
}

func findByID(s *goquery.Selection, id string) *goquery.Selection {
	return s.Children().FilterFunction(func(_ int, child *goquery.Selection) bool {
		val, ok := child.Attr("id")
		return ok && val == id
	})
}
