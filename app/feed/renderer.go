package feed

import (
	"bytes"
	"fmt"
	"html"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Renderer produces the declarative markup of a feed block. Carousel
// navigation is always emitted disabled; only the carousel controller
// enables it after measuring.
type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

// Run renders the whole block for cfg in state.
func (r *Renderer) Run(cfg *Config, state State) string {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf(`<section id="%s" class="post-feed post-feed--%s" data-source="%s" data-pagination="%s">`,
		html.EscapeString(cfg.ID),
		html.EscapeString(string(cfg.LayoutMode)),
		html.EscapeString(string(cfg.Source)),
		html.EscapeString(string(cfg.Pagination))))
	buf.WriteString("\n")

	buf.WriteString(fmt.Sprintf(`  <div id="%s" class="post-feed__items" aria-busy="%t">`,
		html.EscapeString(cfg.ContentID()), state.Loading))
	buf.WriteString(r.Body(cfg, state))
	buf.WriteString("</div>\n")

	if cfg.LayoutMode == LayoutCarousel {
		buf.WriteString(`  <div class="post-feed__carousel-nav">`)
		r.writeNavButton(&buf, cfg.PrevNavID(), "prev", "Previous")
		r.writeNavButton(&buf, cfg.NextNavID(), "next", "Next")
		buf.WriteString("</div>\n")
	}

	buf.WriteString("  ")
	buf.WriteString(r.Status(cfg, state))
	buf.WriteString("\n</section>")

	return buf.String()
}

// Body renders the content area: committed markup, or one of the
// placeholder views.
func (r *Renderer) Body(cfg *Config, state State) string {
	switch {
	case state.Unconfigured:
		return `<p class="post-feed__unconfigured">Connect this feed to a search control to show results.</p>`
	case state.Loading && state.RawContent == "":
		return ""
	case !state.Loading && !state.HasResults:
		return fmt.Sprintf(`<p class="post-feed__no-results">%s</p>`, html.EscapeString(cfg.NoResultsLabel))
	default:
		return state.RawContent
	}
}

// Status renders the details line and pagination controls.
func (r *Renderer) Status(cfg *Config, state State) string {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf(`<div id="%s" class="post-feed__status">`, html.EscapeString(cfg.StatusID())))

	if cfg.DisplayDetails && state.HasResults {
		r.writeElement(&buf, "p", "post-feed__count", r.countLabel(cfg, state))
	}

	if state.HasResults && !state.Unconfigured {
		switch cfg.Pagination {
		case PaginationPrevNext:
			buf.WriteString(`<nav class="post-feed__pagination">`)
			r.writeButton(&buf, "prev", "Previous", !state.HasPrev || state.Loading)
			r.writeElement(&buf, "span", "post-feed__page", strconv.Itoa(state.Page))
			r.writeButton(&buf, "next", "Next", !state.HasNext || state.Loading)
			buf.WriteString("</nav>")
		case PaginationLoadMore:
			if state.HasNext {
				r.writeButton(&buf, "more", "Load more", state.Loading)
			}
		}
	}

	buf.WriteString("</div>")

	return buf.String()
}

func (r *Renderer) countLabel(cfg *Config, state State) string {
	if state.DisplayCount != "" {
		return state.DisplayCount
	}
	tag, err := language.Parse(cfg.Locale)
	if err != nil {
		tag = language.English
	}
	return message.NewPrinter(tag).Sprintf("%d results", state.TotalCount)
}

func (r *Renderer) writeNavButton(buf *bytes.Buffer, id, dir, label string) {
	buf.WriteString(fmt.Sprintf(`<button type="button" id="%s" class="post-feed__nav post-feed__nav--%s is-disabled" aria-disabled="true" aria-label="%s"></button>`,
		html.EscapeString(id), dir, html.EscapeString(label)))
}

func (r *Renderer) writeButton(buf *bytes.Buffer, action, label string, disabled bool) {
	buf.WriteString(fmt.Sprintf(`<button type="button" class="post-feed__button" data-action="%s"`, action))
	if disabled {
		buf.WriteString(` disabled=""`)
	}
	buf.WriteString(">")
	buf.WriteString(html.EscapeString(label))
	buf.WriteString("</button>")
}

func (r *Renderer) writeElement(buf *bytes.Buffer, tag, class, content string) {
	if content == "" {
		return
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(` class="`)
	buf.WriteString(class)
	buf.WriteString(`">`)
	buf.WriteString(html.EscapeString(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">")
}
