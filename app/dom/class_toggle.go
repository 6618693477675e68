package dom

import (
	"github.com/PuerkitoBio/goquery"
)

// ClassToggle flips a class on a fixed set of elements of the page without
// going through a render. It resolves its targets by id on every call, so
// a re-render that replaced the nodes is picked up.
type ClassToggle struct {
	page  *Page
	ids   []string
	class string
}

func NewClassToggle(page *Page, class string, ids ...string) *ClassToggle {
	return &ClassToggle{page: page, ids: ids, class: class}
}

func (t *ClassToggle) SetDisabled(disabled bool) {
	t.page.Do(func(doc *goquery.Document) {
		for _, id := range t.ids {
			sel := ByID(doc, id)
			if disabled {
				sel.AddClass(t.class)
				sel.SetAttr("aria-disabled", "true")
			} else {
				sel.RemoveClass(t.class)
				sel.RemoveAttr("aria-disabled")
			}
		}
	})
}

// HasClass reports whether every target currently carries the class.
func (t *ClassToggle) HasClass() bool {
	all := true
	t.page.Do(func(doc *goquery.Document) {
		for _, id := range t.ids {
			sel := ByID(doc, id)
			if sel.Length() == 0 || !sel.HasClass(t.class) {
				all = false
			}
		}
	})
	return all
}
