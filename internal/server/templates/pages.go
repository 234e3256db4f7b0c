package templates

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"
	"github.com/information-sharing-networks/abillio-demo/internal/abillio"
	"github.com/information-sharing-networks/abillio-demo/internal/snippets"
)

// ServicesList is one page of the services list
type ServicesList struct {
	// the result array, already pretty printed
	JSON       string
	Shown      int
	Pagination *abillio.Pagination
}

// ServicesPage shows a page of services with links to the neighbouring pages.
// The list is omitted when p.Error is set.
func ServicesPage(p Page, list ServicesList) templ.Component {
	content := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}

		h.raw("<p class=\"hint\">")
		h.text(p.Dict.T("getStarted"))
		h.raw("</p>\n<section class=\"services\">\n  <h1>")
		h.text(p.Dict.T("abillioServices"))
		h.raw("</h1>")

		if pg := list.Pagination; pg != nil {
			h.raw("\n  <div class=\"pagination\">\n    <span>")
			h.text(p.Dict.Format("page", "page", pg.Page, "pages", pg.NumPages))
			h.raw("</span>")
			pageLink(h, p, pg.PreviousPage, p.Dict.T("previous"))
			pageLink(h, p, pg.NextPage, p.Dict.T("next"))
			h.raw("\n  </div>\n  <div class=\"count\">")
			h.text(p.Dict.Format("showingResults", "count", list.Shown, "total", pg.Count))
			h.raw("</div>")
		}

		if p.Error == "" {
			h.raw("\n  <pre class=\"json\">")
			h.text(list.JSON)
			h.raw("</pre>")
		}
		h.raw("\n</section>")

		return h.err
	})
	return Layout(p, content)
}

// pageLink links to page, or shows a disabled label when there is no such page
func pageLink(h *htmlWriter, p Page, page *int, label string) {
	if page == nil {
		h.raw("\n    <span class=\"disabled\">")
		h.text(label)
		h.raw("</span>")
		return
	}
	h.raw("\n    <a")
	h.attr("href", "/"+p.Lang+"?p="+strconv.Itoa(*page))
	h.raw(">")
	h.text(label)
	h.raw("</a>")
}

// UsagePage explains one strategy. highlighted is HTML from snippets.Highlight and is written unescaped.
func UsagePage(p Page, strategy snippets.Strategy, highlighted string) templ.Component {
	content := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}

		h.raw("<section class=\"usage\">\n  <h1>")
		h.text(p.Dict.T(strategy.TitleKey))
		h.raw("</h1>\n  <p>")
		h.text(p.Dict.T(strategy.DescriptionKey))
		h.raw("</p>\n  <h2>")
		h.text(p.Dict.T("requestExample"))
		h.raw("</h2>\n  <div class=\"code\">")
		h.render(ctx, templ.Raw(highlighted))
		h.raw("</div>\n</section>")

		return h.err
	})
	return Layout(p, content)
}
