// the templates package renders the demo pages as templ components.
package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
	"github.com/information-sharing-networks/abillio-demo/internal/i18n"
	"github.com/information-sharing-networks/abillio-demo/internal/snippets"
)

// Page holds the data shown by the layout on every page
type Page struct {
	Lang string
	Dict *i18n.Dictionary
	// the current page in the other language
	SwitchLanguageURL string
	// abillio API documentation, the link is hidden when empty
	DocsURL    string
	Strategies []snippets.Strategy
	// path of the current page, its navigation link is highlighted
	Active string
	// shown in the error alert
	Error string
}

// htmlWriter keeps the first write error so the components can write unconditionally and check once
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

func (h *htmlWriter) text(s string) {
	h.raw(templ.EscapeString(s))
}

// attr writes ` name="value"` with value escaped
func (h *htmlWriter) attr(name, value string) {
	h.raw(" " + name + `="`)
	h.text(value)
	h.raw(`"`)
}

func (h *htmlWriter) render(ctx context.Context, c templ.Component) {
	if h.err == nil {
		h.err = c.Render(ctx, h.w)
	}
}

func (h *htmlWriter) navLink(p Page, href, label string) {
	h.raw("\n        <li")
	if href == p.Active {
		h.attr("class", "active")
	}
	h.raw("><a")
	h.attr("href", href)
	h.raw(">")
	h.text(label)
	h.raw("</a></li>")
}

// Layout wraps content in the page header, navigation and error alert
func Layout(p Page, content templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}

		h.raw("<!DOCTYPE html>\n<html")
		h.attr("lang", p.Lang)
		h.raw(">\n<head>\n  <meta charset=\"utf-8\">\n  <meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n  <title>")
		h.text(p.Dict.T("title"))
		h.raw("</title>\n  <link rel=\"stylesheet\" href=\"/static/site.css\">\n</head>\n<body>\n  <header class=\"header\">\n    <a class=\"brand\"")
		h.attr("href", "/"+p.Lang)
		h.raw(">")
		h.text(p.Dict.T("title"))
		h.raw("</a>\n    <nav class=\"actions\">\n      <a class=\"button\"")
		h.attr("href", p.SwitchLanguageURL)
		h.attr("hreflang", i18n.Other(p.Lang))
		h.raw(">")
		h.text(p.Dict.T("switchLanguage"))
		h.raw("</a>")
		if p.DocsURL != "" {
			h.raw("\n      <a class=\"button secondary\"")
			h.attr("href", string(templ.URL(p.DocsURL)))
			h.raw(" target=\"_blank\" rel=\"noopener noreferrer\">")
			h.text(p.Dict.T("readDocs"))
			h.raw("</a>")
		}
		h.raw("\n    </nav>\n  </header>\n  <div class=\"layout\">\n    <aside class=\"sidebar\">\n      <ul>")
		h.navLink(p, "/"+p.Lang, p.Dict.T("services"))
		h.navLink(p, "/"+p.Lang+"/onboarding", p.Dict.T("onboardingForm"))
		h.raw("\n      </ul>\n      <h2>")
		h.text(p.Dict.T("usage"))
		h.raw("</h2>\n      <ul>")
		for _, s := range p.Strategies {
			h.navLink(p, "/"+p.Lang+"/usage/"+s.Slug, p.Dict.T(s.TitleKey))
		}
		h.raw("\n      </ul>\n    </aside>\n    <main class=\"content\">")
		if p.Error != "" {
			h.raw("\n      <div class=\"alert\" role=\"alert\">\n        <strong>")
			h.text(p.Dict.T("errorTitle"))
			h.raw("</strong>\n        <p>")
			h.text(p.Error)
			h.raw("</p>\n      </div>")
		}
		h.raw("\n")
		h.render(ctx, content)
		h.raw("\n    </main>\n  </div>\n</body>\n</html>\n")

		return h.err
	})
}
