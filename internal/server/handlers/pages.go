package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/information-sharing-networks/abillio-demo/internal/abillio"
	"github.com/information-sharing-networks/abillio-demo/internal/i18n"
	"github.com/information-sharing-networks/abillio-demo/internal/logger"
	"github.com/information-sharing-networks/abillio-demo/internal/server/templates"
	"github.com/information-sharing-networks/abillio-demo/internal/snippets"
	"github.com/tidwall/pretty"
	"golang.org/x/sync/errgroup"
)

// newPage returns the layout data for the {lang} route parameter, false if the language is not supported
func (h *HandlerService) newPage(r *http.Request) (templates.Page, bool) {
	lang := chi.URLParam(r, "lang")
	dict, ok := i18n.Lookup(lang)
	if !ok {
		return templates.Page{}, false
	}
	return templates.Page{
		Lang:              lang,
		Dict:              dict,
		SwitchLanguageURL: switchLanguageURL(r, lang),
		DocsURL:           h.DocsURL,
		Strategies:        snippets.All(),
		Active:            r.URL.Path,
	}, true
}

// switchLanguageURL returns the current page (path and query) in the other language
func switchLanguageURL(r *http.Request, lang string) string {
	u := "/" + i18n.Other(lang) + strings.TrimPrefix(r.URL.Path, "/"+lang)
	if r.URL.RawQuery != "" {
		u += "?" + r.URL.RawQuery
	}
	return u
}

// HandleRoot redirects to the services page in the language negotiated from Accept-Language
func (h *HandlerService) HandleRoot(w http.ResponseWriter, r *http.Request) {
	lang := h.DefaultLanguage
	if accept := r.Header.Get("Accept-Language"); accept != "" {
		lang = i18n.Match(accept)
	}
	if _, ok := i18n.Lookup(lang); !ok {
		lang = i18n.Languages()[0]
	}
	http.Redirect(w, r, "/"+lang, http.StatusFound)
}

// HandleServicesPage renders a page of abillio services on the server (the server-direct strategy).
// The page number is taken from the p query parameter.
func (h *HandlerService) HandleServicesPage(w http.ResponseWriter, r *http.Request) {
	page, ok := h.newPage(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	pageNum, err := strconv.Atoi(r.URL.Query().Get("p"))
	if err != nil || pageNum < 1 {
		pageNum = 1
	}

	services, err := abillio.ListServices(r.Context(), h.Abillio, abillio.ServiceQuery{Lang: page.Lang, Page: pageNum})
	if err != nil {
		reqLogger := logger.ContextMiddlewareLogger(r.Context())
		reqLogger.Error("Failed to list services", slog.String("error", err.Error()))

		page.Error = userMessage(err)
		h.renderPage(w, r, http.StatusBadGateway, templates.ServicesPage(page, templates.ServicesList{}))
		return
	}

	raw, err := json.Marshal(services.Result)
	if err != nil {
		reqLogger := logger.ContextMiddlewareLogger(r.Context())
		reqLogger.Error("Failed to encode services", slog.String("error", err.Error()))
		raw = []byte("[]")
	}

	h.renderPage(w, r, http.StatusOK, templates.ServicesPage(page, templates.ServicesList{
		JSON:       string(pretty.Pretty(raw)),
		Shown:      len(services.Result),
		Pagination: services.Pagination,
	}))
}

// HandleUsagePage renders the example code and explanation for one API usage strategy
func (h *HandlerService) HandleUsagePage(w http.ResponseWriter, r *http.Request) {
	page, ok := h.newPage(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	slug := chi.URLParam(r, "strategy")
	strategy, ok := snippets.Get(slug)
	if !ok {
		http.NotFound(w, r)
		return
	}

	code, err := strategy.Highlight()
	if err != nil {
		reqLogger := logger.ContextMiddlewareLogger(r.Context())
		reqLogger.Warn("Failed to highlight snippet", slog.String("strategy", slug), slog.String("error", err.Error()))
		// fall back to the escaped source
		code = "<pre>" + templ.EscapeString(strategy.Code) + "</pre>"
	}

	h.renderPage(w, r, http.StatusOK, templates.UsagePage(page, strategy, code))
}

// HandleOnboardingPage renders the freelancer form. The country and payout currency options
// are fetched from the abillio API in parallel.
func (h *HandlerService) HandleOnboardingPage(w http.ResponseWriter, r *http.Request) {
	page, ok := h.newPage(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	var opts templates.OnboardingOptions
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		countries, err := abillio.ListCountries(ctx, h.Abillio, page.Lang)
		if err != nil {
			return err
		}
		opts.Countries = countries.Result
		return nil
	})
	g.Go(func() error {
		currencies, err := abillio.ListCurrencies(ctx, h.Abillio, page.Lang, true)
		if err != nil {
			return err
		}
		opts.Currencies = currencies.Result
		return nil
	})

	if err := g.Wait(); err != nil {
		reqLogger := logger.ContextMiddlewareLogger(r.Context())
		reqLogger.Error("Failed to load onboarding options", slog.String("error", err.Error()))

		page.Error = userMessage(err)
		h.renderPage(w, r, http.StatusBadGateway, templates.OnboardingPage(page, templates.OnboardingOptions{}))
		return
	}

	h.renderPage(w, r, http.StatusOK, templates.OnboardingPage(page, opts))
}
