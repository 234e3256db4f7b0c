// the snippets package holds the example code shown on the usage pages and renders it as highlighted HTML.
package snippets

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// Strategy is one of the ways a web application can call the abillio API
type Strategy struct {
	Slug string
	// dictionary keys
	TitleKey       string
	DescriptionKey string
	// chroma lexer name
	Language string
	Code     string
}

var registry = []Strategy{
	{
		Slug:           "client",
		TitleKey:       "clientSide",
		DescriptionKey: "clientSideInfo",
		Language:       "javascript",
		Code: `const res = await fetch("/api/abillio/services?lang=en&p=2");
const data = await res.json();
if (!res.ok) {
  throw new Error(data.error);
}
console.log(data.pagination.count, data.result);
`,
	},
	{
		Slug:           "server-proxy",
		TitleKey:       "serverProxy",
		DescriptionKey: "serverProxyInfo",
		Language:       "go",
		Code: `r.Route("/api/abillio", func(r chi.Router) {
	r.Get("/*", handlers.Proxy)
	r.Post("/*", handlers.Proxy)
})

// Proxy forwards the call with signed headers and returns the upstream JSON unchanged
func (h *ProxyHandler) Proxy(w http.ResponseWriter, r *http.Request) {
	endpoint := chi.URLParam(r, "*")
	body, err := h.client.Request(r.Context(), endpoint, payload, r.Method, query)
	if err != nil {
		response.RespondWithProxyError(w, r, err)
		return
	}
	response.RespondWithRawJSON(w, http.StatusOK, body)
}
`,
	},
	{
		Slug:           "server-direct",
		TitleKey:       "serverDirect",
		DescriptionKey: "serverDirectInfo",
		Language:       "go",
		Code: `client, err := abillio.NewClient(abillio.Credentials{
	BaseURL:   os.Getenv("ABILLIO_API_URL"),
	APIKey:    os.Getenv("ABILLIO_API_KEY"),
	APISecret: os.Getenv("ABILLIO_API_SECRET"),
})
if err != nil {
	return err
}

services, err := abillio.ListServices(ctx, client, abillio.ServiceQuery{Lang: "en", Page: 1})
if err != nil {
	return err
}
fmt.Println(services.Pagination.Count)
`,
	},
	{
		Slug:           "error-handling",
		TitleKey:       "errorHandling",
		DescriptionKey: "errorHandlingInfo",
		Language:       "go",
		Code: `body, err := client.Request(ctx, "services", nil, http.MethodGet, nil)
var apiErr *abillio.Error
switch {
case errors.Is(err, abillio.ErrConfiguration):
	log.Fatal("set ABILLIO_API_KEY and ABILLIO_API_SECRET")
case errors.As(err, &apiErr) && apiErr.Kind == abillio.KindUpstream:
	slog.Error("abillio rejected the request", "status", apiErr.StatusCode, "body", string(apiErr.Body))
case err != nil:
	slog.Error("request failed", "error", err)
default:
	fmt.Println(string(body))
}
`,
	},
	{
		Slug:           "onboarding",
		TitleKey:       "onboarding",
		DescriptionKey: "onboardingInfo",
		Language:       "bash",
		Code: `curl -X POST http://localhost:3000/api/onboarding/payment/validate \
  -H 'Content-Type: application/json' \
  -d '{"kind": "sepa", "currency": "EUR", "name": "Anna Berzina", "bank_name": "Swedbank", "iban": "LV80BANK0000435195001"}'

# {"valid": true}
`,
	},
	{
		Slug:           "full-example",
		TitleKey:       "fullExample",
		DescriptionKey: "fullExampleInfo",
		Language:       "javascript",
		Code: `async function api(path, body) {
  const res = await fetch(path, body === undefined ? {} : {
    method: "POST",
    headers: { "Content-Type": "application/json" },
    body: JSON.stringify(body),
  });
  const data = await res.json();
  if (!res.ok) {
    throw new Error(data.error ?? JSON.stringify(data.errors));
  }
  return data;
}

// options for the form selects
const [countries, currencies] = await Promise.all([
  api("/api/abillio/countries?lang=en"),
  api("/api/abillio/currencies?lang=en&is_payment_currency"),
]);

for (const step of ["personal", "address", "payment"]) {
  await api(` + "`/api/onboarding/${step}/validate`" + `, application[step]);
}
const freelancer = await api("/api/onboarding", application);

const services = await api(` + "`/api/abillio/services?lang=en&country=${application.address.country}`" + `);
console.log(freelancer.result.id, services.pagination.count);
`,
	},
}

// All returns the strategies in display order
func All() []Strategy {
	return registry
}

// Get returns the strategy for slug
func Get(slug string) (Strategy, bool) {
	for _, s := range registry {
		if s.Slug == slug {
			return s, true
		}
	}
	return Strategy{}, false
}

const styleName = "github"

var formatter = html.New(html.WithClasses(false), html.TabWidth(4))

// highlighted output is cached per slug since the registry never changes
var (
	cache      = map[string]string{}
	cacheMutex sync.RWMutex
)

// Highlight renders the strategy's code as inline styled HTML
func (s Strategy) Highlight() (string, error) {
	cacheMutex.RLock()
	out, ok := cache[s.Slug]
	cacheMutex.RUnlock()
	if ok {
		return out, nil
	}

	out, err := Highlight(s.Language, s.Code)
	if err != nil {
		return "", fmt.Errorf("could not highlight %s snippet: %w", s.Slug, err)
	}

	cacheMutex.Lock()
	cache[s.Slug] = out
	cacheMutex.Unlock()
	return out, nil
}

// Highlight renders code as inline styled HTML using the lexer for lang (plain text if lang is unknown).
// The source text is escaped by the formatter so the result can be written to the page as is.
func Highlight(lang, code string) (string, error) {
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := styles.Get(styleName)
	if style == nil {
		style = styles.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return "", err
	}

	return buf.String(), nil
}
