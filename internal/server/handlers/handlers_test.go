package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/information-sharing-networks/abillio-demo/internal/abillio"
)

type requestCall struct {
	endpoint string
	payload  any
	method   string
	query    map[string]string
}

// stubRequester returns a fixed result (or error) and records each call.
// byEndpoint overrides result for individual endpoints.
type stubRequester struct {
	result     json.RawMessage
	byEndpoint map[string]json.RawMessage
	err        error

	mu    sync.Mutex
	calls []requestCall
}

func (s *stubRequester) Request(ctx context.Context, endpoint string, payload any, method string, query map[string]string) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, requestCall{endpoint: endpoint, payload: payload, method: method, query: query})
	if s.err != nil {
		return nil, s.err
	}
	if res, ok := s.byEndpoint[endpoint]; ok {
		return res, nil
	}
	return s.result, nil
}

func newTestRouter(h *HandlerService) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/", h.HandleRoot)
	r.Get("/{lang}", h.HandleServicesPage)
	r.Get("/{lang}/onboarding", h.HandleOnboardingPage)
	r.Get("/{lang}/usage/{strategy}", h.HandleUsagePage)
	r.Get("/api/abillio/services", h.ServicesHandler)
	r.Get("/api/abillio/*", h.ProxyHandler)
	r.Post("/api/abillio/*", h.ProxyHandler)
	r.Post("/api/onboarding", h.CreateFreelancerHandler)
	r.Post("/api/onboarding/{step}/validate", h.ValidateStepHandler)
	return r
}

func serve(router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestProxyHandler(t *testing.T) {
	tests := []struct {
		name         string
		method       string
		target       string
		body         string
		wantEndpoint string
		wantQuery    map[string]string
		wantPayload  string
	}{
		{
			name:         "get with query",
			method:       http.MethodGet,
			target:       "/api/abillio/countries?lang=lv",
			wantEndpoint: "countries",
			wantQuery:    map[string]string{"lang": "lv"},
		},
		{
			name:         "nested endpoint",
			method:       http.MethodGet,
			target:       "/api/abillio/freelancers/42/",
			wantEndpoint: "freelancers/42",
		},
		{
			name:         "repeated parameter keeps the last value",
			method:       http.MethodGet,
			target:       "/api/abillio/currencies?lang=en&lang=lv&is_payment_currency",
			wantEndpoint: "currencies",
			wantQuery:    map[string]string{"lang": "lv", "is_payment_currency": ""},
		},
		{
			name:         "post body becomes the payload",
			method:       http.MethodPost,
			target:       "/api/abillio/freelancers",
			body:         `{"email": "a@example.com"}`,
			wantEndpoint: "freelancers",
			wantPayload:  `{"email": "a@example.com"}`,
		},
		{
			name:         "post without a body",
			method:       http.MethodPost,
			target:       "/api/abillio/freelancers",
			wantEndpoint: "freelancers",
		},
		{
			name:         "dedicated services route",
			method:       http.MethodGet,
			target:       "/api/abillio/services?p=2",
			wantEndpoint: "services",
			wantQuery:    map[string]string{"p": "2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubRequester{result: json.RawMessage(`{"result": [], "pagination": {"count": 0}}`)}
			router := newTestRouter(&HandlerService{Abillio: stub})

			rr := serve(router, tt.method, tt.target, tt.body)

			if rr.Code != http.StatusOK {
				t.Fatalf("got status %d, want 200 (%s)", rr.Code, rr.Body.String())
			}
			if rr.Body.String() != `{"result": [], "pagination": {"count": 0}}` {
				t.Errorf("upstream body not returned verbatim: %s", rr.Body.String())
			}
			if len(stub.calls) != 1 {
				t.Fatalf("expected 1 upstream call, got %d", len(stub.calls))
			}

			call := stub.calls[0]
			if call.endpoint != tt.wantEndpoint {
				t.Errorf("endpoint = %q, want %q", call.endpoint, tt.wantEndpoint)
			}
			if call.method != tt.method {
				t.Errorf("method = %q, want %q", call.method, tt.method)
			}
			if len(call.query) != len(tt.wantQuery) {
				t.Errorf("query = %v, want %v", call.query, tt.wantQuery)
			}
			for k, v := range tt.wantQuery {
				if got, ok := call.query[k]; !ok || got != v {
					t.Errorf("query[%s] = %q, want %q", k, got, v)
				}
			}

			if tt.wantPayload == "" {
				if call.payload != nil {
					t.Errorf("expected no payload, got %v", call.payload)
				}
				return
			}
			raw, ok := call.payload.(json.RawMessage)
			if !ok || string(raw) != tt.wantPayload {
				t.Errorf("payload = %v, want %s", call.payload, tt.wantPayload)
			}
		})
	}
}

func TestProxyHandlerErrors(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		err        error
		wantStatus int
		wantError  string
		wantCalls  int
	}{
		{
			name:       "upstream error",
			method:     http.MethodGet,
			target:     "/api/abillio/services",
			err:        abillio.NewUpstreamError(http.StatusNotFound, []byte(`{"error": "not found"}`)),
			wantStatus: http.StatusInternalServerError,
			wantError:  "abillio status 404 - not found",
			wantCalls:  1,
		},
		{
			name:       "configuration error",
			method:     http.MethodGet,
			target:     "/api/abillio/countries",
			err:        abillio.NewConfigurationError("ABILLIO_API_KEY is not set"),
			wantStatus: http.StatusInternalServerError,
			wantCalls:  1,
		},
		{
			name:       "array body",
			method:     http.MethodPost,
			target:     "/api/abillio/freelancers",
			body:       `[1, 2]`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid json body",
			method:     http.MethodPost,
			target:     "/api/abillio/freelancers",
			body:       `{"email":`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubRequester{err: tt.err}
			router := newTestRouter(&HandlerService{Abillio: stub})

			rr := serve(router, tt.method, tt.target, tt.body)

			if rr.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d (%s)", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if len(stub.calls) != tt.wantCalls {
				t.Errorf("got %d upstream calls, want %d", len(stub.calls), tt.wantCalls)
			}

			if tt.wantStatus != http.StatusInternalServerError {
				return
			}
			var body map[string]string
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("error body is not JSON: %v", err)
			}
			if body["error"] == "" {
				t.Error(`expected a non empty "error" field`)
			}
			if tt.wantError != "" && body["error"] != tt.wantError {
				t.Errorf("error = %q, want %q", body["error"], tt.wantError)
			}
		})
	}
}

func TestHandleRoot(t *testing.T) {
	tests := []struct {
		name            string
		acceptLanguage  string
		defaultLanguage string
		wantLocation    string
	}{
		{"latvian browser", "lv-LV,lv;q=0.9", "en", "/lv"},
		{"english browser", "en-US,en;q=0.9", "lv", "/en"},
		{"no header uses the default", "", "lv", "/lv"},
		{"unsupported language", "de-DE", "en", "/en"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&HandlerService{Abillio: &stubRequester{}, DefaultLanguage: tt.defaultLanguage})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.acceptLanguage != "" {
				req.Header.Set("Accept-Language", tt.acceptLanguage)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != http.StatusFound {
				t.Fatalf("got status %d, want %d", rr.Code, http.StatusFound)
			}
			if got := rr.Header().Get("Location"); got != tt.wantLocation {
				t.Errorf("Location = %q, want %q", got, tt.wantLocation)
			}
		})
	}
}

func TestHandleServicesPage(t *testing.T) {
	stub := &stubRequester{result: json.RawMessage(`{
		"result": [{"id": 11, "name": "Service 11"}],
		"pagination": {"page": 2, "num_pages": 3, "previous_page": 1, "next_page": 3, "count": 25}
	}`)}
	router := newTestRouter(&HandlerService{Abillio: stub})

	rr := serve(router, http.MethodGet, "/lv?p=2", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rr.Code)
	}

	if len(stub.calls) != 1 {
		t.Fatalf("expected 1 upstream call, got %d", len(stub.calls))
	}
	call := stub.calls[0]
	if call.endpoint != "services" || call.query["p"] != "2" || call.query["lang"] != "lv" {
		t.Errorf("unexpected upstream call %+v", call)
	}

	html := rr.Body.String()
	for _, want := range []string{
		"abillio pakalpojumi",
		"Lapa 2 no 3",
		"Rāda 1 no 25 rezultātiem",
		`href="/lv?p=1"`,
		`href="/lv?p=3"`,
		"Service 11",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("page does not contain %q", want)
		}
	}
}

func TestHandleServicesPageUpstreamError(t *testing.T) {
	stub := &stubRequester{err: abillio.NewUpstreamError(http.StatusServiceUnavailable, []byte(`{"error": "maintenance"}`))}
	router := newTestRouter(&HandlerService{Abillio: stub})

	rr := serve(router, http.MethodGet, "/en", "")
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("got status %d, want %d", rr.Code, http.StatusBadGateway)
	}
	html := rr.Body.String()
	if !strings.Contains(html, `role="alert"`) || !strings.Contains(html, "Something went wrong") {
		t.Error("expected the error alert to be rendered")
	}
}

func TestPagesNotFound(t *testing.T) {
	stub := &stubRequester{}
	router := newTestRouter(&HandlerService{Abillio: stub})

	for _, target := range []string{"/de", "/de/usage/client", "/en/usage/websocket", "/de/onboarding"} {
		t.Run(target, func(t *testing.T) {
			rr := serve(router, http.MethodGet, target, "")
			if rr.Code != http.StatusNotFound {
				t.Errorf("got status %d, want 404", rr.Code)
			}
		})
	}
	if len(stub.calls) != 0 {
		t.Errorf("expected no upstream calls, got %d", len(stub.calls))
	}
}

func TestHandleUsagePage(t *testing.T) {
	router := newTestRouter(&HandlerService{Abillio: &stubRequester{}})

	rr := serve(router, http.MethodGet, "/en/usage/server-direct", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rr.Code)
	}

	html := rr.Body.String()
	for _, want := range []string{
		"Server direct",
		"ListServices",
		`<li class="active"><a href="/en/usage/server-direct">`,
		`href="/en/usage/client"`,
		`href="/en/usage/full-example"`,
		`href="/en/onboarding"`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("page does not contain %q", want)
		}
	}
	// chroma output is written unescaped
	if strings.Contains(html, "&lt;pre") {
		t.Error("highlighted code was escaped")
	}
}

func TestLayoutLinks(t *testing.T) {
	tests := []struct {
		name       string
		docsURL    string
		target     string
		wantSwitch string
		wantDocs   string
	}{
		{
			name:       "usage page keeps the strategy",
			docsURL:    "https://api.abill.io/docs/api/",
			target:     "/en/usage/error-handling",
			wantSwitch: `href="/lv/usage/error-handling"`,
			wantDocs:   `href="https://api.abill.io/docs/api/"`,
		},
		{
			name:       "services page keeps the page number",
			docsURL:    "http://localhost:8090/docs/api/",
			target:     "/lv?p=2",
			wantSwitch: `href="/en?p=2"`,
			wantDocs:   `href="http://localhost:8090/docs/api/"`,
		},
		{
			name:       "onboarding page",
			target:     "/lv/onboarding",
			wantSwitch: `href="/en/onboarding"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubRequester{result: json.RawMessage(`{"result": [], "pagination": {"page": 1, "num_pages": 1, "count": 0}}`)}
			router := newTestRouter(&HandlerService{Abillio: stub, DocsURL: tt.docsURL})

			rr := serve(router, http.MethodGet, tt.target, "")
			if rr.Code != http.StatusOK {
				t.Fatalf("got status %d, want 200", rr.Code)
			}

			html := rr.Body.String()
			if !strings.Contains(html, tt.wantSwitch) {
				t.Errorf("language switch link %s not found", tt.wantSwitch)
			}
			if tt.wantDocs == "" {
				if strings.Contains(html, "/docs/api/") {
					t.Error("docs link rendered without a docs URL")
				}
				return
			}
			if !strings.Contains(html, tt.wantDocs) {
				t.Errorf("docs link %s not found", tt.wantDocs)
			}
		})
	}
}

func TestHandleOnboardingPage(t *testing.T) {
	stub := &stubRequester{byEndpoint: map[string]json.RawMessage{
		abillio.EndpointCountries:  json.RawMessage(`{"result": [{"id": "LV", "name": "Latvija", "flag": "🇱🇻"}, {"id": "EE", "name": "Igaunija"}]}`),
		abillio.EndpointCurrencies: json.RawMessage(`{"result": [{"id": "EUR", "symbol": "€"}]}`),
	}}
	router := newTestRouter(&HandlerService{Abillio: stub})

	rr := serve(router, http.MethodGet, "/lv/onboarding", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200 (%s)", rr.Code, rr.Body.String())
	}

	if len(stub.calls) != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", len(stub.calls))
	}
	for _, call := range stub.calls {
		if call.query["lang"] != "lv" {
			t.Errorf("%s requested without lang=lv: %v", call.endpoint, call.query)
		}
		if call.endpoint == abillio.EndpointCurrencies {
			if _, ok := call.query["is_payment_currency"]; !ok {
				t.Error("currencies should be limited to payment currencies")
			}
		}
	}

	html := rr.Body.String()
	for _, want := range []string{
		"Kļūsti par ārštata darbinieku",
		`<fieldset data-step="personal">`,
		`<fieldset data-step="address">`,
		`<fieldset data-step="payment">`,
		`<option value="LV">🇱🇻 Latvija</option>`,
		`<option value="EE">Igaunija</option>`,
		`<option value="EUR">EUR €</option>`,
		`<option value="lv" selected>`,
		`<input type="email" name="email" required>`,
		`<select name="currency" required>`,
		`src="/static/onboarding.js"`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("page does not contain %q", want)
		}
	}
}

func TestHandleOnboardingPageUpstreamError(t *testing.T) {
	stub := &stubRequester{err: abillio.NewUpstreamError(http.StatusServiceUnavailable, []byte(`{"error": "maintenance"}`))}
	router := newTestRouter(&HandlerService{Abillio: stub})

	rr := serve(router, http.MethodGet, "/en/onboarding", "")
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("got status %d, want %d", rr.Code, http.StatusBadGateway)
	}
	html := rr.Body.String()
	if !strings.Contains(html, `role="alert"`) {
		t.Error("expected the error alert to be rendered")
	}
	if strings.Contains(html, "onboarding-form") {
		t.Error("the form should not be rendered without its options")
	}
}

func TestValidateStepHandler(t *testing.T) {
	tests := []struct {
		name       string
		step       string
		body       string
		wantStatus int
		wantValid  bool
	}{
		{
			name:       "valid address",
			step:       "address",
			body:       `{"country": "LV", "street": "Brivibas iela 1", "city": "Riga", "postcode": "LV-1010"}`,
			wantStatus: http.StatusOK,
			wantValid:  true,
		},
		{
			name:       "invalid payment",
			step:       "payment",
			body:       `{"kind": "ach"}`,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "empty body is validated as an empty object",
			step:       "personal",
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "unknown step",
			step:       "billing",
			body:       `{}`,
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&HandlerService{Abillio: &stubRequester{}})

			rr := serve(router, http.MethodPost, "/api/onboarding/"+tt.step+"/validate", tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d (%s)", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if tt.wantStatus == http.StatusNotFound {
				return
			}

			var res ValidationResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
				t.Fatalf("response is not JSON: %v", err)
			}
			if res.Valid != tt.wantValid {
				t.Errorf("valid = %v, want %v", res.Valid, tt.wantValid)
			}
			if !tt.wantValid && len(res.Errors) == 0 {
				t.Error("expected field errors")
			}
		})
	}
}

func TestCreateFreelancerHandler(t *testing.T) {
	application := `{
		"personal": {"language": "en", "email": "a@example.com", "first_name": "Anna", "last_name": "Berzina", "gender": "female", "country": "LV", "personal_code": "1"},
		"address": {"country": "LV", "street": "Brivibas iela 1", "city": "Riga", "postcode": "LV-1010"},
		"payment": {"kind": "sepa", "currency": "EUR", "name": "Anna Berzina", "bank_name": "Swedbank", "iban": "LV80BANK0000435195001"}
	}`

	t.Run("valid application", func(t *testing.T) {
		stub := &stubRequester{result: json.RawMessage(`{"result": {"id": "f-1"}}`)}
		router := newTestRouter(&HandlerService{Abillio: stub})

		rr := serve(router, http.MethodPost, "/api/onboarding", application)
		if rr.Code != http.StatusOK {
			t.Fatalf("got status %d, want 200 (%s)", rr.Code, rr.Body.String())
		}
		if rr.Body.String() != `{"result": {"id": "f-1"}}` {
			t.Errorf("upstream body not returned verbatim: %s", rr.Body.String())
		}
		if len(stub.calls) != 1 {
			t.Fatalf("expected 1 upstream call, got %d", len(stub.calls))
		}
		call := stub.calls[0]
		if call.endpoint != abillio.EndpointFreelancers || call.method != http.MethodPost {
			t.Errorf("unexpected upstream call %+v", call)
		}
		payload, ok := call.payload.([]byte)
		if !ok || !strings.Contains(string(payload), `"bank_account"`) {
			t.Errorf("unexpected payload %v", call.payload)
		}
	})

	t.Run("invalid application is not sent upstream", func(t *testing.T) {
		stub := &stubRequester{}
		router := newTestRouter(&HandlerService{Abillio: stub})

		rr := serve(router, http.MethodPost, "/api/onboarding", `{"personal": {}}`)
		if rr.Code != http.StatusUnprocessableEntity {
			t.Fatalf("got status %d, want 422", rr.Code)
		}
		if len(stub.calls) != 0 {
			t.Errorf("expected no upstream calls, got %d", len(stub.calls))
		}
	})

	t.Run("upstream failure", func(t *testing.T) {
		stub := &stubRequester{err: abillio.NewTransportError(errors.New("connection refused"))}
		router := newTestRouter(&HandlerService{Abillio: stub})

		rr := serve(router, http.MethodPost, "/api/onboarding", application)
		if rr.Code != http.StatusInternalServerError {
			t.Fatalf("got status %d, want 500", rr.Code)
		}
		if !strings.Contains(rr.Body.String(), `"error"`) {
			t.Errorf("expected an error body, got %s", rr.Body.String())
		}
	})
}
