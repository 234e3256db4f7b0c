// the abilliotest package provides a fake abillio API that checks request signatures.
//
// It is used by the tests and by the mock-upstream command when developing without access to the staging API.
package abilliotest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/information-sharing-networks/abillio-demo/internal/abillio"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// page size used by the canned list resources
const PageSize = 10

// Call records one request received by the fake
type Call struct {
	Method    string
	Path      string
	Query     map[string][]string
	Headers   abillio.SignedHeaders
	Envelope  json.RawMessage // decoded X-ABILLIO-PAYLOAD
	Body      []byte          // should always be empty
	Verified  bool
	RejectMsg string
}

// Response is a canned reply for an endpoint
type Response struct {
	Status int
	Body   string
}

type Fake struct {
	key    string
	secret string

	mu        sync.Mutex
	calls     []Call
	responses map[string]Response // keyed by "METHOD /v1/path/"

	services    []map[string]any
	freelancers map[string]json.RawMessage
}

// NewFake creates a fake that accepts requests signed with key/secret and serves
// a small canned data set for services, countries, currencies and freelancers.
func NewFake(key, secret string) *Fake {
	f := &Fake{
		key:         key,
		secret:      secret,
		responses:   make(map[string]Response),
		freelancers: make(map[string]json.RawMessage),
	}
	for i := 1; i <= 25; i++ {
		f.services = append(f.services, map[string]any{
			"id":      i,
			"name":    fmt.Sprintf("Service %d", i),
			"code":    fmt.Sprintf("SRV-%03d", i),
			"country": "LV",
		})
	}
	return f
}

// NewServer starts an httptest server for the fake. Close it when done.
func NewServer(f *Fake) *httptest.Server {
	return httptest.NewServer(f)
}

// Handle overrides the response for method and endpoint (e.g. "GET", "services")
func (f *Fake) Handle(method, endpoint string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[method+" "+abillio.RequestPath(endpoint)] = Response{Status: status, Body: body}
}

// Calls returns a copy of the requests received so far
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

func (f *Fake) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	call := Call{
		Method:  r.Method,
		Path:    r.URL.Path,
		Query:   r.URL.Query(),
		Headers: abillio.SignedHeadersFrom(r.Header),
	}
	call.Body, _ = io.ReadAll(r.Body)

	if msg := f.verify(r, &call); msg != "" {
		call.RejectMsg = msg
		f.record(call)
		writeJSON(w, http.StatusUnauthorized, fmt.Sprintf(`{"error":%q}`, msg))
		return
	}
	call.Verified = true
	f.record(call)

	f.mu.Lock()
	canned, ok := f.responses[r.Method+" "+r.URL.Path]
	f.mu.Unlock()
	if ok {
		writeJSON(w, canned.Status, canned.Body)
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == abillio.RequestPath(abillio.EndpointServices):
		f.listServices(w, r)
	case r.Method == http.MethodGet && r.URL.Path == abillio.RequestPath(abillio.EndpointCountries):
		writeJSON(w, http.StatusOK, countries(r.URL.Query().Get("lang")))
	case r.Method == http.MethodGet && r.URL.Path == abillio.RequestPath(abillio.EndpointCurrencies):
		writeJSON(w, http.StatusOK, `{"result":[{"id":"EUR","symbol":"€"},{"id":"USD","symbol":"$"}],"pagination":{"page":1,"num_pages":1,"previous_page":null,"next_page":null,"count":2}}`)
	case r.Method == http.MethodPost && r.URL.Path == abillio.RequestPath(abillio.EndpointFreelancers):
		f.createFreelancer(w, call.Envelope)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, abillio.RequestPath(abillio.EndpointFreelancers)):
		f.getFreelancer(w, r.URL.Path)
	default:
		writeJSON(w, http.StatusNotFound, `{"error":"not found"}`)
	}
}

// verify checks the key, the signature and that the signed request path matches the URL
func (f *Fake) verify(r *http.Request, call *Call) string {
	h := call.Headers
	if h.Key == "" || h.Payload == "" || h.Signature == "" {
		return "missing authentication headers"
	}
	if h.Key != f.key {
		return "unknown api key"
	}
	if !abillio.Verify(f.secret, h.Payload, h.Signature) {
		return "invalid signature"
	}

	env, err := h.DecodePayload()
	if err != nil || !gjson.ValidBytes(env) {
		return "invalid payload"
	}
	call.Envelope = env

	if got := gjson.GetBytes(env, "request").String(); got != r.URL.Path {
		return fmt.Sprintf("signed request %q does not match %q", got, r.URL.Path)
	}
	if !gjson.GetBytes(env, "nonce").Exists() {
		return "missing nonce"
	}
	return ""
}

func (f *Fake) record(call Call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *Fake) listServices(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("p"))
	if err != nil || page < 1 {
		page = 1
	}

	numPages := (len(f.services) + PageSize - 1) / PageSize
	start := (page - 1) * PageSize
	if start > len(f.services) {
		start = len(f.services)
	}
	end := min(start+PageSize, len(f.services))

	pagination := map[string]any{
		"page":          page,
		"num_pages":     numPages,
		"previous_page": nil,
		"next_page":     nil,
		"count":         len(f.services),
	}
	if page > 1 {
		pagination["previous_page"] = page - 1
	}
	if page < numPages {
		pagination["next_page"] = page + 1
	}

	body, _ := json.Marshal(map[string]any{
		"result":     f.services[start:end],
		"pagination": pagination,
	})
	writeJSON(w, http.StatusOK, string(body))
}

func (f *Fake) createFreelancer(w http.ResponseWriter, env json.RawMessage) {
	id := uuid.NewString()

	// echo the submitted fields back without the signing fields
	doc, _ := sjson.DeleteBytes(env, "request")
	doc, _ = sjson.DeleteBytes(doc, "nonce")
	doc, _ = sjson.SetBytes(doc, "id", id)
	doc, _ = sjson.SetBytes(doc, "status", "pending_verification")

	f.mu.Lock()
	f.freelancers[id] = doc
	f.mu.Unlock()

	writeJSON(w, http.StatusCreated, fmt.Sprintf(`{"result":%s}`, doc))
}

func (f *Fake) getFreelancer(w http.ResponseWriter, path string) {
	id := strings.Trim(strings.TrimPrefix(path, abillio.RequestPath(abillio.EndpointFreelancers)), "/")

	f.mu.Lock()
	doc, ok := f.freelancers[id]
	f.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, `{"error":"not found"}`)
		return
	}
	writeJSON(w, http.StatusOK, fmt.Sprintf(`{"result":%s}`, doc))
}

func countries(lang string) string {
	if lang == "lv" {
		return `{"result":[{"id":"LV","name":"Latvija","flag":"🇱🇻"},{"id":"LT","name":"Lietuva","flag":"🇱🇹"},{"id":"EE","name":"Igaunija","flag":"🇪🇪"}],"pagination":{"page":1,"num_pages":1,"previous_page":null,"next_page":null,"count":3}}`
	}
	return `{"result":[{"id":"LV","name":"Latvia","flag":"🇱🇻"},{"id":"LT","name":"Lithuania","flag":"🇱🇹"},{"id":"EE","name":"Estonia","flag":"🇪🇪"}],"pagination":{"page":1,"num_pages":1,"previous_page":null,"next_page":null,"count":3}}`
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
