package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/information-sharing-networks/abillio-demo/internal/abillio"
	"github.com/information-sharing-networks/abillio-demo/internal/apperrors"
	"github.com/information-sharing-networks/abillio-demo/internal/logger"
	"github.com/information-sharing-networks/abillio-demo/internal/response"
	"github.com/tidwall/gjson"
)

// ProxyHandler godoc
//
//	@Summary		Proxy a request to the abillio API
//	@Description	The wildcard path is the abillio endpoint (e.g. /api/abillio/freelancers/123 calls /v1/freelancers/123/).
//	@Description	Query parameters are forwarded (the last value is used when a parameter is repeated).
//	@Description	POST bodies must be a JSON object and become the signed payload.
//	@Description	The upstream JSON is returned unchanged. Any failure returns status 500 with {"error": "message"}.
//	@Tags			abillio
//
//	@Success		200	{object}	any
//	@Failure		400	{object}	response.ErrorResponse
//	@Failure		500	{object}	response.ProxyErrorResponse
//
//	@Router			/api/abillio/{endpoint} [get]
//	@Router			/api/abillio/{endpoint} [post]
func (h *HandlerService) ProxyHandler(w http.ResponseWriter, r *http.Request) {
	endpoint := strings.Trim(chi.URLParam(r, "*"), "/")
	if endpoint == "" {
		response.RespondWithError(w, r, http.StatusBadRequest, apperrors.ErrCodeInvalidURLParam, "an abillio endpoint is required, e.g. /api/abillio/services")
		return
	}

	var payload any
	if r.Method == http.MethodPost {
		body, ok := readJSONObject(w, r)
		if !ok {
			return
		}
		if body != nil {
			payload = body
		}
	}

	h.forward(w, r, endpoint, payload)
}

// ServicesHandler godoc
//
//	@Summary		List abillio services
//	@Description	Query parameters (lang, country, p) are forwarded to the services endpoint.
//	@Tags			abillio
//
//	@Success		200	{object}	abillio.ListResponse[any]
//	@Failure		500	{object}	response.ProxyErrorResponse
//
//	@Router			/api/abillio/services [get]
func (h *HandlerService) ServicesHandler(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, abillio.EndpointServices, nil)
}

func (h *HandlerService) forward(w http.ResponseWriter, r *http.Request, endpoint string, payload any) {
	logger.ContextWithLogAttrs(r.Context(), slog.String("endpoint", endpoint))

	result, err := h.Abillio.Request(r.Context(), endpoint, payload, r.Method, flattenQuery(r.URL.Query()))
	if err != nil {
		response.RespondWithProxyError(w, r, err)
		return
	}

	response.RespondWithRawJSON(w, http.StatusOK, result)
}

// flattenQuery keeps the last value of repeated parameters
func flattenQuery(values url.Values) map[string]string {
	if len(values) == 0 {
		return nil
	}
	query := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			query[k] = v[len(v)-1]
		}
	}
	return query
}

// readJSONObject reads a request body that must be empty or a JSON object.
// An empty body returns (nil, true). On failure the error response has been written and ok is false.
func readJSONObject(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			response.RespondWithError(w, r, http.StatusRequestEntityTooLarge, apperrors.ErrCodeRequestTooLarge,
				fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytesErr.Limit))
			return nil, false
		}
		response.RespondWithError(w, r, http.StatusBadRequest, apperrors.ErrCodeMalformedBody, "could not read request body")
		return nil, false
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, true
	}

	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		response.RespondWithError(w, r, http.StatusBadRequest, apperrors.ErrCodeMalformedBody, "request body must be a JSON object")
		return nil, false
	}
	return json.RawMessage(body), true
}
